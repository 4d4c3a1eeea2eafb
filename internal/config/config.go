package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// Server
	Port        string
	Env         string
	APIUrl      string
	FrontendURL string

	// Database
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	DBTimeZone string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// JWT
	JWTSecret               string
	JWTAccessTokenDuration  time.Duration
	JWTRefreshTokenDuration time.Duration

	// Stripe (credit pack purchases)
	StripeSecretKey               string
	StripeWebhookSecret           string
	StripeSuccessURL              string
	StripeCancelURL               string
	StripePaymentMethods          []string
	StripeAutomaticPaymentMethods bool
	CreditPackSize                int
	CreditPackPrice               float64 // EUR per pack

	// Gallery S3 (S3-compatible object storage for gallery images)
	GalleryS3Endpoint        string
	GalleryS3Region          string
	GalleryS3AccessKeyID     string
	GalleryS3SecretAccessKey string
	GalleryS3UsePathStyle    bool
	GalleryBucket            string

	// Local storage
	LocalAssetsPath string

	// Credits
	DefaultCredits int

	// Background removal
	RemoveBgProvider       string // "dummy" | "removebg"
	RemoveBgAPIURL         string
	RemoveBgAPIKey         string
	RemoveBgSimulatedDelay time.Duration
	RemoveBgWorkerEnabled  bool
	RemoveBgPollInterval   time.Duration

	// Image editor
	// The damping/smoothing factors are hand-tuned; they are configuration,
	// not constants, so deployments can adjust them without a rebuild.
	EditorPanDamping     float64
	EditorPinchSmoothing float64
	EditorMinScale       float64
	EditorMaxScale       float64
	EditorMarginRatio    float64
	CaptureWidth         int
	CaptureHeight        int

	// Uploads
	UploadMaxImageSize int64

	// Security
	BcryptCost        int
	RateLimitRequests int
	RateLimitDuration time.Duration

	// CORS
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

func New() *Config {
	return &Config{
		// Server
		Port:        getEnv("PORT", "8080"),
		Env:         getEnv("ENV", "development"),
		APIUrl:      getEnv("API_URL", "http://localhost:8080"),
		FrontendURL: getEnv("FRONTEND_URL", "http://localhost:3000"),

		// Database
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "carshot"),
		DBPassword: getEnv("DB_PASSWORD", "password"),
		DBName:     getEnv("DB_NAME", "carshot_db"),
		DBSSLMode:  getEnv("DB_SSL_MODE", "disable"),
		DBTimeZone: getEnv("DB_TIMEZONE", "Europe/Stockholm"),

		// Redis
		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvAsInt("REDIS_DB", 0),

		// JWT
		JWTSecret:               getEnv("JWT_SECRET", "your-secret-key"),
		JWTAccessTokenDuration:  getEnvAsDuration("JWT_ACCESS_TOKEN_DURATION", "1h"),
		JWTRefreshTokenDuration: getEnvAsDuration("JWT_REFRESH_TOKEN_DURATION", "168h"),

		// Stripe
		StripeSecretKey:               getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret:           getEnv("STRIPE_WEBHOOK_SECRET", ""),
		StripeSuccessURL:              getEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/payment/success"),
		StripeCancelURL:               getEnv("STRIPE_CANCEL_URL", "http://localhost:3000/payment/cancel"),
		StripePaymentMethods:          getEnvAsSlice("STRIPE_PAYMENT_METHODS", []string{"card"}),
		StripeAutomaticPaymentMethods: getEnv("STRIPE_AUTOMATIC_PAYMENT_METHODS", "false") == "true",
		CreditPackSize:                getEnvAsInt("CREDIT_PACK_SIZE", 10),
		CreditPackPrice:               getEnvAsFloat("CREDIT_PACK_PRICE", 9.90),

		// Gallery S3
		GalleryS3Endpoint:        getEnv("GALLERY_S3_ENDPOINT", ""),
		GalleryS3Region:          getEnv("GALLERY_S3_REGION", "us-east-1"),
		GalleryS3AccessKeyID:     getEnv("GALLERY_S3_ACCESS_KEY_ID", ""),
		GalleryS3SecretAccessKey: getEnv("GALLERY_S3_SECRET_ACCESS_KEY", ""),
		GalleryS3UsePathStyle:    getEnv("GALLERY_S3_USE_PATH_STYLE", "true") == "true",
		GalleryBucket:            getEnv("GALLERY_BUCKET", "carshot-gallery"),

		// Local storage
		LocalAssetsPath: getEnv("LOCAL_ASSETS_PATH", "/data/assets"),

		// Credits
		DefaultCredits: getEnvAsInt("DEFAULT_CREDITS", 5),

		// Background removal
		RemoveBgProvider:       getEnv("REMOVEBG_PROVIDER", "dummy"),
		RemoveBgAPIURL:         getEnv("REMOVEBG_API_URL", "https://api.remove.bg/v1.0/removebg"),
		RemoveBgAPIKey:         getEnv("REMOVEBG_API_KEY", ""),
		RemoveBgSimulatedDelay: getEnvAsDuration("REMOVEBG_SIMULATED_DELAY", "1500ms"),
		RemoveBgWorkerEnabled:  getEnv("REMOVEBG_WORKER_ENABLED", "true") == "true",
		RemoveBgPollInterval:   getEnvAsDuration("REMOVEBG_POLL_INTERVAL", "30s"),

		// Image editor
		EditorPanDamping:     getEnvAsFloat("EDITOR_PAN_DAMPING", 0.5),
		EditorPinchSmoothing: getEnvAsFloat("EDITOR_PINCH_SMOOTHING", 0.3),
		EditorMinScale:       getEnvAsFloat("EDITOR_MIN_SCALE", 0.3),
		EditorMaxScale:       getEnvAsFloat("EDITOR_MAX_SCALE", 3.0),
		EditorMarginRatio:    getEnvAsFloat("EDITOR_MARGIN_RATIO", 0.5),
		CaptureWidth:         getEnvAsInt("CAPTURE_WIDTH", 1920),
		CaptureHeight:        getEnvAsInt("CAPTURE_HEIGHT", 1080),

		// Uploads
		UploadMaxImageSize: int64(getEnvAsInt("UPLOAD_MAX_IMAGE_SIZE", 10*1024*1024)),

		// Security
		BcryptCost:        getEnvAsInt("BCRYPT_COST", 12),
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 100),
		RateLimitDuration: getEnvAsDuration("RATE_LIMIT_DURATION", "1m"),

		// CORS
		AllowedOrigins: getEnvAsSlice("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		AllowedMethods: getEnvAsSlice("ALLOWED_METHODS", []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}),
		AllowedHeaders: getEnvAsSlice("ALLOWED_HEADERS", []string{"Content-Type", "Authorization"}),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := getEnv(key, defaultValue)
	if duration, err := time.ParseDuration(valueStr); err == nil {
		return duration
	}
	if duration, err := time.ParseDuration(defaultValue); err == nil {
		return duration
	}
	return time.Hour
}

func getEnvAsSlice(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, ",")
}
