package models

// GalleryMetadata carries the optional vehicle context attached to a
// saved image.
type GalleryMetadata struct {
	CarMake   string `gorm:"size:120" json:"carMake,omitempty"`
	CarModel  string `gorm:"size:120" json:"carModel,omitempty"`
	Year      int    `json:"year,omitempty"`
	AngleID   string `gorm:"size:64" json:"angleId,omitempty"`
	AngleName string `gorm:"size:120" json:"angleName,omitempty"`
	SessionID string `gorm:"size:64;index" json:"sessionId,omitempty"`
}

// GalleryImage is one persisted image entry. Rows exist in Postgres for
// authenticated users; the full list is additionally cached as a JSON
// blob in the key-value store so gallery reads never block on the
// database.
type GalleryImage struct {
	ID      string `gorm:"primaryKey;size:64" json:"id"`
	OwnerID string `gorm:"size:64;index" json:"ownerId,omitempty"`

	// URI is where the stored copy can be read (local path or remote URL).
	URI string `gorm:"size:1024" json:"uri"`
	// StoragePath is the object key or file path used for deletion.
	StoragePath string `gorm:"size:512" json:"storagePath,omitempty"`

	Category string          `gorm:"size:255;index" json:"category"`
	Metadata GalleryMetadata `gorm:"embedded" json:"metadata"`

	CreatedAt int64 `json:"createdAt"` // unix milliseconds
}

// GalleryFolder is a derived grouping of gallery images by category. It
// is recomputed from the image list on demand and never persisted.
type GalleryFolder struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CoverImage string `json:"coverImage"`
	ImageCount int    `json:"imageCount"`
	CreatedAt  int64  `json:"createdAt"`
	UpdatedAt  int64  `json:"updatedAt"`
}
