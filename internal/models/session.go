package models

// CarPhoto is one captured image within a photo session. Timestamps are
// unix milliseconds so the JSON blobs stay compatible with the mobile
// clients' session records.
type CarPhoto struct {
	ID                string `json:"id"`
	URI               string `json:"uri"`
	AngleID           string `json:"angleId"`
	Processed         bool   `json:"processed"`
	BackgroundRemoved bool   `json:"backgroundRemoved"`
	BackgroundAdded   bool   `json:"backgroundAdded"`
	FinalImageURI     string `json:"finalImageUri,omitempty"`
	CreatedAt         int64  `json:"createdAt"`
}

// CarSession is one photographing engagement for a single vehicle. The
// active session lives as a JSON blob in the key-value store; completed
// sessions are appended to a per-user archive list. At most one active
// session exists per user at a time.
type CarSession struct {
	ID           string     `json:"id"`
	DealershipID string     `json:"dealershipId"`
	UserID       string     `json:"userId"`
	CarMake      string     `json:"carMake"`
	CarModel     string     `json:"carModel"`
	Year         int        `json:"year"`
	Photos       []CarPhoto `json:"photos"`
	CreatedAt    int64      `json:"createdAt"`
	UpdatedAt    int64      `json:"updatedAt"`
	Completed    bool       `json:"completed"`
}
