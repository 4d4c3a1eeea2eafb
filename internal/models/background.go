package models

// Background is a backdrop image the car can be composited onto. The
// built-in set is static; user customs are persisted as JSON in the
// key-value store with their assets in object storage.
type Background struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URI         string `json:"uri"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	Custom      bool   `json:"custom,omitempty"`
	StoragePath string `json:"-"`
}
