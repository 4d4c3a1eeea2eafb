package models

// CarAngle is a static descriptor for one guided photographing position.
// The catalog is loaded once at process start and never mutated.
type CarAngle struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	IsInterior         bool   `json:"isInterior"`
	OutlineImage       string `json:"outlineImage,omitempty"`
	RequiredForListing bool   `json:"requiredForListing"`
}
