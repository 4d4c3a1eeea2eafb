package services

import (
	"fmt"

	"github.com/carshot/backend/internal/models"
)

// AngleService serves the static catalog of guided camera positions. The
// catalog is fixed at startup; dealership-specific angle sets are a
// possible later addition but today every client sees the same seven.
type AngleService struct {
	angles []models.CarAngle
	byID   map[string]models.CarAngle
}

func NewAngleService() *AngleService {
	angles := []models.CarAngle{
		{ID: "front", Name: "Front", Description: "Straight-on front view", RequiredForListing: true},
		{ID: "front-side-driver", Name: "Front Driver Side", Description: "Three-quarter front, driver side", RequiredForListing: true},
		{ID: "rear-side-driver", Name: "Rear Driver Side", Description: "Three-quarter rear, driver side"},
		{ID: "rear", Name: "Rear", Description: "Straight-on rear view", RequiredForListing: true},
		{ID: "rear-side-passenger", Name: "Rear Passenger Side", Description: "Three-quarter rear, passenger side"},
		{ID: "side-passenger", Name: "Passenger Side", Description: "Full passenger side profile", RequiredForListing: true},
		{ID: "dashboard", Name: "Dashboard", Description: "Interior dashboard and front seats", IsInterior: true, RequiredForListing: true},
	}
	byID := make(map[string]models.CarAngle, len(angles))
	for _, a := range angles {
		byID[a.ID] = a
	}
	return &AngleService{angles: angles, byID: byID}
}

// Angles returns the full catalog in guided capture order.
func (s *AngleService) Angles() []models.CarAngle {
	out := make([]models.CarAngle, len(s.angles))
	copy(out, s.angles)
	return out
}

// Get looks up one angle by ID.
func (s *AngleService) Get(id string) (models.CarAngle, error) {
	a, ok := s.byID[id]
	if !ok {
		return models.CarAngle{}, fmt.Errorf("unknown angle: %s", id)
	}
	return a, nil
}

// IsInterior reports whether the angle photographs the cabin. Unknown
// angles count as exterior so their photos still go through the normal
// credit path.
func (s *AngleService) IsInterior(id string) bool {
	return s.byID[id].IsInterior
}

// ExteriorAngles returns all exterior positions.
func (s *AngleService) ExteriorAngles() []models.CarAngle {
	var out []models.CarAngle
	for _, a := range s.angles {
		if !a.IsInterior {
			out = append(out, a)
		}
	}
	return out
}

// InteriorAngles returns all cabin positions.
func (s *AngleService) InteriorAngles() []models.CarAngle {
	var out []models.CarAngle
	for _, a := range s.angles {
		if a.IsInterior {
			out = append(out, a)
		}
	}
	return out
}

// RequiredAngles returns the positions a complete listing needs.
func (s *AngleService) RequiredAngles() []models.CarAngle {
	var out []models.CarAngle
	for _, a := range s.angles {
		if a.RequiredForListing {
			out = append(out, a)
		}
	}
	return out
}
