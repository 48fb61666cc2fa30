package store

import "callagent/internal/domain"

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ListFilter selects appointments for the admin listing. A zero Status matches every status.
type ListFilter struct {
	Status domain.AppointmentStatus
	Limit  int
	Offset int
}

// Normalize clamps Limit to (0, MaxListLimit] and Offset to >= 0.
func (f ListFilter) Normalize() ListFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultListLimit
	}
	if f.Limit > MaxListLimit {
		f.Limit = MaxListLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
