package service

import (
	"context"
	"fmt"

	"callagent/internal/domain"
	"callagent/internal/store"
)

type AppointmentStore interface {
	ListAppointments(ctx context.Context, f store.ListFilter) ([]domain.Appointment, error)
	GetAppointment(ctx context.Context, id string) (domain.Appointment, bool, error)
	UpdateAppointmentStatus(ctx context.Context, id string, status domain.AppointmentStatus) (bool, error)
	DeleteAppointment(ctx context.Context, id string) (bool, error)
}

// AppointmentService backs the admin appointment views.
type AppointmentService struct {
	Store AppointmentStore
}

func (s *AppointmentService) List(ctx context.Context, status string, limit, offset int) ([]domain.Appointment, error) {
	f := store.ListFilter{Limit: limit, Offset: offset}
	if status != "" {
		st, ok := domain.ParseAppointmentStatus(status)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
		}
		f.Status = st
	}
	out, err := s.Store.ListAppointments(ctx, f.Normalize())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	return out, nil
}

func (s *AppointmentService) Get(ctx context.Context, id string) (domain.Appointment, error) {
	a, found, err := s.Store.GetAppointment(ctx, id)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if !found {
		return domain.Appointment{}, domain.ErrNotFound
	}
	return a, nil
}

// UpdateStatus sets the status and returns the updated row.
func (s *AppointmentService) UpdateStatus(ctx context.Context, id, status string) (domain.Appointment, error) {
	st, ok := domain.ParseAppointmentStatus(status)
	if !ok {
		return domain.Appointment{}, fmt.Errorf("%w: unknown status %q", domain.ErrValidation, status)
	}
	updated, err := s.Store.UpdateAppointmentStatus(ctx, id, st)
	if err != nil {
		return domain.Appointment{}, fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if !updated {
		return domain.Appointment{}, domain.ErrNotFound
	}
	return s.Get(ctx, id)
}

func (s *AppointmentService) Delete(ctx context.Context, id string) error {
	deleted, err := s.Store.DeleteAppointment(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrPersistence, err)
	}
	if !deleted {
		return domain.ErrNotFound
	}
	return nil
}
