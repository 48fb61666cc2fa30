package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"callagent/internal/domain"
	"callagent/internal/logging"
	"callagent/internal/store"
)

type AppointmentAdmin interface {
	List(ctx context.Context, status string, limit, offset int) ([]domain.Appointment, error)
	Get(ctx context.Context, id string) (domain.Appointment, error)
	UpdateStatus(ctx context.Context, id, status string) (domain.Appointment, error)
	Delete(ctx context.Context, id string) error
}

type Appointments struct {
	Svc AppointmentAdmin
}

type listResponse struct {
	Appointments []domain.Appointment `json:"appointments"`
	Limit        int                  `json:"limit"`
	Offset       int                  `json:"offset"`
}

type statusUpdate struct {
	Status string `json:"status"`
}

func (a *Appointments) Register(m *mux.Router) {
	m.HandleFunc("/v1/appointments", a.handleList).Methods(http.MethodGet)
	m.HandleFunc("/v1/appointments/{id}", a.handleGet).Methods(http.MethodGet)
	m.HandleFunc("/v1/appointments/{id}", a.handleUpdateStatus).Methods(http.MethodPatch)
	m.HandleFunc("/v1/appointments/{id}", a.handleDelete).Methods(http.MethodDelete)
}

func (a *Appointments) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, err := intParam(q.Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	offset, err := intParam(q.Get("offset"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}

	out, err := a.Svc.List(r.Context(), q.Get("status"), limit, offset)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	page := store.ListFilter{Limit: limit, Offset: offset}.Normalize()
	writeJSON(w, http.StatusOK, listResponse{Appointments: out, Limit: page.Limit, Offset: page.Offset})
}

func (a *Appointments) handleGet(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	appt, err := a.Svc.Get(r.Context(), id)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (a *Appointments) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var body statusUpdate
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, ErrInvalidJSON)
		return
	}
	appt, err := a.Svc.UpdateStatus(r.Context(), id, body.Status)
	if err != nil {
		writeAdminError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, appt)
}

func (a *Appointments) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := a.Svc.Delete(r.Context(), id); err != nil {
		writeAdminError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeAdminError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, ErrNotFound)
	default:
		logging.From(r.Context()).Error("appointment admin failed", "err", err, "path", r.URL.Path)
		writeError(w, http.StatusBadGateway, ErrDependency)
	}
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}
