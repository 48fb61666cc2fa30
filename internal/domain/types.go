package domain

import (
	"strings"
	"time"
)

type Language string

const (
	LanguageHindi   Language = "hindi"
	LanguageEnglish Language = "english"
	LanguageMarathi Language = "marathi"

	DefaultLanguage = LanguageHindi
)

// SupportedLanguages lists every language a conversation script must exist for.
var SupportedLanguages = []Language{LanguageHindi, LanguageEnglish, LanguageMarathi}

// ParseLanguage resolves a request tag. Unknown or empty tags fall back to DefaultLanguage.
func ParseLanguage(tag string) Language {
	switch Language(strings.ToLower(strings.TrimSpace(tag))) {
	case LanguageEnglish:
		return LanguageEnglish
	case LanguageMarathi:
		return LanguageMarathi
	default:
		return DefaultLanguage
	}
}

type AppointmentStatus string

const (
	StatusScheduled           AppointmentStatus = "scheduled"
	StatusConfirmed           AppointmentStatus = "confirmed"
	StatusCompleted           AppointmentStatus = "completed"
	StatusCancelled           AppointmentStatus = "cancelled"
	StatusPendingConfirmation AppointmentStatus = "pending_confirmation"
)

func ParseAppointmentStatus(s string) (AppointmentStatus, bool) {
	switch st := AppointmentStatus(strings.TrimSpace(s)); st {
	case StatusScheduled, StatusConfirmed, StatusCompleted, StatusCancelled, StatusPendingConfirmation:
		return st, true
	}
	return "", false
}

type CallRequest struct {
	InquiryID     string `json:"inquiryId,omitempty"`
	PhoneNumber   string `json:"phoneNumber"`
	CustomerName  string `json:"customerName,omitempty"`
	PreferredArea string `json:"preferredArea,omitempty"`
	Budget        string `json:"budget,omitempty"`
	Language      string `json:"language,omitempty"`
}

func (r CallRequest) Validate() error {
	if strings.TrimSpace(r.PhoneNumber) == "" {
		return ErrMissingPhone
	}
	return nil
}

type CallResult struct {
	CallID   string         `json:"callId"`
	Language Language       `json:"language"`
	Data     map[string]any `json:"data"`
}

// Appointment is the call_appointments row read by the admin tooling.
type Appointment struct {
	ID               string            `json:"id"`
	InquiryID        *string           `json:"inquiry_id"`
	CustomerName     string            `json:"customer_name"`
	CustomerPhone    string            `json:"customer_phone"`
	AppointmentDate  *string           `json:"appointment_date"`
	AppointmentTime  *string           `json:"appointment_time"`
	PropertyLocation *string           `json:"property_location"`
	Notes            *string           `json:"notes"`
	CallID           *string           `json:"call_id"`
	Language         Language          `json:"language"`
	Status           AppointmentStatus `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
}

// Ptr returns nil for blank strings, otherwise a pointer to the trimmed value.
func Ptr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

// Deref returns "" for nil.
func Deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// AppointmentJob carries one extracted appointment from the webhook receiver to the writer,
// either in process or through the queue.
type AppointmentJob struct {
	DeliveryKey string      `json:"deliveryKey,omitempty"`
	EventType   string      `json:"eventType"`
	Appointment Appointment `json:"appointment"`
	ReceivedAt  time.Time   `json:"receivedAt"`
}
