// Package callevents turns voice provider webhook events into appointment drafts.
//
// Extraction is pure: no I/O, no clock. Ids and timestamps are assigned by the worker that
// persists the draft.
package callevents

import (
	"regexp"
	"strings"

	"callagent/internal/domain"
	"callagent/internal/providers/vapi"
)

const unknownCustomer = "Unknown"

// keywords that suggest a visit was discussed even though the agent never called the tool.
var keywords = []string{
	"appointment", "visit", "schedule", "book", "meeting",
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
	"mulakat", "bhent", "appointment fix", "shaniwar", "ravivar",
}

var (
	dateRe = regexp.MustCompile(`(?i)(\d{1,2}(?:st|nd|rd|th)?\s+(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*|\d{1,2}/\d{1,2}/\d{2,4})`)
	timeRe = regexp.MustCompile(`(?i)(\d{1,2}(?::\d{2})?\s*(?:am|pm)?)`)
)

// Draft is an appointment waiting to be persisted, plus where it came from.
type Draft struct {
	EventType   string
	ToolCallID  string
	Appointment domain.Appointment
}

// DeliveryKey identifies the provider delivery that produced the draft. It is "" when the
// event carries no call id, in which case redeliveries cannot be recognised.
func (d Draft) DeliveryKey() string {
	callID := domain.Deref(d.Appointment.CallID)
	if callID == "" {
		return ""
	}
	return "vapi:" + callID + ":" + d.EventType + ":" + d.ToolCallID
}

// Extract dispatches on the event type. Unhandled types yield no drafts.
func Extract(m *vapi.ServerMessage) []Draft {
	switch m.Type {
	case vapi.EventToolCalls:
		return FromToolCalls(m)
	case vapi.EventEndOfCallReport:
		if d, ok := FromEndOfCallReport(m); ok {
			return []Draft{d}
		}
	}
	return nil
}

// FromToolCalls yields one scheduled draft per schedule_appointment call, in payload order.
func FromToolCalls(m *vapi.ServerMessage) []Draft {
	meta := m.Metadata()
	var out []Draft
	for _, tc := range m.ToolCalls {
		if tc.Function.Name != domain.ToolScheduleAppointment {
			continue
		}
		args := tc.Function.Arguments
		out = append(out, Draft{
			EventType:  vapi.EventToolCalls,
			ToolCallID: tc.ID,
			Appointment: domain.Appointment{
				InquiryID:        domain.Ptr(meta.InquiryID),
				CustomerName:     firstNonBlank(meta.CustomerName, args.String("customerName"), unknownCustomer),
				CustomerPhone:    m.CustomerNumber(),
				AppointmentDate:  domain.Ptr(args.String("date")),
				AppointmentTime:  domain.Ptr(args.String("time")),
				PropertyLocation: domain.Ptr(firstNonBlank(args.String("location"), meta.PreferredArea)),
				Notes:            domain.Ptr(args.String("notes")),
				CallID:           domain.Ptr(m.CallID()),
				Language:         domain.ParseLanguage(meta.Language),
				Status:           domain.StatusScheduled,
			},
		})
	}
	return out
}

// FromEndOfCallReport yields a pending_confirmation draft when the summary or transcript
// mentions a visit. Date and time are scraped from the summary on a best-effort basis and are
// nil when nothing matches.
func FromEndOfCallReport(m *vapi.ServerMessage) (Draft, bool) {
	summary := m.CallSummary()
	if !MentionsAppointment(summary, m.Transcript) {
		return Draft{}, false
	}
	meta := m.Metadata()
	return Draft{
		EventType: vapi.EventEndOfCallReport,
		Appointment: domain.Appointment{
			InquiryID:        domain.Ptr(meta.InquiryID),
			CustomerName:     firstNonBlank(meta.CustomerName, unknownCustomer),
			CustomerPhone:    m.CustomerNumber(),
			AppointmentDate:  domain.Ptr(ScrapeDate(summary)),
			AppointmentTime:  domain.Ptr(ScrapeTime(summary)),
			PropertyLocation: domain.Ptr(meta.PreferredArea),
			Notes:            domain.Ptr("Call Summary: " + summary),
			CallID:           domain.Ptr(m.CallID()),
			Language:         domain.ParseLanguage(meta.Language),
			Status:           domain.StatusPendingConfirmation,
		},
	}, true
}

// MentionsAppointment is a case-insensitive substring match against the keyword list.
func MentionsAppointment(texts ...string) bool {
	for _, t := range texts {
		t = strings.ToLower(t)
		if t == "" {
			continue
		}
		for _, k := range keywords {
			if strings.Contains(t, k) {
				return true
			}
		}
	}
	return false
}

// ScrapeDate returns the first "15th Jan" or "20/01/2026" style token, or "".
func ScrapeDate(s string) string {
	return strings.TrimSpace(dateRe.FindString(s))
}

// ScrapeTime returns the first "10 AM" or "2:30 pm" style token, or "". Any leading number
// matches, so the result is only a hint.
func ScrapeTime(s string) string {
	return strings.TrimSpace(timeRe.FindString(s))
}

func firstNonBlank(vals ...string) string {
	for _, v := range vals {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
