package worker

import (
	"strings"

	"callagent/internal/domain"
)

// ConfirmationText is the SMS sent after the agent books a visit. It returns "" when the
// appointment has neither a date nor a time to confirm.
func ConfirmationText(a domain.Appointment) string {
	when := strings.TrimSpace(domain.Deref(a.AppointmentDate) + " " + domain.Deref(a.AppointmentTime))
	if when == "" {
		return ""
	}
	name := a.CustomerName
	if name == "Unknown" {
		name = ""
	}
	where := domain.Deref(a.PropertyLocation)

	var b strings.Builder
	switch a.Language {
	case domain.LanguageEnglish:
		b.WriteString("Hello")
		if name != "" {
			b.WriteString(" " + name)
		}
		b.WriteString(", your site visit with Purva Real Estate is confirmed for " + when)
		if where != "" {
			b.WriteString(" at " + where)
		}
		b.WriteString(". Reply to this number if you need to reschedule.")
	case domain.LanguageMarathi:
		b.WriteString("Namaskar")
		if name != "" {
			b.WriteString(" " + name + " ji")
		}
		b.WriteString(", Purva Real Estate sobat tumcha site visit " + when + " la confirm zala ahe")
		if where != "" {
			b.WriteString(" (" + where + ")")
		}
		b.WriteString(". Vel badalaychi asel tar ya number var reply kara.")
	default:
		b.WriteString("Namaste")
		if name != "" {
			b.WriteString(" " + name + " ji")
		}
		b.WriteString(", Purva Real Estate ke saath aapka site visit " + when + " ko confirm hai")
		if where != "" {
			b.WriteString(" (" + where + ")")
		}
		b.WriteString(". Time badalna ho toh isi number par reply karein.")
	}
	return b.String()
}
