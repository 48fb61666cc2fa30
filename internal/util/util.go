package util

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

func NewAppointmentID() string {
	// ULID is sortable (nice for DB indexes and dashboards)
	t := time.Now().UTC()
	return "apt_" + ulid.MustNew(ulid.Timestamp(t), rand.Reader).String()
}

func NowUTC() time.Time {
	return time.Now().UTC()
}
