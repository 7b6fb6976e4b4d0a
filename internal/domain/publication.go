package domain

import "time"

// DateLayout is the calendar-date layout used by the source portal.
const DateLayout = "02/01/2006"

// ISODateLayout is used for storage keys, config values and logs.
const ISODateLayout = "2006-01-02"

// PublicationDate is a date on which the search term appeared in the official gazette.
// Records are append-only: created once, never updated or deleted.
type PublicationDate struct {
	Date        time.Time
	SearchTerm  string
	FirstSeenAt time.Time
}

// DateOf strips the clock from t, keeping the calendar date as seen in t's location.
// The result is midnight UTC so dates compare with == and Equal alike.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FormatDates renders dates with layout, preserving order.
func FormatDates(dates []time.Time, layout string) []string {
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = d.Format(layout)
	}
	return out
}
