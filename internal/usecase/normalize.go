package usecase

import (
	"log/slog"
	"regexp"
	"slices"
	"time"

	"DecreeWatcher/internal/domain"
)

var dateShape = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)

// Normalize turns scraped date strings into unique calendar dates, newest first.
// Strings that are not an exact dd/mm/yyyy calendar date are dropped with a warning.
func Normalize(raw []string, logger *slog.Logger) []time.Time {
	seen := make(map[time.Time]struct{}, len(raw))
	dates := make([]time.Time, 0, len(raw))

	for _, value := range raw {
		date, ok := parseDate(value)
		if !ok {
			if logger != nil {
				logger.Warn("discarding invalid date", "value", value)
			}
			continue
		}
		if _, dup := seen[date]; dup {
			continue
		}
		seen[date] = struct{}{}
		dates = append(dates, date)
	}

	slices.SortFunc(dates, func(a, b time.Time) int { return b.Compare(a) })

	if logger != nil {
		logger.Info("dates normalized", "raw", len(raw), "unique", len(dates))
	}
	return dates
}

func parseDate(value string) (time.Time, bool) {
	if !dateShape.MatchString(value) {
		return time.Time{}, false
	}
	parsed, err := time.Parse(domain.DateLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
