// Package calendar decides which days are working days for the gazette.
package calendar

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"DecreeWatcher/internal/domain"
	"DecreeWatcher/internal/ports"
)

// Options selects which holiday sets apply.
type Options struct {
	// Region is an optional state code, e.g. "RJ".
	Region string
	// Custom holds operator-supplied ISO dates (YYYY-MM-DD).
	Custom []string
}

// Calendar is an immutable holiday snapshot covering the previous, current and next year.
// Dates outside that window are never holidays.
type Calendar struct {
	holidays  map[time.Time]string
	firstYear int
	lastYear  int
}

var _ ports.BusinessCalendar = (*Calendar)(nil)

// New builds the snapshot around now's year.
func New(opts Options, now time.Time) (*Calendar, error) {
	region := strings.ToUpper(strings.TrimSpace(opts.Region))
	regional, ok := regionalRules[region]
	if region != "" && !ok {
		return nil, fmt.Errorf("%w: unknown holiday region %q (known: %s)",
			domain.ErrInvalidConfig, opts.Region, strings.Join(Regions(), ", "))
	}

	year := now.Year()
	c := &Calendar{
		holidays:  make(map[time.Time]string),
		firstYear: year - 1,
		lastYear:  year + 1,
	}

	for y := c.firstYear; y <= c.lastYear; y++ {
		c.addRules(nationalRules, y)
		c.addRules(regional, y)
	}

	for _, raw := range opts.Custom {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		d, err := time.Parse(domain.ISODateLayout, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: custom holiday %q is not YYYY-MM-DD", domain.ErrInvalidConfig, raw)
		}
		if _, exists := c.holidays[d]; !exists {
			c.holidays[d] = "Feriado personalizado"
		}
	}

	return c, nil
}

func (c *Calendar) addRules(rules []rule, year int) {
	for _, r := range rules {
		d, ok := r.on(year)
		if !ok {
			continue
		}
		if _, exists := c.holidays[d]; !exists {
			c.holidays[d] = r.name
		}
	}
}

// IsEligible reports whether day, read in loc, is neither a weekend nor a holiday.
func (c *Calendar) IsEligible(day time.Time, loc *time.Location) bool {
	return c.Reason(day, loc) == ""
}

// Reason returns "weekend", the holiday name, or "" for a working day.
func (c *Calendar) Reason(day time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	local := day.In(loc)
	if wd := local.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return "weekend"
	}
	name, _ := c.Holiday(local)
	return name
}

// Holiday returns the holiday name for the calendar date of t.
func (c *Calendar) Holiday(t time.Time) (string, bool) {
	name, ok := c.holidays[domain.DateOf(t)]
	return name, ok
}

// Window returns the first and last year covered by the snapshot.
func (c *Calendar) Window() (int, int) {
	return c.firstYear, c.lastYear
}

// Len returns the number of distinct holiday dates in the snapshot.
func (c *Calendar) Len() int {
	return len(c.holidays)
}

// Regions lists the supported state codes.
func Regions() []string {
	return slices.Sorted(maps.Keys(regionalRules))
}
