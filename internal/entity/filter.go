package entity

import (
	"fmt"
	"math"
	"time"
)

const (
	day        = 24 * time.Hour
	dateLayout = "2006-01-02"
)

// Period is an inclusive reporting window [From, To].
type Period struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// ParsePeriod builds a period covering whole calendar days from..to in loc.
func ParsePeriod(from, to string, loc *time.Location) (Period, error) {
	if loc == nil {
		loc = time.UTC
	}
	f, err := time.ParseInLocation(dateLayout, from, loc)
	if err != nil {
		return Period{}, fmt.Errorf("bad from date %q: %w", from, err)
	}
	t, err := time.ParseInLocation(dateLayout, to, loc)
	if err != nil {
		return Period{}, fmt.Errorf("bad to date %q: %w", to, err)
	}
	return DayPeriod(f, t, loc), nil
}

// DayPeriod spans the start of from's day to the last instant of to's day.
func DayPeriod(from, to time.Time, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	from = from.In(loc)
	to = to.In(loc)
	start := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, loc)
	end := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
	return Period{From: start, To: end}
}

// Validate checks the period bounds.
func (p Period) Validate() error {
	if p.From.IsZero() || p.To.IsZero() {
		return fmt.Errorf("period bounds must be set")
	}
	if p.To.Before(p.From) {
		return fmt.Errorf("period end %s is before start %s", p.To.Format(time.RFC3339), p.From.Format(time.RFC3339))
	}
	return nil
}

// Days is the period length rounded up to whole days.
func (p Period) Days() int {
	d := p.To.Sub(p.From)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(float64(d) / float64(day)))
}

// Previous is the window of identical day length ending the instant before From.
func (p Period) Previous() Period {
	to := p.From.Add(-time.Nanosecond)
	return Period{
		From: p.From.AddDate(0, 0, -p.Days()),
		To:   to,
	}
}

// Contains reports whether t falls inside the inclusive window.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.From) && !t.After(p.To)
}

func (p Period) String() string {
	return p.From.Format(dateLayout) + ".." + p.To.Format(dateLayout)
}

// ReportFilter is the user selected period plus an optional single status.
type ReportFilter struct {
	Period Period       `json:"period"`
	Status *OrderStatus `json:"status,omitempty"`
}

// Matches reports whether the order passes the status filter.
func (f ReportFilter) Matches(o *Order) bool {
	return f.Status == nil || o.Status == *f.Status
}

// Equal compares two filters by value.
func (f ReportFilter) Equal(o ReportFilter) bool {
	if !f.Period.From.Equal(o.Period.From) || !f.Period.To.Equal(o.Period.To) {
		return false
	}
	if f.Status == nil || o.Status == nil {
		return f.Status == nil && o.Status == nil
	}
	return *f.Status == *o.Status
}

// LastDays is a filter covering the last n calendar days up to and including now.
func LastDays(now time.Time, n int, loc *time.Location) ReportFilter {
	if n < 1 {
		n = 1
	}
	return ReportFilter{Period: DayPeriod(now.AddDate(0, 0, -(n - 1)), now, loc)}
}
