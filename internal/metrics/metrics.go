// Package metrics holds the numeric helpers shared by the aggregation engine.
package metrics

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var hundred = decimal.NewFromInt(100)

// SafeRatio returns num/den, or 0 when den is 0 or the result is not finite.
func SafeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	r := num / den
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

// PercentChange is the relative change from previous to current in percent.
// It is 0 whenever previous is 0.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return SafeRatio(current-previous, previous) * 100
}

// PercentChangeInt is PercentChange over counts.
func PercentChangeInt(current, previous int) float64 {
	return PercentChange(float64(current), float64(previous))
}

// PercentChangeDecimal is PercentChange over money amounts.
func PercentChangeDecimal(current, previous decimal.Decimal) float64 {
	if previous.IsZero() {
		return 0
	}
	f, _ := current.Sub(previous).Div(previous).Mul(hundred).Float64()
	return f
}

// RatePercent is SafeRatio(num, den) * 100 for counts.
func RatePercent(num, den int) float64 {
	return SafeRatio(float64(num), float64(den)) * 100
}

// ClampPercent bounds x to [0, 100]. NaN maps to 0.
func ClampPercent(x float64) float64 {
	switch {
	case math.IsNaN(x), x < 0:
		return 0
	case x > 100:
		return 100
	}
	return x
}

// DateBucketKey is the calendar day of t in loc formatted as YYYY-MM-DD.
func DateBucketKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(dateLayout)
}

// StartOfDay truncates t to midnight in loc.
func StartOfDay(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
