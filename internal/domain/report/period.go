// Package report derives sales summaries from paid orders.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// ErrUnknownPeriod is returned for a period tag outside the supported set.
var ErrUnknownPeriod = errors.New("unknown period")

// Period selects the reporting window.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
	PeriodYearly  Period = "yearly"
)

// ParsePeriod validates a period tag.
func ParsePeriod(s string) (Period, error) {
	switch p := Period(strings.ToLower(strings.TrimSpace(s))); p {
	case PeriodDaily, PeriodWeekly, PeriodMonthly, PeriodYearly:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownPeriod, s)
	}
}

// Start returns the earliest createdAt included in the period.
// Daily starts at local midnight; the others look back a fixed span from now.
func (p Period) Start(now time.Time, loc *time.Location) time.Time {
	now = now.In(loc)
	switch p {
	case PeriodDaily:
		return midnight(now)
	case PeriodWeekly:
		return now.AddDate(0, 0, -7)
	case PeriodMonthly:
		return now.AddDate(0, -1, 0)
	case PeriodYearly:
		return now.AddDate(-1, 0, 0)
	default:
		return now
	}
}

// Bucket is one charting interval [Start, End).
type Bucket struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (b Bucket) contains(t time.Time) bool {
	return !t.Before(b.Start) && t.Before(b.End)
}

// Buckets lays out the charting intervals for the period, ending at the
// interval that contains now.
//
//	daily:   24 hours of today, labelled "15:00"
//	weekly:  7 days ending today, labelled "Mon"
//	monthly: 6 five-day spans ending today, labelled "2 Jan"
//	yearly:  12 months ending this month, labelled "Jan"
func (p Period) Buckets(now time.Time, loc *time.Location) []Bucket {
	now = now.In(loc)
	today := midnight(now)

	var out []Bucket
	switch p {
	case PeriodDaily:
		for h := 0; h < 24; h++ {
			start := time.Date(today.Year(), today.Month(), today.Day(), h, 0, 0, 0, loc)
			out = append(out, Bucket{
				Label: start.Format("15:04"),
				Start: start,
				End:   start.Add(time.Hour),
			})
		}
	case PeriodWeekly:
		for d := 6; d >= 0; d-- {
			start := today.AddDate(0, 0, -d)
			out = append(out, Bucket{
				Label: start.Format("Mon"),
				Start: start,
				End:   start.AddDate(0, 0, 1),
			})
		}
	case PeriodMonthly:
		first := today.AddDate(0, 0, -29)
		for i := 0; i < 6; i++ {
			start := first.AddDate(0, 0, i*5)
			out = append(out, Bucket{
				Label: start.Format("2 Jan"),
				Start: start,
				End:   start.AddDate(0, 0, 5),
			})
		}
	case PeriodYearly:
		month := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, loc)
		for m := 11; m >= 0; m-- {
			start := month.AddDate(0, -m, 0)
			out = append(out, Bucket{
				Label: start.Format("Jan"),
				Start: start,
				End:   start.AddDate(0, 1, 0),
			})
		}
	}
	return out
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
