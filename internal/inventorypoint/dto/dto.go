package dto

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// SyncSummary is the per-date outcome printed by the driver and stored in sync_task_log.
type SyncSummary struct {
	RunID                string    `json:"run_id"`
	DataDate             string    `json:"data_date"`
	Status               string    `json:"status"`
	RowsIn               int       `json:"rows_in"`
	Observations         int       `json:"observations"`
	DroppedShape         int       `json:"dropped_shape"`
	DroppedUnknownRegion int       `json:"dropped_unknown_region"`
	CoercedValues        int       `json:"coerced_values"`
	PointsOut            int       `json:"points_out"`
	EffectivePoints      int       `json:"effective_points"`
	Warnings             int       `json:"warnings"`
	Error                string    `json:"error,omitempty"`
	StartedAt            time.Time `json:"started_at"`
	EndedAt              time.Time `json:"ended_at"`
}

func (s SyncSummary) String() string {
	line := fmt.Sprintf("%s rows=%d observations=%d dropped=%d points=%d effective=%d warnings=%d status=%s",
		s.DataDate, s.RowsIn, s.Observations, s.DroppedShape+s.DroppedUnknownRegion,
		s.PointsOut, s.EffectivePoints, s.Warnings, s.Status)
	if s.Error != "" {
		line += " error=" + s.Error
	}
	return line
}

// Day truncates t to a UTC calendar date.
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", s)
	}
	return t, nil
}

// DatesForDays returns the n dates ending yesterday, oldest first.
func DatesForDays(n int, now time.Time) ([]time.Time, error) {
	if n <= 0 {
		return nil, fmt.Errorf("days must be positive, got %d", n)
	}
	yesterday := Day(now).AddDate(0, 0, -1)
	dates := make([]time.Time, 0, n)
	for i := n - 1; i >= 0; i-- {
		dates = append(dates, yesterday.AddDate(0, 0, -i))
	}
	return dates, nil
}

// DatesBetween returns every date from..to inclusive.
func DatesBetween(from, to time.Time) ([]time.Time, error) {
	from, to = Day(from), Day(to)
	if to.Before(from) {
		return nil, fmt.Errorf("backfill range ends (%s) before it starts (%s)", to.Format(DateLayout), from.Format(DateLayout))
	}
	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, nil
}

// SyncRequest asks for a sync by exactly one of a single date, a range or
// the last N days.
type SyncRequest struct {
	DataDate string `json:"data_date,omitempty"`
	From     string `json:"from,omitempty"`
	To       string `json:"to,omitempty"`
	Days     int    `json:"days,omitempty"`
}

func (r SyncRequest) Dates(now time.Time) ([]time.Time, error) {
	switch {
	case r.DataDate != "":
		d, err := ParseDate(r.DataDate)
		if err != nil {
			return nil, err
		}
		return []time.Time{d}, nil
	case r.From != "" || r.To != "":
		from, err := ParseDate(r.From)
		if err != nil {
			return nil, err
		}
		to, err := ParseDate(r.To)
		if err != nil {
			return nil, err
		}
		return DatesBetween(from, to)
	case r.Days != 0:
		return DatesForDays(r.Days, now)
	default:
		return nil, fmt.Errorf("sync request names no dates")
	}
}
