package scheduler

import (
	"fmt"
	"time"

	"github.com/aweist/docket-watcher/models"
)

type Label string

const (
	LabelMorning Label = "AM"
	LabelEvening Label = "PM"
)

// HourRange is the half-open range of hours [Start, End).
type HourRange struct {
	Start int
	End   int
}

func (r HourRange) Contains(hour int) bool {
	return hour >= r.Start && hour < r.End
}

func (r HourRange) overlaps(o HourRange) bool {
	return r.Start < o.End && o.Start < r.End
}

type Windows struct {
	Morning HourRange
	Evening HourRange
}

var DefaultWindows = Windows{
	Morning: HourRange{Start: 9, End: 12},
	Evening: HourRange{Start: 17, End: 18},
}

// Validate checks that both windows are non-empty sub-day ranges that do not
// overlap.
func (w Windows) Validate() error {
	for name, r := range map[string]HourRange{"morning": w.Morning, "evening": w.Evening} {
		if r.Start < 0 || r.End > 24 || r.Start >= r.End {
			return fmt.Errorf("%s window [%d,%d) is not a valid hour range", name, r.Start, r.End)
		}
	}

	if w.Morning.overlaps(w.Evening) {
		return fmt.Errorf("morning window [%d,%d) overlaps evening window [%d,%d)",
			w.Morning.Start, w.Morning.End, w.Evening.Start, w.Evening.End)
	}

	return nil
}

// Window is an active notification window on a given calendar day.
type Window struct {
	Label Label
	Date  string
}

// Token is the dedup identity of the window, e.g. "2025-05-20_AM".
func (w Window) Token() string {
	return w.Date + "_" + string(w.Label)
}

// EvaluateWindow reports which enabled window, if any, contains now. Morning
// wins if both would match.
func EvaluateWindow(now time.Time, settings models.AlertSettings, windows Windows) (Window, bool) {
	hour := now.Hour()
	date := now.Format(models.DateLayout)

	switch {
	case settings.EnableMorning && windows.Morning.Contains(hour):
		return Window{Label: LabelMorning, Date: date}, true
	case settings.EnableEvening && windows.Evening.Contains(hour):
		return Window{Label: LabelEvening, Date: date}, true
	}

	return Window{}, false
}
