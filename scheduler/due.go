package scheduler

import (
	"time"

	"github.com/aweist/docket-watcher/models"
)

// DefaultSlack pads the look-ahead horizon so a session just past the reach of
// the evening window is still caught by the next morning's reminder.
const DefaultSlack = 12 * time.Hour

// FilterDue returns the sessions starting within (0, horizon+slack] of now.
// Sessions whose date or time cannot be parsed are skipped.
func FilterDue(sessions []models.CourtSession, now time.Time, horizonHours int, slack time.Duration) []models.CourtSession {
	limit := time.Duration(horizonHours)*time.Hour + slack

	var due []models.CourtSession
	for _, s := range sessions {
		start, err := s.Start(now.Location())
		if err != nil {
			continue
		}

		diff := start.Sub(now)
		if diff > 0 && diff <= limit {
			due = append(due, s)
		}
	}

	return due
}
