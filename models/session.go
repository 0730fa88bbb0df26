package models

import (
	"fmt"
	"strings"
	"time"
)

type SessionStatus string

const (
	StatusUpcoming  SessionStatus = "upcoming"
	StatusUrgent    SessionStatus = "urgent"
	StatusCompleted SessionStatus = "completed"
)

func (s SessionStatus) Valid() bool {
	switch s {
	case StatusUpcoming, StatusUrgent, StatusCompleted:
		return true
	}
	return false
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	// DefaultSessionTime is used when a session has a date but no time.
	DefaultSessionTime = "09:00"
)

// CourtSession is one scheduled court appearance. JSON field names follow the
// persisted layout of the sessions collection.
type CourtSession struct {
	ID           string        `json:"id"`
	CaseNumber   string        `json:"caseNumber"`
	LawyerName   string        `json:"lawyerName"`
	CourtName    string        `json:"courtName"`
	Circuit      string        `json:"circuit,omitempty"`
	Location     string        `json:"location,omitempty"`
	ClientName   string        `json:"clientName,omitempty"`
	OpponentName string        `json:"opponentName,omitempty"`
	SessionDate  string        `json:"sessionDate"`
	SessionTime  string        `json:"sessionTime"`
	Notes        string        `json:"notes,omitempty"`
	Outcome      string        `json:"outcome,omitempty"`
	Status       SessionStatus `json:"status"`
}

// Start resolves the session date and time into an instant in loc.
func (s CourtSession) Start(loc *time.Location) (time.Time, error) {
	date := strings.TrimSpace(s.SessionDate)
	if date == "" {
		return time.Time{}, fmt.Errorf("session %s has no date", s.ID)
	}

	clock := strings.TrimSpace(s.SessionTime)
	if clock == "" {
		clock = DefaultSessionTime
	}

	start, err := time.ParseInLocation(DateLayout+" "+TimeLayout, date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing session start %q %q: %w", date, clock, err)
	}

	return start, nil
}

// HasOutcome reports whether the hearing decision has been recorded.
func (s CourtSession) HasOutcome() bool {
	return strings.TrimSpace(s.Outcome) != ""
}

// Postponed returns a new unsaved session carrying the case identity of s,
// with the schedule and outcome cleared and a note pointing at the date it
// replaces.
func (s CourtSession) Postponed() CourtSession {
	return CourtSession{
		CaseNumber:   s.CaseNumber,
		LawyerName:   s.LawyerName,
		CourtName:    s.CourtName,
		Circuit:      s.Circuit,
		Location:     s.Location,
		ClientName:   s.ClientName,
		OpponentName: s.OpponentName,
		Notes:        fmt.Sprintf("Postponed to next session - previous date: %s", s.SessionDate),
		Status:       StatusUpcoming,
	}
}
