package notifier

import (
	"crypto/md5"
	"fmt"
	"strings"
	"time"

	"github.com/aweist/docket-watcher/models"
)

const sessionDuration = time.Hour

// GenerateICS creates an iCalendar document with one event per session.
// Sessions whose date cannot be read are left out.
func GenerateICS(sessions []models.CourtSession, loc *time.Location, now time.Time) string {
	dtStamp := now.UTC().Format("20060102T150405Z")

	var ics strings.Builder
	ics.WriteString("BEGIN:VCALENDAR\r\n")
	ics.WriteString("VERSION:2.0\r\n")
	ics.WriteString("PRODID:-//Docket Watcher//Court Sessions//EN\r\n")
	ics.WriteString("CALSCALE:GREGORIAN\r\n")
	ics.WriteString("METHOD:PUBLISH\r\n")

	for _, session := range sessions {
		start, err := session.Start(loc)
		if err != nil {
			continue
		}
		writeEvent(&ics, session, start, dtStamp)
	}

	ics.WriteString("END:VCALENDAR\r\n")
	return ics.String()
}

func writeEvent(ics *strings.Builder, session models.CourtSession, start time.Time, dtStamp string) {
	uid := fmt.Sprintf("%x@docket-watcher", md5.Sum([]byte(session.ID+"|"+session.CaseNumber)))

	ics.WriteString("BEGIN:VEVENT\r\n")
	fmt.Fprintf(ics, "UID:%s\r\n", uid)
	fmt.Fprintf(ics, "DTSTAMP:%s\r\n", dtStamp)
	fmt.Fprintf(ics, "DTSTART:%s\r\n", start.UTC().Format("20060102T150405Z"))
	fmt.Fprintf(ics, "DTEND:%s\r\n", start.Add(sessionDuration).UTC().Format("20060102T150405Z"))
	fmt.Fprintf(ics, "SUMMARY:%s\r\n", escapeICS("Court session - "+session.CaseNumber))

	var desc []string
	for _, field := range [][2]string{
		{"Case", session.CaseNumber},
		{"Court", session.CourtName},
		{"Circuit", session.Circuit},
		{"Client", session.ClientName},
		{"Opponent", session.OpponentName},
		{"Lawyer", session.LawyerName},
		{"Notes", session.Notes},
	} {
		if field[1] != "" {
			desc = append(desc, field[0]+": "+field[1])
		}
	}
	fmt.Fprintf(ics, "DESCRIPTION:%s\r\n", escapeICS(strings.Join(desc, "\n")))

	if where := joinNonEmpty(", ", session.CourtName, session.Location); where != "" {
		fmt.Fprintf(ics, "LOCATION:%s\r\n", escapeICS(where))
	}

	ics.WriteString("BEGIN:VALARM\r\n")
	ics.WriteString("TRIGGER:-PT1H\r\n")
	ics.WriteString("ACTION:DISPLAY\r\n")
	fmt.Fprintf(ics, "DESCRIPTION:%s\r\n", escapeICS("Court session in 1 hour: "+session.CaseNumber))
	ics.WriteString("END:VALARM\r\n")

	ics.WriteString("END:VEVENT\r\n")
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

// escapeICS escapes special characters for ICS format
func escapeICS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, ",", "\\,")
	s = strings.ReplaceAll(s, ";", "\\;")
	return s
}
