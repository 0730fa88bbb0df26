package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/aweist/docket-watcher/models"
)

// column names accepted in the header row, matched case-insensitively after
// dropping spaces, dashes, underscores and '#'.
var columnAliases = map[string][]string{
	"case":     {"case", "casenumber", "caseno", "casenum"},
	"lawyer":   {"lawyer", "lawyername", "attorney"},
	"court":    {"court", "courtname"},
	"circuit":  {"circuit", "chamber"},
	"location": {"location", "hall", "room"},
	"client":   {"client", "clientname"},
	"opponent": {"opponent", "opponentname", "adversary"},
	"date":     {"date", "sessiondate"},
	"time":     {"time", "sessiontime"},
	"notes":    {"notes", "note", "remarks"},
	"outcome":  {"outcome", "decision", "result"},
}

type CSVParser struct {
	year int
}

// NewCSVParser returns a parser that completes dates written without a year
// with the current year.
func NewCSVParser() *CSVParser {
	return &CSVParser{year: time.Now().Year()}
}

// ParseSessions reads court sessions from CSV with a header row. Blank rows
// are skipped; every other row must carry a case number and a readable date.
func (p *CSVParser) ParseSessions(r io.Reader) ([]models.CourtSession, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading CSV: %w", err)
	}

	if len(records) < 2 {
		return nil, fmt.Errorf("insufficient data in CSV")
	}

	columns := p.findColumns(records[0])
	for _, required := range []string{"case", "date"} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("CSV header has no %s column", required)
		}
	}

	var (
		sessions []models.CourtSession
		errs     []error
	)
	for i := 1; i < len(records); i++ {
		row := records[i]
		if isBlank(row) {
			continue
		}

		session, err := p.createSession(row, columns)
		if err != nil {
			errs = append(errs, fmt.Errorf("row %d: %w", i+1, err))
			continue
		}
		sessions = append(sessions, session)
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return sessions, nil
}

func (p *CSVParser) findColumns(headers []string) map[string]int {
	lookup := make(map[string]string)
	for field, aliases := range columnAliases {
		for _, alias := range aliases {
			lookup[alias] = field
		}
	}

	columns := make(map[string]int)
	for i, header := range headers {
		field, ok := lookup[normalizeHeader(header)]
		if !ok {
			continue
		}
		if _, seen := columns[field]; !seen {
			columns[field] = i
		}
	}

	return columns
}

func (p *CSVParser) createSession(row []string, columns map[string]int) (models.CourtSession, error) {
	get := func(field string) string {
		i, ok := columns[field]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	caseNumber := get("case")
	if caseNumber == "" {
		return models.CourtSession{}, fmt.Errorf("missing case number")
	}

	date, err := p.parseDate(get("date"))
	if err != nil {
		return models.CourtSession{}, err
	}

	clock, err := parseTime(get("time"))
	if err != nil {
		return models.CourtSession{}, err
	}

	session := models.CourtSession{
		CaseNumber:   caseNumber,
		LawyerName:   get("lawyer"),
		CourtName:    get("court"),
		Circuit:      get("circuit"),
		Location:     get("location"),
		ClientName:   get("client"),
		OpponentName: get("opponent"),
		SessionDate:  date,
		SessionTime:  clock,
		Notes:        get("notes"),
		Outcome:      get("outcome"),
		Status:       models.StatusUpcoming,
	}
	if session.HasOutcome() {
		session.Status = models.StatusCompleted
	}

	return session, nil
}

// parseDate accepts YYYY-MM-DD, M/D/YYYY, M/D/YY and M/D.
func (p *CSVParser) parseDate(dateStr string) (string, error) {
	dateStr = strings.TrimSpace(dateStr)
	if dateStr == "" {
		return "", fmt.Errorf("missing date")
	}

	if t, err := time.Parse(models.DateLayout, dateStr); err == nil {
		return t.Format(models.DateLayout), nil
	}

	parts := strings.Split(dateStr, "/")
	if len(parts) < 2 || len(parts) > 3 {
		return "", fmt.Errorf("unreadable date %q", dateStr)
	}

	month, err1 := strconv.Atoi(strings.TrimSpace(parts[0]))
	day, err2 := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err1 != nil || err2 != nil {
		return "", fmt.Errorf("unreadable date %q", dateStr)
	}

	year := p.year
	if len(parts) == 3 {
		yearPart, err := strconv.Atoi(strings.TrimSpace(parts[2]))
		if err != nil || yearPart <= 0 {
			return "", fmt.Errorf("unreadable date %q", dateStr)
		}
		if yearPart < 100 {
			year = 2000 + yearPart
		} else {
			year = yearPart
		}
	}

	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	if t.Month() != time.Month(month) || t.Day() != day {
		return "", fmt.Errorf("date %q does not exist", dateStr)
	}

	return t.Format(models.DateLayout), nil
}

// parseTime accepts "14:30", "2:30 PM", "2pm" and the like. An empty value
// stays empty.
func parseTime(timeStr string) (string, error) {
	s := strings.ToUpper(strings.TrimSpace(timeStr))
	s = strings.ReplaceAll(s, ".", "")
	if s == "" {
		return "", nil
	}

	for _, layout := range []string{"15:04", "3:04 PM", "3:04PM", "3 PM", "3PM"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(models.TimeLayout), nil
		}
	}

	return "", fmt.Errorf("unreadable time %q", timeStr)
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	return strings.NewReplacer(" ", "", "-", "", "_", "", "#", "", ".", "").Replace(h)
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
