// Package agenda manages the court session collection and its lifecycle:
// adding, editing, postponing, deleting and moving decided sessions into the
// document archive.
package agenda

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hay-kot/criterio"
	"github.com/rs/zerolog"

	"github.com/aweist/docket-watcher/clock"
	"github.com/aweist/docket-watcher/models"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrOutcomeRequired = errors.New("session has no recorded outcome")
	ErrInvalidSession  = errors.New("invalid session")
	ErrInvalidSettings = errors.New("invalid alert settings")
)

// Store is the persistence the service needs. storage.BoltStorage satisfies it.
type Store interface {
	GetAllSessions() ([]models.CourtSession, error)
	UpdateSessions(fn func([]models.CourtSession) ([]models.CourtSession, error)) error
	GetAlertSettings() (models.AlertSettings, error)
	SaveAlertSettings(settings models.AlertSettings) error
}

// Archiver receives items produced by TransferToArchive.
type Archiver interface {
	Save(ctx context.Context, item models.ArchiveItem) (models.ArchiveItem, error)
}

type Service struct {
	store   Store
	archive Archiver
	clock   clock.Clock
	log     zerolog.Logger
}

func NewService(store Store, archive Archiver, clk clock.Clock, log zerolog.Logger) *Service {
	if clk == nil {
		clk = clock.Real{}
	}
	return &Service{
		store:   store,
		archive: archive,
		clock:   clk,
		log:     log,
	}
}

func (s *Service) List(ctx context.Context) ([]models.CourtSession, error) {
	sessions, err := s.store.GetAllSessions()
	if err != nil {
		return nil, fmt.Errorf("loading sessions: %w", err)
	}
	return sessions, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.CourtSession, error) {
	sessions, err := s.List(ctx)
	if err != nil {
		return models.CourtSession{}, err
	}

	i := indexOf(sessions, id)
	if i < 0 {
		return models.CourtSession{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return sessions[i], nil
}

// Add validates session, assigns it a fresh id and stores it at the head of
// the collection.
func (s *Service) Add(ctx context.Context, session models.CourtSession) (models.CourtSession, error) {
	added, err := s.AddAll(ctx, []models.CourtSession{session})
	if err != nil {
		return models.CourtSession{}, err
	}
	return added[0], nil
}

// AddAll stores several sessions in one write. Nothing is stored if any of
// them is invalid.
func (s *Service) AddAll(ctx context.Context, sessions []models.CourtSession) ([]models.CourtSession, error) {
	added := make([]models.CourtSession, 0, len(sessions))
	for i, session := range sessions {
		session = normalize(session)
		if err := s.validate(session); err != nil {
			if len(sessions) > 1 {
				return nil, fmt.Errorf("session %d: %w", i+1, err)
			}
			return nil, err
		}
		session.ID = uuid.NewString()
		added = append(added, session)
	}

	err := s.store.UpdateSessions(func(current []models.CourtSession) ([]models.CourtSession, error) {
		next := make([]models.CourtSession, 0, len(current)+len(added))
		for i := len(added) - 1; i >= 0; i-- {
			next = append(next, added[i])
		}
		return append(next, current...), nil
	})
	if err != nil {
		return nil, fmt.Errorf("saving sessions: %w", err)
	}

	for _, session := range added {
		s.log.Info().Str("id", session.ID).Str("case", session.CaseNumber).Msg("session added")
	}
	return added, nil
}

// Edit replaces every field of the session with the given id.
func (s *Service) Edit(ctx context.Context, id string, session models.CourtSession) (models.CourtSession, error) {
	session = normalize(session)
	session.ID = id
	if err := s.validate(session); err != nil {
		return models.CourtSession{}, err
	}

	err := s.store.UpdateSessions(func(current []models.CourtSession) ([]models.CourtSession, error) {
		i := indexOf(current, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		current[i] = session
		return current, nil
	})
	if err != nil {
		return models.CourtSession{}, fmt.Errorf("updating session: %w", err)
	}

	s.log.Info().Str("id", id).Str("status", string(session.Status)).Msg("session updated")
	return session, nil
}

// Postpone returns an unsaved draft for the next hearing of the session. The
// original is left as is.
func (s *Service) Postpone(ctx context.Context, id string) (models.CourtSession, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return models.CourtSession{}, err
	}
	return session.Postponed(), nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	err := s.store.UpdateSessions(func(current []models.CourtSession) ([]models.CourtSession, error) {
		i := indexOf(current, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return append(current[:i], current[i+1:]...), nil
	})
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}

	s.log.Info().Str("id", id).Msg("session deleted")
	return nil
}

// TransferToArchive files the recorded decision of a session as an archive
// document. The session itself is not changed.
func (s *Service) TransferToArchive(ctx context.Context, id string) (models.ArchiveItem, error) {
	session, err := s.Get(ctx, id)
	if err != nil {
		return models.ArchiveItem{}, err
	}
	if !session.HasOutcome() {
		return models.ArchiveItem{}, fmt.Errorf("%w: %s", ErrOutcomeRequired, session.CaseNumber)
	}
	if s.archive == nil {
		return models.ArchiveItem{}, errors.New("no archive configured")
	}

	item, err := s.archive.Save(ctx, DecisionItem(session, s.clock.Now()))
	if err != nil {
		return models.ArchiveItem{}, fmt.Errorf("archiving session decision: %w", err)
	}

	s.log.Info().Str("id", id).Str("archive_id", item.ID).Msg("session decision archived")
	return item, nil
}

// DecisionItem builds the archive document recording the outcome of session.
func DecisionItem(session models.CourtSession, at time.Time) models.ArchiveItem {
	var b strings.Builder
	fmt.Fprintf(&b, "Case number: %s\n", session.CaseNumber)
	fmt.Fprintf(&b, "Court: %s\n", session.CourtName)
	if session.Circuit != "" {
		fmt.Fprintf(&b, "Circuit: %s\n", session.Circuit)
	}
	fmt.Fprintf(&b, "Session date: %s %s\n", session.SessionDate, session.SessionTime)
	if session.LawyerName != "" {
		fmt.Fprintf(&b, "Lawyer: %s\n", session.LawyerName)
	}
	fmt.Fprintf(&b, "\nDecision:\n%s\n", session.Outcome)

	return models.ArchiveItem{
		Title:      "Session decision: " + session.CaseNumber,
		CaseNumber: session.CaseNumber,
		ClientName: session.ClientName,
		Type:       models.ArchiveTypeContract,
		Content:    b.String(),
		CreatedAt:  at,
		Tags:       []string{"court session", "auto-transfer"},
	}
}

// Tomorrow lists the sessions held on the calendar day after now, earliest
// first.
func (s *Service) Tomorrow(ctx context.Context, now time.Time) ([]models.CourtSession, error) {
	sessions, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	day := now.AddDate(0, 0, 1).Format(models.DateLayout)
	var out []models.CourtSession
	for _, session := range sessions {
		if strings.TrimSpace(session.SessionDate) == day {
			out = append(out, session)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		return sessionClock(out[i]) < sessionClock(out[j])
	})
	return out, nil
}

// Upcoming returns sessions starting at or after now, soonest first.
// Sessions with an unreadable date are left out.
func (s *Service) Upcoming(ctx context.Context, now time.Time) ([]models.CourtSession, error) {
	sessions, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	type dated struct {
		session models.CourtSession
		start   time.Time
	}
	var upcoming []dated
	for _, session := range sessions {
		start, err := session.Start(now.Location())
		if err != nil || start.Before(now) {
			continue
		}
		upcoming = append(upcoming, dated{session, start})
	}

	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].start.Before(upcoming[j].start)
	})

	out := make([]models.CourtSession, len(upcoming))
	for i, d := range upcoming {
		out[i] = d.session
	}
	return out, nil
}

func (s *Service) Settings(ctx context.Context) (models.AlertSettings, error) {
	settings, err := s.store.GetAlertSettings()
	if err != nil {
		return models.AlertSettings{}, fmt.Errorf("loading alert settings: %w", err)
	}
	return settings, nil
}

// SaveSettings overwrites the alert settings wholesale.
func (s *Service) SaveSettings(ctx context.Context, settings models.AlertSettings) error {
	if !settings.ValidHorizon() {
		return fmt.Errorf("%w: %w", ErrInvalidSettings,
			criterio.NewFieldErrors("notifyBefore", fmt.Errorf("must be one of %v hours", models.HorizonChoices)))
	}

	if err := s.store.SaveAlertSettings(settings); err != nil {
		return fmt.Errorf("saving alert settings: %w", err)
	}

	s.log.Info().
		Int("notify_before", settings.NotifyBefore).
		Bool("morning", settings.EnableMorning).
		Bool("evening", settings.EnableEvening).
		Msg("alert settings saved")
	return nil
}

func (s *Service) validate(session models.CourtSession) error {
	err := criterio.ValidateStruct(
		criterio.Run("caseNumber", session.CaseNumber, required),
		criterio.Run("sessionDate", session.SessionDate, validDate),
		criterio.Run("sessionTime", session.SessionTime, validTime),
		criterio.Run("status", session.Status, validStatus),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	return nil
}

// normalize trims input and marks sessions with a recorded outcome as
// completed.
func normalize(session models.CourtSession) models.CourtSession {
	session.CaseNumber = strings.TrimSpace(session.CaseNumber)
	session.SessionDate = strings.TrimSpace(session.SessionDate)
	session.SessionTime = strings.TrimSpace(session.SessionTime)

	if session.Status == "" {
		session.Status = models.StatusUpcoming
	}
	if session.HasOutcome() {
		session.Status = models.StatusCompleted
	}
	return session
}

func required(v string) error {
	if strings.TrimSpace(v) == "" {
		return errors.New("is required")
	}
	return nil
}

func validDate(v string) error {
	if v == "" {
		return errors.New("is required")
	}
	if _, err := time.Parse(models.DateLayout, v); err != nil {
		return fmt.Errorf("must be YYYY-MM-DD, got %q", v)
	}
	return nil
}

func validTime(v string) error {
	if v == "" {
		return nil
	}
	if _, err := time.Parse(models.TimeLayout, v); err != nil {
		return fmt.Errorf("must be HH:MM, got %q", v)
	}
	return nil
}

func validStatus(v models.SessionStatus) error {
	if !v.Valid() {
		return fmt.Errorf("unknown status %q", v)
	}
	return nil
}

func indexOf(sessions []models.CourtSession, id string) int {
	for i, session := range sessions {
		if session.ID == id {
			return i
		}
	}
	return -1
}

func sessionClock(session models.CourtSession) string {
	if session.SessionTime == "" {
		return models.DefaultSessionTime
	}
	return session.SessionTime
}
