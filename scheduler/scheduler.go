package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/aweist/docket-watcher/clock"
	"github.com/aweist/docket-watcher/models"
	"github.com/aweist/docket-watcher/notifier"
)

const (
	DefaultInterval        = time.Minute
	DefaultDeliveryTimeout = 10 * time.Second

	historyRetention = 30 * 24 * time.Hour
)

// SessionSource is the read side of the session store used on every tick.
type SessionSource interface {
	GetAllSessions() ([]models.CourtSession, error)
	GetAlertSettings() (models.AlertSettings, error)
}

// History keeps a debug log of dispatched reminders.
type History interface {
	RecordDelivery(record models.DeliveryRecord) error
	CleanupOldDeliveries(before time.Time) error
}

type State int32

const (
	StateIdle State = iota
	StateEvaluating
	StateDispatching
)

func (s State) String() string {
	switch s {
	case StateEvaluating:
		return "evaluating"
	case StateDispatching:
		return "dispatching"
	default:
		return "idle"
	}
}

type Outcome string

const (
	OutcomeNoWindow     Outcome = "no-window"
	OutcomeAlreadyFired Outcome = "already-fired"
	OutcomeNothingDue   Outcome = "nothing-due"
	OutcomeDispatched   Outcome = "dispatched"
	OutcomeError        Outcome = "error"
)

// Result describes what a single tick did.
type Result struct {
	At          time.Time `json:"at"`
	Outcome     Outcome   `json:"outcome"`
	Token       string    `json:"token,omitempty"`
	Due         int       `json:"due"`
	Message     string    `json:"message,omitempty"`
	DeliveryErr error     `json:"-"`
	Err         error     `json:"-"`
}

type Config struct {
	Sessions        SessionSource
	Guard           *DedupGuard
	Notifier        notifier.Notifier
	History         History
	Clock           clock.Clock
	Windows         Windows
	Interval        time.Duration
	Slack           time.Duration
	DeliveryTimeout time.Duration
	Logger          zerolog.Logger
}

// Scheduler evaluates the reminder windows on a fixed tick and dispatches at
// most one reminder per window per day.
type Scheduler struct {
	sessions        SessionSource
	guard           *DedupGuard
	notifier        notifier.Notifier
	history         History
	clock           clock.Clock
	windows         Windows
	interval        time.Duration
	slack           time.Duration
	deliveryTimeout time.Duration
	log             zerolog.Logger

	state  atomic.Int32
	tickMu sync.Mutex

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg Config) *Scheduler {
	s := &Scheduler{
		sessions:        cfg.Sessions,
		guard:           cfg.Guard,
		notifier:        cfg.Notifier,
		history:         cfg.History,
		clock:           cfg.Clock,
		windows:         cfg.Windows,
		interval:        cfg.Interval,
		slack:           cfg.Slack,
		deliveryTimeout: cfg.DeliveryTimeout,
		log:             cfg.Logger,
	}

	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.windows == (Windows{}) {
		s.windows = DefaultWindows
	}
	if s.interval <= 0 {
		s.interval = DefaultInterval
	}
	if s.slack < 0 {
		s.slack = 0
	}
	if s.deliveryTimeout <= 0 {
		s.deliveryTimeout = DefaultDeliveryTimeout
	}

	return s
}

func (s *Scheduler) State() State {
	return State(s.state.Load())
}

// Run ticks once immediately and then on every interval until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.sessions == nil || s.guard == nil || s.notifier == nil {
		return fmt.Errorf("scheduler requires a session source, dedup guard and notifier")
	}

	s.log.Info().Dur("interval", s.interval).Dur("slack", s.slack).Msg("starting reminder scheduler")

	s.Tick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("reminder scheduler stopped")
			return nil
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

// Start runs the scheduler loop in the background. Calling Start on a running
// scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done

	go func() {
		defer close(done)
		if err := s.Run(ctx); err != nil {
			s.log.Error().Err(err).Msg("reminder scheduler exited")
		}
	}()
}

// Stop cancels the loop and waits for it to exit. A tick in progress is
// allowed to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}

	cancel()
	<-done
}

// Tick performs one evaluation. Ticks never overlap.
func (s *Scheduler) Tick(ctx context.Context) Result {
	s.tickMu.Lock()
	defer s.tickMu.Unlock()

	s.state.Store(int32(StateEvaluating))
	defer s.state.Store(int32(StateIdle))

	now := s.clock.Now()
	result := Result{At: now}

	settings, err := s.sessions.GetAlertSettings()
	if err != nil {
		s.log.Warn().Err(err).Msg("reading alert settings, using defaults")
		settings = models.DefaultAlertSettings()
	}

	window, ok := EvaluateWindow(now, settings, s.windows)
	if !ok {
		result.Outcome = OutcomeNoWindow
		s.log.Debug().Time("now", now).Msg("outside reminder windows")
		return result
	}

	token := window.Token()
	result.Token = token
	result.Outcome = OutcomeAlreadyFired

	fired, err := s.guard.Fire(token, func() bool {
		due := s.dueSessions(now, settings.NotifyBefore)
		result.Due = len(due)
		if len(due) == 0 {
			result.Outcome = OutcomeNothingDue
			return false
		}

		s.state.Store(int32(StateDispatching))
		result.Outcome = OutcomeDispatched
		result.Message = BuildMessage(len(due), settings.NotifyBefore)
		result.DeliveryErr = s.deliver(ctx, result.Message)
		s.recordHistory(now, token, result)
		return true
	})

	if err != nil {
		result.Err = err
		if !fired {
			result.Outcome = OutcomeError
		}
		s.log.Error().Err(err).Str("token", token).Msg("dedup bookkeeping failed")
		return result
	}

	switch result.Outcome {
	case OutcomeAlreadyFired:
		s.log.Debug().Str("token", token).Msg("reminder already sent for this window")
	case OutcomeNothingDue:
		s.log.Debug().Str("token", token).Msg("no sessions due")
	case OutcomeDispatched:
		s.log.Info().Str("token", token).Int("due", result.Due).Msg("reminder dispatched")
	}

	return result
}

func (s *Scheduler) dueSessions(now time.Time, horizonHours int) []models.CourtSession {
	sessions, err := s.sessions.GetAllSessions()
	if err != nil {
		s.log.Warn().Err(err).Msg("reading sessions, treating as empty")
		return nil
	}

	return FilterDue(sessions, now, horizonHours, s.slack)
}

// deliver is bounded by the delivery timeout and is not cut short when the
// scheduler is stopped mid-tick.
func (s *Scheduler) deliver(ctx context.Context, message string) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.deliveryTimeout)
	defer cancel()

	if err := s.notifier.Deliver(ctx, message); err != nil {
		s.log.Warn().Err(err).Str("channel", s.notifier.GetType()).Msg("reminder delivery failed")
		return err
	}

	return nil
}

func (s *Scheduler) recordHistory(now time.Time, token string, result Result) {
	if s.history == nil {
		return
	}

	record := models.DeliveryRecord{
		Token:       token,
		Message:     result.Message,
		DueCount:    result.Due,
		DeliveredAt: now,
	}
	if result.DeliveryErr != nil {
		record.Error = result.DeliveryErr.Error()
	}

	if err := s.history.RecordDelivery(record); err != nil {
		s.log.Warn().Err(err).Msg("recording delivery history")
	}

	if err := s.history.CleanupOldDeliveries(now.Add(-historyRetention)); err != nil {
		s.log.Warn().Err(err).Msg("cleaning up delivery history")
	}
}

// BuildMessage summarises the due sessions for a reminder.
func BuildMessage(count, horizonHours int) string {
	noun := "sessions"
	if count == 1 {
		noun = "session"
	}
	return fmt.Sprintf("Reminder: %d court %s within the next %d hours.", count, noun, horizonHours)
}
