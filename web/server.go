package web

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/aweist/docket-watcher/agenda"
	"github.com/aweist/docket-watcher/archive"
	"github.com/aweist/docket-watcher/clock"
	"github.com/aweist/docket-watcher/models"
	"github.com/aweist/docket-watcher/notifier"
	"github.com/aweist/docket-watcher/scheduler"
)

//go:embed templates/*
var templates embed.FS

var agendaTemplate = template.Must(template.ParseFS(templates, "templates/agenda.html"))

// StatusSource exposes the scheduler state for the status endpoint.
type StatusSource interface {
	State() scheduler.State
}

// SchedulerStore is the read side of the scheduler bookkeeping.
type SchedulerStore interface {
	GetLastAlertToken() (string, error)
	GetAllDeliveries() ([]models.DeliveryRecord, error)
}

type Config struct {
	Addr      string
	Agenda    *agenda.Service
	Archive   *archive.Store
	Scheduler StatusSource
	Store     SchedulerStore
	Notifier  notifier.Notifier
	Clock     clock.Clock
	Windows   scheduler.Windows
	Logger    zerolog.Logger
}

type Server struct {
	addr      string
	agenda    *agenda.Service
	archive   *archive.Store
	scheduler StatusSource
	store     SchedulerStore
	notifier  notifier.Notifier
	clock     clock.Clock
	windows   scheduler.Windows
	log       zerolog.Logger
}

func NewServer(cfg Config) *Server {
	s := &Server{
		addr:      cfg.Addr,
		agenda:    cfg.Agenda,
		archive:   cfg.Archive,
		scheduler: cfg.Scheduler,
		store:     cfg.Store,
		notifier:  cfg.Notifier,
		clock:     cfg.Clock,
		windows:   cfg.Windows,
		log:       cfg.Logger,
	}
	if s.clock == nil {
		s.clock = clock.Real{}
	}
	if s.windows == (scheduler.Windows{}) {
		s.windows = scheduler.DefaultWindows
	}
	return s
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/health"))

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/agenda", http.StatusFound)
	})
	r.Get("/agenda", s.handleAgendaPage)

	r.Route("/api", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/", s.handleCreateSession)
			r.Get("/tomorrow", s.handleTomorrow)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSession)
				r.Put("/", s.handleUpdateSession)
				r.Delete("/", s.handleDeleteSession)
				r.Post("/postpone", s.handlePostpone)
				r.Post("/archive", s.handleTransfer)
			})
		})

		r.Get("/settings", s.handleGetSettings)
		r.Put("/settings", s.handleSaveSettings)

		r.Route("/archive", func(r chi.Router) {
			r.Get("/", s.handleListArchive)
			r.Get("/folders", s.handleFolders)
			r.Get("/{id}", s.handleGetArchiveItem)
			r.Delete("/{id}", s.handleDeleteArchiveItem)
		})

		r.Get("/agenda.ics", s.handleICS)
		r.Get("/status", s.handleStatus)
		r.Get("/deliveries", s.handleDeliveries)
		r.Post("/test-notification", s.handleTestNotification)
	})

	return r
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", s.addr).Msg("starting web server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down web server: %w", err)
	}
	s.log.Info().Msg("web server stopped")
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("http request")
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// writeErr maps domain errors to HTTP status codes.
func (s *Server) writeErr(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, agenda.ErrSessionNotFound), errors.Is(err, archive.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, agenda.ErrInvalidSession), errors.Is(err, agenda.ErrInvalidSettings):
		status = http.StatusBadRequest
	case errors.Is(err, agenda.ErrOutcomeRequired):
		status = http.StatusUnprocessableEntity
	}

	if status == http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	Error(w, status, err.Error())
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
