package web

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/aweist/docket-watcher/models"
	"github.com/aweist/docket-watcher/notifier"
	"github.com/aweist/docket-watcher/scheduler"
)

func (s *Server) handleListSessions(w http.ResponseWriter, r *http.Request) {
	var (
		sessions []models.CourtSession
		err      error
	)
	if r.URL.Query().Get("upcoming") == "true" {
		sessions, err = s.agenda.Upcoming(r.Context(), s.clock.Now())
	} else {
		sessions, err = s.agenda.List(r.Context())
	}
	if err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusOK, nonNil(sessions))
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var in models.CourtSession
	if err := decode(w, r, &in); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	added, err := s.agenda.Add(r.Context(), in)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusCreated, added)
}

func (s *Server) handleTomorrow(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.agenda.Tomorrow(r.Context(), s.clock.Now())
	if err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusOK, nonNil(sessions))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, err := s.agenda.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusOK, session)
}

func (s *Server) handleUpdateSession(w http.ResponseWriter, r *http.Request) {
	var in models.CourtSession
	if err := decode(w, r, &in); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.agenda.Edit(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusOK, updated)
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.agenda.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handlePostpone returns the draft for the next hearing; the client saves it
// with POST /api/sessions.
func (s *Server) handlePostpone(w http.ResponseWriter, r *http.Request) {
	draft, err := s.agenda.Postpone(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusOK, draft)
}

func (s *Server) handleTransfer(w http.ResponseWriter, r *http.Request) {
	item, err := s.agenda.TransferToArchive(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusCreated, item)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.agenda.Settings(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusOK, settings)
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var in models.AlertSettings
	if err := decode(w, r, &in); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.agenda.SaveSettings(r.Context(), in); err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusOK, in)
}

func (s *Server) handleListArchive(w http.ResponseWriter, r *http.Request) {
	items, err := s.archive.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusOK, nonNil(items))
}

func (s *Server) handleFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := s.archive.Folders(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusOK, nonNil(folders))
}

func (s *Server) handleGetArchiveItem(w http.ResponseWriter, r *http.Request) {
	item, err := s.archive.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusOK, item)
}

func (s *Server) handleDeleteArchiveItem(w http.ResponseWriter, r *http.Request) {
	if err := s.archive.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeErr(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleICS(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	sessions, err := s.agenda.Upcoming(r.Context(), now)
	if err != nil {
		s.writeErr(w, err)
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="court-sessions.ics"`)
	_, _ = w.Write([]byte(notifier.GenerateICS(sessions, now.Location(), now)))
}

type statusResponse struct {
	State          string               `json:"state"`
	Now            time.Time            `json:"now"`
	ActiveWindow   string               `json:"activeWindow,omitempty"`
	LastAlertToken string               `json:"lastAlertToken,omitempty"`
	Settings       models.AlertSettings `json:"settings"`
	Channel        string               `json:"channel,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()

	settings, err := s.agenda.Settings(r.Context())
	if err != nil {
		s.writeErr(w, err)
		return
	}

	resp := statusResponse{
		State:    scheduler.StateIdle.String(),
		Now:      now,
		Settings: settings,
	}
	if s.scheduler != nil {
		resp.State = s.scheduler.State().String()
	}
	if window, ok := scheduler.EvaluateWindow(now, settings, s.windows); ok {
		resp.ActiveWindow = window.Token()
	}
	if s.store != nil {
		if token, err := s.store.GetLastAlertToken(); err == nil {
			resp.LastAlertToken = token
		}
	}
	if s.notifier != nil {
		resp.Channel = s.notifier.GetType()
	}

	JSON(w, http.StatusOK, resp)
}

func (s *Server) handleDeliveries(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		JSON(w, http.StatusOK, []models.DeliveryRecord{})
		return
	}

	records, err := s.store.GetAllDeliveries()
	if err != nil {
		s.writeErr(w, err)
		return
	}

	JSON(w, http.StatusOK, nonNil(records))
}

// handleTestNotification sends a test message through the configured channels
// without touching the reminder bookkeeping.
func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	if s.notifier == nil {
		Error(w, http.StatusServiceUnavailable, "no notification channels configured")
		return
	}

	if err := s.notifier.Deliver(r.Context(), "Test notification: court session reminders are working."); err != nil {
		s.log.Warn().Err(err).Msg("test notification failed")
		Error(w, http.StatusBadGateway, fmt.Sprintf("test notification failed: %v", err))
		return
	}

	JSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "Test notification sent via " + s.notifier.GetType(),
	})
}

type agendaPage struct {
	Title       string
	GeneratedAt string
	Days        []agendaDay
}

type agendaDay struct {
	Date     string
	Sessions []models.CourtSession
}

// handleAgendaPage renders the printable agenda of upcoming sessions grouped
// by day.
func (s *Server) handleAgendaPage(w http.ResponseWriter, r *http.Request) {
	now := s.clock.Now()
	sessions, err := s.agenda.Upcoming(r.Context(), now)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error fetching sessions: %v", err), http.StatusInternalServerError)
		return
	}

	page := agendaPage{
		Title:       "Court session agenda",
		GeneratedAt: now.Format("Monday, January 2, 2006 15:04"),
		Days:        groupByDay(sessions),
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := agendaTemplate.Execute(w, page); err != nil {
		s.log.Error().Err(err).Msg("rendering agenda page")
	}
}

func groupByDay(sessions []models.CourtSession) []agendaDay {
	var days []agendaDay
	for _, session := range sessions {
		if n := len(days); n > 0 && days[n-1].Date == session.SessionDate {
			days[n-1].Sessions = append(days[n-1].Sessions, session)
			continue
		}
		days = append(days, agendaDay{Date: session.SessionDate, Sessions: []models.CourtSession{session}})
	}
	return days
}

func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
