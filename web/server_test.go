package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aweist/docket-watcher/agenda"
	"github.com/aweist/docket-watcher/archive"
	"github.com/aweist/docket-watcher/clock"
	"github.com/aweist/docket-watcher/models"
	"github.com/aweist/docket-watcher/scheduler"
	"github.com/aweist/docket-watcher/storage"
)

type fakeNotifier struct {
	err      error
	messages []string
}

func (f *fakeNotifier) GetType() string { return "banner" }

func (f *fakeNotifier) Deliver(_ context.Context, message string) error {
	f.messages = append(f.messages, message)
	return f.err
}

type fakeStatus struct{}

func (fakeStatus) State() scheduler.State { return scheduler.StateEvaluating }

type env struct {
	srv      *httptest.Server
	store    *storage.BoltStorage
	notifier *fakeNotifier
}

func newEnv(t *testing.T) *env {
	t.Helper()
	dir := t.TempDir()

	store, err := storage.NewBoltStorage(filepath.Join(dir, "docket.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	arch, err := archive.NewStore(filepath.Join(dir, "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = arch.Close() })

	clk := clock.NewFake(time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC))
	n := &fakeNotifier{}

	s := NewServer(Config{
		Agenda:    agenda.NewService(store, arch, clk, zerolog.Nop()),
		Archive:   arch,
		Scheduler: fakeStatus{},
		Store:     store,
		Notifier:  n,
		Clock:     clk,
		Logger:    zerolog.Nop(),
	})

	srv := httptest.NewServer(s.Handler())
	t.Cleanup(srv.Close)

	return &env{srv: srv, store: store, notifier: n}
}

func (e *env) do(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.srv.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func session(caseNumber, date, clock string) models.CourtSession {
	return models.CourtSession{
		CaseNumber:  caseNumber,
		CourtName:   "Civil Court",
		ClientName:  "Ahmed",
		SessionDate: date,
		SessionTime: clock,
	}
}

func TestSessionsCRUD(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodPost, "/api/sessions", session("1/2025", "2025-05-21", "10:00"))
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decodeBody[models.CourtSession](t, resp)
	require.NotEmpty(t, created.ID)

	resp = e.do(t, http.MethodGet, "/api/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created, decodeBody[models.CourtSession](t, resp))

	update := session("1/2025", "2025-05-22", "11:00")
	resp = e.do(t, http.MethodPut, "/api/sessions/"+created.ID, update)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "2025-05-22", decodeBody[models.CourtSession](t, resp).SessionDate)

	resp = e.do(t, http.MethodGet, "/api/sessions", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decodeBody[[]models.CourtSession](t, resp), 1)

	resp = e.do(t, http.MethodDelete, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/sessions", nil)
	assert.Equal(t, []models.CourtSession{}, decodeBody[[]models.CourtSession](t, resp))
}

func TestCreateSession_Invalid(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodPost, "/api/sessions", session("", "soon", ""))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := decodeBody[map[string]string](t, resp)
	assert.Contains(t, body["error"], "invalid session")

	resp = e.do(t, http.MethodPost, "/api/sessions", map[string]string{"bogus": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestPostponeAndTransfer(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodPost, "/api/sessions", session("9/2025", "2025-05-21", "10:00"))
	created := decodeBody[models.CourtSession](t, resp)

	resp = e.do(t, http.MethodPost, "/api/sessions/"+created.ID+"/postpone", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	draft := decodeBody[models.CourtSession](t, resp)
	assert.Empty(t, draft.ID)
	assert.Equal(t, "Postponed to next session - previous date: 2025-05-21", draft.Notes)

	resp = e.do(t, http.MethodPost, "/api/sessions/"+created.ID+"/archive", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)

	withOutcome := created
	withOutcome.Outcome = "Adjourned for pleadings"
	resp = e.do(t, http.MethodPut, "/api/sessions/"+created.ID, withOutcome)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodPost, "/api/sessions/"+created.ID+"/archive", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	item := decodeBody[models.ArchiveItem](t, resp)
	assert.Equal(t, "Session decision: 9/2025", item.Title)

	resp = e.do(t, http.MethodGet, "/api/archive?q=9/2025", nil)
	assert.Len(t, decodeBody[[]models.ArchiveItem](t, resp), 1)

	resp = e.do(t, http.MethodGet, "/api/archive/folders", nil)
	folders := decodeBody[[]models.CaseFolder](t, resp)
	require.Len(t, folders, 1)
	assert.Equal(t, "9/2025", folders[0].CaseNumber)

	resp = e.do(t, http.MethodDelete, "/api/archive/"+item.ID, nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp = e.do(t, http.MethodGet, "/api/archive/"+item.ID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSettingsEndpoints(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, models.DefaultAlertSettings(), decodeBody[models.AlertSettings](t, resp))

	want := models.AlertSettings{NotifyBefore: 48, EnableMorning: true}
	resp = e.do(t, http.MethodPut, "/api/settings", want)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = e.do(t, http.MethodGet, "/api/settings", nil)
	assert.Equal(t, want, decodeBody[models.AlertSettings](t, resp))

	resp = e.do(t, http.MethodPut, "/api/settings", models.AlertSettings{NotifyBefore: 5})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestStatusAndDeliveries(t *testing.T) {
	e := newEnv(t)
	require.NoError(t, e.store.SetLastAlertToken("2025-05-19_PM"))
	require.NoError(t, e.store.RecordDelivery(models.DeliveryRecord{
		Token: "2025-05-19_PM", Message: "Reminder", DueCount: 1, DeliveredAt: time.Date(2025, 5, 19, 17, 0, 0, 0, time.UTC),
	}))

	resp := e.do(t, http.MethodGet, "/api/status", nil)
	status := decodeBody[statusResponse](t, resp)
	assert.Equal(t, "evaluating", status.State)
	assert.Equal(t, "2025-05-20_AM", status.ActiveWindow)
	assert.Equal(t, "2025-05-19_PM", status.LastAlertToken)
	assert.Equal(t, "banner", status.Channel)

	resp = e.do(t, http.MethodGet, "/api/deliveries", nil)
	records := decodeBody[[]models.DeliveryRecord](t, resp)
	require.Len(t, records, 1)
	assert.Equal(t, "2025-05-19_PM", records[0].Token)
}

func TestTestNotification(t *testing.T) {
	e := newEnv(t)

	resp := e.do(t, http.MethodPost, "/api/test-notification", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, e.notifier.messages, 1)

	token, err := e.store.GetLastAlertToken()
	require.NoError(t, err)
	assert.Empty(t, token, "test notifications do not consume the window")

	e.notifier.err = errors.New("notify-send missing")
	resp = e.do(t, http.MethodPost, "/api/test-notification", nil)
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
}

func TestAgendaPageAndICS(t *testing.T) {
	e := newEnv(t)
	e.do(t, http.MethodPost, "/api/sessions", session("21/2025", "2025-05-21", "10:00"))
	e.do(t, http.MethodPost, "/api/sessions", session("22/2025", "2025-05-21", "08:30"))
	e.do(t, http.MethodPost, "/api/sessions", session("old", "2025-05-01", "10:00"))

	resp := e.do(t, http.MethodGet, "/agenda", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	html, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	page := string(html)
	assert.Contains(t, page, "2025-05-21")
	assert.Less(t, strings.Index(page, "22/2025"), strings.Index(page, "21/2025"), "earlier session listed first")
	assert.NotContains(t, page, ">old<")

	resp = e.do(t, http.MethodGet, "/api/agenda.ics", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/calendar")
	ics, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(ics), "BEGIN:VEVENT"))

	resp = e.do(t, http.MethodGet, "/api/sessions/tomorrow", nil)
	tomorrow := decodeBody[[]models.CourtSession](t, resp)
	require.Len(t, tomorrow, 2)
	assert.Equal(t, "22/2025", tomorrow[0].CaseNumber)
}
