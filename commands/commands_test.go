package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v3"

	"github.com/aweist/docket-watcher/agenda"
	"github.com/aweist/docket-watcher/app"
	"github.com/aweist/docket-watcher/clock"
	"github.com/aweist/docket-watcher/config"
	"github.com/aweist/docket-watcher/models"
	"github.com/aweist/docket-watcher/scheduler"
)

type harness struct {
	t      *testing.T
	docket *app.App
	flags  *Flags
	banner bytes.Buffer
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	dir := t.TempDir()

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.DBPath = filepath.Join(dir, "docket.db")
	cfg.Storage.ArchivePath = filepath.Join(dir, "archive.db")
	cfg.Scheduler.Timezone = "UTC"
	cfg.Notify.Channels = []string{config.ChannelBanner}
	cfg.Web.Enabled = false

	h := &harness{t: t, flags: &Flags{Config: cfg}}

	docket, err := app.New(cfg, zerolog.Nop(), &h.banner)
	require.NoError(t, err)
	t.Cleanup(func() { _ = docket.Close() })

	docket.Clock = clock.NewFake(time.Date(2025, 5, 20, 17, 10, 0, 0, time.UTC))
	h.docket = docket
	return h
}

func (h *harness) run(args ...string) (string, error) {
	h.t.Helper()
	var buf bytes.Buffer

	root := &cli.Command{
		Name:   "docket-watcher",
		Writer: &buf,
	}
	root = NewSessionCmd(h.flags, h.docket).Register(root)
	root = NewSettingsCmd(h.flags, h.docket).Register(root)
	root = NewAgendaCmd(h.flags, h.docket).Register(root)
	root = NewArchiveCmd(h.flags, h.docket).Register(root)
	root = NewCheckCmd(h.flags, h.docket).Register(root)
	root = NewBackupCmd(h.flags, h.docket).Register(root)

	err := root.Run(context.Background(), append([]string{"docket-watcher"}, args...))
	return buf.String(), err
}

func (h *harness) addSession(args ...string) models.CourtSession {
	h.t.Helper()
	out, err := h.run(append([]string{"session", "add", "--format", "json"}, args...)...)
	require.NoError(h.t, err)

	var s models.CourtSession
	require.NoError(h.t, json.Unmarshal([]byte(out), &s))
	return s
}

func (h *harness) listSessions() []models.CourtSession {
	h.t.Helper()
	out, err := h.run("session", "ls", "--format", "json")
	require.NoError(h.t, err)

	var sessions []models.CourtSession
	require.NoError(h.t, json.Unmarshal([]byte(out), &sessions))
	return sessions
}

func TestSessionAddAndList(t *testing.T) {
	h := newHarness(t)

	added := h.addSession("--case", "123/2025", "--date", "2025-05-21", "--time", "10:00", "--court", "Cairo Court")
	assert.NotEmpty(t, added.ID)
	assert.Equal(t, models.StatusUpcoming, added.Status)

	sessions := h.listSessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "123/2025", sessions[0].CaseNumber)
	assert.Equal(t, "Cairo Court", sessions[0].CourtName)

	out, err := h.run("session", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "123/2025")
	assert.Contains(t, out, "CASE")
}

func TestSessionAdd_Invalid(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("session", "add", "--date", "2025-05-21")
	require.ErrorIs(t, err, agenda.ErrInvalidSession)
	assert.Empty(t, h.listSessions())
}

func TestSessionEditKeepsUnsetFields(t *testing.T) {
	h := newHarness(t)
	added := h.addSession("--case", "1/2025", "--date", "2025-05-21", "--court", "North")

	_, err := h.run("session", "edit", added.ID, "--outcome", "Adjourned")
	require.NoError(t, err)

	sessions := h.listSessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, "North", sessions[0].CourtName)
	assert.Equal(t, "Adjourned", sessions[0].Outcome)
	assert.Equal(t, models.StatusCompleted, sessions[0].Status)
}

func TestSessionPostpone(t *testing.T) {
	h := newHarness(t)
	added := h.addSession("--case", "7/2025", "--date", "2025-05-21", "--time", "10:00")

	out, err := h.run("session", "postpone", added.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "not saved")
	assert.Len(t, h.listSessions(), 1)

	_, err = h.run("session", "postpone", added.ID, "--date", "2025-06-10", "--time", "11:00")
	require.NoError(t, err)

	sessions := h.listSessions()
	require.Len(t, sessions, 2)
	assert.Equal(t, "2025-06-10", sessions[0].SessionDate)
	assert.Equal(t, "7/2025", sessions[0].CaseNumber)
	assert.Equal(t, "2025-05-21", sessions[1].SessionDate)
}

func TestSessionRm(t *testing.T) {
	h := newHarness(t)
	added := h.addSession("--case", "9/2025", "--date", "2025-05-21")

	_, err := h.run("session", "rm", added.ID)
	require.NoError(t, err)
	assert.Empty(t, h.listSessions())

	_, err = h.run("session", "rm", added.ID)
	require.ErrorIs(t, err, agenda.ErrSessionNotFound)

	_, err = h.run("session", "rm")
	require.Error(t, err)
}

func TestSessionTomorrow(t *testing.T) {
	h := newHarness(t)
	h.addSession("--case", "late", "--date", "2025-05-21", "--time", "14:00")
	h.addSession("--case", "early", "--date", "2025-05-21", "--time", "08:30")
	h.addSession("--case", "later-week", "--date", "2025-05-25")

	out, err := h.run("session", "tomorrow", "--format", "json")
	require.NoError(t, err)

	var sessions []models.CourtSession
	require.NoError(t, json.Unmarshal([]byte(out), &sessions))
	require.Len(t, sessions, 2)
	assert.Equal(t, "early", sessions[0].CaseNumber)
	assert.Equal(t, "late", sessions[1].CaseNumber)
}

func TestSettingsSet(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("settings", "set", "--notify-before", "48", "--morning=false")
	require.NoError(t, err)

	out, err := h.run("settings", "show", "--format", "json")
	require.NoError(t, err)

	var settings models.AlertSettings
	require.NoError(t, json.Unmarshal([]byte(out), &settings))
	assert.Equal(t, 48, settings.NotifyBefore)
	assert.False(t, settings.EnableMorning)
	assert.True(t, settings.EnableEvening)

	_, err = h.run("settings", "set", "--notify-before", "5")
	require.ErrorIs(t, err, agenda.ErrInvalidSettings)
}

func TestSettingsShow_YAML(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("settings", "show", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, out, "notifyBefore: 24")
}

func TestCheck_DispatchesOncePerWindow(t *testing.T) {
	h := newHarness(t)
	h.addSession("--case", "123/2025", "--date", "2025-05-21", "--time", "10:00")

	out, err := h.run("check", "--format", "json")
	require.NoError(t, err)

	var first checkOutput
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	assert.Equal(t, "dispatched", string(first.Outcome))
	assert.Equal(t, "2025-05-20_PM", first.Token)
	assert.Equal(t, 1, first.Due)
	assert.Contains(t, h.banner.String(), "Reminder: 1 court session within the next 24 hours.")

	out, err = h.run("check")
	require.NoError(t, err)
	assert.Contains(t, out, "already sent")
}

func TestCheck_OutsideWindow(t *testing.T) {
	h := newHarness(t)
	h.docket.Clock = clock.NewFake(time.Date(2025, 5, 20, 14, 0, 0, 0, time.UTC))

	out, err := h.run("check")
	require.NoError(t, err)
	assert.Contains(t, out, "Outside the reminder windows")
	assert.Empty(t, h.banner.String())
}

func TestCheck_ConfiguredWindows(t *testing.T) {
	h := newHarness(t)
	h.flags.Config.Scheduler.Windows.Morning = config.HourRangeConfig{Start: 13, End: 15}
	h.docket.Clock = clock.NewFake(time.Date(2025, 5, 20, 14, 0, 0, 0, time.UTC))
	h.addSession("--case", "123/2025", "--date", "2025-05-21", "--time", "10:00")

	out, err := h.run("check", "--format", "json")
	require.NoError(t, err)

	var result checkOutput
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, scheduler.OutcomeDispatched, result.Outcome)
	assert.Equal(t, "2025-05-20_AM", result.Token)
}

func TestTestNotify(t *testing.T) {
	h := newHarness(t)

	out, err := h.run("test-notify")
	require.NoError(t, err)
	assert.Contains(t, out, "banner")
	assert.Contains(t, h.banner.String(), "Test notification")
}

func TestAgendaImport(t *testing.T) {
	h := newHarness(t)

	path := filepath.Join(t.TempDir(), "sessions.csv")
	csv := "Case Number,Date,Time,Court\n" +
		"1/2025,2025-05-21,10:00,North\n" +
		"\n" +
		"2/2025,5/22/2025,2:30 PM,South\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	out, err := h.run("agenda", "import", "--dry-run", path)
	require.NoError(t, err)
	assert.Contains(t, out, "2 sessions would be imported")
	assert.Empty(t, h.listSessions())

	out, err = h.run("agenda", "import", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Imported 2 sessions")

	sessions := h.listSessions()
	require.Len(t, sessions, 2)
}

func TestAgendaImport_RejectsBadRows(t *testing.T) {
	h := newHarness(t)

	path := filepath.Join(t.TempDir(), "sessions.csv")
	csv := "case,date\n1/2025,2025-05-21\n2/2025,not-a-date\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	_, err := h.run("agenda", "import", path)
	require.Error(t, err)
	assert.Empty(t, h.listSessions())
}

func TestAgendaPrintAndICS(t *testing.T) {
	h := newHarness(t)
	h.addSession("--case", "123/2025", "--date", "2025-05-21", "--time", "10:00", "--court", "North")
	h.addSession("--case", "old", "--date", "2025-05-01")

	out, err := h.run("agenda", "print")
	require.NoError(t, err)
	assert.Contains(t, out, "2025-05-21")
	assert.Contains(t, out, "123/2025")
	assert.NotContains(t, out, "old")

	out, err = h.run("agenda", "ics")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "123/2025")

	path := filepath.Join(t.TempDir(), "agenda.ics")
	_, err = h.run("agenda", "ics", "--output", path)
	require.NoError(t, err)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "END:VCALENDAR")
}

func TestArchiveFlow(t *testing.T) {
	h := newHarness(t)
	pending := h.addSession("--case", "5/2025", "--date", "2025-05-19")
	decided := h.addSession("--case", "6/2025", "--date", "2025-05-19", "--client", "Acme", "--outcome", "Case dismissed")

	_, err := h.run("session", "archive", pending.ID)
	require.ErrorIs(t, err, agenda.ErrOutcomeRequired)

	_, err = h.run("session", "archive", decided.ID)
	require.NoError(t, err)

	out, err := h.run("archive", "ls", "--format", "json")
	require.NoError(t, err)
	var items []models.ArchiveItem
	require.NoError(t, json.Unmarshal([]byte(out), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "Session decision: 6/2025", items[0].Title)

	out, err = h.run("archive", "ls", "--query", "acme")
	require.NoError(t, err)
	assert.Contains(t, out, "6/2025")

	out, err = h.run("archive", "show", items[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "# Session decision: 6/2025")
	assert.Contains(t, out, "Case dismissed")

	out, err = h.run("archive", "folders")
	require.NoError(t, err)
	assert.Contains(t, out, "Acme")

	_, err = h.run("archive", "rm", items[0].ID)
	require.NoError(t, err)

	out, err = h.run("archive", "ls")
	require.NoError(t, err)
	assert.Contains(t, out, "No archived documents")
}

func TestBackupRoundTrip(t *testing.T) {
	h := newHarness(t)
	h.addSession("--case", "1/2025", "--date", "2025-05-21")
	decided := h.addSession("--case", "6/2025", "--date", "2025-05-19", "--client", "Acme", "--outcome", "Case dismissed")
	_, err := h.run("session", "archive", decided.ID)
	require.NoError(t, err)
	_, err = h.run("settings", "set", "--notify-before", "72")
	require.NoError(t, err)

	archived, err := h.docket.Archive.List(context.Background())
	require.NoError(t, err)
	require.Len(t, archived, 1)

	path := filepath.Join(t.TempDir(), "backup.json")
	_, err = h.run("backup", "export", "--output", path)
	require.NoError(t, err)

	other := newHarness(t)
	out, err := other.run("backup", "import", "--file", path)
	require.NoError(t, err)
	assert.Contains(t, out, "1 archived documents")

	sessions := other.listSessions()
	require.Len(t, sessions, 2)

	settings, err := other.docket.Agenda.Settings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 72, settings.NotifyBefore)

	items, err := other.docket.Archive.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, archived[0].ID, items[0].ID)
	assert.Equal(t, "Session decision: 6/2025", items[0].Title)
	assert.Contains(t, items[0].Content, "Case dismissed")
}

func TestBackupImport_ArchiveOnly(t *testing.T) {
	h := newHarness(t)

	path := filepath.Join(t.TempDir(), "backup.json")
	data := `{"legal_archive":[{"id":"doc-1","title":"Lease contract","caseNumber":"10/2025","type":"contract","content":"text","timestamp":"2025-05-01T10:00:00Z","tags":[]}]}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	_, err := h.run("backup", "import", "--file", path)
	require.NoError(t, err)

	item, err := h.docket.Archive.Get(context.Background(), "doc-1")
	require.NoError(t, err)
	assert.Equal(t, "Lease contract", item.Title)
	assert.Empty(t, h.listSessions())

	empty := filepath.Join(t.TempDir(), "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte(`{"unknown":1}`), 0o600))
	_, err = h.run("backup", "import", "--file", empty)
	require.Error(t, err)
}

func TestCommandsAlongsideRunningServe(t *testing.T) {
	h := newHarness(t)

	var serveBanner bytes.Buffer
	serve, err := app.New(h.flags.Config, zerolog.Nop(), &serveBanner)
	require.NoError(t, err)
	t.Cleanup(func() { _ = serve.Close() })
	serve.Clock = clock.NewFake(time.Date(2025, 5, 20, 17, 10, 0, 0, time.UTC))

	h.addSession("--case", "123/2025", "--date", "2025-05-21", "--time", "10:00")

	result := serve.NewScheduler().Tick(context.Background())
	assert.Equal(t, scheduler.OutcomeDispatched, result.Outcome)
	assert.Contains(t, serveBanner.String(), "Reminder: 1 court session")

	out, err := h.run("check")
	require.NoError(t, err)
	assert.Contains(t, out, "already sent")
	assert.Empty(t, h.banner.String())
}

func TestFormatFlag_RejectsUnknown(t *testing.T) {
	h := newHarness(t)

	_, err := h.run("session", "ls", "--format", "xml")
	require.Error(t, err)
}
