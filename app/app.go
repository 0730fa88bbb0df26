// Package app wires the stores, services and notifier described by the
// configuration into one value shared by every command.
package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"

	"github.com/aweist/docket-watcher/agenda"
	"github.com/aweist/docket-watcher/archive"
	"github.com/aweist/docket-watcher/clock"
	"github.com/aweist/docket-watcher/config"
	"github.com/aweist/docket-watcher/logging"
	"github.com/aweist/docket-watcher/notifier"
	"github.com/aweist/docket-watcher/scheduler"
	"github.com/aweist/docket-watcher/storage"
	"github.com/aweist/docket-watcher/web"
)

type App struct {
	Config   *config.Config
	Store    *storage.BoltStorage
	Archive  *archive.Store
	Agenda   *agenda.Service
	Notifier *notifier.Multi
	Guard    *scheduler.DedupGuard
	Clock    clock.Clock
	Logger   zerolog.Logger
}

// New opens the stores named in cfg. Banner reminders are written to out.
func New(cfg *config.Config, log zerolog.Logger, out io.Writer) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("resolving timezone: %w", err)
	}
	clk := clock.Real{Location: loc}

	store, err := storage.NewBoltStorage(cfg.Storage.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	arch, err := archive.NewStore(cfg.Storage.ArchivePath)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("opening archive: %w", err)
	}

	n, err := BuildNotifier(cfg, logging.Component(log, "notifier"), out)
	if err != nil {
		_ = store.Close()
		_ = arch.Close()
		return nil, err
	}

	return &App{
		Config:   cfg,
		Store:    store,
		Archive:  arch,
		Agenda:   agenda.NewService(store, arch, clk, logging.Component(log, "agenda")),
		Notifier: n,
		Guard:    scheduler.NewDedupGuard(store),
		Clock:    clk,
		Logger:   log,
	}, nil
}

// BuildNotifier assembles the configured channels into one fan-out notifier.
func BuildNotifier(cfg *config.Config, log zerolog.Logger, out io.Writer) (*notifier.Multi, error) {
	var channels []notifier.Notifier

	for _, name := range cfg.Notify.Channels {
		switch name {
		case config.ChannelDesktop:
			perm, err := notifier.ParsePermission(cfg.Notify.Desktop.Permission)
			if err != nil {
				return nil, err
			}
			channels = append(channels, notifier.NewDesktopNotifier(cfg.Notify.Desktop.Title, notifier.StaticPermission(perm)))
		case config.ChannelBanner:
			channels = append(channels, notifier.NewBannerNotifier(out))
		case config.ChannelEmail:
			email := cfg.Notify.Email
			var agendaURL string
			if cfg.Web.Enabled {
				agendaURL = "http://" + cfg.Web.Addr + "/agenda"
			}
			channels = append(channels, notifier.NewEmailNotifier(notifier.EmailConfig{
				SMTPHost:   email.SMTPHost,
				SMTPPort:   email.SMTPPort,
				Username:   email.Username,
				Password:   email.Password,
				From:       email.From,
				Recipients: email.Recipients,
				AgendaURL:  agendaURL,
			}))
		case config.ChannelWebhook:
			channels = append(channels, notifier.NewWebhookNotifier(cfg.Notify.Webhook.URL, cfg.Notify.Timeout))
		default:
			return nil, fmt.Errorf("unknown notification channel %q", name)
		}
	}

	return notifier.NewMulti(log, channels...), nil
}

// NewScheduler builds the reminder scheduler over the app's stores.
func (a *App) NewScheduler() *scheduler.Scheduler {
	return scheduler.New(scheduler.Config{
		Sessions:        a.Store,
		Guard:           a.Guard,
		Notifier:        a.Notifier,
		History:         a.Store,
		Clock:           a.Clock,
		Windows:         a.Config.Windows(),
		Interval:        a.Config.Scheduler.Interval,
		Slack:           a.Config.Scheduler.Slack,
		DeliveryTimeout: a.Config.Notify.Timeout,
		Logger:          logging.Component(a.Logger, "scheduler"),
	})
}

// NewWebServer builds the HTTP server. sched may be nil.
func (a *App) NewWebServer(sched web.StatusSource) *web.Server {
	return web.NewServer(web.Config{
		Addr:      a.Config.Web.Addr,
		Agenda:    a.Agenda,
		Archive:   a.Archive,
		Scheduler: sched,
		Store:     a.Store,
		Notifier:  a.Notifier,
		Clock:     a.Clock,
		Windows:   a.Config.Windows(),
		Logger:    logging.Component(a.Logger, "web"),
	})
}

func (a *App) Close() error {
	var errs []error
	if a.Archive != nil {
		errs = append(errs, a.Archive.Close())
	}
	if a.Store != nil {
		errs = append(errs, a.Store.Close())
	}
	return errors.Join(errs...)
}
