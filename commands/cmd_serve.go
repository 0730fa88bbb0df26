package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/aweist/docket-watcher/app"
)

type ServeCmd struct {
	flags *Flags
	app   *app.App

	// flags
	web  bool
	addr string
}

// NewServeCmd creates a new serve command
func NewServeCmd(flags *Flags, docket *app.App) *ServeCmd {
	return &ServeCmd{flags: flags, app: docket}
}

// Register adds the serve command to the application
func (cmd *ServeCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:  "serve",
		Usage: "Run the reminder scheduler (and optionally the web UI)",
		Description: `Evaluates the reminder windows every scheduler.interval and sends at most
one reminder per window per day. Runs until interrupted.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "web",
				Usage:       "also serve the HTTP API and printable agenda",
				Sources:     cli.EnvVars("DOCKET_WEB__ENABLED"),
				Destination: &cmd.web,
			},
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address for the web server",
				Destination: &cmd.addr,
			},
		},
		Action: cmd.run,
	})
	return root
}

func (cmd *ServeCmd) run(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log := cmd.app.Logger
	sched := cmd.app.NewScheduler()

	webEnabled := cmd.app.Config.Web.Enabled
	if c.IsSet("web") {
		webEnabled = cmd.web
	}
	if cmd.addr != "" {
		cmd.app.Config.Web.Addr = cmd.addr
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return sched.Run(ctx)
	})

	if webEnabled {
		srv := cmd.app.NewWebServer(sched)
		g.Go(func() error {
			return srv.Start(ctx)
		})
	}

	log.Info().
		Str("channels", cmd.app.Notifier.GetType()).
		Bool("web", webEnabled).
		Msg("docket watcher running")

	err := g.Wait()
	log.Info().Msg("docket watcher stopped")
	return err
}
