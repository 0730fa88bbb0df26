package main

import (
	"context"
	"fmt"
	"os"
	"runtime/debug"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/aweist/docket-watcher/app"
	"github.com/aweist/docket-watcher/commands"
	"github.com/aweist/docket-watcher/config"
	"github.com/aweist/docket-watcher/logging"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx := context.Background()

	var (
		logCloser func()
		docket    = &app.App{}
	)

	flags := &commands.Flags{}

	root := &cli.Command{
		Name:      "docket-watcher",
		Usage:     "Court session reminders for a law office",
		UsageText: "docket-watcher [global options] command [command options]",
		Description: `Docket watcher keeps the office's court sessions and reminds the team
about the ones coming up.

Run 'docket-watcher serve' to start the reminder scheduler. Reminders go out
at most once in the morning window and once in the evening window each day.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("DOCKET_LOG_LEVEL"),
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars("DOCKET_LOG_FILE"),
				Destination: &flags.LogFile,
			},
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("DOCKET_CONFIG"),
				Value:       config.DefaultConfigPath,
				Destination: &flags.ConfigPath,
			},
			&cli.StringFlag{
				Name:        "env-file",
				Usage:       "dotenv file loaded before the configuration",
				Sources:     cli.EnvVars("DOCKET_ENV_FILE"),
				Value:       ".env",
				Destination: &flags.EnvFile,
			},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			if err := config.LoadDotEnv(flags.EnvFile); err != nil {
				return ctx, fmt.Errorf("load env file: %w", err)
			}

			cfg, err := config.Load(flags.ConfigPath)
			if err != nil {
				return ctx, fmt.Errorf("load config: %w", err)
			}
			if err := cfg.Validate(); err != nil {
				return ctx, fmt.Errorf("invalid config: %w", err)
			}
			flags.Config = cfg

			level, file := cfg.Log.Level, cfg.Log.File
			if flags.LogLevel != "" {
				level = flags.LogLevel
			}
			if flags.LogFile != "" {
				file = flags.LogFile
			}

			logger, closer, err := logging.New(level, file)
			if err != nil {
				return ctx, fmt.Errorf("setup logger: %w", err)
			}
			log.Logger = logger
			logCloser = closer

			built, err := app.New(cfg, logger, c.Root().Writer)
			if err != nil {
				return ctx, err
			}

			// commands already hold a pointer to docket
			*docket = *built

			return ctx, nil
		},
		After: func(ctx context.Context, c *cli.Command) error {
			if err := docket.Close(); err != nil {
				log.Error().Err(err).Msg("failed to close stores")
				return err
			}

			if logCloser != nil {
				logCloser()
			}
			return nil
		},
	}

	root = commands.NewSessionCmd(flags, docket).Register(root)
	root = commands.NewSettingsCmd(flags, docket).Register(root)
	root = commands.NewAgendaCmd(flags, docket).Register(root)
	root = commands.NewArchiveCmd(flags, docket).Register(root)
	root = commands.NewCheckCmd(flags, docket).Register(root)
	root = commands.NewServeCmd(flags, docket).Register(root)
	root = commands.NewBackupCmd(flags, docket).Register(root)

	exitCode := 0
	if err := root.Run(ctx, os.Args); err != nil {
		fmt.Println()
		fmt.Println(err.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}
