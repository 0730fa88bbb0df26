package commands

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/aweist/docket-watcher/app"
	"github.com/aweist/docket-watcher/models"
)

type SettingsCmd struct {
	flags *Flags
	app   *app.App

	// flags
	format       string
	notifyBefore int
	morning      bool
	evening      bool
}

// NewSettingsCmd creates a new settings command
func NewSettingsCmd(flags *Flags, docket *app.App) *SettingsCmd {
	return &SettingsCmd{flags: flags, app: docket}
}

// Register adds the settings command to the application
func (cmd *SettingsCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:  "settings",
		Usage: "Show or change reminder settings",
		Commands: []*cli.Command{
			{
				Name:   "show",
				Usage:  "Show the reminder settings",
				Flags:  []cli.Flag{formatFlag(&cmd.format)},
				Action: cmd.runShow,
			},
			{
				Name:  "set",
				Usage: "Change reminder settings",
				Description: `Only the given flags are changed.

Reminders fire in the morning window (09:00-12:00) and the evening window
(17:00-18:00), at most once per window per day, for sessions starting within
the notify-before horizon.`,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:        "notify-before",
						Usage:       "reminder horizon in hours (24, 48 or 72)",
						Destination: &cmd.notifyBefore,
					},
					&cli.BoolFlag{
						Name:        "morning",
						Usage:       "enable the morning reminder window",
						Destination: &cmd.morning,
					},
					&cli.BoolFlag{
						Name:        "evening",
						Usage:       "enable the evening reminder window",
						Destination: &cmd.evening,
					},
					formatFlag(&cmd.format),
				},
				Action: cmd.runSet,
			},
		},
	})
	return root
}

func (cmd *SettingsCmd) runShow(ctx context.Context, c *cli.Command) error {
	settings, err := cmd.app.Agenda.Settings(ctx)
	if err != nil {
		return err
	}
	return cmd.print(c.Root().Writer, settings)
}

func (cmd *SettingsCmd) runSet(ctx context.Context, c *cli.Command) error {
	settings, err := cmd.app.Agenda.Settings(ctx)
	if err != nil {
		return err
	}

	if c.IsSet("notify-before") {
		settings.NotifyBefore = cmd.notifyBefore
	}
	if c.IsSet("morning") {
		settings.EnableMorning = cmd.morning
	}
	if c.IsSet("evening") {
		settings.EnableEvening = cmd.evening
	}

	if err := cmd.app.Agenda.SaveSettings(ctx, settings); err != nil {
		return err
	}
	return cmd.print(c.Root().Writer, settings)
}

func (cmd *SettingsCmd) print(out io.Writer, settings models.AlertSettings) error {
	if done, err := writeStructured(out, cmd.format, settings); done {
		return err
	}

	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Notify before:\t%d hours\n", settings.NotifyBefore)
	_, _ = fmt.Fprintf(w, "Morning window:\t%s\n", onOff(settings.EnableMorning))
	_, _ = fmt.Fprintf(w, "Evening window:\t%s\n", onOff(settings.EnableEvening))
	return w.Flush()
}
