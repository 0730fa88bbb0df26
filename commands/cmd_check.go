package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/aweist/docket-watcher/app"
	"github.com/aweist/docket-watcher/scheduler"
)

type CheckCmd struct {
	flags *Flags
	app   *app.App

	// flags
	format string
}

// NewCheckCmd creates a new check command
func NewCheckCmd(flags *Flags, docket *app.App) *CheckCmd {
	return &CheckCmd{flags: flags, app: docket}
}

// Register adds the check and test-notify commands to the application
func (cmd *CheckCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands,
		&cli.Command{
			Name:  "check",
			Usage: "Evaluate the reminder windows once",
			Description: `Runs a single scheduler tick now, exactly as 'serve' does every minute.
A reminder already sent for the current window is not sent again.`,
			Flags:  []cli.Flag{formatFlag(&cmd.format)},
			Action: cmd.runCheck,
		},
		&cli.Command{
			Name:   "test-notify",
			Usage:  "Send a test message through every configured channel",
			Action: cmd.runTestNotify,
		},
	)
	return root
}

type checkOutput struct {
	Outcome       scheduler.Outcome `json:"outcome"`
	Token         string            `json:"token,omitempty"`
	Due           int               `json:"due"`
	Message       string            `json:"message,omitempty"`
	DeliveryError string            `json:"deliveryError,omitempty"`
}

func (cmd *CheckCmd) runCheck(ctx context.Context, c *cli.Command) error {
	result := cmd.app.NewScheduler().Tick(ctx)
	if result.Err != nil && result.Outcome == scheduler.OutcomeError {
		return result.Err
	}

	out := checkOutput{
		Outcome: result.Outcome,
		Token:   result.Token,
		Due:     result.Due,
		Message: result.Message,
	}
	if result.DeliveryErr != nil {
		out.DeliveryError = result.DeliveryErr.Error()
	}

	w := c.Root().Writer
	if done, err := writeStructured(w, cmd.format, out); done {
		return err
	}

	printCheck(w, out)
	return nil
}

func printCheck(w io.Writer, out checkOutput) {
	switch out.Outcome {
	case scheduler.OutcomeNoWindow:
		_, _ = fmt.Fprintln(w, "Outside the reminder windows, nothing to do")
	case scheduler.OutcomeAlreadyFired:
		_, _ = fmt.Fprintf(w, "Reminder for %s was already sent\n", out.Token)
	case scheduler.OutcomeNothingDue:
		_, _ = fmt.Fprintf(w, "No sessions due in window %s\n", out.Token)
	case scheduler.OutcomeDispatched:
		_, _ = fmt.Fprintf(w, "%s (%s)\n", out.Message, out.Token)
		if out.DeliveryError != "" {
			_, _ = fmt.Fprintln(w, styled(w, warnStyle, "Delivery failed: "+out.DeliveryError))
		}
	default:
		_, _ = fmt.Fprintf(w, "Tick outcome: %s\n", out.Outcome)
	}
}

func (cmd *CheckCmd) runTestNotify(ctx context.Context, c *cli.Command) error {
	ctx, cancel := context.WithTimeout(ctx, cmd.app.Config.Notify.Timeout)
	defer cancel()

	if err := cmd.app.Notifier.Deliver(ctx, "Test notification: court session reminders are working."); err != nil {
		return fmt.Errorf("test notification failed: %w", err)
	}

	_, _ = fmt.Fprintf(c.Root().Writer, "Test notification sent via %s\n", cmd.app.Notifier.GetType())
	return nil
}
