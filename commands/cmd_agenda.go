package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/urfave/cli/v3"

	"github.com/aweist/docket-watcher/app"
	"github.com/aweist/docket-watcher/models"
	"github.com/aweist/docket-watcher/notifier"
	"github.com/aweist/docket-watcher/parser"
)

type AgendaCmd struct {
	flags *Flags
	app   *app.App

	// flags
	format string
	output string
	dryRun bool
}

// NewAgendaCmd creates a new agenda command
func NewAgendaCmd(flags *Flags, docket *app.App) *AgendaCmd {
	return &AgendaCmd{flags: flags, app: docket}
}

// Register adds the agenda command to the application
func (cmd *AgendaCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:  "agenda",
		Usage: "Print, export or import the session agenda",
		Commands: []*cli.Command{
			{
				Name:   "print",
				Usage:  "Print upcoming sessions grouped by day",
				Flags:  []cli.Flag{formatFlag(&cmd.format)},
				Action: cmd.runPrint,
			},
			{
				Name:  "ics",
				Usage: "Export upcoming sessions as an iCalendar file",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "output",
						Aliases:     []string{"f"},
						Usage:       "file to write (stdout if not provided)",
						Destination: &cmd.output,
					},
				},
				Action: cmd.runICS,
			},
			{
				Name:      "import",
				Usage:     "Import sessions from a CSV file",
				UsageText: "docket-watcher agenda import [--dry-run] <file.csv>",
				Description: `The first row must name the columns. Recognised headers include
case, date, time, court, circuit, location, lawyer, client, opponent, notes
and outcome. Dates may be YYYY-MM-DD or M/D/YYYY.

Nothing is imported if any row is invalid.`,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "dry-run",
						Usage:       "parse and validate without saving",
						Destination: &cmd.dryRun,
					},
				},
				Action: cmd.runImport,
			},
		},
	})
	return root
}

func (cmd *AgendaCmd) runPrint(ctx context.Context, c *cli.Command) error {
	now := cmd.app.Clock.Now()
	sessions, err := cmd.app.Agenda.Upcoming(ctx, now)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	if sessions == nil {
		sessions = []models.CourtSession{}
	}
	if done, err := writeStructured(out, cmd.format, sessions); done {
		return err
	}

	_, _ = fmt.Fprintln(out, styled(out, titleStyle, "Court session agenda"))
	_, _ = fmt.Fprintln(out, styled(out, mutedStyle, "Generated "+now.Format("Monday, January 2, 2006 15:04")))

	if len(sessions) == 0 {
		_, _ = fmt.Fprintln(out, "\nNo upcoming court sessions.")
		return nil
	}

	for i := 0; i < len(sessions); {
		day := sessions[i].SessionDate
		j := i
		for j < len(sessions) && sessions[j].SessionDate == day {
			j++
		}
		printAgendaDay(out, day, sessions[i:j])
		i = j
	}
	return nil
}

func printAgendaDay(out io.Writer, day string, sessions []models.CourtSession) {
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, styled(out, titleStyle, day))

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TIME\tCASE\tCOURT\tCIRCUIT\tCLIENT\tOPPONENT\tLAWYER")
	for _, s := range sessions {
		clock := s.SessionTime
		if clock == "" {
			clock = models.DefaultSessionTime
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			clock, s.CaseNumber, orDash(s.CourtName), orDash(s.Circuit),
			orDash(s.ClientName), orDash(s.OpponentName), orDash(s.LawyerName))
	}
	_ = w.Flush()
}

func (cmd *AgendaCmd) runICS(ctx context.Context, c *cli.Command) error {
	now := cmd.app.Clock.Now()
	sessions, err := cmd.app.Agenda.Upcoming(ctx, now)
	if err != nil {
		return err
	}

	ics := notifier.GenerateICS(sessions, now.Location(), now)

	if cmd.output == "" {
		_, err := io.WriteString(c.Root().Writer, ics)
		return err
	}

	if err := os.WriteFile(cmd.output, []byte(ics), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", cmd.output, err)
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "Wrote %d sessions to %s\n", len(sessions), cmd.output)
	return nil
}

func (cmd *AgendaCmd) runImport(ctx context.Context, c *cli.Command) error {
	path, err := requireArg(c, "CSV file")
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	sessions, err := parser.NewCSVParser().ParseSessions(f)
	if err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}

	out := c.Root().Writer
	if cmd.dryRun {
		_, _ = fmt.Fprintf(out, "%d sessions would be imported\n", len(sessions))
		writeSessionTable(out, sessions)
		return nil
	}

	added, err := cmd.app.Agenda.AddAll(ctx, sessions)
	if err != nil {
		return err
	}

	_, _ = fmt.Fprintf(out, "Imported %d sessions\n", len(added))
	return nil
}
