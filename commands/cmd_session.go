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

type SessionCmd struct {
	flags *Flags
	app   *app.App

	// flags
	format   string
	upcoming bool
	fields   sessionFields
}

// sessionFields backs the per-field flags shared by add, edit and postpone.
type sessionFields struct {
	caseNumber, lawyer, court, circuit, location string
	client, opponent, date, time, notes, outcome  string
	status                                        string
}

// NewSessionCmd creates a new session command
func NewSessionCmd(flags *Flags, docket *app.App) *SessionCmd {
	return &SessionCmd{flags: flags, app: docket}
}

// Register adds the session command to the application
func (cmd *SessionCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:  "session",
		Usage: "Manage court sessions",
		Description: `Add, list, edit, postpone and delete court sessions.

A session with a recorded outcome can be filed in the archive with
'session archive <id>'.`,
		Commands: []*cli.Command{
			cmd.addCmd(),
			cmd.lsCmd(),
			cmd.editCmd(),
			cmd.postponeCmd(),
			cmd.rmCmd(),
			cmd.archiveCmd(),
			cmd.tomorrowCmd(),
		},
	})
	return root
}

func (cmd *SessionCmd) fieldFlags() []cli.Flag {
	f := &cmd.fields
	return []cli.Flag{
		&cli.StringFlag{Name: "case", Usage: "case number", Destination: &f.caseNumber},
		&cli.StringFlag{Name: "date", Usage: "session date (YYYY-MM-DD)", Destination: &f.date},
		&cli.StringFlag{Name: "time", Usage: "session time (HH:MM)", Destination: &f.time},
		&cli.StringFlag{Name: "court", Usage: "court name", Destination: &f.court},
		&cli.StringFlag{Name: "circuit", Usage: "circuit or chamber", Destination: &f.circuit},
		&cli.StringFlag{Name: "location", Usage: "hall or room", Destination: &f.location},
		&cli.StringFlag{Name: "lawyer", Usage: "lawyer attending", Destination: &f.lawyer},
		&cli.StringFlag{Name: "client", Usage: "client name", Destination: &f.client},
		&cli.StringFlag{Name: "opponent", Usage: "opposing party", Destination: &f.opponent},
		&cli.StringFlag{Name: "notes", Usage: "free-form notes", Destination: &f.notes},
		&cli.StringFlag{Name: "outcome", Usage: "decision taken at the session", Destination: &f.outcome},
		&cli.StringFlag{Name: "status", Usage: "upcoming, urgent or completed", Destination: &f.status},
	}
}

// apply overwrites the fields of s whose flags were given on the command line.
func (cmd *SessionCmd) apply(c *cli.Command, s models.CourtSession) models.CourtSession {
	f := cmd.fields
	set := func(name string, dst *string, v string) {
		if c.IsSet(name) {
			*dst = v
		}
	}
	set("case", &s.CaseNumber, f.caseNumber)
	set("date", &s.SessionDate, f.date)
	set("time", &s.SessionTime, f.time)
	set("court", &s.CourtName, f.court)
	set("circuit", &s.Circuit, f.circuit)
	set("location", &s.Location, f.location)
	set("lawyer", &s.LawyerName, f.lawyer)
	set("client", &s.ClientName, f.client)
	set("opponent", &s.OpponentName, f.opponent)
	set("notes", &s.Notes, f.notes)
	set("outcome", &s.Outcome, f.outcome)
	if c.IsSet("status") {
		s.Status = models.SessionStatus(f.status)
	}
	return s
}

func (cmd *SessionCmd) addCmd() *cli.Command {
	return &cli.Command{
		Name:      "add",
		Usage:     "Add a court session",
		UsageText: "docket-watcher session add --case 123/2025 --date 2025-05-21 [--time 10:00] [options]",
		Flags:     append(cmd.fieldFlags(), formatFlag(&cmd.format)),
		Action: func(ctx context.Context, c *cli.Command) error {
			added, err := cmd.app.Agenda.Add(ctx, cmd.apply(c, models.CourtSession{}))
			if err != nil {
				return err
			}
			return cmd.printOne(c.Root().Writer, "Added session", added)
		},
	}
}

func (cmd *SessionCmd) lsCmd() *cli.Command {
	return &cli.Command{
		Name:  "ls",
		Usage: "List court sessions",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "upcoming",
				Usage:       "only sessions that have not started yet, soonest first",
				Destination: &cmd.upcoming,
			},
			formatFlag(&cmd.format),
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			var (
				sessions []models.CourtSession
				err      error
			)
			if cmd.upcoming {
				sessions, err = cmd.app.Agenda.Upcoming(ctx, cmd.app.Clock.Now())
			} else {
				sessions, err = cmd.app.Agenda.List(ctx)
			}
			if err != nil {
				return err
			}
			return cmd.printList(c.Root().Writer, sessions)
		},
	}
}

func (cmd *SessionCmd) editCmd() *cli.Command {
	return &cli.Command{
		Name:      "edit",
		Usage:     "Change fields of a session",
		UsageText: "docket-watcher session edit <id> [--outcome ...] [options]",
		Flags:     append(cmd.fieldFlags(), formatFlag(&cmd.format)),
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := requireArg(c, "session id")
			if err != nil {
				return err
			}

			current, err := cmd.app.Agenda.Get(ctx, id)
			if err != nil {
				return err
			}

			updated, err := cmd.app.Agenda.Edit(ctx, id, cmd.apply(c, current))
			if err != nil {
				return err
			}
			return cmd.printOne(c.Root().Writer, "Updated session", updated)
		},
	}
}

func (cmd *SessionCmd) postponeCmd() *cli.Command {
	return &cli.Command{
		Name:      "postpone",
		Usage:     "Prepare the next hearing of a postponed session",
		UsageText: "docket-watcher session postpone <id> [--date 2025-06-10 --time 10:00]",
		Description: `Builds a new session for the same case with the schedule and outcome cleared
and a note pointing at the previous date. The original session is not
changed.

Without --date the draft is only printed. With --date it is saved.`,
		Flags: append(cmd.fieldFlags(), formatFlag(&cmd.format)),
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := requireArg(c, "session id")
			if err != nil {
				return err
			}

			draft, err := cmd.app.Agenda.Postpone(ctx, id)
			if err != nil {
				return err
			}
			draft = cmd.apply(c, draft)

			if draft.SessionDate == "" {
				return cmd.printOne(c.Root().Writer, "Draft (not saved, pass --date to save)", draft)
			}

			added, err := cmd.app.Agenda.Add(ctx, draft)
			if err != nil {
				return err
			}
			return cmd.printOne(c.Root().Writer, "Added postponed session", added)
		},
	}
}

func (cmd *SessionCmd) rmCmd() *cli.Command {
	return &cli.Command{
		Name:      "rm",
		Usage:     "Delete a session permanently",
		UsageText: "docket-watcher session rm <id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := requireArg(c, "session id")
			if err != nil {
				return err
			}
			if err := cmd.app.Agenda.Delete(ctx, id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.Root().Writer, "Deleted session %s\n", id)
			return nil
		},
	}
}

func (cmd *SessionCmd) archiveCmd() *cli.Command {
	return &cli.Command{
		Name:      "archive",
		Usage:     "File the decision of a session in the archive",
		UsageText: "docket-watcher session archive <id>",
		Action: func(ctx context.Context, c *cli.Command) error {
			id, err := requireArg(c, "session id")
			if err != nil {
				return err
			}
			item, err := cmd.app.Agenda.TransferToArchive(ctx, id)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(c.Root().Writer, "Archived %q as %s\n", item.Title, item.ID)
			return nil
		},
	}
}

func (cmd *SessionCmd) tomorrowCmd() *cli.Command {
	return &cli.Command{
		Name:  "tomorrow",
		Usage: "List tomorrow's sessions",
		Flags: []cli.Flag{formatFlag(&cmd.format)},
		Action: func(ctx context.Context, c *cli.Command) error {
			sessions, err := cmd.app.Agenda.Tomorrow(ctx, cmd.app.Clock.Now())
			if err != nil {
				return err
			}
			out := c.Root().Writer
			if cmd.format == formatTable {
				_, _ = fmt.Fprintln(out, styled(out, titleStyle, "Tomorrow's sessions"))
			}
			return cmd.printList(out, sessions)
		},
	}
}

func (cmd *SessionCmd) printList(out io.Writer, sessions []models.CourtSession) error {
	if sessions == nil {
		sessions = []models.CourtSession{}
	}
	if done, err := writeStructured(out, cmd.format, sessions); done {
		return err
	}

	if len(sessions) == 0 {
		_, _ = fmt.Fprintln(out, styled(out, mutedStyle, "No sessions found"))
		return nil
	}

	writeSessionTable(out, sessions)
	return nil
}

func (cmd *SessionCmd) printOne(out io.Writer, title string, s models.CourtSession) error {
	if done, err := writeStructured(out, cmd.format, s); done {
		return err
	}

	_, _ = fmt.Fprintln(out, styled(out, titleStyle, title))
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, row := range [][2]string{
		{"ID", s.ID},
		{"Case", s.CaseNumber},
		{"Date", s.SessionDate},
		{"Time", s.SessionTime},
		{"Court", s.CourtName},
		{"Circuit", s.Circuit},
		{"Location", s.Location},
		{"Lawyer", s.LawyerName},
		{"Client", s.ClientName},
		{"Opponent", s.OpponentName},
		{"Status", string(s.Status)},
		{"Notes", s.Notes},
		{"Outcome", s.Outcome},
	} {
		_, _ = fmt.Fprintf(w, "%s:\t%s\n", row[0], orDash(row[1]))
	}
	return w.Flush()
}

func writeSessionTable(out io.Writer, sessions []models.CourtSession) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tDATE\tTIME\tCASE\tCOURT\tCLIENT\tSTATUS")
	for _, s := range sessions {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, orDash(s.SessionDate), orDash(s.SessionTime), s.CaseNumber,
			orDash(s.CourtName), orDash(s.ClientName), s.Status)
	}
	_ = w.Flush()
}

func requireArg(c *cli.Command, name string) (string, error) {
	v := c.Args().First()
	if v == "" {
		return "", fmt.Errorf("missing %s argument", name)
	}
	return v, nil
}
