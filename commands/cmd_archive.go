package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/urfave/cli/v3"

	"github.com/aweist/docket-watcher/app"
	"github.com/aweist/docket-watcher/models"
)

type ArchiveCmd struct {
	flags *Flags
	app   *app.App

	// flags
	format string
	query  string
	raw    bool
}

// NewArchiveCmd creates a new archive command
func NewArchiveCmd(flags *Flags, docket *app.App) *ArchiveCmd {
	return &ArchiveCmd{flags: flags, app: docket}
}

// Register adds the archive command to the application
func (cmd *ArchiveCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:  "archive",
		Usage: "Browse archived documents",
		Commands: []*cli.Command{
			{
				Name:  "ls",
				Usage: "List archived documents, newest first",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "query",
						Aliases:     []string{"q"},
						Usage:       "match title, case number or client",
						Destination: &cmd.query,
					},
					formatFlag(&cmd.format),
				},
				Action: cmd.runLs,
			},
			{
				Name:      "show",
				Usage:     "Show one archived document",
				UsageText: "docket-watcher archive show <id>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:        "raw",
						Usage:       "print markdown without rendering",
						Destination: &cmd.raw,
					},
				},
				Action: cmd.runShow,
			},
			{
				Name:   "folders",
				Usage:  "List case folders",
				Flags:  []cli.Flag{formatFlag(&cmd.format)},
				Action: cmd.runFolders,
			},
			{
				Name:      "rm",
				Usage:     "Delete an archived document",
				UsageText: "docket-watcher archive rm <id>",
				Action:    cmd.runRm,
			},
		},
	})
	return root
}

func (cmd *ArchiveCmd) runLs(ctx context.Context, c *cli.Command) error {
	items, err := cmd.app.Archive.Search(ctx, cmd.query)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	if items == nil {
		items = []models.ArchiveItem{}
	}
	if done, err := writeStructured(out, cmd.format, items); done {
		return err
	}

	if len(items) == 0 {
		_, _ = fmt.Fprintln(out, styled(out, mutedStyle, "No archived documents"))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tCREATED\tTYPE\tCASE\tTITLE")
	for _, item := range items {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			item.ID, item.CreatedAt.Format("2006-01-02 15:04"), item.Type, orDash(item.CaseNumber), item.Title)
	}
	return w.Flush()
}

func (cmd *ArchiveCmd) runShow(ctx context.Context, c *cli.Command) error {
	id, err := requireArg(c, "document id")
	if err != nil {
		return err
	}

	item, err := cmd.app.Archive.Get(ctx, id)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	md := itemMarkdown(item)
	if cmd.raw || !isTTY(out) {
		_, err := io.WriteString(out, md)
		return err
	}

	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err != nil {
		return fmt.Errorf("creating markdown renderer: %w", err)
	}
	rendered, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("rendering document: %w", err)
	}
	_, err = io.WriteString(out, rendered)
	return err
}

func itemMarkdown(item models.ArchiveItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title)
	if item.CaseNumber != "" {
		fmt.Fprintf(&b, "- **Case:** %s\n", item.CaseNumber)
	}
	if item.ClientName != "" {
		fmt.Fprintf(&b, "- **Client:** %s\n", item.ClientName)
	}
	fmt.Fprintf(&b, "- **Type:** %s\n", item.Type)
	fmt.Fprintf(&b, "- **Filed:** %s\n", item.CreatedAt.Format("2006-01-02 15:04"))
	if len(item.Tags) > 0 {
		fmt.Fprintf(&b, "- **Tags:** %s\n", strings.Join(item.Tags, ", "))
	}
	b.WriteString("\n---\n\n")
	for _, line := range strings.Split(strings.TrimRight(item.Content, "\n"), "\n") {
		// two trailing spaces keep line breaks in markdown
		b.WriteString(line + "  \n")
	}
	return b.String()
}

func (cmd *ArchiveCmd) runFolders(ctx context.Context, c *cli.Command) error {
	folders, err := cmd.app.Archive.Folders(ctx)
	if err != nil {
		return err
	}

	out := c.Root().Writer
	if folders == nil {
		folders = []models.CaseFolder{}
	}
	if done, err := writeStructured(out, cmd.format, folders); done {
		return err
	}

	if len(folders) == 0 {
		_, _ = fmt.Fprintln(out, styled(out, mutedStyle, "No case folders"))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "CASE\tCLIENT\tDOCUMENTS\tLAST UPDATED")
	for _, f := range folders {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			f.CaseNumber, orDash(f.ClientName), len(f.Items), f.LastUpdated.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func (cmd *ArchiveCmd) runRm(ctx context.Context, c *cli.Command) error {
	id, err := requireArg(c, "document id")
	if err != nil {
		return err
	}
	if err := cmd.app.Archive.Delete(ctx, id); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "Deleted document %s\n", id)
	return nil
}
