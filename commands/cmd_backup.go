package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/aweist/docket-watcher/app"
	"github.com/aweist/docket-watcher/models"
	"github.com/aweist/docket-watcher/storage"
)

// archiveKey names the archive collection inside a backup snapshot, next to
// the store's own document keys.
const archiveKey = "legal_archive"

type BackupCmd struct {
	flags *Flags
	app   *app.App

	// flags
	output string
	file   string
}

// NewBackupCmd creates a new backup command
func NewBackupCmd(flags *Flags, docket *app.App) *BackupCmd {
	return &BackupCmd{flags: flags, app: docket}
}

// Register adds the backup command to the application
func (cmd *BackupCmd) Register(root *cli.Command) *cli.Command {
	root.Commands = append(root.Commands, &cli.Command{
		Name:  "backup",
		Usage: "Export or restore sessions, settings, scheduler state and the archive",
		Commands: []*cli.Command{
			{
				Name:  "export",
				Usage: "Write all stored documents as JSON",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "output",
						Aliases:     []string{"f"},
						Usage:       "file to write (stdout if not provided)",
						Destination: &cmd.output,
					},
				},
				Action: cmd.runExport,
			},
			{
				Name:  "import",
				Usage: "Restore documents from a JSON export",
				Description: `Documents present in the export overwrite the stored ones; documents
missing from it are left untouched.`,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:        "file",
						Aliases:     []string{"f"},
						Usage:       "path to JSON file (reads from stdin if not provided)",
						Destination: &cmd.file,
					},
				},
				Action: cmd.runImport,
			},
		},
	})
	return root
}

func (cmd *BackupCmd) runExport(ctx context.Context, c *cli.Command) error {
	docs, err := cmd.app.Store.Export()
	if err != nil {
		return fmt.Errorf("exporting store: %w", err)
	}

	items, err := cmd.app.Archive.List(ctx)
	if err != nil {
		return fmt.Errorf("exporting archive: %w", err)
	}
	if items == nil {
		items = []models.ArchiveItem{}
	}
	archived, err := json.Marshal(items)
	if err != nil {
		return err
	}
	docs[archiveKey] = archived

	data, err := json.MarshalIndent(docs, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')

	if cmd.output == "" {
		_, err := c.Root().Writer.Write(data)
		return err
	}

	if err := os.WriteFile(cmd.output, data, 0o600); err != nil {
		return fmt.Errorf("writing %s: %w", cmd.output, err)
	}
	_, _ = fmt.Fprintf(c.Root().Writer, "Exported %d documents to %s\n", len(docs), cmd.output)
	return nil
}

func (cmd *BackupCmd) runImport(ctx context.Context, c *cli.Command) error {
	var reader io.Reader

	if cmd.file != "" {
		f, err := os.Open(cmd.file)
		if err != nil {
			return fmt.Errorf("open file: %w", err)
		}
		defer func() { _ = f.Close() }()
		reader = f
	} else {
		if term.IsTerminal(int(os.Stdin.Fd())) {
			return fmt.Errorf("no input provided (stdin is a terminal); use -f flag or pipe JSON input")
		}
		reader = os.Stdin
	}

	var docs map[string]json.RawMessage
	if err := json.NewDecoder(reader).Decode(&docs); err != nil {
		return fmt.Errorf("decode JSON: %w", err)
	}

	var (
		items      []models.ArchiveItem
		hasArchive bool
	)
	if raw, ok := docs[archiveKey]; ok {
		if err := json.Unmarshal(raw, &items); err != nil {
			return fmt.Errorf("decoding %s: %w", archiveKey, err)
		}
		hasArchive = true
		delete(docs, archiveKey)
	}

	hasStore := false
	for _, key := range []string{storage.KeySessions, storage.KeyAlertSettings, storage.KeyLastAlert} {
		if _, ok := docs[key]; ok {
			hasStore = true
		}
	}
	if !hasStore && !hasArchive {
		return fmt.Errorf("backup contains no known documents")
	}

	if hasStore {
		if err := cmd.app.Store.Import(docs); err != nil {
			return fmt.Errorf("importing store: %w", err)
		}
	}
	if hasArchive {
		if err := cmd.app.Archive.Restore(ctx, items); err != nil {
			return fmt.Errorf("importing archive: %w", err)
		}
	}

	_, _ = fmt.Fprintf(c.Root().Writer, "Backup restored (%d archived documents)\n", len(items))
	return nil
}
