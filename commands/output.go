package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#1E3A5F"))
	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))
	warnStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#D97706"))
)

func formatFlag(dest *string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:        "format",
		Aliases:     []string{"o"},
		Usage:       "output format (table, json, yaml)",
		Value:       formatTable,
		Destination: dest,
		Validator: func(s string) error {
			switch s {
			case formatTable, formatJSON, formatYAML:
				return nil
			}
			return fmt.Errorf("unknown format %q", s)
		},
	}
}

// writeStructured encodes v as JSON or YAML. It reports false for the table
// format so the caller renders its own table.
func writeStructured(w io.Writer, format string, v any) (bool, error) {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(toYAMLValue(v)); err != nil {
			return true, err
		}
		return true, enc.Close()
	default:
		return false, nil
	}
}

// toYAMLValue routes v through JSON so YAML keys follow the json tags.
func toYAMLValue(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func styled(w io.Writer, style lipgloss.Style, s string) string {
	if !isTTY(w) {
		return s
	}
	return style.Render(s)
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
