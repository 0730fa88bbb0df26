package notifier

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
)

// Permission mirrors the OS-level notification permission. The notifier only
// reads it; granting or revoking happens outside this program.
type Permission string

const (
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
	PermissionDefault Permission = "default"
)

func ParsePermission(s string) (Permission, error) {
	switch p := Permission(strings.ToLower(strings.TrimSpace(s))); p {
	case PermissionGranted, PermissionDenied, PermissionDefault:
		return p, nil
	case "":
		return PermissionDefault, nil
	default:
		return "", fmt.Errorf("unknown notification permission %q", s)
	}
}

// PermissionSource reports the current notification permission.
type PermissionSource interface {
	Permission() Permission
}

// StaticPermission is a fixed PermissionSource, usually taken from config.
type StaticPermission Permission

func (p StaticPermission) Permission() Permission { return Permission(p) }

var ErrPermissionDenied = errors.New("desktop notifications are not permitted")

type commandRunner func(ctx context.Context, name string, args ...string) error

// DesktopNotifier raises an OS notification with notify-send on Linux and
// osascript on macOS.
type DesktopNotifier struct {
	title      string
	permission PermissionSource
	goos       string
	run        commandRunner
}

func NewDesktopNotifier(title string, permission PermissionSource) *DesktopNotifier {
	if permission == nil {
		permission = StaticPermission(PermissionDefault)
	}
	return &DesktopNotifier{
		title:      title,
		permission: permission,
		goos:       runtime.GOOS,
		run:        runCommand,
	}
}

func (d *DesktopNotifier) GetType() string {
	return "desktop"
}

// Deliver is not attempted when the permission is denied.
func (d *DesktopNotifier) Deliver(ctx context.Context, message string) error {
	if d.permission.Permission() == PermissionDenied {
		return ErrPermissionDenied
	}

	name, args, err := d.command(message)
	if err != nil {
		return err
	}

	if err := d.run(ctx, name, args...); err != nil {
		return fmt.Errorf("showing desktop notification: %w", err)
	}
	return nil
}

func (d *DesktopNotifier) command(message string) (string, []string, error) {
	switch d.goos {
	case "linux", "freebsd", "openbsd":
		return "notify-send", []string{"--app-name=docket-watcher", d.title, message}, nil
	case "darwin":
		script := fmt.Sprintf("display notification %s with title %s",
			strconv.Quote(message), strconv.Quote(d.title))
		return "osascript", []string{"-e", script}, nil
	default:
		return "", nil, fmt.Errorf("desktop notifications are not supported on %s", d.goos)
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	c := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	c.Stderr = &stderr

	if err := c.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %s", name, msg)
		}
		return fmt.Errorf("%s failed: %w", name, err)
	}
	return nil
}
