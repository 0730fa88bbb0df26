package notifier

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

var (
	bannerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#D97706")).
			Padding(0, 2)

	bannerTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#D97706"))

	bannerTimeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))
)

// BannerNotifier prints the reminder as a boxed banner, the terminal
// counterpart of the in-app alert bar.
type BannerNotifier struct {
	mu  sync.Mutex
	out io.Writer
	now func() time.Time
}

func NewBannerNotifier(out io.Writer) *BannerNotifier {
	return &BannerNotifier{out: out, now: time.Now}
}

func (b *BannerNotifier) GetType() string {
	return "banner"
}

func (b *BannerNotifier) Deliver(ctx context.Context, message string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	body := lipgloss.JoinVertical(lipgloss.Left,
		bannerTitleStyle.Render("Court session reminder"),
		message,
		bannerTimeStyle.Render(b.now().Format("Mon 2 Jan 15:04")),
	)

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, err := fmt.Fprintln(b.out, bannerStyle.Render(body)); err != nil {
		return fmt.Errorf("writing banner: %w", err)
	}
	return nil
}
