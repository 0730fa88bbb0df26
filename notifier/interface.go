package notifier

import (
	"context"
)

// Notifier delivers a short reminder message through one out-of-band channel.
// Implementations must return promptly once ctx is done.
type Notifier interface {
	Deliver(ctx context.Context, message string) error
	GetType() string
}
