package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// Multi fans a message out to every channel. Delivery succeeds if at least one
// channel accepted the message; otherwise the joined channel errors are
// returned. Partial failures are logged.
type Multi struct {
	notifiers []Notifier
	log       zerolog.Logger
}

func NewMulti(log zerolog.Logger, notifiers ...Notifier) *Multi {
	return &Multi{notifiers: notifiers, log: log}
}

func (m *Multi) GetType() string {
	types := make([]string, 0, len(m.notifiers))
	for _, n := range m.notifiers {
		types = append(types, n.GetType())
	}
	return "multi(" + strings.Join(types, ",") + ")"
}

func (m *Multi) Deliver(ctx context.Context, message string) error {
	if len(m.notifiers) == 0 {
		return ErrNoChannels
	}

	var errs []error
	delivered := 0
	for _, n := range m.notifiers {
		if err := n.Deliver(ctx, message); err != nil {
			m.log.Warn().Err(err).Str("channel", n.GetType()).Msg("reminder delivery failed")
			errs = append(errs, fmt.Errorf("%s: %w", n.GetType(), err))
			continue
		}
		delivered++
	}

	if delivered > 0 {
		return nil
	}

	return errors.Join(errs...)
}

var ErrNoChannels = errors.New("no notification channels configured")
