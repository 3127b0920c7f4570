package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wolfman30/contact-relay/pkg/logging"
)

// ErrNoChannels is returned by an empty Fanout.
var ErrNoChannels = errors.New("notify: no notification channels configured")

type channel struct {
	name     string
	notifier Notifier
}

// Fanout delivers a message to every channel in order. Delivery counts as
// successful when at least one channel accepted the message.
type Fanout struct {
	channels []channel
	logger   *logging.Logger
	timeout  time.Duration
}

// NewFanout creates an empty fanout.
func NewFanout(logger *logging.Logger) *Fanout {
	if logger == nil {
		logger = logging.Default()
	}
	return &Fanout{logger: logger}
}

// Add registers a channel. Callers must not pass typed-nil notifiers.
func (f *Fanout) Add(name string, n Notifier) *Fanout {
	if n != nil {
		f.channels = append(f.channels, channel{name: name, notifier: n})
	}
	return f
}

// WithTimeout bounds each channel's delivery attempt.
func (f *Fanout) WithTimeout(d time.Duration) *Fanout {
	f.timeout = d
	return f
}

// Len reports the number of registered channels.
func (f *Fanout) Len() int {
	if f == nil {
		return 0
	}
	return len(f.channels)
}

// Notify tries every channel sequentially and joins the failures.
func (f *Fanout) Notify(ctx context.Context, msg Message) error {
	if f.Len() == 0 {
		return ErrNoChannels
	}
	var errs []error
	delivered := 0
	for _, ch := range f.channels {
		if err := f.send(ctx, ch, msg); err != nil {
			f.logger.Warn("notification channel failed", "channel", ch.name, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", ch.name, err))
			continue
		}
		delivered++
	}
	if delivered > 0 {
		return nil
	}
	return errors.Join(errs...)
}

func (f *Fanout) send(ctx context.Context, ch channel, msg Message) error {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	return ch.notifier.Notify(ctx, msg)
}

var _ Notifier = (*Fanout)(nil)
