package notify

import (
	"context"
	"fmt"

	"github.com/gen2brain/beeep"
)

// beeepNotifier implements Notifier using the cross-platform beeep library.
type beeepNotifier struct {
	config Config
	send   func(title, message string) error
}

func newBeeepNotifier(config Config) *beeepNotifier {
	return &beeepNotifier{
		config: config,
		send: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

// Send shows the notification. beeep blocks on some platforms, so the call
// runs in its own goroutine and Send gives up after the configured timeout.
func (n *beeepNotifier) Send(ctx context.Context, notification Notification) error {
	if n.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.config.Timeout)
		defer cancel()
	}

	title := notification.Title
	if n.config.AppName != "" {
		title = n.config.AppName + ": " + title
	}

	done := make(chan error, 1)
	go func() {
		done <- n.send(title, notification.Message)
	}()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("%w: %w", ErrNotificationFailed, err)
		}
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrTimeout, ctx.Err())
	}
}

// Close is a no-op for beeep.
func (n *beeepNotifier) Close() error {
	return nil
}
