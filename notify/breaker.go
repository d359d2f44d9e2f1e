package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jongio/composeguard/logutil"
	"github.com/sony/gobreaker"
)

// defaultBreakerTimeout is how long notifications stay paused once tripped.
const defaultBreakerTimeout = time.Minute

// ErrSuppressed is returned while repeated failures keep the notifier paused.
var ErrSuppressed = errors.New("notifications paused after repeated failures")

// breakerNotifier stops calling the wrapped notifier after consecutive
// failures, then lets a single probe through once the timeout expires.
type breakerNotifier struct {
	next    Notifier
	breaker *gobreaker.CircuitBreaker
}

func newBreakerNotifier(next Notifier, config Config) *breakerNotifier {
	failures := config.BreakerFailures
	settings := gobreaker.Settings{
		Name:        config.AppName,
		MaxRequests: 1,
		Timeout:     config.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return failures > 0 && counts.ConsecutiveFailures >= uint32(failures)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logutil.Debug("notification breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}
	return &breakerNotifier{next: next, breaker: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerNotifier) Send(ctx context.Context, notification Notification) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.next.Send(ctx, notification)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrSuppressed, err)
	}
	return err
}

func (b *breakerNotifier) Close() error {
	return b.next.Close()
}

// state is exposed for tests.
func (b *breakerNotifier) state() gobreaker.State {
	return b.breaker.State()
}
