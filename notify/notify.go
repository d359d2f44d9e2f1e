// Package notify sends desktop notifications when a watched compose file
// gets less secure.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jongio/composeguard/rules"
)

// Notification represents a notification to be displayed.
type Notification struct {
	// Title is the notification title, usually the watched file name.
	Title   string
	Message string
	// Severity is the most severe finding that caused the notification.
	Severity  rules.Severity
	Timestamp time.Time
}

// Notifier sends notifications to the OS.
type Notifier interface {
	Send(ctx context.Context, notification Notification) error
	Close() error
}

// Config contains notification system configuration.
type Config struct {
	// AppName prefixes every title.
	AppName string
	// Timeout bounds a single Send.
	Timeout time.Duration
	// BreakerFailures is the number of consecutive failed sends that pause
	// notifications. Zero never pauses.
	BreakerFailures int
	// BreakerTimeout is how long notifications stay paused.
	BreakerTimeout time.Duration
}

// DefaultConfig returns default notification configuration.
func DefaultConfig() Config {
	return Config{
		AppName:         "composeguard",
		Timeout:         5 * time.Second,
		BreakerFailures: 3,
		BreakerTimeout:  defaultBreakerTimeout,
	}
}

// New creates the desktop notifier. Sends go through a circuit breaker so a
// session without a notification daemon does not retry on every save.
func New(config Config) (Notifier, error) {
	return newBreakerNotifier(newBeeepNotifier(config), config), nil
}

var (
	ErrNotificationFailed = errors.New("failed to send notification")
	ErrTimeout            = errors.New("notification timeout")
)

// ScoreDrop builds the notification for a score that went from prev to curr.
// ok is false when the score did not drop.
func ScoreDrop(name string, prev, curr int, counts rules.Counts) (n Notification, ok bool) {
	if curr >= prev {
		return Notification{}, false
	}

	var worst rules.Severity
	for _, s := range rules.Severities {
		if counts.Of(s) > 0 {
			worst = s
			break
		}
	}

	return Notification{
		Title:     name,
		Message:   fmt.Sprintf("Security score dropped from %d to %d (%d findings)", prev, curr, counts.Total()),
		Severity:  worst,
		Timestamp: time.Now(),
	}, true
}
