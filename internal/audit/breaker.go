package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
)

// ErrSinkUnavailable is returned while the breaker is open.
var ErrSinkUnavailable = errors.New("audit: sink unavailable")

// BreakerSink stops calling a failing sink for a cool-down period so an
// unreachable database does not slow every request down.
type BreakerSink struct {
	next Sink
	cb   *gobreaker.CircuitBreaker[any]
}

// NewBreakerSink wraps next. The breaker opens after five consecutive
// failures and probes again after thirty seconds.
func NewBreakerSink(next Sink, logger *slog.Logger) *BreakerSink {
	if logger == nil {
		logger = slog.Default()
	}
	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "audit-sink",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("audit breaker state change",
				slog.String("breaker", name),
				slog.String("from", from.String()),
				slog.String("to", to.String()),
			)
		},
	})
	return &BreakerSink{next: next, cb: cb}
}

// Write implements Sink.
func (b *BreakerSink) Write(ctx context.Context, entry Entry) error {
	_, err := b.cb.Execute(func() (any, error) {
		return nil, b.next.Write(ctx, entry)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return errors.Join(ErrSinkUnavailable, err)
	}
	return err
}

// State exposes the breaker state for health reporting.
func (b *BreakerSink) State() gobreaker.State {
	return b.cb.State()
}
