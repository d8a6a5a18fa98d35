package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
)

func TestBreakerSinkOpensAfterConsecutiveFailures(t *testing.T) {
	calls := 0
	failing := SinkFunc(func(context.Context, Entry) error {
		calls++
		return errors.New("connection refused")
	})
	sink := NewBreakerSink(failing, nil)

	for i := 0; i < 5; i++ {
		err := sink.Write(context.Background(), Entry{Action: "x"})
		assert.Error(t, err)
		assert.False(t, errors.Is(err, ErrSinkUnavailable))
	}
	assert.Equal(t, gobreaker.StateOpen, sink.State())

	err := sink.Write(context.Background(), Entry{Action: "x"})
	assert.ErrorIs(t, err, ErrSinkUnavailable)
	assert.Equal(t, 5, calls, "open breaker must not call the sink")
}

func TestBreakerSinkPassesThroughSuccess(t *testing.T) {
	inner := &memorySink{}
	sink := NewBreakerSink(inner, nil)
	assert.NoError(t, sink.Write(context.Background(), Entry{Action: "ok"}))
	assert.Len(t, inner.entries, 1)
	assert.Equal(t, gobreaker.StateClosed, sink.State())
}
