package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

const writeTimeout = 3 * time.Second

// FailureObserver counts entries that could not be written.
type FailureObserver interface {
	AuditWriteFailed()
}

// Recorder stamps, redacts and forwards entries to a Sink. Write failures
// are logged and never reach the caller.
type Recorder struct {
	sink     Sink
	logger   *slog.Logger
	failures FailureObserver
	now      func() time.Time
}

// NewRecorder constructs a Recorder. failures may be nil.
func NewRecorder(sink Sink, logger *slog.Logger, failures FailureObserver) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{sink: sink, logger: logger, failures: failures, now: time.Now}
}

// Record writes entry. It is safe to call on a nil Recorder.
func (r *Recorder) Record(ctx context.Context, entry Entry) {
	if r == nil || r.sink == nil {
		return
	}
	entry = r.prepare(ctx, entry)

	// The entry outlives a cancelled or timed out request.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
	defer cancel()

	if err := r.write(writeCtx, entry); err != nil {
		r.logger.Error("audit write failed",
			slog.String("action", entry.Action),
			slog.String("target", entry.Target),
			slog.Int64("actor_id", entry.ActorID),
			slog.String("request_id", entry.RequestID),
			slog.Any("error", err),
		)
		if r.failures != nil {
			r.failures.AuditWriteFailed()
		}
	}
}

func (r *Recorder) prepare(ctx context.Context, entry Entry) Entry {
	if entry.At.IsZero() {
		entry.At = r.now().UTC()
	}
	if meta, ok := MetaFromContext(ctx); ok {
		if entry.IP == "" {
			entry.IP = meta.IP
		}
		if entry.UserAgent == "" {
			entry.UserAgent = meta.UserAgent
		}
		if entry.Host == "" {
			entry.Host = meta.Host
		}
		if entry.RequestID == "" {
			entry.RequestID = meta.RequestID
		}
	}
	if entry.RequestID == "" {
		entry.RequestID = uuid.NewString()
	}
	entry.Before = Redact(entry.Before)
	entry.After = Redact(entry.After)
	return entry
}

func (r *Recorder) write(ctx context.Context, entry Entry) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("audit: sink panic: %v", rec)
		}
	}()
	return r.sink.Write(ctx, entry)
}

// LogSink writes entries to a structured logger.
type LogSink struct {
	Logger *slog.Logger
}

// Write implements Sink.
func (s LogSink) Write(ctx context.Context, entry Entry) error {
	logger := s.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "audit",
		slog.Int64("actor_id", entry.ActorID),
		slog.String("actor", entry.ActorName),
		slog.String("action", entry.Action),
		slog.String("target", entry.Target),
		slog.Any("before", entry.Before),
		slog.Any("after", entry.After),
		slog.String("memo", entry.Memo),
		slog.String("ip", entry.IP),
		slog.String("request_id", entry.RequestID),
	)
	return nil
}

// Fanout writes to every sink and returns the first error.
type Fanout []Sink

// Write implements Sink.
func (f Fanout) Write(ctx context.Context, entry Entry) error {
	var first error
	for _, sink := range f {
		if err := sink.Write(ctx, entry); err != nil && first == nil {
			first = err
		}
	}
	return first
}
