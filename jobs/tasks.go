package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
	"github.com/hibiken/asynq"

	"github.com/opanel/backoffice/internal/audit"
	jobmetrics "github.com/opanel/backoffice/internal/jobs"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// QueueAudit carries audit entries waiting to be persisted.
	QueueAudit = "audit"
	// TaskAuditRecord persists one audit entry.
	TaskAuditRecord = "audit:record"
	// TaskSessionsPrune removes expired login sessions.
	TaskSessionsPrune = "sessions:prune"
)

// AuditPayload is the queued form of an audit entry.
type AuditPayload struct {
	ActorID   int64          `json:"actor_id"`
	ActorName string         `json:"actor_name"`
	Action    string         `json:"action"`
	Target    string         `json:"target"`
	Before    map[string]any `json:"before,omitempty"`
	After     map[string]any `json:"after,omitempty"`
	Memo      string         `json:"memo,omitempty"`
	At        time.Time      `json:"at"`
	IP        string         `json:"ip,omitempty"`
	UserAgent string         `json:"user_agent,omitempty"`
	Host      string         `json:"host,omitempty"`
	RequestID string         `json:"request_id"`
}

func payloadFromEntry(e audit.Entry) AuditPayload {
	return AuditPayload{
		ActorID: e.ActorID, ActorName: e.ActorName, Action: e.Action, Target: e.Target,
		Before: e.Before, After: e.After, Memo: e.Memo, At: e.At,
		IP: e.IP, UserAgent: e.UserAgent, Host: e.Host, RequestID: e.RequestID,
	}
}

// Entry converts the payload back to an audit entry.
func (p AuditPayload) Entry() audit.Entry {
	return audit.Entry{
		ActorID: p.ActorID, ActorName: p.ActorName, Action: p.Action, Target: p.Target,
		Before: p.Before, After: p.After, Memo: p.Memo, At: p.At,
		IP: p.IP, UserAgent: p.UserAgent, Host: p.Host, RequestID: p.RequestID,
	}
}

// NewAuditRecordTask constructs an audit persistence task. The entry must
// already be redacted.
func NewAuditRecordTask(entry audit.Entry) (*asynq.Task, error) {
	data, err := json.Marshal(payloadFromEntry(entry))
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskAuditRecord, data), nil
}

// AuditRecordJob drains queued entries into a sink.
type AuditRecordJob struct {
	sink    audit.Sink
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
}

// NewAuditRecordJob constructs the handler. metrics may be nil.
func NewAuditRecordJob(sink audit.Sink, logger *slog.Logger, metrics *jobmetrics.Metrics) *AuditRecordJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditRecordJob{sink: sink, metrics: metrics, logger: logger}
}

// Handle processes TaskAuditRecord tasks. Malformed payloads are not retried.
func (j *AuditRecordJob) Handle(ctx context.Context, t *asynq.Task) error {
	tracker := j.metrics.Track("audit_record")
	var payload AuditPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		j.logger.Error("decode audit payload", slog.Any("error", err))
		return tracker.End(fmt.Errorf("decode audit payload: %v: %w", err, asynq.SkipRetry))
	}
	if err := j.sink.Write(ctx, payload.Entry()); err != nil {
		j.logger.Warn("persist audit entry", slog.String("request_id", payload.RequestID), slog.Any("error", err))
		return tracker.End(err)
	}
	j.metrics.AddAffected("audit_record", 1)
	return tracker.End(nil)
}

// SessionPruner deletes login session rows that expired before a cutoff.
type SessionPruner interface {
	PruneExpired(ctx context.Context, before time.Time) (int64, error)
}

// PruneSessionsJob removes expired admin_sessions rows.
type PruneSessionsJob struct {
	pruner  SessionPruner
	metrics *jobmetrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruneSessionsJob constructs the handler. metrics may be nil.
func NewPruneSessionsJob(pruner SessionPruner, logger *slog.Logger, metrics *jobmetrics.Metrics) *PruneSessionsJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &PruneSessionsJob{pruner: pruner, metrics: metrics, logger: logger, now: time.Now}
}

// NewPruneSessionsTask builds the periodic prune task.
func NewPruneSessionsTask() *asynq.Task {
	return asynq.NewTask(TaskSessionsPrune, nil)
}

// Handle processes TaskSessionsPrune tasks.
func (j *PruneSessionsJob) Handle(ctx context.Context, _ *asynq.Task) error {
	tracker := j.metrics.Track("sessions_prune")
	removed, err := j.pruner.PruneExpired(ctx, j.now())
	if err != nil {
		return tracker.End(err)
	}
	j.metrics.AddAffected("sessions_prune", removed)
	j.logger.Info("pruned expired sessions", slog.Int64("removed", removed))
	return tracker.End(nil)
}
