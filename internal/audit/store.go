package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists entries into admin_audit_logs.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore constructs a PGStore.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const insertEntrySQL = `INSERT INTO admin_audit_logs
    (actor_id, actor_name, action, target, before_data, after_data, memo, ip, user_agent, host, request_id, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

// Write implements Sink.
func (s *PGStore) Write(ctx context.Context, entry Entry) error {
	before, err := EncodeSnapshot(entry.Before)
	if err != nil {
		return fmt.Errorf("audit: encode before: %w", err)
	}
	after, err := EncodeSnapshot(entry.After)
	if err != nil {
		return fmt.Errorf("audit: encode after: %w", err)
	}
	at := entry.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	_, err = s.pool.Exec(ctx, insertEntrySQL,
		entry.ActorID, entry.ActorName, entry.Action, entry.Target,
		before, after, entry.Memo,
		entry.IP, entry.UserAgent, entry.Host, entry.RequestID, at,
	)
	if err != nil {
		return fmt.Errorf("audit: insert entry: %w", err)
	}
	return nil
}

// EncodeSnapshot serialises a before/after map for a JSONB column. A nil
// map is stored as NULL.
func EncodeSnapshot(data map[string]any) ([]byte, error) {
	if data == nil {
		return nil, nil
	}
	return json.Marshal(data)
}

const timelineSQL = `SELECT occurred_at, actor_id, actor_name, action, target, memo, ip, request_id
FROM admin_audit_logs
WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
  AND ($2::timestamptz IS NULL OR occurred_at < $2)
  AND ($3::text IS NULL OR actor_name ILIKE '%' || $3 || '%')
  AND ($4::text IS NULL OR action = $4)
  AND ($5::text IS NULL OR target ILIKE '%' || $5 || '%')
ORDER BY occurred_at DESC, id DESC
OFFSET $6 LIMIT $7`

// TimelineWindow implements TimelineRepository.
func (s *PGStore) TimelineWindow(ctx context.Context, q TimelineQuery) ([]TimelineRow, error) {
	rows, err := s.pool.Query(ctx, timelineSQL,
		toPgTime(q.From), toPgTime(q.To),
		optionalText(q.Actor), optionalText(q.Action), optionalText(q.Target),
		q.Offset, q.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline query: %w", err)
	}
	defer rows.Close()

	var out []TimelineRow
	for rows.Next() {
		var row TimelineRow
		if err := rows.Scan(&row.At, &row.ActorID, &row.ActorName, &row.Action, &row.Target, &row.Memo, &row.IP, &row.RequestID); err != nil {
			return nil, fmt.Errorf("audit: timeline scan: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func toPgTime(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: t, Valid: true}
}

func optionalText(value string) pgtype.Text {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: trimmed, Valid: true}
}
