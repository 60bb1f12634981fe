package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zvincent07/authcore"
)

// AuditStore appends audit events to the audit_log table. It implements
// authcore.AuditSink: insert failures are swallowed, because audit is observational and
// must never feed back into flows.
type AuditStore struct {
	pool *pgxpool.Pool
}

// NewAuditStore describes the new audit store operation and its observable behavior.
//
// NewAuditStore does not mutate shared global state and can be used concurrently when
// the receiver and dependencies are concurrently safe.
func NewAuditStore(pool *pgxpool.Pool) *AuditStore {
	return &AuditStore{pool: pool}
}

// Emit describes the emit operation and its observable behavior.
//
// Emit does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (s *AuditStore) Emit(ctx context.Context, event authcore.AuditEvent) {
	if s == nil || s.pool == nil {
		return
	}
	var metadata []byte
	if len(event.Metadata) > 0 {
		metadata, _ = json.Marshal(event.Metadata)
	}
	_, _ = s.pool.Exec(ctx, `
		INSERT INTO audit_log (
			occurred_at, event_type, user_id, email, session_id,
			ip, user_agent, success, error_code, metadata
		) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''),
			NULLIF($6, ''), NULLIF($7, ''), $8, NULLIF($9, ''), $10)`,
		event.Timestamp, event.EventType, event.UserID, event.Email, event.SessionID,
		event.IP, event.UserAgent, event.Success, string(event.ErrorCode), metadata,
	)
}
