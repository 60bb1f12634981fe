package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/zvincent07/authcore/session"
)

// Sessions lists the caller's session records, most recently active first. The record
// matching currentSessionID (usually taken from the caller's own token) is flagged
// Current. Secret material never appears in the result.
func (e *Engine) Sessions(ctx context.Context, userID, currentSessionID string) ([]SessionInfo, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if e.sessions == nil {
		return nil, nil
	}
	records, err := e.sessions.ListForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return session.Infos(records, currentSessionID), nil
}

// TerminateSession deactivates one of the caller's sessions. A session that does not
// exist, is already inactive, or belongs to someone else fails with ErrSessionNotFound;
// ownership is enforced in the store, not trusted from the caller.
func (e *Engine) TerminateSession(ctx context.Context, userID, sessionID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.sessions == nil {
		return ErrSessionNotFound
	}
	if err := e.sessions.Terminate(ctx, userID, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	e.metricInc(MetricSessionTerminated)
	e.emitAudit(ctx, auditEventSessionTerminated, true, userID, "", sessionID, nil, nil)
	return nil
}

// TerminateOtherSessions deactivates every session of the caller except the one backing
// the presented token, and returns how many it closed. The anchor session must itself
// be alive; otherwise ErrCurrentSessionNotFound is returned and nothing changes.
func (e *Engine) TerminateOtherSessions(ctx context.Context, token string) (int, error) {
	if err := e.ready(); err != nil {
		return 0, err
	}
	if e.sessions == nil {
		return 0, ErrCurrentSessionNotFound
	}
	claims, err := e.tokens.Parse(token)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	closed, err := e.sessions.TerminateAllExcept(ctx, claims.UserID, claims.SessionID)
	if err != nil {
		if errors.Is(err, session.ErrCurrentNotFound) {
			return 0, ErrCurrentSessionNotFound
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	for i := 0; i < closed; i++ {
		e.metricInc(MetricSessionTerminated)
	}
	e.emitAudit(ctx, auditEventSessionsTerminated, true, claims.UserID, "", claims.SessionID, nil, func() map[string]string {
		return map[string]string{"closed": fmt.Sprintf("%d", closed)}
	})
	return closed, nil
}
