package authcore

import (
	"context"
	"errors"

	"github.com/zvincent07/authcore/internal/limiters"
)

// SecurityReport is a point-in-time posture snapshot for one (ip, email) pair: the ban
// record (if any), the current failure streak, and the thresholds in force.
//
// SecurityReport instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type SecurityReport struct {
	IP                string
	Email             string
	Privileged        bool
	Ban               *limiters.BannedIP
	FailedAttempts    int64
	AttemptsRemaining int64
}

// SecurityStatus assembles the report backing support tooling ("why can't this user log
// in"). It reads the transient stores only and mutates nothing.
func (e *Engine) SecurityStatus(ctx context.Context, ip, email string) (*SecurityReport, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	email = normalizeEmail(email)
	privileged := e.isPrivilegedEmail(email)
	report := &SecurityReport{
		IP:         ip,
		Email:      email,
		Privileged: privileged,
	}

	ban, err := e.bans.Lookup(ctx, ip)
	switch {
	case err == nil:
		report.Ban = ban
	case errors.Is(err, limiters.ErrNotBanned):
	default:
		return nil, err
	}

	attempts, err := e.lockout.Attempts(ctx, ip, email)
	if err != nil {
		return nil, err
	}
	report.FailedAttempts = attempts
	remaining := e.lockout.Threshold(privileged) - attempts
	if remaining < 0 {
		remaining = 0
	}
	report.AttemptsRemaining = remaining
	return report, nil
}
