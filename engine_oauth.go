package authcore

import (
	"context"
	"errors"
	"fmt"
)

// LoginExternal signs in a principal from a completed upstream OAuth/OIDC assertion.
// The engine never sees provider tokens; the embedding application finishes the
// handshake and passes the verified identity here.
//
// Resolution is link-or-create: an existing principal with the provider subject wins;
// otherwise an existing account with the asserted email is linked to the provider;
// otherwise a fresh principal is created with the default role, no password, and the
// email already marked verified (the provider asserted the mailbox). From there the
// flow issues a token exactly like a password login: lockout state is untouched,
// session-record persistence is fire-and-forget.
func (e *Engine) LoginExternal(ctx context.Context, identity ExternalIdentity, rememberMe bool) (*LoginResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if identity.ProviderID == "" || identity.Email == "" {
		return nil, fmt.Errorf("%w: provider id and email are required", ErrValidation)
	}
	email := normalizeEmail(identity.Email)

	if ip := clientIPFromContext(ctx); ip != "" {
		if err := e.checkIPBan(ctx, ip, email); err != nil {
			return nil, err
		}
	}

	p, err := e.users.FindByExternalID(ctx, identity.ProviderID)
	switch {
	case err == nil:
	case errors.Is(err, ErrUserNotFound):
		p, err = e.resolveOrCreateExternal(ctx, identity, email)
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	if !p.IsActive {
		e.emitAudit(ctx, auditEventLoginBlocked, false, p.ID, email, "", ErrAccountInactive, nil)
		return nil, ErrAccountInactive
	}

	result, err := e.issueLogin(ctx, p, rememberMe)
	if err != nil {
		return nil, err
	}
	e.metricInc(MetricOAuthLogin)
	e.emitAudit(ctx, auditEventOAuthLogin, true, p.ID, email, result.SessionID, nil, nil)
	return result, nil
}

// resolveOrCreateExternal links the provider subject onto an existing account with the
// asserted email, or creates a new principal when no account exists.
func (e *Engine) resolveOrCreateExternal(ctx context.Context, identity ExternalIdentity, email string) (*Principal, error) {
	p, err := e.users.FindByEmail(ctx, email, LookupOptions{PopulateRole: true})
	if err == nil {
		p.ExternalID = identity.ProviderID
		if identity.AvatarURL != "" {
			p.AvatarURL = identity.AvatarURL
		}
		// Possession of the provider account proves the mailbox.
		p.IsEmailVerified = true
		p.OTP = nil
		if err := e.users.UpdateByID(ctx, p.ID, p); err != nil {
			return nil, err
		}
		return p, nil
	}
	if !errors.Is(err, ErrUserNotFound) {
		return nil, err
	}

	role, err := e.roles.FindByName(ctx, e.cfg.Account.DefaultRole)
	if err != nil {
		if errors.Is(err, ErrRoleNotFound) {
			return nil, fmt.Errorf("%w: %q", ErrRoleSeedMissing, e.cfg.Account.DefaultRole)
		}
		return nil, err
	}
	created, err := e.users.Create(ctx, &Principal{
		Email:           email,
		FirstName:       identity.FirstName,
		LastName:        identity.LastName,
		RoleID:          role.ID,
		RoleName:        role.Name,
		Provider:        ProviderOAuth,
		ExternalID:      identity.ProviderID,
		AvatarURL:       identity.AvatarURL,
		IsActive:        true,
		IsEmailVerified: true,
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}
