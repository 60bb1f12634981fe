package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/zvincent07/authcore"
)

const principalColumns = `
	id, email, password_hash, first_name, last_name, role_id, provider,
	COALESCE(external_id, ''), COALESCE(avatar_url, ''),
	is_active, is_email_verified,
	otp_code, otp_expires_at, reset_token_hash, reset_expires_at,
	last_login, deleted_at, created_at, updated_at`

// Store implements authcore.CredentialStore and authcore.RoleStore on a pgx connection
// pool. The pool is owned by the caller; Store never closes it.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore describes the new store operation and its observable behavior.
//
// NewStore does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Ping describes the ping operation and its observable behavior.
//
// Ping may return an error when input validation, dependency calls, or security checks
// fail. Ping does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return nil
}

func scanPrincipal(row pgx.Row) (*authcore.Principal, error) {
	var (
		p            authcore.Principal
		provider     string
		otpCode      *string
		otpExpires   *time.Time
		resetHash    *string
		resetExpires *time.Time
	)
	err := row.Scan(
		&p.ID, &p.Email, &p.PasswordHash, &p.FirstName, &p.LastName, &p.RoleID, &provider,
		&p.ExternalID, &p.AvatarURL,
		&p.IsActive, &p.IsEmailVerified,
		&otpCode, &otpExpires, &resetHash, &resetExpires,
		&p.LastLogin, &p.DeletedAt, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	p.Provider = authcore.Provider(provider)
	if otpCode != nil && otpExpires != nil {
		p.OTP = &authcore.OTPChallenge{Code: *otpCode, ExpiresAt: *otpExpires}
	}
	if resetHash != nil && resetExpires != nil {
		p.Reset = &authcore.ResetChallenge{TokenHash: *resetHash, ExpiresAt: *resetExpires}
	}
	return &p, nil
}

// finish applies the lookup options to a scanned row: strips secrets that were not
// requested and resolves the role relation.
func (s *Store) finish(ctx context.Context, p *authcore.Principal, opts authcore.LookupOptions) (*authcore.Principal, error) {
	role, err := s.findRoleByID(ctx, p.RoleID)
	if err != nil {
		if !errors.Is(err, authcore.ErrRoleNotFound) {
			return nil, err
		}
	} else {
		p.RoleName = role.Name
		if opts.PopulateRole {
			p.Role = role
		}
	}
	if !opts.IncludeSecrets {
		p.PasswordHash = ""
		p.OTP = nil
		p.Reset = nil
	}
	return p, nil
}

// FindByEmail describes the find by email operation and its observable behavior.
//
// FindByEmail may return an error when input validation, dependency calls, or security
// checks fail. FindByEmail does not mutate shared global state and can be used
// concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindByEmail(ctx context.Context, email string, opts authcore.LookupOptions) (*authcore.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals
		WHERE lower(email) = lower($1) AND (deleted_at IS NULL OR $2)
		ORDER BY deleted_at NULLS FIRST LIMIT 1`
	p, err := scanPrincipal(s.pool.QueryRow(ctx, query, email, opts.IncludeDeleted))
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, p, opts)
}

// FindByID describes the find by id operation and its observable behavior.
//
// FindByID may return an error when input validation, dependency calls, or security
// checks fail. FindByID does not mutate shared global state and can be used concurrently
// when the receiver and dependencies are concurrently safe.
func (s *Store) FindByID(ctx context.Context, id string, opts authcore.LookupOptions) (*authcore.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals
		WHERE id = $1 AND (deleted_at IS NULL OR $2)`
	p, err := scanPrincipal(s.pool.QueryRow(ctx, query, id, opts.IncludeDeleted))
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, p, opts)
}

// FindByExternalID describes the find by external id operation and its observable behavior.
//
// FindByExternalID may return an error when input validation, dependency calls, or
// security checks fail. FindByExternalID does not mutate shared global state and can be
// used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindByExternalID(ctx context.Context, externalID string) (*authcore.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals
		WHERE external_id = $1 AND deleted_at IS NULL`
	p, err := scanPrincipal(s.pool.QueryRow(ctx, query, externalID))
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, p, authcore.LookupOptions{IncludeSecrets: true, PopulateRole: true})
}

// FindByResetTokenHash describes the find by reset token hash operation and its
// observable behavior.
//
// FindByResetTokenHash may return an error when input validation, dependency calls, or
// security checks fail. FindByResetTokenHash does not mutate shared global state and can
// be used concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) FindByResetTokenHash(ctx context.Context, tokenHash string) (*authcore.Principal, error) {
	query := `SELECT ` + principalColumns + ` FROM principals
		WHERE reset_token_hash = $1 AND deleted_at IS NULL`
	p, err := scanPrincipal(s.pool.QueryRow(ctx, query, tokenHash))
	if err != nil {
		return nil, err
	}
	return s.finish(ctx, p, authcore.LookupOptions{IncludeSecrets: true, PopulateRole: true})
}

// Create describes the create operation and its observable behavior.
//
// Create may return an error when input validation, dependency calls, or security checks
// fail. Create does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (s *Store) Create(ctx context.Context, p *authcore.Principal) (*authcore.Principal, error) {
	record := *p
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	var otpCode *string
	var otpExpires *time.Time
	if record.OTP != nil {
		otpCode, otpExpires = &record.OTP.Code, &record.OTP.ExpiresAt
	}
	var resetHash *string
	var resetExpires *time.Time
	if record.Reset != nil {
		resetHash, resetExpires = &record.Reset.TokenHash, &record.Reset.ExpiresAt
	}
	query := `INSERT INTO principals (
			id, email, password_hash, first_name, last_name, role_id, provider,
			external_id, avatar_url, is_active, is_email_verified,
			otp_code, otp_expires_at, reset_token_hash, reset_expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7,
			NULLIF($8, ''), NULLIF($9, ''), $10, $11, $12, $13, $14, $15)
		RETURNING created_at, updated_at`
	err := s.pool.QueryRow(ctx, query,
		record.ID, record.Email, record.PasswordHash, record.FirstName, record.LastName,
		record.RoleID, string(record.Provider),
		record.ExternalID, record.AvatarURL, record.IsActive, record.IsEmailVerified,
		otpCode, otpExpires, resetHash, resetExpires,
	).Scan(&record.CreatedAt, &record.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return nil, authcore.ErrEmailExists
		}
		return nil, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return &record, nil
}

// UpdateByID describes the update by id operation and its observable behavior.
//
// UpdateByID may return an error when input validation, dependency calls, or security
// checks fail. UpdateByID does not mutate shared global state and can be used
// concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) UpdateByID(ctx context.Context, id string, p *authcore.Principal) error {
	var otpCode *string
	var otpExpires *time.Time
	if p.OTP != nil {
		otpCode, otpExpires = &p.OTP.Code, &p.OTP.ExpiresAt
	}
	var resetHash *string
	var resetExpires *time.Time
	if p.Reset != nil {
		resetHash, resetExpires = &p.Reset.TokenHash, &p.Reset.ExpiresAt
	}
	query := `UPDATE principals SET
			email = $2, password_hash = $3, first_name = $4, last_name = $5,
			role_id = $6, provider = $7, external_id = NULLIF($8, ''),
			avatar_url = NULLIF($9, ''), is_active = $10, is_email_verified = $11,
			otp_code = $12, otp_expires_at = $13,
			reset_token_hash = $14, reset_expires_at = $15,
			last_login = $16, updated_at = now()
		WHERE id = $1 AND deleted_at IS NULL`
	tag, err := s.pool.Exec(ctx, query,
		id, p.Email, p.PasswordHash, p.FirstName, p.LastName,
		p.RoleID, string(p.Provider), p.ExternalID,
		p.AvatarURL, p.IsActive, p.IsEmailVerified,
		otpCode, otpExpires, resetHash, resetExpires, p.LastLogin,
	)
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

// SoftDelete describes the soft delete operation and its observable behavior.
//
// SoftDelete may return an error when input validation, dependency calls, or security
// checks fail. SoftDelete does not mutate shared global state and can be used
// concurrently when the receiver and dependencies are concurrently safe.
func (s *Store) SoftDelete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE principals SET deleted_at = now(), updated_at = now()
		 WHERE id = $1 AND deleted_at IS NULL`, id)
	if err != nil {
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

// Restore describes the restore operation and its observable behavior.
//
// Restore may return an error when input validation, dependency calls, or security
// checks fail. Restore does not mutate shared global state and can be used concurrently
// when the receiver and dependencies are concurrently safe.
func (s *Store) Restore(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE principals SET deleted_at = NULL, updated_at = now()
		 WHERE id = $1 AND deleted_at IS NOT NULL`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			// The address was re-registered while this row was deleted.
			return authcore.ErrEmailExists
		}
		return fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	if tag.RowsAffected() == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

// Count describes the count operation and its observable behavior.
//
// Count may return an error when input validation, dependency calls, or security checks
// fail. Count does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (s *Store) Count(ctx context.Context, filter authcore.CredentialFilter) (int64, error) {
	var (
		clauses []string
		args    []any
	)
	if !filter.IncludeDeleted {
		clauses = append(clauses, "p.deleted_at IS NULL")
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "p.is_active")
	}
	if filter.RoleName != "" {
		args = append(args, filter.RoleName)
		clauses = append(clauses, fmt.Sprintf("r.name = $%d", len(args)))
	}
	query := "SELECT count(*) FROM principals p JOIN roles r ON r.id = p.role_id"
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	var count int64
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: %v", authcore.ErrStoreUnavailable, err)
	}
	return count, nil
}
