// Package postgres implements authcore's CredentialStore, RoleStore, and AuditSink on
// PostgreSQL via pgx.
//
// Expected schema:
//
//	CREATE TABLE roles (
//	    id          UUID PRIMARY KEY,
//	    name        TEXT NOT NULL UNIQUE,
//	    description TEXT
//	);
//
//	CREATE TABLE role_permissions (
//	    role_id    UUID NOT NULL REFERENCES roles (id),
//	    permission TEXT NOT NULL,
//	    PRIMARY KEY (role_id, permission)
//	);
//
//	CREATE TABLE principals (
//	    id                UUID PRIMARY KEY,
//	    email             TEXT NOT NULL,
//	    password_hash     TEXT NOT NULL DEFAULT '',
//	    first_name        TEXT NOT NULL DEFAULT '',
//	    last_name         TEXT NOT NULL DEFAULT '',
//	    role_id           UUID NOT NULL REFERENCES roles (id),
//	    provider          TEXT NOT NULL DEFAULT 'local',
//	    external_id       TEXT,
//	    avatar_url        TEXT,
//	    is_active         BOOLEAN NOT NULL DEFAULT TRUE,
//	    is_email_verified BOOLEAN NOT NULL DEFAULT FALSE,
//	    otp_code          TEXT,
//	    otp_expires_at    TIMESTAMPTZ,
//	    reset_token_hash  TEXT,
//	    reset_expires_at  TIMESTAMPTZ,
//	    last_login        TIMESTAMPTZ,
//	    deleted_at        TIMESTAMPTZ,
//	    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
//	    updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
//	);
//	CREATE UNIQUE INDEX principals_email_live
//	    ON principals (lower(email)) WHERE deleted_at IS NULL;
//	CREATE INDEX principals_external ON principals (external_id);
//	CREATE INDEX principals_reset ON principals (reset_token_hash);
//
//	CREATE TABLE audit_log (
//	    id          BIGSERIAL PRIMARY KEY,
//	    occurred_at TIMESTAMPTZ NOT NULL,
//	    event_type  TEXT NOT NULL,
//	    user_id     TEXT,
//	    email       TEXT,
//	    session_id  TEXT,
//	    ip          TEXT,
//	    user_agent  TEXT,
//	    success     BOOLEAN NOT NULL,
//	    error_code  TEXT,
//	    metadata    JSONB
//	);
//
// Email uniqueness is scoped to live rows, so soft-deleting an account frees its address
// for re-registration while the historical row stays queryable.
package postgres
