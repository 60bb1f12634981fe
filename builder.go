package authcore

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/zvincent07/authcore/internal/limiters"
	"github.com/zvincent07/authcore/jwt"
	"github.com/zvincent07/authcore/password"
	"github.com/zvincent07/authcore/permission"
	"github.com/zvincent07/authcore/session"
)

// Builder assembles an Engine. Obtain one via New, chain the With* setters, then call
// Build exactly once. Setters perform no I/O or validation; everything is checked in
// Build.
type Builder struct {
	cfg       Config
	redis     redis.UniversalClient
	rolePerms map[string][]string
	users     CredentialStore
	roles     RoleStore
	email     EmailSender
	geo       GeoEnricher
	ua        UAParser
	sink      AuditSink
	built     bool
}

// New describes the new operation and its observable behavior.
//
// New does not mutate shared global state and can be used concurrently when the receiver
// and dependencies are concurrently safe.
func New() *Builder {
	return &Builder{
		cfg:       DefaultConfig(),
		rolePerms: permission.DefaultRolePermissions,
	}
}

// WithConfig describes the with config operation and its observable behavior.
//
// WithConfig does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithRedis attaches the Redis client backing sessions, lockout counters, and the ban
// list.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRolePermissions replaces the role-to-permission-keys table. The super-admin role
// needs no entry; it bypasses the table entirely.
func (b *Builder) WithRolePermissions(rolePerms map[string][]string) *Builder {
	b.rolePerms = rolePerms
	return b
}

// WithCredentialStore describes the with credential store operation and its observable behavior.
//
// WithCredentialStore does not mutate shared global state and can be used concurrently
// when the receiver and dependencies are concurrently safe.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.users = store
	return b
}

// WithRoleStore describes the with role store operation and its observable behavior.
//
// WithRoleStore does not mutate shared global state and can be used concurrently when
// the receiver and dependencies are concurrently safe.
func (b *Builder) WithRoleStore(store RoleStore) *Builder {
	b.roles = store
	return b
}

// WithEmailSender describes the with email sender operation and its observable behavior.
//
// WithEmailSender does not mutate shared global state and can be used concurrently when
// the receiver and dependencies are concurrently safe.
func (b *Builder) WithEmailSender(sender EmailSender) *Builder {
	b.email = sender
	return b
}

// WithGeoEnricher describes the with geo enricher operation and its observable behavior.
//
// WithGeoEnricher does not mutate shared global state and can be used concurrently when
// the receiver and dependencies are concurrently safe.
func (b *Builder) WithGeoEnricher(geo GeoEnricher) *Builder {
	b.geo = geo
	return b
}

// WithUAParser describes the with ua parser operation and its observable behavior.
//
// WithUAParser does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (b *Builder) WithUAParser(parser UAParser) *Builder {
	b.ua = parser
	return b
}

// WithAuditSink attaches the sink that receives audit events. Without one, audit is
// disabled regardless of config.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// Build validates the configuration, wires every subsystem, and returns the ready
// Engine. Build may be called once per Builder.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already consumed")
	}
	b.built = true

	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}
	if b.redis == nil {
		return nil, errors.New("redis client is required")
	}
	if b.users == nil {
		return nil, errors.New("credential store is required")
	}
	if b.roles == nil {
		return nil, errors.New("role store is required")
	}
	if b.email == nil {
		return nil, errors.New("email sender is required")
	}

	cfg := cloneConfig(b.cfg)

	tokens, err := jwt.NewManager(jwt.Config{
		SigningMethod: cfg.Token.SigningMethod,
		PrivateKey:    cfg.Token.PrivateKey,
		PublicKey:     cfg.Token.PublicKey,
		Issuer:        cfg.Token.Issuer,
		DefaultTTL:    cfg.Token.DefaultTTL,
		RememberMeTTL: cfg.Token.RememberMeTTL,
		Leeway:        cfg.Token.Leeway,
	})
	if err != nil {
		return nil, err
	}

	hasher, err := password.NewArgon2(password.Config{
		Memory:      cfg.Password.Memory,
		Iterations:  cfg.Password.Iterations,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		cfg:   cfg,
		users: b.users,
		roles: b.roles,
		email: b.email,
		geo:   b.geo,
		ua:    b.ua,
		perms: permission.NewModel(b.rolePerms),
		sessions: session.NewStore(
			b.redis,
			cfg.Session.RedisPrefix,
			cfg.Session.MaxActivePerUser,
			cfg.Session.Retention,
		),
		lockout: limiters.NewLockoutTracker(b.redis, "alk", limiters.LockoutConfig{
			Window:                cfg.Lockout.Window,
			OrdinaryThreshold:     cfg.Lockout.OrdinaryThreshold,
			OrdinaryBanDuration:   cfg.Lockout.OrdinaryBanDuration,
			PrivilegedThreshold:   cfg.Lockout.PrivilegedThreshold,
			PrivilegedBanDuration: cfg.Lockout.PrivilegedBanDuration,
		}),
		bans:   limiters.NewBanList(b.redis, "abn"),
		tokens: tokens,
		hasher: hasher,
		policy: password.Policy{
			MinLength:      cfg.Password.MinLength,
			RequireUpper:   cfg.Password.RequireUpper,
			RequireLower:   cfg.Password.RequireLower,
			RequireDigit:   cfg.Password.RequireDigit,
			RequireSpecial: cfg.Password.RequireSpecial,
		},
		audit:   newAuditDispatcher(cfg.Audit, b.sink),
		metrics: newMetrics(cfg.Metrics),
	}
	return engine, nil
}
