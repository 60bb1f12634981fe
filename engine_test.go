package authcore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

/*
====================================
TEST FIXTURES
====================================
*/

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

// testConfig uses hs256 and cheap argon2 parameters so a test run does not spend its
// time hashing.
func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Token.SigningMethod = "hs256"
	cfg.Token.PrivateKey = []byte("0123456789abcdef0123456789abcdef")
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Iterations = 1
	cfg.Password.Parallelism = 1
	cfg.Password.SaltLength = 8
	cfg.Password.KeyLength = 16
	return cfg
}

type testEnv struct {
	mr    *miniredis.Miniredis
	users *memCredStore
	roles *memRoleStore
	mail  *captureMailer
}

func newTestEngine(t *testing.T, mutate ...func(*Config)) (*Engine, *testEnv) {
	t.Helper()
	return newTestEngineWithSink(t, NoOpSink{}, mutate...)
}

func newTestEngineWithSink(t *testing.T, sink AuditSink, mutate ...func(*Config)) (*Engine, *testEnv) {
	t.Helper()
	mr, client := newTestRedis(t)
	cfg := testConfig()
	for _, fn := range mutate {
		fn(&cfg)
	}
	roles := newMemRoleStore()
	env := &testEnv{
		mr:    mr,
		users: newMemCredStore(roles),
		roles: roles,
		mail:  &captureMailer{},
	}
	engine, err := New().
		WithConfig(cfg).
		WithRedis(client).
		WithCredentialStore(env.users).
		WithRoleStore(env.roles).
		WithEmailSender(env.mail).
		WithGeoEnricher(staticGeo{}).
		WithUAParser(staticUA{}).
		WithAuditSink(sink).
		Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	t.Cleanup(func() { _ = engine.Close() })
	return engine, env
}

// seedUser creates an active, verified principal with the given password.
func seedUser(t *testing.T, e *Engine, env *testEnv, email, password string) *Principal {
	t.Helper()
	hash, err := e.hasher.Hash(password)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	role, err := env.roles.FindByName(context.Background(), "user")
	if err != nil {
		t.Fatalf("role seed: %v", err)
	}
	p, err := env.users.Create(context.Background(), &Principal{
		Email:           email,
		PasswordHash:    hash,
		FirstName:       "Test",
		LastName:        "User",
		RoleID:          role.ID,
		RoleName:        role.Name,
		Provider:        ProviderLocal,
		IsActive:        true,
		IsEmailVerified: true,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return p
}

func requestCtx(ip, userAgent string) context.Context {
	ctx := context.Background()
	if ip != "" {
		ctx = WithClientIP(ctx, ip)
	}
	if userAgent != "" {
		ctx = WithUserAgent(ctx, userAgent)
	}
	return ctx
}

/*
====================================
IN-MEMORY STORES
====================================
*/

type memRoleStore struct {
	mu    sync.Mutex
	roles map[string]Role
}

func newMemRoleStore() *memRoleStore {
	s := &memRoleStore{roles: map[string]Role{}}
	seed := map[string][]string{
		"user":        {"profile:read", "profile:write"},
		"employee":    {"users:read", "sessions:read"},
		"admin":       {"users:read", "users:write", "users:delete", "roles:read", "roles:write", "sessions:read", "sessions:terminate", "audit:read"},
		"super admin": nil,
	}
	for name, perms := range seed {
		s.roles[name] = Role{ID: uuid.NewString(), Name: name, Permissions: perms}
	}
	return s
}

func (s *memRoleStore) FindByName(_ context.Context, name string) (*Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	role, ok := s.roles[name]
	if !ok {
		return nil, ErrRoleNotFound
	}
	out := role
	return &out, nil
}

func (s *memRoleStore) FindByIDs(_ context.Context, ids []string) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Role
	for _, id := range ids {
		for _, role := range s.roles {
			if role.ID == id {
				out = append(out, role)
			}
		}
	}
	return out, nil
}

func (s *memRoleStore) FindAll(_ context.Context) ([]Role, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Role, 0, len(s.roles))
	for _, role := range s.roles {
		out = append(out, role)
	}
	return out, nil
}

func (s *memRoleStore) drop(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.roles, name)
}

type memCredStore struct {
	mu    sync.Mutex
	byID  map[string]*Principal
	roles *memRoleStore
}

func newMemCredStore(roles *memRoleStore) *memCredStore {
	return &memCredStore{byID: map[string]*Principal{}, roles: roles}
}

func clonePrincipal(p *Principal) *Principal {
	out := *p
	if p.OTP != nil {
		otp := *p.OTP
		out.OTP = &otp
	}
	if p.Reset != nil {
		reset := *p.Reset
		out.Reset = &reset
	}
	if p.Role != nil {
		role := *p.Role
		out.Role = &role
	}
	if p.LastLogin != nil {
		last := *p.LastLogin
		out.LastLogin = &last
	}
	if p.DeletedAt != nil {
		del := *p.DeletedAt
		out.DeletedAt = &del
	}
	return &out
}

func (s *memCredStore) finish(p *Principal, opts LookupOptions) *Principal {
	out := clonePrincipal(p)
	if !opts.IncludeSecrets {
		out.PasswordHash = ""
		out.OTP = nil
		out.Reset = nil
	}
	if opts.PopulateRole {
		if role, ok := s.roles.roles[out.RoleName]; ok {
			r := role
			out.Role = &r
		}
	}
	return out
}

func (s *memCredStore) FindByEmail(_ context.Context, email string, opts LookupOptions) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if strings.EqualFold(p.Email, email) && (p.DeletedAt == nil || opts.IncludeDeleted) {
			return s.finish(p, opts), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memCredStore) FindByID(_ context.Context, id string, opts LookupOptions) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok || (p.DeletedAt != nil && !opts.IncludeDeleted) {
		return nil, ErrUserNotFound
	}
	return s.finish(p, opts), nil
}

func (s *memCredStore) FindByExternalID(_ context.Context, externalID string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.ExternalID == externalID && externalID != "" && p.DeletedAt == nil {
			return s.finish(p, LookupOptions{IncludeSecrets: true, PopulateRole: true}), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memCredStore) FindByResetTokenHash(_ context.Context, tokenHash string) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.byID {
		if p.Reset != nil && p.Reset.TokenHash == tokenHash && p.DeletedAt == nil {
			return s.finish(p, LookupOptions{IncludeSecrets: true, PopulateRole: true}), nil
		}
	}
	return nil, ErrUserNotFound
}

func (s *memCredStore) Create(_ context.Context, p *Principal) (*Principal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if strings.EqualFold(existing.Email, p.Email) && existing.DeletedAt == nil {
			return nil, ErrEmailExists
		}
	}
	stored := clonePrincipal(p)
	stored.ID = uuid.NewString()
	stored.CreatedAt = time.Now()
	stored.UpdatedAt = stored.CreatedAt
	s.byID[stored.ID] = stored
	return clonePrincipal(stored), nil
}

func (s *memCredStore) UpdateByID(_ context.Context, id string, p *Principal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	existing, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	updated := clonePrincipal(p)
	updated.ID = id
	updated.CreatedAt = existing.CreatedAt
	updated.UpdatedAt = time.Now()
	s.byID[id] = updated
	return nil
}

func (s *memCredStore) SoftDelete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	now := time.Now()
	p.DeletedAt = &now
	return nil
}

func (s *memCredStore) Restore(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return ErrUserNotFound
	}
	for otherID, other := range s.byID {
		if otherID != id && strings.EqualFold(other.Email, p.Email) && other.DeletedAt == nil {
			return ErrEmailExists
		}
	}
	p.DeletedAt = nil
	return nil
}

func (s *memCredStore) Count(_ context.Context, filter CredentialFilter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, p := range s.byID {
		if p.DeletedAt != nil && !filter.IncludeDeleted {
			continue
		}
		if filter.RoleName != "" && p.RoleName != filter.RoleName {
			continue
		}
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		n++
	}
	return n, nil
}

/*
====================================
MAIL AND ENRICHMENT STUBS
====================================
*/

type otpMail struct {
	Email        string
	Code         string
	TempPassword string
}

type captureMailer struct {
	mu        sync.Mutex
	failOTP   bool
	failReset bool
	otps      []otpMail
	resetURLs []string
}

func (m *captureMailer) SendOTP(_ context.Context, email, _, code, temporaryPassword string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOTP {
		return errors.New("smtp unavailable")
	}
	m.otps = append(m.otps, otpMail{Email: email, Code: code, TempPassword: temporaryPassword})
	return nil
}

func (m *captureMailer) SendPasswordReset(_ context.Context, email, _, resetURL string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failReset {
		return errors.New("smtp unavailable")
	}
	m.resetURLs = append(m.resetURLs, resetURL)
	return nil
}

func (m *captureMailer) setFailOTP(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failOTP = fail
}

func (m *captureMailer) setFailReset(fail bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failReset = fail
}

func (m *captureMailer) lastOTP(t *testing.T) otpMail {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.otps) == 0 {
		t.Fatal("no OTP mail was sent")
	}
	return m.otps[len(m.otps)-1]
}

func (m *captureMailer) lastResetURL(t *testing.T) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resetURLs) == 0 {
		t.Fatal("no reset mail was sent")
	}
	return m.resetURLs[len(m.resetURLs)-1]
}

type staticGeo struct{}

func (staticGeo) Locate(context.Context, string) Location {
	return Location{
		Country:  "PH",
		Region:   "NCR",
		City:     "Manila",
		Lat:      14.5995,
		Lon:      120.9842,
		Timezone: "Asia/Manila",
		ISP:      "PLDT",
	}
}

type staticUA struct{}

func (staticUA) Parse(string) DeviceInfo {
	return DeviceInfo{Platform: "linux", Browser: "firefox", Device: "desktop"}
}

/*
====================================
TOKEN AND LIFECYCLE TESTS
====================================
*/

func TestValidateTokenRoundTrip(t *testing.T) {
	e, env := newTestEngine(t)
	seedUser(t, e, env, "alice@example.com", "Password1!")

	result, err := e.Login(requestCtx("203.0.113.5", "test-agent"), LoginRequest{
		Email:    "alice@example.com",
		Password: "Password1!",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	auth, err := e.ValidateToken(context.Background(), result.Token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if auth.UserID != result.UserID || auth.SessionID != result.SessionID || auth.RoleName != "user" {
		t.Fatalf("unexpected auth result: %+v", auth)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, err := e.ValidateToken(context.Background(), "not.a.token"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
	snap := e.MetricsSnapshot()
	if snap.Counters[MetricTokenRejected] != 1 {
		t.Fatalf("rejected counter = %d, want 1", snap.Counters[MetricTokenRejected])
	}
}

func TestValidateTokenSurvivesSessionLoss(t *testing.T) {
	e, env := newTestEngine(t)
	seedUser(t, e, env, "alice@example.com", "Password1!")

	result, err := e.Login(requestCtx("203.0.113.5", ""), LoginRequest{
		Email:    "alice@example.com",
		Password: "Password1!",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	e.bg.Wait()

	// Kill the session record entirely; the token still validates until expiry.
	env.mr.FlushAll()
	if _, err := e.ValidateToken(context.Background(), result.Token); err != nil {
		t.Fatalf("ValidateToken after session loss: %v", err)
	}
}

func TestLogoutDeactivatesSession(t *testing.T) {
	e, env := newTestEngine(t)
	seedUser(t, e, env, "alice@example.com", "Password1!")

	result, err := e.Login(requestCtx("203.0.113.5", ""), LoginRequest{
		Email:    "alice@example.com",
		Password: "Password1!",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	e.bg.Wait()

	if err := e.Logout(context.Background(), result.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	e.bg.Wait()

	record, err := e.sessions.Get(context.Background(), result.SessionID)
	if err != nil {
		t.Fatalf("session record gone after logout: %v", err)
	}
	if record.IsActive {
		t.Fatal("session still active after logout")
	}
}

func TestLogoutRejectsBadSignature(t *testing.T) {
	e, env := newTestEngine(t)
	seedUser(t, e, env, "alice@example.com", "Password1!")
	result, err := e.Login(requestCtx("203.0.113.5", ""), LoginRequest{
		Email:    "alice@example.com",
		Password: "Password1!",
	})
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	tampered := result.Token + "x"
	if err := e.Logout(context.Background(), tampered); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestClosedEngineRefusesFlows(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := e.Login(context.Background(), LoginRequest{Email: "a@b.c", Password: "x"}); !errors.Is(err, ErrEngineNotReady) {
		t.Fatalf("expected ErrEngineNotReady, got %v", err)
	}
	// Close again is a no-op.
	if err := e.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
}

/*
====================================
AUTHORIZATION TESTS
====================================
*/

func TestHasPermissionSuperAdminBypassesTable(t *testing.T) {
	e, _ := newTestEngine(t)
	p := &Principal{ID: "u1", RoleName: "Super Admin"}
	if !e.HasPermission(p, "anything:at-all") {
		t.Fatal("super admin must pass every key")
	}
	ordinary := &Principal{ID: "u2", RoleName: "user"}
	if e.HasPermission(ordinary, "users:write") {
		t.Fatal("unpopulated ordinary principal must be denied")
	}
}

func TestCanAccessResourceOwnership(t *testing.T) {
	e, _ := newTestEngine(t)
	p := &Principal{
		ID:       "u1",
		RoleName: "user",
		Role:     &Role{Name: "user", Permissions: []string{"profile:read"}},
	}
	if !e.CanAccessResource(p, "u1", "users:read") {
		t.Fatal("owner must access own resource without the permission")
	}
	if e.CanAccessResource(p, "u2", "users:read") {
		t.Fatal("non-owner without the permission must be denied")
	}
}

func TestAuthorizeResolvesPrincipal(t *testing.T) {
	e, env := newTestEngine(t)
	p := seedUser(t, e, env, "alice@example.com", "Password1!")

	res := &AuthResult{UserID: p.ID, RoleName: "user", SessionID: "s1"}
	resolved, err := e.Authorize(context.Background(), res, "profile:read", "read profile")
	if err != nil {
		t.Fatalf("Authorize: %v", err)
	}
	if resolved.Role == nil || resolved.Role.Name != "user" {
		t.Fatalf("role relation not populated: %+v", resolved.Role)
	}

	var denied *PermissionDeniedError
	if _, err := e.Authorize(context.Background(), res, "users:delete", "delete users"); !errors.As(err, &denied) {
		t.Fatalf("expected PermissionDeniedError, got %v", err)
	}
}

func TestAuthorizeBlocksInactiveAccount(t *testing.T) {
	e, env := newTestEngine(t)
	p := seedUser(t, e, env, "alice@example.com", "Password1!")

	stored, _ := env.users.FindByID(context.Background(), p.ID, LookupOptions{IncludeSecrets: true})
	stored.IsActive = false
	if err := env.users.UpdateByID(context.Background(), p.ID, stored); err != nil {
		t.Fatalf("update: %v", err)
	}

	res := &AuthResult{UserID: p.ID, RoleName: "user", SessionID: "s1"}
	if _, err := e.Authorize(context.Background(), res, "profile:read", "read profile"); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
}
