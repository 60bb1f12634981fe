package authcore

import (
	"errors"
	"testing"
)

func loginN(t *testing.T, e *Engine, email, password string, n int) []*LoginResult {
	t.Helper()
	out := make([]*LoginResult, 0, n)
	for i := 0; i < n; i++ {
		result, err := e.Login(requestCtx("203.0.113.5", "Mozilla/5.0"), LoginRequest{
			Email:    email,
			Password: password,
		})
		if err != nil {
			t.Fatalf("login %d: %v", i, err)
		}
		// Wait per login so session records land in order.
		e.bg.Wait()
		out = append(out, result)
	}
	return out
}

func TestSessionsListsWithCurrentFlag(t *testing.T) {
	e, env := newTestEngine(t)
	p := seedUser(t, e, env, "alice@example.com", "Password1!")
	logins := loginN(t, e, "alice@example.com", "Password1!", 3)
	current := logins[1]

	ctx := requestCtx("", "")
	infos, err := e.Sessions(ctx, p.ID, current.SessionID)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("listed %d sessions, want 3", len(infos))
	}
	var flagged int
	for _, info := range infos {
		if info.Current {
			flagged++
			if info.SessionID != current.SessionID {
				t.Fatalf("wrong session flagged current: %q", info.SessionID)
			}
		}
		if info.IP != "203.0.113.5" || info.Browser != "firefox" {
			t.Fatalf("enrichment missing: %+v", info)
		}
	}
	if flagged != 1 {
		t.Fatalf("current flag count = %d, want 1", flagged)
	}
}

func TestTerminateSessionForeignOwnerDenied(t *testing.T) {
	e, env := newTestEngine(t)
	alice := seedUser(t, e, env, "alice@example.com", "Password1!")
	seedUser(t, e, env, "bob@example.com", "Password1!")
	aliceLogin := loginN(t, e, "alice@example.com", "Password1!", 1)[0]
	bobLogin := loginN(t, e, "bob@example.com", "Password1!", 1)[0]

	ctx := requestCtx("", "")
	if err := e.TerminateSession(ctx, alice.ID, bobLogin.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("foreign terminate = %v, want ErrSessionNotFound", err)
	}
	if err := e.TerminateSession(ctx, alice.ID, aliceLogin.SessionID); err != nil {
		t.Fatalf("own terminate: %v", err)
	}
	if err := e.TerminateSession(ctx, alice.ID, aliceLogin.SessionID); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("repeat terminate = %v, want ErrSessionNotFound", err)
	}
}

func TestTerminateOtherSessions(t *testing.T) {
	e, env := newTestEngine(t)
	p := seedUser(t, e, env, "alice@example.com", "Password1!")
	logins := loginN(t, e, "alice@example.com", "Password1!", 4)
	anchor := logins[3]

	ctx := requestCtx("", "")
	closed, err := e.TerminateOtherSessions(ctx, anchor.Token)
	if err != nil {
		t.Fatalf("TerminateOtherSessions: %v", err)
	}
	if closed != 3 {
		t.Fatalf("closed = %d, want 3", closed)
	}

	infos, err := e.Sessions(ctx, p.ID, anchor.SessionID)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	if len(infos) != 1 || !infos[0].Current || !infos[0].IsActive {
		t.Fatalf("anchor not the sole survivor: %+v", infos)
	}
}

func TestTerminateOtherSessionsRequiresLiveAnchor(t *testing.T) {
	e, env := newTestEngine(t)
	seedUser(t, e, env, "alice@example.com", "Password1!")
	logins := loginN(t, e, "alice@example.com", "Password1!", 2)
	anchor := logins[0]

	ctx := requestCtx("", "")
	if err := e.TerminateSession(ctx, logins[0].UserID, anchor.SessionID); err != nil {
		t.Fatalf("terminate anchor: %v", err)
	}

	// The token still verifies, but its session is dead; the wipe must refuse.
	if _, err := e.TerminateOtherSessions(ctx, anchor.Token); !errors.Is(err, ErrCurrentSessionNotFound) {
		t.Fatalf("dead anchor = %v, want ErrCurrentSessionNotFound", err)
	}
}

func TestTerminateOtherSessionsRejectsBadToken(t *testing.T) {
	e, _ := newTestEngine(t)
	if _, err := e.TerminateOtherSessions(requestCtx("", ""), "junk"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("expected ErrTokenInvalid, got %v", err)
	}
}

func TestLoginCapEvictsOldestSession(t *testing.T) {
	e, env := newTestEngine(t, func(cfg *Config) {
		cfg.Session.MaxActivePerUser = 3
	})
	p := seedUser(t, e, env, "alice@example.com", "Password1!")
	logins := loginN(t, e, "alice@example.com", "Password1!", 4)

	infos, err := e.Sessions(requestCtx("", ""), p.ID, logins[3].SessionID)
	if err != nil {
		t.Fatalf("Sessions: %v", err)
	}
	var active int
	for _, info := range infos {
		if info.IsActive {
			active++
		}
	}
	if active != 3 {
		t.Fatalf("active sessions = %d, want 3", active)
	}

	snap := e.MetricsSnapshot()
	if snap.Counters[MetricSessionEvicted] != 1 {
		t.Fatalf("evicted counter = %d, want 1", snap.Counters[MetricSessionEvicted])
	}
	// The evicted token still validates; only the record was deactivated.
	if _, err := e.ValidateToken(requestCtx("", ""), logins[0].Token); err != nil {
		t.Fatalf("evicted session's token rejected: %v", err)
	}
}
