package permission

import (
	"errors"
	"testing"
)

func newTestModel() *Model {
	return NewModel(map[string][]string{
		"admin": {"users:read", "users:write"},
		"user":  {"profile:read"},
		"ops":   {Wildcard},
	})
}

func TestHasMembership(t *testing.T) {
	m := newTestModel()

	s := &Subject{ID: "u1", RoleName: "user", Permissions: []string{"profile:read"}}
	if !m.Has(s, "profile:read") {
		t.Fatal("expected held permission to pass")
	}
	if m.Has(s, "users:read") {
		t.Fatal("expected missing permission to fail")
	}
}

func TestHasNilSubject(t *testing.T) {
	m := newTestModel()
	if m.Has(nil, "profile:read") {
		t.Fatal("nil subject must be denied")
	}
}

func TestHasUnpopulatedRelationDenied(t *testing.T) {
	m := newTestModel()
	// RoleName alone is not enough: without a populated relation every check fails,
	// even for a role the table knows about.
	s := &Subject{ID: "u1", RoleName: "admin", Permissions: nil}
	if m.Has(s, "users:read") {
		t.Fatal("unpopulated relation must deny")
	}
}

func TestHasEmptyRelationDenied(t *testing.T) {
	m := newTestModel()
	s := &Subject{ID: "u1", RoleName: "admin", Permissions: []string{}}
	if m.Has(s, "users:read") {
		t.Fatal("empty populated relation must deny")
	}
}

func TestSuperAdminBypassesEverything(t *testing.T) {
	m := newTestModel()
	cases := []string{"super admin", "Super Admin", "SUPER ADMIN", "  super admin  "}
	for _, role := range cases {
		s := &Subject{ID: "u1", RoleName: role}
		if !m.Has(s, "anything:at-all") {
			t.Fatalf("role %q should bypass permission checks", role)
		}
	}
}

func TestSuperAdminSurvivesEmptyTable(t *testing.T) {
	m := NewModel(nil)
	s := &Subject{ID: "u1", RoleName: "super admin"}
	if !m.Has(s, "users:read") {
		t.Fatal("super admin must pass even with an empty table")
	}
	if m.Has(&Subject{ID: "u2", RoleName: "admin", Permissions: nil}, "users:read") {
		t.Fatal("non-super roles must be denied with an empty table")
	}
}

func TestWildcardGrantsAll(t *testing.T) {
	m := newTestModel()
	s := &Subject{ID: "u1", RoleName: "ops", Permissions: []string{Wildcard}}
	if !m.Has(s, "users:delete") {
		t.Fatal("wildcard must grant every key")
	}
}

func TestRequire(t *testing.T) {
	m := newTestModel()
	s := &Subject{ID: "u1", RoleName: "user", Permissions: []string{"profile:read"}}

	if err := m.Require(s, "profile:read", "view profile"); err != nil {
		t.Fatalf("Require: %v", err)
	}

	err := m.Require(s, "users:write", "edit users")
	var denied *DeniedError
	if !errors.As(err, &denied) {
		t.Fatalf("expected DeniedError, got %v", err)
	}
	if denied.Key != "users:write" || denied.Label != "edit users" {
		t.Fatalf("unexpected denial contents: %+v", denied)
	}
}

func TestCanAccessOwnership(t *testing.T) {
	m := newTestModel()
	s := &Subject{ID: "u1", RoleName: "user", Permissions: []string{"profile:read"}}

	if !m.CanAccess(s, "u1", "users:read") {
		t.Fatal("owner must access own resource without the permission")
	}
	if !m.CanAccess(s, "  u1  ", "users:read") {
		t.Fatal("ownership compare must ignore surrounding whitespace")
	}
	if m.CanAccess(s, "u2", "users:read") {
		t.Fatal("non-owner without permission must be denied")
	}
	if m.CanAccess(s, "", "users:read") {
		t.Fatal("empty owner id must not match")
	}

	admin := &Subject{ID: "u9", RoleName: "admin", Permissions: []string{"users:read"}}
	if !m.CanAccess(admin, "u2", "users:read") {
		t.Fatal("holder of the permission must access any owner's resource")
	}
}

func TestResolve(t *testing.T) {
	m := newTestModel()
	set := m.Resolve("Admin")
	if !set.Contains("users:read") || !set.Contains("users:write") {
		t.Fatalf("unexpected resolved set: %v", set)
	}
	if m.Resolve("ghost") != nil {
		t.Fatal("unknown role must resolve to nil")
	}
}

func TestKey(t *testing.T) {
	if got := Key("users", "read"); got != "users:read" {
		t.Fatalf("Key = %q", got)
	}
}
