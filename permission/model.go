package permission

import (
	"fmt"
	"strings"
)

// Wildcard is an exported constant or variable used by the authentication engine.
const Wildcard = "*"

// SuperAdminRole is an exported constant or variable used by the authentication engine.
const SuperAdminRole = "super admin"

// Key describes the key operation and its observable behavior.
//
// Key does not mutate shared global state and can be used concurrently when the receiver
// and dependencies are concurrently safe.
func Key(resource, action string) string {
	return resource + ":" + action
}

// Subject is the minimal view of a principal the model evaluates. Permissions is nil
// when the caller did not populate the role relation; an empty non-nil slice means the
// relation was populated and carries no keys.
type Subject struct {
	ID          string
	RoleName    string
	Permissions []string
}

// DeniedError defines a public type used by authcore APIs.
//
// DeniedError instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type DeniedError struct {
	Key   string
	Label string
}

// Error describes the error operation and its observable behavior.
//
// Error does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (e *DeniedError) Error() string {
	label := e.Label
	if label == "" {
		label = e.Key
	}
	return fmt.Sprintf("permission denied: %s", label)
}

// Set defines a public type used by authcore APIs.
//
// Set instances are intended to be configured during initialization and then treated as
// immutable unless documented otherwise.
type Set map[string]struct{}

// Contains describes the contains operation and its observable behavior.
//
// Contains does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (s Set) Contains(key string) bool {
	_, ok := s[key]
	return ok
}

// Model resolves role names to permission sets. A Model is immutable after NewModel
// returns and requires no synchronization.
type Model struct {
	roles map[string]Set
}

// NewModel describes the new model operation and its observable behavior.
//
// NewModel does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func NewModel(rolePerms map[string][]string) *Model {
	roles := make(map[string]Set, len(rolePerms))
	for role, keys := range rolePerms {
		set := make(Set, len(keys))
		for _, k := range keys {
			set[k] = struct{}{}
		}
		roles[normalizeRole(role)] = set
	}
	return &Model{roles: roles}
}

// Resolve returns the configured permission set for a role name, or nil when the role is
// unknown. Super admin is not resolved through the table; it is evaluated in Has.
func (m *Model) Resolve(roleName string) Set {
	if m == nil {
		return nil
	}
	return m.roles[normalizeRole(roleName)]
}

// Has reports whether the subject holds the permission key.
//
// The super-admin branch is evaluated first and unconditionally, before any table or
// relation lookup, so a misconfigured or empty permission table can never lock out the
// super-admin role.
func (m *Model) Has(s *Subject, key string) bool {
	if s == nil || key == "" {
		return false
	}
	if normalizeRole(s.RoleName) == SuperAdminRole {
		return true
	}
	if s.Permissions == nil {
		return false
	}
	for _, p := range s.Permissions {
		if p == key || p == Wildcard {
			return true
		}
	}
	return false
}

// Require describes the require operation and its observable behavior.
//
// Require may return an error when input validation, dependency calls, or security
// checks fail. Require does not mutate shared global state and can be used concurrently
// when the receiver and dependencies are concurrently safe.
func (m *Model) Require(s *Subject, key, label string) error {
	if m.Has(s, key) {
		return nil
	}
	return &DeniedError{Key: key, Label: label}
}

// CanAccess reports whether the subject may touch a resource owned by ownerID: either
// the subject holds the permission key, or the subject is the owner. Ownership compares
// the trimmed string forms, so mixed identifier representations on either side still
// match.
func (m *Model) CanAccess(s *Subject, ownerID, key string) bool {
	if m.Has(s, key) {
		return true
	}
	if s == nil {
		return false
	}
	owner := strings.TrimSpace(ownerID)
	return owner != "" && owner == strings.TrimSpace(s.ID)
}

func normalizeRole(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
