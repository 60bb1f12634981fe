package password

import (
	"fmt"
	"strings"
	"unicode"
)

// Policy defines a public type used by authcore APIs.
//
// Policy instances are intended to be configured during initialization and then treated
// as immutable unless documented otherwise.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireLower   bool
	RequireDigit   bool
	RequireSpecial bool
}

// PolicyError carries every rule the candidate password violated, not just the first,
// so callers can surface the complete list in one round trip.
type PolicyError struct {
	Violations []string
}

// Error describes the error operation and its observable behavior.
//
// Error does not mutate shared global state and can be used concurrently when the
// receiver and dependencies are concurrently safe.
func (e *PolicyError) Error() string {
	return "password policy: " + strings.Join(e.Violations, "; ")
}

// Check returns nil when the candidate satisfies every rule, or a *PolicyError listing
// all violations.
func (p Policy) Check(candidate string) error {
	var violations []string
	if len(candidate) < p.MinLength {
		violations = append(violations, fmt.Sprintf("must be at least %d characters", p.MinLength))
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSpecial = true
		}
	}
	if p.RequireUpper && !hasUpper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if p.RequireLower && !hasLower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if p.RequireDigit && !hasDigit {
		violations = append(violations, "must contain a digit")
	}
	if p.RequireSpecial && !hasSpecial {
		violations = append(violations, "must contain a special character")
	}
	if len(violations) > 0 {
		return &PolicyError{Violations: violations}
	}
	return nil
}
