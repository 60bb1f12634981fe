package password

import (
	"errors"
	"strings"
	"testing"
)

func testConfig() Config {
	// Small costs keep the suite fast; Verify honors encoded parameters anyway.
	return Config{Memory: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestHashVerifyRoundTrip(t *testing.T) {
	hasher, err := NewArgon2(testConfig())
	if err != nil {
		t.Fatalf("NewArgon2: %v", err)
	}
	encoded, err := hasher.Hash("correct-horse-battery")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(encoded, "$argon2id$v=") {
		t.Fatalf("unexpected PHC prefix: %s", encoded)
	}

	ok, err := hasher.Verify("correct-horse-battery", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if !ok {
		t.Fatal("expected match")
	}

	ok, err = hasher.Verify("wrong-password", encoded)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if ok {
		t.Fatal("expected mismatch")
	}
}

func TestHashSaltsDiffer(t *testing.T) {
	hasher, _ := NewArgon2(testConfig())
	a, _ := hasher.Hash("same-password")
	b, _ := hasher.Hash("same-password")
	if a == b {
		t.Fatal("two hashes of the same password must not be identical")
	}
}

func TestVerifyMalformed(t *testing.T) {
	hasher, _ := NewArgon2(testConfig())
	for _, encoded := range []string{
		"",
		"not-a-hash",
		"$argon2i$v=19$m=8192,t=1,p=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1$c2FsdA$aGFzaA",
		"$argon2id$v=19$m=8192,t=1,p=1$!!$aGFzaA",
	} {
		if _, err := hasher.Verify("pw", encoded); err == nil {
			t.Fatalf("expected error for %q", encoded)
		}
	}
}

func TestNeedsUpgrade(t *testing.T) {
	weak, _ := NewArgon2(testConfig())
	encoded, _ := weak.Hash("pw-for-upgrade-check")

	strong, _ := NewArgon2(Config{Memory: 64 * 1024, Iterations: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32})
	upgrade, err := strong.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatalf("NeedsUpgrade: %v", err)
	}
	if !upgrade {
		t.Fatal("hash with weaker costs should need upgrade")
	}

	upgrade, err = weak.NeedsUpgrade(encoded)
	if err != nil {
		t.Fatalf("NeedsUpgrade: %v", err)
	}
	if upgrade {
		t.Fatal("hash at current costs should not need upgrade")
	}
}

func TestPolicyCheck(t *testing.T) {
	policy := Policy{MinLength: 8, RequireUpper: true, RequireLower: true, RequireDigit: true}

	if err := policy.Check("Adequate1"); err != nil {
		t.Fatalf("Check: %v", err)
	}

	err := policy.Check("ab1")
	var perr *PolicyError
	if !errors.As(err, &perr) {
		t.Fatalf("expected PolicyError, got %v", err)
	}
	// Too short and no uppercase: both violations must be reported together.
	if len(perr.Violations) != 2 {
		t.Fatalf("violations = %v, want 2 entries", perr.Violations)
	}
}

func TestPolicySpecial(t *testing.T) {
	policy := Policy{MinLength: 4, RequireSpecial: true}
	if err := policy.Check("abcd"); err == nil {
		t.Fatal("expected special-character violation")
	}
	if err := policy.Check("ab!d"); err != nil {
		t.Fatalf("Check: %v", err)
	}
}
