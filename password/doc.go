// Package password provides Argon2id hashing with PHC-formatted output and the
// composition policy enforced before any candidate is hashed.
package password
