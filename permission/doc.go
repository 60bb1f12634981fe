// Package permission implements role-based permission evaluation.
//
// The model is built once from a role-to-permission-keys table and frozen; evaluation is
// read-only map lookups and safe for unsynchronized concurrent use. Two rules are fixed
// in code rather than data: a subject whose role name is "super admin" (compared
// case-insensitively) passes every check, and a role holding the "*" key passes every
// check. Evaluation of ordinary subjects reads only the permissions carried on the
// subject itself; a subject without a populated permission relation is denied.
package permission
