// Package session persists per-login session records in Redis.
//
// Each record lives under its own key with a retention TTL, and every user owns a sorted
// set of their active session IDs scored by last-active time. Saving a session that
// would push a user past the configured cap deactivates the least-recently-active
// records first. Deactivated records stay readable until their retention TTL lapses;
// only the active index forgets them.
//
// Counting and eviction read then write without cross-process coordination, so two
// concurrent saves for one user can briefly overshoot the cap by one. Token validation
// never consults this store, so a stale or evicted record does not invalidate a
// still-unexpired token.
package session
