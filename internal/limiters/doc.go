// Package limiters holds the Redis-backed abuse controls: per-(ip, email) failed-login
// counters and the IP ban list they escalate into. Both stores are transient; keys carry
// TTLs and nothing is reconstructed on restart.
package limiters
