// Package internaldefs holds the metric name and help-text table shared by the
// Prometheus and OpenTelemetry exporters so both surfaces stay consistent.
package internaldefs

import (
	authcore "github.com/zvincent07/authcore"
)

// CounterDef defines a public type used by authcore APIs.
//
// CounterDef instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type CounterDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by authcore APIs.
//
// HistogramDef instances are intended to be configured during initialization and then
// treated as immutable unless documented otherwise.
type HistogramDef struct {
	ID   authcore.MetricID
	Name string
	Help string
}

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: authcore.MetricLoginSuccess, Name: "authcore_login_success_total", Help: "Successful login attempts."},
	{ID: authcore.MetricLoginFailure, Name: "authcore_login_failure_total", Help: "Failed login attempts."},
	{ID: authcore.MetricLoginBlocked, Name: "authcore_login_blocked_total", Help: "Logins rejected by the IP ban gate or account-state gates."},
	{ID: authcore.MetricIPBanned, Name: "authcore_ip_banned_total", Help: "IP ban records created or extended."},
	{ID: authcore.MetricRegisterSuccess, Name: "authcore_register_success_total", Help: "Successful registrations."},
	{ID: authcore.MetricRegisterRollback, Name: "authcore_register_rollback_total", Help: "Registrations rolled back after email dispatch failure."},
	{ID: authcore.MetricOTPVerified, Name: "authcore_otp_verified_total", Help: "Successful email verification confirmations."},
	{ID: authcore.MetricOTPResent, Name: "authcore_otp_resent_total", Help: "Verification codes reissued."},
	{ID: authcore.MetricOTPRejected, Name: "authcore_otp_rejected_total", Help: "Rejected verification attempts."},
	{ID: authcore.MetricResetRequested, Name: "authcore_reset_requested_total", Help: "Password reset challenges issued."},
	{ID: authcore.MetricResetCompleted, Name: "authcore_reset_completed_total", Help: "Completed password resets."},
	{ID: authcore.MetricResetRejected, Name: "authcore_reset_rejected_total", Help: "Rejected password reset attempts."},
	{ID: authcore.MetricOAuthLogin, Name: "authcore_oauth_login_total", Help: "Logins via external identity assertion."},
	{ID: authcore.MetricLogout, Name: "authcore_logout_total", Help: "Logout operations."},
	{ID: authcore.MetricTokenValidated, Name: "authcore_token_validated_total", Help: "Tokens that passed validation."},
	{ID: authcore.MetricTokenRejected, Name: "authcore_token_rejected_total", Help: "Tokens that failed validation."},
	{ID: authcore.MetricSessionCreated, Name: "authcore_session_created_total", Help: "Session records created."},
	{ID: authcore.MetricSessionEvicted, Name: "authcore_session_evicted_total", Help: "Session records evicted by the per-user cap."},
	{ID: authcore.MetricSessionTerminated, Name: "authcore_session_terminated_total", Help: "Sessions terminated by their owner."},
	{ID: authcore.MetricPermissionDenied, Name: "authcore_permission_denied_total", Help: "Denied permission checks."},
	{ID: authcore.MetricBotDetected, Name: "authcore_bot_detected_total", Help: "Telemetry samples that crossed the bot-detection ban threshold."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: authcore.HistogramLoginLatency, Name: "authcore_login_latency_seconds", Help: "Login latency histogram."},
	{ID: authcore.HistogramValidateLatency, Name: "authcore_validate_latency_seconds", Help: "Token validation latency histogram."},
}

// HistogramBounds is an exported constant or variable used by the authentication engine.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix is an exported constant or variable used by the authentication engine.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// CumulativeBuckets describes the cumulative buckets operation and its observable behavior.
//
// CumulativeBuckets does not mutate shared global state and can be used concurrently
// when the receiver and dependencies are concurrently safe.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := range raw {
		running += raw[i]
		out[i] = running
	}
	return out
}
