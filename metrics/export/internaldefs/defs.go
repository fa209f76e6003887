package internaldefs

import (
	mtAuth "github.com/MrEthical07/mtAuth"
)

// CounterDef defines a public type used by mtAuth APIs.
type CounterDef struct {
	ID   mtAuth.MetricID
	Name string
	Help string
}

// HistogramDef defines a public type used by mtAuth APIs.
type HistogramDef struct {
	ID   mtAuth.MetricID
	Name string
	Help string
}

// AuditDroppedName and AuditDroppedHelp describe the dispatcher drop counter.
const (
	AuditDroppedName = "mtauth_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// CounterDefs is an exported constant or variable used by the authentication engine.
var CounterDefs = []CounterDef{
	{ID: mtAuth.MetricLoginSuccess, Name: "mtauth_login_success_total", Help: "Sessions issued by login or second-factor verification."},
	{ID: mtAuth.MetricLoginFailure, Name: "mtauth_login_failure_total", Help: "Rejected password attempts, unknown accounts included."},
	{ID: mtAuth.MetricLoginLocked, Name: "mtauth_login_locked_total", Help: "Attempts rejected because the account was locked."},
	{ID: mtAuth.MetricLoginRateLimited, Name: "mtauth_login_rate_limited_total", Help: "Attempts rejected by the per-IP login throttle."},
	{ID: mtAuth.MetricAccountLocked, Name: "mtauth_account_locked_total", Help: "Accounts locked after repeated failures."},
	{ID: mtAuth.MetricAccountUnlocked, Name: "mtauth_account_unlocked_total", Help: "Administrative unlocks of locked accounts."},
	{ID: mtAuth.MetricTwoFactorRequired, Name: "mtauth_two_factor_required_total", Help: "Logins that stopped at the second factor."},
	{ID: mtAuth.MetricSecondFactorSuccess, Name: "mtauth_second_factor_success_total", Help: "Accepted second-factor codes."},
	{ID: mtAuth.MetricSecondFactorFailure, Name: "mtauth_second_factor_failure_total", Help: "Rejected second-factor codes."},
	{ID: mtAuth.MetricBackupCodeUsed, Name: "mtauth_backup_code_used_total", Help: "Backup codes consumed at login."},
	{ID: mtAuth.MetricBackupCodesRegenerated, Name: "mtauth_backup_codes_regenerated_total", Help: "Backup code batch regenerations."},
	{ID: mtAuth.MetricPasswordUpgraded, Name: "mtauth_password_upgraded_total", Help: "Password hashes rewritten to the primary algorithm."},
	{ID: mtAuth.MetricTwoFactorSetup, Name: "mtauth_two_factor_setup_total", Help: "Two-factor setups started."},
	{ID: mtAuth.MetricTwoFactorEnabled, Name: "mtauth_two_factor_enabled_total", Help: "Two-factor enable confirmations."},
	{ID: mtAuth.MetricTwoFactorEnableFailure, Name: "mtauth_two_factor_enable_failure_total", Help: "Rejected two-factor enable attempts."},
	{ID: mtAuth.MetricTwoFactorDisabled, Name: "mtauth_two_factor_disabled_total", Help: "Two-factor disables."},
	{ID: mtAuth.MetricTwoFactorDisableFailure, Name: "mtauth_two_factor_disable_failure_total", Help: "Rejected two-factor disable attempts."},
	{ID: mtAuth.MetricPasswordChangeSuccess, Name: "mtauth_password_change_success_total", Help: "Successful password changes."},
	{ID: mtAuth.MetricPasswordChangeFailure, Name: "mtauth_password_change_failure_total", Help: "Rejected password changes."},
	{ID: mtAuth.MetricPasswordResetRequest, Name: "mtauth_password_reset_request_total", Help: "Password reset requests."},
	{ID: mtAuth.MetricPasswordResetSuccess, Name: "mtauth_password_reset_success_total", Help: "Redeemed password reset tokens."},
	{ID: mtAuth.MetricPasswordResetFailure, Name: "mtauth_password_reset_failure_total", Help: "Rejected password reset redemptions."},
	{ID: mtAuth.MetricRegisterSuccess, Name: "mtauth_register_success_total", Help: "Created accounts."},
	{ID: mtAuth.MetricRegisterFailure, Name: "mtauth_register_failure_total", Help: "Rejected registrations."},
	{ID: mtAuth.MetricRegisterDuplicate, Name: "mtauth_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: mtAuth.MetricRegisterRateLimited, Name: "mtauth_register_rate_limited_total", Help: "Throttled registrations."},
}

// HistogramDefs is an exported constant or variable used by the authentication engine.
var HistogramDefs = []HistogramDef{
	{ID: mtAuth.MetricLoginLatency, Name: "mtauth_login_latency_seconds", Help: "Login latency histogram."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters that
// emit one instrument per bucket.
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

// NormalizeBuckets copies raw into a fixed-size array.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
