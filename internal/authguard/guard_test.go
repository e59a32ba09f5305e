package authguard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ymfb-workers/internal/models"
)

var testCredentials = map[string]Credential{
	"08012345678": {Password: "Admin340261h", Role: models.AppRoleCredit, DisplayName: "Credit Department"},
	"08012345677": {Password: "Admin718392m", Role: models.AppRoleAudit, DisplayName: "Internal Audit"},
	"08012345676": {Password: "Admin2049318w", Role: models.AppRoleCOO, DisplayName: "Chief Operations Officer"},
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestGuard() *Guard {
	return New(testCredentials, DefaultMaxFailedAttempts).
		WithClock(fixedClock(time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)))
}

func TestEvaluate_SuccessFirstLogin(t *testing.T) {
	guard := newTestGuard()

	result := guard.Evaluate("08012345678", "Admin340261h", nil)

	assert.Equal(t, VerdictAuthenticated, result.Verdict)
	assert.Equal(t, models.AppRoleCredit, result.Role)
	assert.Equal(t, "Credit Department", result.DisplayName)
	// No prior record means there is nothing to reset.
	assert.Nil(t, result.Attempt)
}

func TestEvaluate_WrongPasswordIncrementsCounter(t *testing.T) {
	guard := newTestGuard()

	result := guard.Evaluate("08012345678", "wrong", nil)

	assert.Equal(t, VerdictInvalidCredentials, result.Verdict)
	assert.Equal(t, 5, result.RemainingAttempts)
	require.NotNil(t, result.Attempt)
	assert.Equal(t, 1, result.Attempt.FailedAttempts)
	assert.Equal(t, "08012345678", result.Attempt.Phone)
}

func TestEvaluate_UnknownPhoneCountsAsFailure(t *testing.T) {
	guard := newTestGuard()

	result := guard.Evaluate("08099999999", "whatever", nil)

	assert.Equal(t, VerdictInvalidCredentials, result.Verdict)
	assert.Equal(t, 5, result.RemainingAttempts)
	require.NotNil(t, result.Attempt)
	assert.Equal(t, 1, result.Attempt.FailedAttempts)
}

func TestEvaluate_FiveFailuresThenSixthLocks(t *testing.T) {
	guard := newTestGuard()

	var prior *models.AdminLoginAttempt
	for i := 1; i <= 5; i++ {
		result := guard.Evaluate("08012345677", "wrong", prior)
		require.Equal(t, VerdictInvalidCredentials, result.Verdict, "attempt %d", i)
		require.NotNil(t, result.Attempt)
		assert.Equal(t, i, result.Attempt.FailedAttempts)
		assert.Equal(t, 6-i, result.RemainingAttempts)
		prior = result.Attempt
	}

	// Unlocked(5): one attempt remaining.
	assert.Equal(t, 5, prior.FailedAttempts)

	// The sixth failure locks.
	result := guard.Evaluate("08012345677", "wrong", prior)
	assert.Equal(t, VerdictLocked, result.Verdict)
	require.NotNil(t, result.Attempt)
	assert.Equal(t, 6, result.Attempt.FailedAttempts)
}

func TestEvaluate_LockIsAbsorbing(t *testing.T) {
	guard := newTestGuard()
	prior := &models.AdminLoginAttempt{Phone: "08012345677", FailedAttempts: 6}

	// A correct password does not authenticate a locked phone.
	result := guard.Evaluate("08012345677", "Admin718392m", prior)
	assert.Equal(t, VerdictLocked, result.Verdict)
	assert.Empty(t, result.Role)

	// Nor does it advance the counter.
	assert.Nil(t, result.Attempt)

	// Repeated wrong passwords stay locked without incrementing either.
	result = guard.Evaluate("08012345677", "wrong", prior)
	assert.Equal(t, VerdictLocked, result.Verdict)
	assert.Nil(t, result.Attempt)
}

func TestEvaluate_LockedUntilInFutureRejects(t *testing.T) {
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	guard := New(testCredentials, DefaultMaxFailedAttempts).WithClock(fixedClock(now))

	until := now.Add(time.Hour)
	prior := &models.AdminLoginAttempt{Phone: "08012345676", FailedAttempts: 2, LockedUntil: &until}

	result := guard.Evaluate("08012345676", "Admin2049318w", prior)
	assert.Equal(t, VerdictLocked, result.Verdict)
}

func TestEvaluate_ExpiredLockedUntilIsIgnored(t *testing.T) {
	// locked_until is only honored while in the future; an expired manual lock
	// falls back to the counter.
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	guard := New(testCredentials, DefaultMaxFailedAttempts).WithClock(fixedClock(now))

	until := now.Add(-time.Hour)
	prior := &models.AdminLoginAttempt{Phone: "08012345676", FailedAttempts: 2, LockedUntil: &until}

	result := guard.Evaluate("08012345676", "Admin2049318w", prior)
	assert.Equal(t, VerdictAuthenticated, result.Verdict)
	assert.Equal(t, models.AppRoleCOO, result.Role)
}

func TestEvaluate_SuccessResetsCounter(t *testing.T) {
	guard := newTestGuard()
	until := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	prior := &models.AdminLoginAttempt{
		Phone:          "08012345678",
		FailedAttempts: 3,
		LockedUntil:    &until,
	}

	result := guard.Evaluate("08012345678", "Admin340261h", prior)

	assert.Equal(t, VerdictAuthenticated, result.Verdict)
	require.NotNil(t, result.Attempt)
	assert.Equal(t, 0, result.Attempt.FailedAttempts)
	assert.Nil(t, result.Attempt.LockedUntil)
}

func TestEvaluate_FailurePreservesManualLockTimestamp(t *testing.T) {
	// An expired locked_until is carried through on failure rather than
	// silently dropped; only a successful login clears it.
	now := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	guard := New(testCredentials, DefaultMaxFailedAttempts).WithClock(fixedClock(now))

	until := now.Add(-time.Minute)
	prior := &models.AdminLoginAttempt{Phone: "08012345678", FailedAttempts: 1, LockedUntil: &until}

	result := guard.Evaluate("08012345678", "wrong", prior)
	require.Equal(t, VerdictInvalidCredentials, result.Verdict)
	require.NotNil(t, result.Attempt)
	assert.Equal(t, &until, result.Attempt.LockedUntil)
}
