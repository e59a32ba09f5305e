// Package authguard gates admin authentication behind a fixed credential table
// and a failure-count lockout. The guard itself is pure decision logic; the
// admin-login worker persists the attempt record it returns.
package authguard

import (
	"crypto/subtle"
	"time"

	"ymfb-workers/internal/models"
)

// DefaultMaxFailedAttempts locks a phone after this many consecutive failures.
const DefaultMaxFailedAttempts = 6

// Verdict is the outcome of one authentication attempt.
type Verdict string

const (
	VerdictAuthenticated      Verdict = "authenticated"
	VerdictInvalidCredentials Verdict = "invalid_credentials"
	VerdictLocked             Verdict = "locked"
)

// Credential is one provisioned admin identity.
type Credential struct {
	Password    string
	Role        models.AppRole
	DisplayName string
}

// Guard evaluates admin login attempts against an injected credential table.
type Guard struct {
	credentials map[string]Credential
	maxAttempts int
	now         func() time.Time
}

func New(credentials map[string]Credential, maxAttempts int) *Guard {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxFailedAttempts
	}
	return &Guard{
		credentials: credentials,
		maxAttempts: maxAttempts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the time source. Tests use this to pin timestamps.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.now = now
	return g
}

// Result carries the verdict plus the attempt record to persist. Attempt is
// nil when nothing must be written (already locked, or first-ever success).
type Result struct {
	Verdict           Verdict
	Role              models.AppRole
	DisplayName       string
	RemainingAttempts int
	Attempt           *models.AdminLoginAttempt
}

// Evaluate applies the lockout state machine to one login attempt. prior is
// the stored attempt record for the phone, nil if none exists yet.
//
// Lockout is absorbing: once failed_attempts reaches the threshold, a correct
// password no longer authenticates and the counter is not advanced further.
// Clearing the lock is a manual operation outside the application.
func (g *Guard) Evaluate(phone, password string, prior *models.AdminLoginAttempt) Result {
	now := g.now()

	if prior != nil {
		if prior.FailedAttempts >= g.maxAttempts {
			return Result{Verdict: VerdictLocked}
		}
		if prior.LockedUntil != nil && prior.LockedUntil.After(now) {
			return Result{Verdict: VerdictLocked}
		}
	}

	cred, ok := g.credentials[phone]
	if !ok || subtle.ConstantTimeCompare([]byte(cred.Password), []byte(password)) != 1 {
		updated := models.AdminLoginAttempt{
			Phone:          phone,
			FailedAttempts: 1,
			LastAttemptAt:  now,
		}
		if prior != nil {
			updated.FailedAttempts = prior.FailedAttempts + 1
			updated.LockedUntil = prior.LockedUntil
		}

		remaining := g.maxAttempts - updated.FailedAttempts
		if remaining <= 0 {
			return Result{Verdict: VerdictLocked, Attempt: &updated}
		}
		return Result{
			Verdict:           VerdictInvalidCredentials,
			RemainingAttempts: remaining,
			Attempt:           &updated,
		}
	}

	result := Result{
		Verdict:     VerdictAuthenticated,
		Role:        cred.Role,
		DisplayName: cred.DisplayName,
	}
	if prior != nil {
		result.Attempt = &models.AdminLoginAttempt{
			Phone:          phone,
			FailedAttempts: 0,
			LastAttemptAt:  now,
			LockedUntil:    nil,
		}
	}
	return result
}
