package models

import "time"

// AppRole is a back-office identity. Credit, audit and coo review loans;
// operations and md review account applications.
type AppRole string

const (
	AppRoleCredit     AppRole = "credit"
	AppRoleAudit      AppRole = "audit"
	AppRoleCOO        AppRole = "coo"
	AppRoleOperations AppRole = "operations"
	AppRoleMD         AppRole = "md"
)

// AdminLoginAttempt tracks failed admin logins per phone number. A row is
// created on the first failure and never deleted; failed_attempts resets to 0
// on a successful authentication.
type AdminLoginAttempt struct {
	Phone          string     `json:"phone" db:"phone"`
	FailedAttempts int        `json:"failedAttempts" db:"failed_attempts"`
	LastAttemptAt  time.Time  `json:"lastAttemptAt" db:"last_attempt_at"`
	LockedUntil    *time.Time `json:"lockedUntil,omitempty" db:"locked_until"`
}

// AdminUser is the durable principal for an admin role, created on first
// successful login and reused thereafter.
type AdminUser struct {
	Phone       string    `json:"phone" db:"phone"`
	Role        AppRole   `json:"role" db:"role"`
	DisplayName string    `json:"displayName" db:"display_name"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
