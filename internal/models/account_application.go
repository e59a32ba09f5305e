package models

import "time"

// AccountStatus is the lifecycle state of an account-opening application.
// Account applications have a single reviewer and no quorum.
type AccountStatus string

const (
	AccountStatusPending       AccountStatus = "pending"
	AccountStatusApproved      AccountStatus = "approved"
	AccountStatusDeclined      AccountStatus = "declined"
	AccountStatusFurtherReview AccountStatus = "further_review"
)

// AccountApplication is the system-of-record row for an account-opening application.
type AccountApplication struct {
	ID                string        `json:"id" db:"id"`
	ApplicationNumber string        `json:"applicationNumber" db:"application_number"`
	UserID            string        `json:"userId" db:"user_id"`
	FullName          string        `json:"fullName" db:"full_name"`
	Phone             string        `json:"phone" db:"phone"`
	Email             string        `json:"email" db:"email"`
	Address           string        `json:"address" db:"residential_address"`
	BVN               string        `json:"bvn" db:"bvn"`
	NIN               string        `json:"nin" db:"nin"`
	AccountType       string        `json:"accountType" db:"account_type"`
	Status            AccountStatus `json:"status" db:"status"`
	Notes             string        `json:"notes,omitempty" db:"notes"`
	ReviewedBy        string        `json:"reviewedBy,omitempty" db:"reviewed_by"`
	ReviewedAt        *time.Time    `json:"reviewedAt,omitempty" db:"reviewed_at"`
	CreatedAt         time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time     `json:"updatedAt" db:"updated_at"`
}
