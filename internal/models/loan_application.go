package models

import "time"

// LoanStatus is the lifecycle state of a loan application.
type LoanStatus string

const (
	LoanStatusDraft         LoanStatus = "draft"
	LoanStatusSubmitted     LoanStatus = "submitted"
	LoanStatusUnderReview   LoanStatus = "under_review"
	LoanStatusFurtherReview LoanStatus = "further_review"
	LoanStatusApproved      LoanStatus = "approved"
	LoanStatusDeclined      LoanStatus = "declined"
)

// ReviewerRole identifies one of the three quorum reviewers.
type ReviewerRole string

const (
	RoleCredit ReviewerRole = "credit"
	RoleAudit  ReviewerRole = "audit"
	RoleCOO    ReviewerRole = "coo"
)

// ReviewerRoles lists the quorum roles in canonical order.
var ReviewerRoles = []ReviewerRole{RoleCredit, RoleAudit, RoleCOO}

// ReviewDecision is an explicit tri-state per reviewer role. Stored as text so
// "not decided" is a value, not a NULL boolean.
type ReviewDecision string

const (
	DecisionNone     ReviewDecision = ""
	DecisionApproved ReviewDecision = "approved"
	DecisionDeclined ReviewDecision = "declined"
)

// ReviewAction is a reviewer's incoming action on an application.
type ReviewAction string

const (
	ActionApprove       ReviewAction = "approve"
	ActionDecline       ReviewAction = "decline"
	ActionFurtherReview ReviewAction = "further_review"
)

// RoleReview holds one reviewer role's decision state for the current round.
type RoleReview struct {
	Decision  ReviewDecision `json:"decision" db:"decision"`
	Notes     string         `json:"notes,omitempty" db:"notes"`
	DecidedBy string         `json:"decidedBy,omitempty" db:"decided_by"`
	DecidedAt *time.Time     `json:"decidedAt,omitempty" db:"decided_at"`
}

// LoanApplication is the system-of-record row for a loan application.
type LoanApplication struct {
	ID                string     `json:"id" db:"id"`
	ApplicationNumber string     `json:"applicationNumber" db:"application_number"`
	UserID            string     `json:"userId" db:"user_id"`
	FullName          string     `json:"fullName" db:"full_name"`
	Phone             string     `json:"phone" db:"phone"`
	Email             string     `json:"email" db:"email"`
	Ministry          string     `json:"ministry" db:"ministry"`
	EmployeeID        string     `json:"employeeId" db:"employee_id"`
	BVN               string     `json:"bvn" db:"bvn"`
	NIN               string     `json:"nin" db:"nin"`
	Address           string     `json:"address" db:"address"`
	Amount            float64    `json:"amount" db:"amount"`
	Period            int        `json:"period" db:"period"` // months
	Purpose           string     `json:"purpose" db:"purpose"`
	AccountType       string     `json:"accountType" db:"account_type"`
	Status            LoanStatus `json:"status" db:"status"`

	Credit RoleReview `json:"credit"`
	Audit  RoleReview `json:"audit"`
	COO    RoleReview `json:"coo"`

	ApprovedAmount *float64 `json:"approvedAmount,omitempty" db:"approved_amount"`
	DeclineReason  *string  `json:"declineReason,omitempty" db:"decline_reason"`

	CreatedAt   time.Time  `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time  `json:"updatedAt" db:"updated_at"`
	SubmittedAt *time.Time `json:"submittedAt,omitempty" db:"submitted_at"`
}

// Review returns the decision block for a reviewer role.
func (a *LoanApplication) Review(role ReviewerRole) *RoleReview {
	switch role {
	case RoleCredit:
		return &a.Credit
	case RoleAudit:
		return &a.Audit
	case RoleCOO:
		return &a.COO
	}
	return nil
}

// ApprovalCount returns how many reviewer roles have approved in the current round.
func (a *LoanApplication) ApprovalCount() int {
	count := 0
	for _, role := range ReviewerRoles {
		if a.Review(role).Decision == DecisionApproved {
			count++
		}
	}
	return count
}

// DeclineCount returns how many reviewer roles have declined in the current round.
func (a *LoanApplication) DeclineCount() int {
	count := 0
	for _, role := range ReviewerRoles {
		if a.Review(role).Decision == DecisionDeclined {
			count++
		}
	}
	return count
}

// ResetRound clears all reviewer decisions, starting a fresh review round.
func (a *LoanApplication) ResetRound() {
	a.Credit = RoleReview{}
	a.Audit = RoleReview{}
	a.COO = RoleReview{}
}
