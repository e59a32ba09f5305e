// Package approval holds the loan review decision rules. The functions here
// are pure: callers load the application row (under a row lock), apply one
// reviewer command, and persist the mutated record in the same transaction.
package approval

import (
	"errors"
	"fmt"
	"time"

	"ymfb-workers/internal/models"
)

// QuorumSize is how many reviewer approvals finalize a loan application.
const QuorumSize = 2

var (
	ErrInvalidStateTransition = errors.New("INVALID_STATE_TRANSITION")
	ErrMissingDeclineReason   = errors.New("MISSING_DECLINE_REASON")
	ErrMissingApprovedAmount  = errors.New("MISSING_APPROVED_AMOUNT")
)

// Command is one reviewer action against a loan application.
type Command struct {
	Role           models.ReviewerRole
	Action         models.ReviewAction
	Notes          string
	DeclineReason  string
	ApprovedAmount *float64
	DecidedBy      string
	Now            time.Time
}

// Apply mutates app according to the review rules and returns the resulting
// status. The rules:
//
//   - decline by any single reviewer is final (no quorum);
//   - further_review parks the application for re-circulation without touching
//     recorded decisions; the next reviewer action starts a fresh round;
//   - approve records the role's decision and finalizes the application once
//     QuorumSize roles have approved, in any order.
func Apply(app *models.LoanApplication, cmd Command) (models.LoanStatus, error) {
	switch app.Status {
	case models.LoanStatusSubmitted, models.LoanStatusUnderReview:
	case models.LoanStatusFurtherReview:
		// Re-circulated application: every role decides again.
		app.ResetRound()
	default:
		return app.Status, fmt.Errorf("%w: application %s is %s",
			ErrInvalidStateTransition, app.ApplicationNumber, app.Status)
	}

	review := app.Review(cmd.Role)
	if review == nil {
		return app.Status, fmt.Errorf("%w: %q is not a reviewer role",
			ErrInvalidStateTransition, cmd.Role)
	}
	if review.Decision != models.DecisionNone {
		return app.Status, fmt.Errorf("%w: %s already decided in this round",
			ErrInvalidStateTransition, cmd.Role)
	}

	now := cmd.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	switch cmd.Action {
	case models.ActionDecline:
		if cmd.DeclineReason == "" {
			return app.Status, fmt.Errorf("%w: application %s",
				ErrMissingDeclineReason, app.ApplicationNumber)
		}
		*review = models.RoleReview{
			Decision:  models.DecisionDeclined,
			Notes:     cmd.Notes,
			DecidedBy: cmd.DecidedBy,
			DecidedAt: &now,
		}
		reason := cmd.DeclineReason
		app.DeclineReason = &reason
		app.Status = models.LoanStatusDeclined

	case models.ActionFurtherReview:
		app.Status = models.LoanStatusFurtherReview

	case models.ActionApprove:
		*review = models.RoleReview{
			Decision:  models.DecisionApproved,
			Notes:     cmd.Notes,
			DecidedBy: cmd.DecidedBy,
			DecidedAt: &now,
		}
		if app.ApprovalCount() >= QuorumSize {
			if cmd.ApprovedAmount == nil || *cmd.ApprovedAmount <= 0 {
				return app.Status, fmt.Errorf("%w: application %s",
					ErrMissingApprovedAmount, app.ApplicationNumber)
			}
			amount := *cmd.ApprovedAmount
			app.ApprovedAmount = &amount
			app.Status = models.LoanStatusApproved
		} else {
			app.Status = models.LoanStatusUnderReview
		}

	default:
		return app.Status, fmt.Errorf("%w: unknown action %q",
			ErrInvalidStateTransition, cmd.Action)
	}

	app.UpdatedAt = now
	return app.Status, nil
}
