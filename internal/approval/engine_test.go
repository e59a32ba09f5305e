package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ymfb-workers/internal/models"
)

func newSubmittedApplication() *models.LoanApplication {
	return &models.LoanApplication{
		ID:                "7b0d7f6e-12f3-4a8e-9a31-0a54a1f0c001",
		ApplicationNumber: "YMFB2025-000123",
		UserID:            "user-1",
		FullName:          "Adamu Bello",
		Status:            models.LoanStatusSubmitted,
		Amount:            750000,
	}
}

func amount(v float64) *float64 { return &v }

func TestApply_SingleApproveMovesToUnderReview(t *testing.T) {
	app := newSubmittedApplication()

	status, err := Apply(app, Command{
		Role:   models.RoleCredit,
		Action: models.ActionApprove,
		Notes:  "income verified",
	})

	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusUnderReview, status)
	assert.Equal(t, models.DecisionApproved, app.Credit.Decision)
	assert.Equal(t, "income verified", app.Credit.Notes)
	assert.NotNil(t, app.Credit.DecidedAt)
	assert.Nil(t, app.ApprovedAmount)
}

func TestApply_SecondApproveCompletesQuorum(t *testing.T) {
	app := newSubmittedApplication()

	_, err := Apply(app, Command{Role: models.RoleCredit, Action: models.ActionApprove})
	require.NoError(t, err)

	status, err := Apply(app, Command{
		Role:           models.RoleAudit,
		Action:         models.ActionApprove,
		ApprovedAmount: amount(500000),
	})

	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusApproved, status)
	require.NotNil(t, app.ApprovedAmount)
	assert.Equal(t, float64(500000), *app.ApprovedAmount)
	assert.Equal(t, models.DecisionApproved, app.Credit.Decision)
	assert.Equal(t, models.DecisionApproved, app.Audit.Decision)
	assert.Equal(t, models.DecisionNone, app.COO.Decision)
}

func TestApply_QuorumIsOrderIndependent(t *testing.T) {
	orders := [][2]models.ReviewerRole{
		{models.RoleCredit, models.RoleAudit},
		{models.RoleAudit, models.RoleCredit},
		{models.RoleCredit, models.RoleCOO},
		{models.RoleCOO, models.RoleAudit},
	}

	for _, pair := range orders {
		app := newSubmittedApplication()

		_, err := Apply(app, Command{Role: pair[0], Action: models.ActionApprove})
		require.NoError(t, err)

		status, err := Apply(app, Command{
			Role:           pair[1],
			Action:         models.ActionApprove,
			ApprovedAmount: amount(200000),
		})
		require.NoError(t, err)

		assert.Equal(t, models.LoanStatusApproved, status, "order %v", pair)
		assert.Equal(t, models.DecisionApproved, app.Review(pair[0]).Decision)
		assert.Equal(t, models.DecisionApproved, app.Review(pair[1]).Decision)
		assert.Equal(t, 2, app.ApprovalCount())
	}
}

func TestApply_QuorumCompletionRequiresAmount(t *testing.T) {
	tests := []struct {
		name   string
		amount *float64
	}{
		{name: "missing amount", amount: nil},
		{name: "zero amount", amount: amount(0)},
		{name: "negative amount", amount: amount(-5)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newSubmittedApplication()
			_, err := Apply(app, Command{Role: models.RoleCredit, Action: models.ActionApprove})
			require.NoError(t, err)

			_, err = Apply(app, Command{
				Role:           models.RoleCOO,
				Action:         models.ActionApprove,
				ApprovedAmount: tt.amount,
			})

			assert.ErrorIs(t, err, ErrMissingApprovedAmount)
		})
	}
}

func TestApply_DeclineByAnyReviewerIsFinal(t *testing.T) {
	app := newSubmittedApplication()

	// Audit already approved; a credit decline still ends the process.
	_, err := Apply(app, Command{Role: models.RoleAudit, Action: models.ActionApprove})
	require.NoError(t, err)

	status, err := Apply(app, Command{
		Role:          models.RoleCredit,
		Action:        models.ActionDecline,
		DeclineReason: "insufficient income",
	})

	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusDeclined, status)
	require.NotNil(t, app.DeclineReason)
	assert.Equal(t, "insufficient income", *app.DeclineReason)
	assert.Equal(t, models.DecisionDeclined, app.Credit.Decision)
	assert.Equal(t, 1, app.DeclineCount())

	// Terminal state: no further reviewer action is accepted.
	_, err = Apply(app, Command{Role: models.RoleCOO, Action: models.ActionApprove})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestApply_DeclineRequiresReason(t *testing.T) {
	app := newSubmittedApplication()

	_, err := Apply(app, Command{Role: models.RoleCredit, Action: models.ActionDecline})

	assert.ErrorIs(t, err, ErrMissingDeclineReason)
	assert.Equal(t, models.LoanStatusSubmitted, app.Status)
	assert.Equal(t, models.DecisionNone, app.Credit.Decision)
}

func TestApply_SameRoleTwiceInOneRoundRejected(t *testing.T) {
	app := newSubmittedApplication()

	_, err := Apply(app, Command{Role: models.RoleCredit, Action: models.ActionApprove})
	require.NoError(t, err)

	_, err = Apply(app, Command{Role: models.RoleCredit, Action: models.ActionApprove})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = Apply(app, Command{
		Role:          models.RoleCredit,
		Action:        models.ActionDecline,
		DeclineReason: "changed my mind",
	})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestApply_FurtherReviewParksAndResetsRound(t *testing.T) {
	app := newSubmittedApplication()

	_, err := Apply(app, Command{Role: models.RoleCredit, Action: models.ActionApprove})
	require.NoError(t, err)

	status, err := Apply(app, Command{Role: models.RoleAudit, Action: models.ActionFurtherReview})
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusFurtherReview, status)
	// Parking does not alter recorded decisions.
	assert.Equal(t, models.DecisionApproved, app.Credit.Decision)

	// The next action starts a new round: credit must approve again, so a
	// single audit approval is no longer enough for quorum.
	status, err = Apply(app, Command{Role: models.RoleAudit, Action: models.ActionApprove})
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusUnderReview, status)
	assert.Equal(t, models.DecisionNone, app.Credit.Decision)
	assert.Equal(t, 1, app.ApprovalCount())

	// Credit may decide again after the reset.
	status, err = Apply(app, Command{
		Role:           models.RoleCredit,
		Action:         models.ActionApprove,
		ApprovedAmount: amount(300000),
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusApproved, status)
}

func TestApply_RejectsWrongStartingStatus(t *testing.T) {
	tests := []struct {
		name   string
		status models.LoanStatus
	}{
		{name: "draft", status: models.LoanStatusDraft},
		{name: "approved", status: models.LoanStatusApproved},
		{name: "declined", status: models.LoanStatusDeclined},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newSubmittedApplication()
			app.Status = tt.status

			_, err := Apply(app, Command{Role: models.RoleCredit, Action: models.ActionApprove})
			assert.ErrorIs(t, err, ErrInvalidStateTransition)
		})
	}
}

func TestApply_UnknownRoleAndActionRejected(t *testing.T) {
	app := newSubmittedApplication()

	_, err := Apply(app, Command{Role: "operations", Action: models.ActionApprove})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	_, err = Apply(app, Command{Role: models.RoleCredit, Action: "escalate"})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestApply_InvariantsAfterTerminalStates(t *testing.T) {
	// approved implies >= 2 approvals and a non-nil amount.
	app := newSubmittedApplication()
	_, err := Apply(app, Command{Role: models.RoleCOO, Action: models.ActionApprove})
	require.NoError(t, err)
	_, err = Apply(app, Command{
		Role:           models.RoleAudit,
		Action:         models.ActionApprove,
		ApprovedAmount: amount(100000),
	})
	require.NoError(t, err)

	assert.GreaterOrEqual(t, app.ApprovalCount(), QuorumSize)
	assert.NotNil(t, app.ApprovedAmount)

	// declined implies a reason and at least one declined decision.
	app2 := newSubmittedApplication()
	_, err = Apply(app2, Command{
		Role:          models.RoleCOO,
		Action:        models.ActionDecline,
		DeclineReason: "guarantor unverifiable",
	})
	require.NoError(t, err)

	assert.NotNil(t, app2.DeclineReason)
	assert.GreaterOrEqual(t, app2.DeclineCount(), 1)
}

func TestApply_ScenarioSubmittedThroughApproval(t *testing.T) {
	app := newSubmittedApplication()
	now := time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC)

	status, err := Apply(app, Command{
		Role:      models.RoleCredit,
		Action:    models.ActionApprove,
		DecidedBy: "Credit Department",
		Now:       now,
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusUnderReview, status)
	assert.Equal(t, models.DecisionApproved, app.Credit.Decision)

	status, err = Apply(app, Command{
		Role:           models.RoleAudit,
		Action:         models.ActionApprove,
		ApprovedAmount: amount(500000),
		DecidedBy:      "Internal Audit",
		Now:            now.Add(time.Hour),
	})
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusApproved, status)
	assert.Equal(t, float64(500000), *app.ApprovedAmount)
	assert.Equal(t, now.Add(time.Hour), app.UpdatedAt)
}
