// internal/workers/account/account-review-decision/handler_test.go
package accountreviewdecision

import (
	"context"
	"database/sql"
	"testing"

	"ymfb-workers/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestHandler(t *testing.T, db *sql.DB) *Handler {
	return NewHandler(LoadConfig(), db, logger.NewTestLogger(t))
}

func expectDecision(mock sqlmock.Sqlmock, currentStatus string) {
	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT application_number, status`).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"application_number", "status"}).
			AddRow("ACC2025-000789", currentStatus))
	mock.ExpectExec(`UPDATE account_applications`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
}

func TestExecute_ApprovesPendingApplication(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectDecision(mock, "pending")

	handler := createTestHandler(t, db)
	output, err := handler.Execute(context.Background(), &Input{
		ApplicationID: "acc-1",
		ReviewerRole:  "operations",
		Action:        "approve",
		ReviewedBy:    "08034444444",
	})

	require.NoError(t, err)
	assert.Equal(t, "approved", output.ApplicationStatus)
	assert.Equal(t, "ACC2025-000789", output.ApplicationNumber)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_FurtherReviewCanBeRedecided(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectDecision(mock, "further_review")

	handler := createTestHandler(t, db)
	output, err := handler.Execute(context.Background(), &Input{
		ApplicationID: "acc-1",
		ReviewerRole:  "md",
		Action:        "decline",
		Notes:         "BVN mismatch",
		ReviewedBy:    "08035555555",
	})

	require.NoError(t, err)
	assert.Equal(t, "declined", output.ApplicationStatus)
}

func TestExecute_DecidedApplicationRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT application_number, status`).
		WithArgs("acc-1").
		WillReturnRows(sqlmock.NewRows([]string{"application_number", "status"}).
			AddRow("ACC2025-000789", "approved"))
	mock.ExpectRollback()

	handler := createTestHandler(t, db)
	_, err = handler.Execute(context.Background(), &Input{
		ApplicationID: "acc-1",
		ReviewerRole:  "operations",
		Action:        "approve",
		ReviewedBy:    "08034444444",
	})

	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestExecute_DeclineRequiresNotes(t *testing.T) {
	handler := createTestHandler(t, nil)

	_, err := handler.Execute(context.Background(), &Input{
		ApplicationID: "acc-1",
		ReviewerRole:  "operations",
		Action:        "decline",
		ReviewedBy:    "08034444444",
	})

	assert.ErrorIs(t, err, ErrMissingDeclineReason)
}

func TestExecute_LoanReviewerCannotDecideAccounts(t *testing.T) {
	handler := createTestHandler(t, nil)

	for _, role := range []string{"credit", "audit", "coo", ""} {
		_, err := handler.Execute(context.Background(), &Input{
			ApplicationID: "acc-1",
			ReviewerRole:  role,
			Action:        "approve",
			ReviewedBy:    "08031111111",
		})
		assert.ErrorIs(t, err, ErrValidationFailed, "role %q", role)
	}
}

func TestExecute_UnknownApplication(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT application_number, status`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"application_number", "status"}))
	mock.ExpectRollback()

	handler := createTestHandler(t, db)
	_, err = handler.Execute(context.Background(), &Input{
		ApplicationID: "missing",
		ReviewerRole:  "md",
		Action:        "approve",
		ReviewedBy:    "08035555555",
	})

	assert.ErrorIs(t, err, ErrNotFound)
}
