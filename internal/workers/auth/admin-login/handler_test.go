// internal/workers/auth/admin-login/handler_test.go
package adminlogin

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"ymfb-workers/internal/common/config"
	cerrors "ymfb-workers/internal/common/errors"
	"ymfb-workers/internal/common/logger"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testPhone    = "08031111111"
	testPassword = "cr3dit-s3cret"
)

func testAdminConfig() config.AdminConfig {
	return config.AdminConfig{
		MaxFailedAttempts: 6,
		Credentials: []config.AdminCredential{
			{Phone: testPhone, Password: testPassword, Role: "credit", DisplayName: "Credit Reviewer"},
		},
	}
}

func createTestHandler(t *testing.T, db *sql.DB) *Handler {
	return NewHandler(LoadConfig(), db, testAdminConfig(), logger.NewTestLogger(t))
}

func attemptColumns() []string {
	return []string{"phone", "failed_attempts", "last_attempt_at", "locked_until"}
}

func expectNoPriorAttempt(mock sqlmock.Sqlmock, phone string) {
	mock.ExpectQuery(`SELECT phone, failed_attempts`).
		WithArgs(phone).
		WillReturnRows(sqlmock.NewRows(attemptColumns()))
}

func expectPriorAttempt(mock sqlmock.Sqlmock, phone string, failed int) {
	mock.ExpectQuery(`SELECT phone, failed_attempts`).
		WithArgs(phone).
		WillReturnRows(sqlmock.NewRows(attemptColumns()).
			AddRow(phone, failed, time.Now().UTC(), nil))
}

func TestExecute_FirstLoginSucceeds(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectNoPriorAttempt(mock, testPhone)
	mock.ExpectExec(`INSERT INTO admin_users`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := createTestHandler(t, db)
	output, err := handler.Execute(context.Background(), &Input{Phone: testPhone, Password: testPassword})

	require.NoError(t, err)
	assert.True(t, output.Authenticated)
	assert.Equal(t, "credit", output.Role)
	assert.Equal(t, "Credit Reviewer", output.DisplayName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_WrongPasswordCountsDown(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectNoPriorAttempt(mock, testPhone)
	mock.ExpectExec(`INSERT INTO admin_login_attempts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := createTestHandler(t, db)
	_, err = handler.Execute(context.Background(), &Input{Phone: testPhone, Password: "wrong"})

	var stdErr *cerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, cerrors.ErrCodeInvalidCredentials, stdErr.Code)
	assert.Equal(t, "Invalid credentials. 5 attempts remaining.", stdErr.Message)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_SixthFailureLocks(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectPriorAttempt(mock, testPhone, 5)
	mock.ExpectExec(`INSERT INTO admin_login_attempts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := createTestHandler(t, db)
	_, err = handler.Execute(context.Background(), &Input{Phone: testPhone, Password: "wrong"})

	var stdErr *cerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, cerrors.ErrCodeLocked, stdErr.Code)
	assert.Equal(t, "Account locked. Contact developer.", stdErr.Message)
}

func TestExecute_LockIsAbsorbing(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	// Correct password against a locked account: no credential check, no
	// counter write, still locked.
	expectPriorAttempt(mock, testPhone, 6)

	handler := createTestHandler(t, db)
	_, err = handler.Execute(context.Background(), &Input{Phone: testPhone, Password: testPassword})

	var stdErr *cerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, cerrors.ErrCodeLocked, stdErr.Code)
	assert.NoError(t, mock.ExpectationsWereMet(), "locked attempts must not write")
}

func TestExecute_ManualLockedUntilHonored(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	until := time.Now().UTC().Add(time.Hour)
	mock.ExpectQuery(`SELECT phone, failed_attempts`).
		WithArgs(testPhone).
		WillReturnRows(sqlmock.NewRows(attemptColumns()).
			AddRow(testPhone, 2, time.Now().UTC(), until))

	handler := createTestHandler(t, db)
	_, err = handler.Execute(context.Background(), &Input{Phone: testPhone, Password: testPassword})

	var stdErr *cerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, cerrors.ErrCodeLocked, stdErr.Code)
}

func TestExecute_SuccessResetsCounter(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectPriorAttempt(mock, testPhone, 3)
	mock.ExpectExec(`INSERT INTO admin_login_attempts`).
		WithArgs(testPhone, 0, sqlmock.AnyArg(), nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO admin_users`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := createTestHandler(t, db)
	output, err := handler.Execute(context.Background(), &Input{Phone: testPhone, Password: testPassword})

	require.NoError(t, err)
	assert.True(t, output.Authenticated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExecute_UnknownPhoneStillCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	expectNoPriorAttempt(mock, "08099999999")
	mock.ExpectExec(`INSERT INTO admin_login_attempts`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	handler := createTestHandler(t, db)
	_, err = handler.Execute(context.Background(), &Input{Phone: "08099999999", Password: "whatever"})

	var stdErr *cerrors.StandardError
	require.ErrorAs(t, err, &stdErr)
	assert.Equal(t, cerrors.ErrCodeInvalidCredentials, stdErr.Code)
}

func TestExecute_RequiresPhone(t *testing.T) {
	handler := createTestHandler(t, nil)
	_, err := handler.Execute(context.Background(), &Input{Password: "x"})
	assert.ErrorIs(t, err, ErrValidationFailed)
}
