// internal/workers/account/account-review-decision/handler.go
package accountreviewdecision

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ymfb-workers/internal/common/logger"
	"ymfb-workers/internal/common/metrics"
	"ymfb-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "account-review-decision"

var (
	ErrNotFound               = errors.New("NOT_FOUND")
	ErrInvalidStateTransition = errors.New("INVALID_STATE_TRANSITION")
	ErrMissingDeclineReason   = errors.New("MISSING_DECLINE_REASON")
	ErrValidationFailed       = errors.New("VALIDATION_FAILED")
	ErrStorageError           = errors.New("STORAGE_ERROR")
)

// statusByAction maps a reviewer action to the resulting account status.
// Account applications have a single reviewer, so every action is final for
// the current round.
var statusByAction = map[string]models.AccountStatus{
	"approve":        models.AccountStatusApproved,
	"decline":        models.AccountStatusDeclined,
	"further_review": models.AccountStatusFurtherReview,
}

type Handler struct {
	config *Config
	db     *sql.DB
	logger logger.Logger
}

func NewHandler(config *Config, db *sql.DB, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
		logger: log.WithFields(map[string]interface{}{"taskType": TaskType}),
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(client, job, "PARSE_ERROR", fmt.Sprintf("parse input: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		errorCode := "UNKNOWN_ERROR"
		switch {
		case errors.Is(err, ErrNotFound):
			errorCode = "NOT_FOUND"
		case errors.Is(err, ErrInvalidStateTransition):
			errorCode = "INVALID_STATE_TRANSITION"
		case errors.Is(err, ErrMissingDeclineReason):
			errorCode = "MISSING_DECLINE_REASON"
		case errors.Is(err, ErrValidationFailed):
			errorCode = "VALIDATION_FAILED"
		case errors.Is(err, ErrStorageError):
			errorCode = "STORAGE_ERROR"
		}
		h.failJob(client, job, errorCode, err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, fmt.Errorf("%w: applicationId is required", ErrValidationFailed)
	}
	if input.ReviewedBy == "" {
		return nil, fmt.Errorf("%w: reviewedBy is required", ErrValidationFailed)
	}

	role := models.AppRole(input.ReviewerRole)
	if role != models.AppRoleOperations && role != models.AppRoleMD {
		return nil, fmt.Errorf("%w: %q cannot review account applications", ErrValidationFailed, input.ReviewerRole)
	}

	newStatus, ok := statusByAction[input.Action]
	if !ok {
		return nil, fmt.Errorf("%w: unknown action %q", ErrValidationFailed, input.Action)
	}
	if newStatus == models.AccountStatusDeclined && input.Notes == "" {
		return nil, fmt.Errorf("%w: declining requires notes", ErrMissingDeclineReason)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", ErrStorageError, err)
	}
	defer tx.Rollback()

	var (
		number string
		status string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT application_number, status
		FROM account_applications
		WHERE id = $1
		FOR UPDATE`,
		input.ApplicationID,
	).Scan(&number, &status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: account application %s", ErrNotFound, input.ApplicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load account application: %v", ErrStorageError, err)
	}

	current := models.AccountStatus(status)
	if current != models.AccountStatusPending && current != models.AccountStatusFurtherReview {
		return nil, fmt.Errorf("%w: account application %s is %s", ErrInvalidStateTransition, number, status)
	}

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, `
		UPDATE account_applications
		SET status = $1, notes = $2, reviewed_by = $3, reviewed_at = $4, updated_at = $4
		WHERE id = $5`,
		string(newStatus), input.Notes, input.ReviewedBy, now, input.ApplicationID,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: save decision: %v", ErrStorageError, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit decision: %v", ErrStorageError, err)
	}

	h.logger.Info("account decision applied", map[string]interface{}{
		"applicationId":     input.ApplicationID,
		"applicationNumber": number,
		"reviewerRole":      input.ReviewerRole,
		"status":            string(newStatus),
	})

	return &Output{
		ApplicationID:     input.ApplicationID,
		ApplicationNumber: number,
		ApplicationStatus: string(newStatus),
		ReviewedAt:        now.Format(time.RFC3339),
	}, nil
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) failJob(client worker.JobClient, job entities.Job, errorCode, errorMessage string) {
	h.logger.Error("job failed", map[string]interface{}{
		"jobKey":       job.Key,
		"errorCode":    errorCode,
		"errorMessage": errorMessage,
	})
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, errorCode).Inc()

	_, err := client.NewThrowErrorCommand().
		JobKey(job.Key).
		ErrorCode(errorCode).
		ErrorMessage(errorMessage).
		Send(context.Background())
	if err != nil {
		h.logger.Error("failed to throw error", map[string]interface{}{
			"error": err.Error(),
		})
	}
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
