// internal/workers/loan/loan-submit/handler.go
package loansubmit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ymfb-workers/internal/common/cache"
	"ymfb-workers/internal/common/logger"
	"ymfb-workers/internal/common/metrics"
	"ymfb-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/redis/go-redis/v9"
)

const TaskType = "loan-submit"

var (
	ErrNotFound               = errors.New("NOT_FOUND")
	ErrInvalidStateTransition = errors.New("INVALID_STATE_TRANSITION")
	ErrValidationFailed       = errors.New("VALIDATION_FAILED")
	ErrStorageError           = errors.New("STORAGE_ERROR")
)

type Handler struct {
	config *Config
	db     *sql.DB
	redis  *redis.Client
	logger logger.Logger
}

// NewHandler wires the worker. redis may be nil; submission then skips the
// search cache invalidation.
func NewHandler(config *Config, db *sql.DB, rdb *redis.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
		redis:  rdb,
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

	var (
		number  string
		status  string
		payload applicationPayload
	)
	err := h.db.QueryRowContext(ctx, `
		SELECT application_number, status,
			full_name, phone, ministry, employee_id, bvn, nin, address,
			amount, period, purpose, account_type
		FROM loan_applications
		WHERE id = $1`,
		input.ApplicationID,
	).Scan(
		&number, &status,
		&payload.FullName, &payload.Phone, &payload.Ministry, &payload.EmployeeID,
		&payload.BVN, &payload.NIN, &payload.Address,
		&payload.Amount, &payload.Period, &payload.Purpose, &payload.AccountType,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: application %s", ErrNotFound, input.ApplicationID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load application: %v", ErrStorageError, err)
	}

	if models.LoanStatus(status) != models.LoanStatusDraft {
		return nil, fmt.Errorf("%w: cannot submit application in status %s", ErrInvalidStateTransition, status)
	}

	if err := validatePayload(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	res, err := h.db.ExecContext(ctx, `
		UPDATE loan_applications
		SET status = $1, submitted_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4`,
		string(models.LoanStatusSubmitted), now, input.ApplicationID, string(models.LoanStatusDraft),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: submit application: %v", ErrStorageError, err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		// Raced with another submit of the same draft.
		return nil, fmt.Errorf("%w: application %s is no longer a draft", ErrInvalidStateTransition, input.ApplicationID)
	}

	cache.Invalidate(ctx, h.redis, h.logger)

	h.logger.Info("application submitted", map[string]interface{}{
		"applicationId":     input.ApplicationID,
		"applicationNumber": number,
	})

	return &Output{
		ApplicationID:     input.ApplicationID,
		ApplicationNumber: number,
		ApplicationStatus: string(models.LoanStatusSubmitted),
		SubmittedAt:       now,
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
