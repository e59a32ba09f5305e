// internal/workers/loan/loan-create/handler.go
package loancreate

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"ymfb-workers/internal/common/logger"
	"ymfb-workers/internal/common/metrics"
	"ymfb-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	TaskType = "loan-create"

	applicationNumberPrefix = "YMFB"
	uniqueViolation         = "23505"
)

var (
	ErrStorageError         = errors.New("STORAGE_ERROR")
	ErrDuplicateApplication = errors.New("DUPLICATE_APPLICATION")
)

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
		if errors.Is(err, ErrDuplicateApplication) {
			errorCode = "DUPLICATE_APPLICATION"
		} else if errors.Is(err, ErrStorageError) {
			errorCode = "STORAGE_ERROR"
		}
		h.failJob(client, job, errorCode, err.Error())
		return
	}

	h.completeJob(client, job, output)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	appID := uuid.New().String()
	now := time.Now().UTC()
	createdAt := now.Format(time.RFC3339)

	// The application number carries no uniqueness guarantee by construction;
	// the UNIQUE constraint on the column does, and a conflict just means we
	// roll a new number.
	var lastNumber string
	for attempt := 0; attempt < h.config.MaxNumberRetries; attempt++ {
		lastNumber = generateApplicationNumber(applicationNumberPrefix, now)

		_, err := h.db.ExecContext(ctx, `
			INSERT INTO loan_applications (
				id, application_number, user_id, full_name, phone, email,
				ministry, employee_id, bvn, nin, address,
				amount, period, purpose, account_type,
				status, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $17)`,
			appID,
			lastNumber,
			input.UserID,
			input.FullName,
			input.Phone,
			input.Email,
			input.Ministry,
			input.EmployeeID,
			input.BVN,
			input.NIN,
			input.Address,
			input.Amount,
			input.Period,
			input.Purpose,
			input.AccountType,
			string(models.LoanStatusDraft),
			createdAt,
		)
		if err == nil {
			h.logger.Info("draft application created", map[string]interface{}{
				"applicationId":     appID,
				"applicationNumber": lastNumber,
				"userId":            input.UserID,
			})
			return &Output{
				ApplicationID:     appID,
				ApplicationNumber: lastNumber,
				ApplicationStatus: string(models.LoanStatusDraft),
				CreatedAt:         createdAt,
			}, nil
		}

		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			h.logger.Warn("application number collision, regenerating", map[string]interface{}{
				"applicationNumber": lastNumber,
				"attempt":           attempt + 1,
			})
			continue
		}

		return nil, fmt.Errorf("%w: insert failed: %v", ErrStorageError, err)
	}

	return nil, fmt.Errorf("%w: could not allocate a unique application number after %d tries (last %s)",
		ErrDuplicateApplication, h.config.MaxNumberRetries, lastNumber)
}

// generateApplicationNumber builds YMFB<year>-<6 random digits>.
func generateApplicationNumber(prefix string, now time.Time) string {
	return fmt.Sprintf("%s%d-%06d", prefix, now.Year(), rand.IntN(1000000))
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
