// internal/workers/loan/loan-review-decision/handler.go
package loanreviewdecision

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ymfb-workers/internal/approval"
	"ymfb-workers/internal/common/cache"
	"ymfb-workers/internal/common/logger"
	"ymfb-workers/internal/common/metrics"
	"ymfb-workers/internal/models"
	"ymfb-workers/internal/search"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
)

const TaskType = "loan-review-decision"

var (
	ErrNotFound         = errors.New("NOT_FOUND")
	ErrValidationFailed = errors.New("VALIDATION_FAILED")
	ErrStorageError     = errors.New("STORAGE_ERROR")
)

type Handler struct {
	config *Config
	db     *sql.DB
	redis  *redis.Client
	es     *elasticsearch.Client
	logger logger.Logger
}

// NewHandler wires the worker. redis and es may be nil; the decision is then
// applied without cache invalidation or search indexing.
func NewHandler(config *Config, db *sql.DB, rdb *redis.Client, es *elasticsearch.Client, log logger.Logger) *Handler {
	return &Handler{
		config: config,
		db:     db,
		redis:  rdb,
		es:     es,
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
		case errors.Is(err, approval.ErrInvalidStateTransition):
			errorCode = "INVALID_STATE_TRANSITION"
		case errors.Is(err, approval.ErrMissingDeclineReason):
			errorCode = "MISSING_DECLINE_REASON"
		case errors.Is(err, approval.ErrMissingApprovedAmount):
			errorCode = "MISSING_APPROVED_AMOUNT"
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

// execute applies one reviewer decision inside a transaction. The row is
// locked with FOR UPDATE so two reviewers deciding concurrently serialize:
// the second sees the first's decision and the quorum rule runs on current
// state, never on a stale snapshot.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, fmt.Errorf("%w: applicationId is required", ErrValidationFailed)
	}
	if input.DecidedBy == "" {
		return nil, fmt.Errorf("%w: decidedBy is required", ErrValidationFailed)
	}

	tx, err := h.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin transaction: %v", ErrStorageError, err)
	}
	defer tx.Rollback()

	app, err := lockApplication(ctx, tx, input.ApplicationID)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	status, err := approval.Apply(app, approval.Command{
		Role:           models.ReviewerRole(input.ReviewerRole),
		Action:         models.ReviewAction(input.Action),
		Notes:          input.Notes,
		DeclineReason:  input.DeclineReason,
		ApprovedAmount: input.ApprovedAmount,
		DecidedBy:      input.DecidedBy,
		Now:            now,
	})
	if err != nil {
		return nil, err
	}

	if err := saveDecisionState(ctx, tx, app); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit decision: %v", ErrStorageError, err)
	}

	cache.Invalidate(ctx, h.redis, h.logger)
	search.IndexApplication(ctx, h.es, app, h.logger)
	metrics.ReviewDecisions.WithLabelValues(input.ReviewerRole, string(status)).Inc()

	h.logger.Info("review decision applied", map[string]interface{}{
		"applicationId":     app.ID,
		"applicationNumber": app.ApplicationNumber,
		"reviewerRole":      input.ReviewerRole,
		"action":            input.Action,
		"status":            string(status),
		"approvalCount":     app.ApprovalCount(),
	})

	return &Output{
		ApplicationID:     app.ID,
		ApplicationNumber: app.ApplicationNumber,
		ApplicationStatus: string(status),
		ReviewerRole:      input.ReviewerRole,
		Action:            input.Action,
		ApprovalCount:     app.ApprovalCount(),
		DecidedAt:         now.Format(time.RFC3339),
	}, nil
}

// lockApplication loads the application row under FOR UPDATE.
func lockApplication(ctx context.Context, tx *sql.Tx, id string) (*models.LoanApplication, error) {
	var (
		app            models.LoanApplication
		reviews        [3]reviewColumns
		approvedAmount sql.NullFloat64
		declineReason  sql.NullString
	)

	err := tx.QueryRowContext(ctx, `
		SELECT id, application_number, user_id, full_name, phone, email, ministry,
			amount, status,
			credit_decision, credit_notes, credit_decided_by, credit_decided_at,
			audit_decision, audit_notes, audit_decided_by, audit_decided_at,
			coo_decision, coo_notes, coo_decided_by, coo_decided_at,
			approved_amount, decline_reason, updated_at
		FROM loan_applications
		WHERE id = $1
		FOR UPDATE`,
		id,
	).Scan(
		&app.ID, &app.ApplicationNumber, &app.UserID, &app.FullName, &app.Phone,
		&app.Email, &app.Ministry, &app.Amount, &app.Status,
		&reviews[0].decision, &reviews[0].notes, &reviews[0].decidedBy, &reviews[0].decidedAt,
		&reviews[1].decision, &reviews[1].notes, &reviews[1].decidedBy, &reviews[1].decidedAt,
		&reviews[2].decision, &reviews[2].notes, &reviews[2].decidedBy, &reviews[2].decidedAt,
		&approvedAmount, &declineReason, &app.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: application %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load application: %v", ErrStorageError, err)
	}

	app.Credit = reviews[0].toReview()
	app.Audit = reviews[1].toReview()
	app.COO = reviews[2].toReview()
	if approvedAmount.Valid {
		app.ApprovedAmount = &approvedAmount.Float64
	}
	if declineReason.Valid {
		app.DeclineReason = &declineReason.String
	}
	return &app, nil
}

// saveDecisionState writes the full decision block back in the same
// transaction that holds the row lock.
func saveDecisionState(ctx context.Context, tx *sql.Tx, app *models.LoanApplication) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE loan_applications
		SET status = $1,
			credit_decision = $2, credit_notes = $3, credit_decided_by = $4, credit_decided_at = $5,
			audit_decision = $6, audit_notes = $7, audit_decided_by = $8, audit_decided_at = $9,
			coo_decision = $10, coo_notes = $11, coo_decided_by = $12, coo_decided_at = $13,
			approved_amount = $14, decline_reason = $15, updated_at = $16
		WHERE id = $17`,
		string(app.Status),
		string(app.Credit.Decision), app.Credit.Notes, app.Credit.DecidedBy, app.Credit.DecidedAt,
		string(app.Audit.Decision), app.Audit.Notes, app.Audit.DecidedBy, app.Audit.DecidedAt,
		string(app.COO.Decision), app.COO.Notes, app.COO.DecidedBy, app.COO.DecidedAt,
		app.ApprovedAmount, app.DeclineReason, app.UpdatedAt,
		app.ID,
	)
	if err != nil {
		return fmt.Errorf("%w: save decision: %v", ErrStorageError, err)
	}
	return nil
}

type reviewColumns struct {
	decision  sql.NullString
	notes     sql.NullString
	decidedBy sql.NullString
	decidedAt sql.NullTime
}

func (c reviewColumns) toReview() models.RoleReview {
	review := models.RoleReview{
		Decision:  models.ReviewDecision(c.decision.String),
		Notes:     c.notes.String,
		DecidedBy: c.decidedBy.String,
	}
	if c.decidedAt.Valid {
		at := c.decidedAt.Time
		review.DecidedAt = &at
	}
	return review
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
