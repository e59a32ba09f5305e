// internal/workers/auth/admin-login/handler.go
package adminlogin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"ymfb-workers/internal/authguard"
	"ymfb-workers/internal/common/config"
	cerrors "ymfb-workers/internal/common/errors"
	"ymfb-workers/internal/common/logger"
	"ymfb-workers/internal/common/metrics"
	"ymfb-workers/internal/models"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "admin-login"

var (
	ErrValidationFailed = errors.New("VALIDATION_FAILED")
	ErrStorageError     = errors.New("STORAGE_ERROR")
)

type Handler struct {
	config *Config
	db     *sql.DB
	guard  *authguard.Guard
	logger logger.Logger
}

// NewHandler builds the worker from the provisioned credential table. The
// table lives in config, never in the database; the database only tracks
// attempt counters and durable principals.
func NewHandler(cfg *Config, db *sql.DB, adminCfg config.AdminConfig, log logger.Logger) *Handler {
	credentials := make(map[string]authguard.Credential, len(adminCfg.Credentials))
	for _, cred := range adminCfg.Credentials {
		credentials[cred.Phone] = authguard.Credential{
			Password:    cred.Password,
			Role:        models.AppRole(cred.Role),
			DisplayName: cred.DisplayName,
		}
	}

	return &Handler{
		config: cfg,
		db:     db,
		guard:  authguard.New(credentials, adminCfg.MaxFailedAttempts),
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
		var stdErr *cerrors.StandardError
		if errors.As(err, &stdErr) {
			h.failJob(client, job, string(stdErr.Code), stdErr.Message)
			return
		}

		errorCode := "UNKNOWN_ERROR"
		switch {
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
	if input.Phone == "" {
		return nil, fmt.Errorf("%w: phone is required", ErrValidationFailed)
	}

	prior, err := h.loadAttempt(ctx, input.Phone)
	if err != nil {
		return nil, err
	}

	result := h.guard.Evaluate(input.Phone, input.Password, prior)
	metrics.AdminLoginOutcomes.WithLabelValues(string(result.Verdict)).Inc()

	if result.Attempt != nil {
		if err := h.saveAttempt(ctx, result.Attempt); err != nil {
			return nil, err
		}
	}

	switch result.Verdict {
	case authguard.VerdictLocked:
		h.logger.Warn("login rejected, account locked", map[string]interface{}{
			"phone": input.Phone,
		})
		return nil, cerrors.NewLockedError(input.Phone)

	case authguard.VerdictInvalidCredentials:
		h.logger.Warn("login rejected, invalid credentials", map[string]interface{}{
			"phone":             input.Phone,
			"remainingAttempts": result.RemainingAttempts,
		})
		return nil, cerrors.NewInvalidCredentialsError(result.RemainingAttempts)
	}

	if err := h.ensurePrincipal(ctx, input.Phone, result.Role, result.DisplayName); err != nil {
		return nil, err
	}

	h.logger.Info("admin authenticated", map[string]interface{}{
		"phone": input.Phone,
		"role":  string(result.Role),
	})

	return &Output{
		Phone:         input.Phone,
		Role:          string(result.Role),
		DisplayName:   result.DisplayName,
		Authenticated: true,
	}, nil
}

func (h *Handler) loadAttempt(ctx context.Context, phone string) (*models.AdminLoginAttempt, error) {
	var (
		attempt     models.AdminLoginAttempt
		lockedUntil sql.NullTime
	)
	err := h.db.QueryRowContext(ctx, `
		SELECT phone, failed_attempts, last_attempt_at, locked_until
		FROM admin_login_attempts
		WHERE phone = $1`,
		phone,
	).Scan(&attempt.Phone, &attempt.FailedAttempts, &attempt.LastAttemptAt, &lockedUntil)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: load login attempts: %v", ErrStorageError, err)
	}
	if lockedUntil.Valid {
		at := lockedUntil.Time
		attempt.LockedUntil = &at
	}
	return &attempt, nil
}

func (h *Handler) saveAttempt(ctx context.Context, attempt *models.AdminLoginAttempt) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO admin_login_attempts (phone, failed_attempts, last_attempt_at, locked_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (phone) DO UPDATE
		SET failed_attempts = EXCLUDED.failed_attempts,
			last_attempt_at = EXCLUDED.last_attempt_at,
			locked_until = EXCLUDED.locked_until`,
		attempt.Phone, attempt.FailedAttempts, attempt.LastAttemptAt, attempt.LockedUntil,
	)
	if err != nil {
		return fmt.Errorf("%w: save login attempts: %v", ErrStorageError, err)
	}
	return nil
}

// ensurePrincipal creates the durable admin_users row on first successful
// login; later logins are no-ops.
func (h *Handler) ensurePrincipal(ctx context.Context, phone string, role models.AppRole, displayName string) error {
	_, err := h.db.ExecContext(ctx, `
		INSERT INTO admin_users (phone, role, display_name, created_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (phone) DO NOTHING`,
		phone, string(role), displayName,
	)
	if err != nil {
		return fmt.Errorf("%w: ensure admin user: %v", ErrStorageError, err)
	}
	return nil
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
