// internal/workers/notification/decision-notify/handler.go
package decisionnotify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"ymfb-workers/internal/common/config"
	commonhttp "ymfb-workers/internal/common/http"
	"ymfb-workers/internal/common/logger"
	"ymfb-workers/internal/common/metrics"
	"ymfb-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const TaskType = "decision-notify"

var (
	ErrNotificationSendFailed = errors.New("NOTIFICATION_SEND_FAILED")
	ErrValidationFailed       = errors.New("VALIDATION_FAILED")
)

// EmailSender is satisfied by aws.SESClient; tests substitute a fake.
type EmailSender interface {
	SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error)
}

// SMSSender is satisfied by aws.SNSClient; tests substitute a fake.
type SMSSender interface {
	Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error)
}

type Handler struct {
	config     *Config
	notifyCfg  config.NotificationConfig
	email      EmailSender
	sms        SMSSender
	httpClient *commonhttp.Client
	logger     logger.Logger
}

// NewHandler wires the worker. email and sms may be nil when the channel is
// disabled in config.
func NewHandler(cfg *Config, notifyCfg config.NotificationConfig, email EmailSender, sms SMSSender, httpClient *commonhttp.Client, log logger.Logger) *Handler {
	return &Handler{
		config:     cfg,
		notifyCfg:  notifyCfg,
		email:      email,
		sms:        sms,
		httpClient: httpClient,
		logger:     log.WithFields(map[string]interface{}{"taskType": TaskType}),
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
		case errors.Is(err, ErrValidationFailed):
			errorCode = "VALIDATION_FAILED"
		case errors.Is(err, ErrNotificationSendFailed):
			errorCode = "NOTIFICATION_SEND_FAILED"
		}
		h.failJob(client, job, errorCode, err.Error())
		return
	}

	h.completeJob(client, job, output)
}

// execute fans the decision out to every enabled channel. Any channel failure
// fails the job so the engine retries the send; the decision itself is not
// affected, it was committed before this task ran.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, fmt.Errorf("%w: applicationId is required", ErrValidationFailed)
	}
	if input.Status == "" {
		return nil, fmt.Errorf("%w: status is required", ErrValidationFailed)
	}

	output := &Output{ApplicationID: input.ApplicationID}

	if h.notifyCfg.AWS.SES.Enabled && h.email != nil && input.Email != "" {
		if err := h.sendEmail(ctx, &input.DecisionNotification); err != nil {
			return nil, fmt.Errorf("%w: email: %v", ErrNotificationSendFailed, err)
		}
		output.EmailSent = true
	}

	if h.notifyCfg.AWS.SNS.Enabled && h.sms != nil && input.Phone != "" {
		if err := h.sendSMS(ctx, &input.DecisionNotification); err != nil {
			return nil, fmt.Errorf("%w: sms: %v", ErrNotificationSendFailed, err)
		}
		output.SMSSent = true
	}

	if h.notifyCfg.Portal.CallbackURL != "" && h.httpClient != nil {
		if err := h.notifyPortal(ctx, input); err != nil {
			return nil, fmt.Errorf("%w: portal callback: %v", ErrNotificationSendFailed, err)
		}
		output.PortalNotified = true
	}

	output.NotifiedAt = time.Now().UTC().Format(time.RFC3339)

	h.logger.Info("decision notification sent", map[string]interface{}{
		"applicationId":     input.ApplicationID,
		"applicationNumber": input.ApplicationNumber,
		"status":            input.Status,
		"emailSent":         output.EmailSent,
		"smsSent":           output.SMSSent,
		"portalNotified":    output.PortalNotified,
	})

	return output, nil
}

func (h *Handler) sendEmail(ctx context.Context, n *models.DecisionNotification) error {
	_, err := h.email.SendEmail(ctx, &ses.SendEmailInput{
		Source: aws.String(h.notifyCfg.AWS.SES.FromEmail),
		Destination: &sestypes.Destination{
			ToAddresses: []string{n.Email},
		},
		Message: &sestypes.Message{
			Subject: &sestypes.Content{Data: aws.String(buildSubject(n))},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: aws.String(buildBody(n))},
			},
		},
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, n *models.DecisionNotification) error {
	input := &sns.PublishInput{
		PhoneNumber: aws.String(n.Phone),
		Message:     aws.String(buildSMS(n)),
	}
	if senderID := h.notifyCfg.AWS.SNS.DefaultSMSSenderID; senderID != "" {
		input.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(senderID),
			},
		}
	}
	_, err := h.sms.Publish(ctx, input)
	return err
}

// notifyPortal posts the decision back to the portal shell so open dashboard
// sessions refresh without polling.
func (h *Handler) notifyPortal(ctx context.Context, input *Input) error {
	body, err := json.Marshal(input.DecisionNotification)
	if err != nil {
		return fmt.Errorf("marshal callback payload: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, h.notifyCfg.Portal.CallbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := h.httpClient.DoWithContext(ctx, req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("portal returned %s", res.Status)
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
