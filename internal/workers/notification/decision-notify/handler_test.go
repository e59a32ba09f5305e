// internal/workers/notification/decision-notify/handler_test.go
package decisionnotify

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"ymfb-workers/internal/common/config"
	commonhttp "ymfb-workers/internal/common/http"
	"ymfb-workers/internal/common/logger"
	"ymfb-workers/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEmailSender struct {
	sent []*ses.SendEmailInput
	err  error
}

func (f *fakeEmailSender) SendEmail(ctx context.Context, input *ses.SendEmailInput) (*ses.SendEmailOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, input)
	return &ses.SendEmailOutput{}, nil
}

type fakeSMSSender struct {
	sent []*sns.PublishInput
	err  error
}

func (f *fakeSMSSender) Publish(ctx context.Context, input *sns.PublishInput) (*sns.PublishOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.sent = append(f.sent, input)
	return &sns.PublishOutput{}, nil
}

func notifyConfig(callbackURL string) config.NotificationConfig {
	var cfg config.NotificationConfig
	cfg.AWS.Region = "eu-west-1"
	cfg.AWS.SES.Enabled = true
	cfg.AWS.SES.FromEmail = "no-reply@ymfb.example"
	cfg.AWS.SNS.Enabled = true
	cfg.AWS.SNS.DefaultSMSSenderID = "YMFB"
	cfg.Portal.CallbackURL = callbackURL
	return cfg
}

func approvedInput() *Input {
	amount := 500000.0
	return &Input{DecisionNotification: models.DecisionNotification{
		ApplicationID:     "app-1",
		ApplicationNumber: "YMFB2025-000123",
		ApplicationKind:   "loan",
		FullName:          "Adamu Bello",
		Email:             "adamu@example.com",
		Phone:             "+2348031112222",
		Status:            "approved",
		ApprovedAmount:    &amount,
	}}
}

func TestExecute_SendsAllChannels(t *testing.T) {
	var callbacks atomic.Int64
	portal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		callbacks.Add(1)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer portal.Close()

	email := &fakeEmailSender{}
	sms := &fakeSMSSender{}
	handler := NewHandler(LoadConfig(), notifyConfig(portal.URL), email, sms,
		commonhttp.NewClient(5*time.Second), logger.NewTestLogger(t))

	output, err := handler.Execute(context.Background(), approvedInput())

	require.NoError(t, err)
	assert.True(t, output.EmailSent)
	assert.True(t, output.SMSSent)
	assert.True(t, output.PortalNotified)
	assert.Equal(t, int64(1), callbacks.Load())

	require.Len(t, email.sent, 1)
	assert.Equal(t, "no-reply@ymfb.example", *email.sent[0].Source)
	assert.Contains(t, *email.sent[0].Message.Subject.Data, "approved")
	assert.Contains(t, *email.sent[0].Message.Body.Text.Data, "500000.00")

	require.Len(t, sms.sent, 1)
	assert.Equal(t, "+2348031112222", *sms.sent[0].PhoneNumber)
	assert.Contains(t, sms.sent[0].MessageAttributes, "AWS.SNS.SMS.SenderID")
}

func TestExecute_DeclineMessageCarriesReason(t *testing.T) {
	email := &fakeEmailSender{}
	cfg := notifyConfig("")
	cfg.AWS.SNS.Enabled = false

	handler := NewHandler(LoadConfig(), cfg, email, nil, nil, logger.NewTestLogger(t))

	input := approvedInput()
	input.Status = "declined"
	input.ApprovedAmount = nil
	input.DeclineReason = "unverifiable employment record"

	output, err := handler.Execute(context.Background(), input)

	require.NoError(t, err)
	assert.True(t, output.EmailSent)
	assert.False(t, output.SMSSent)
	assert.False(t, output.PortalNotified)
	require.Len(t, email.sent, 1)
	assert.Contains(t, *email.sent[0].Message.Body.Text.Data, "unverifiable employment record")
}

func TestExecute_DisabledChannelsSkipped(t *testing.T) {
	cfg := notifyConfig("")
	cfg.AWS.SES.Enabled = false
	cfg.AWS.SNS.Enabled = false

	handler := NewHandler(LoadConfig(), cfg, nil, nil, nil, logger.NewTestLogger(t))
	output, err := handler.Execute(context.Background(), approvedInput())

	require.NoError(t, err)
	assert.False(t, output.EmailSent)
	assert.False(t, output.SMSSent)
	assert.False(t, output.PortalNotified)
}

func TestExecute_EmailFailureIsRetryable(t *testing.T) {
	email := &fakeEmailSender{err: errors.New("ses throttled")}
	cfg := notifyConfig("")
	cfg.AWS.SNS.Enabled = false

	handler := NewHandler(LoadConfig(), cfg, email, nil, nil, logger.NewTestLogger(t))
	_, err := handler.Execute(context.Background(), approvedInput())

	assert.ErrorIs(t, err, ErrNotificationSendFailed)
}

func TestExecute_PortalErrorStatusFails(t *testing.T) {
	portal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer portal.Close()

	cfg := notifyConfig(portal.URL)
	cfg.AWS.SES.Enabled = false
	cfg.AWS.SNS.Enabled = false

	handler := NewHandler(LoadConfig(), cfg, nil, nil,
		commonhttp.NewClient(5*time.Second), logger.NewTestLogger(t))
	_, err := handler.Execute(context.Background(), approvedInput())

	assert.ErrorIs(t, err, ErrNotificationSendFailed)
}

func TestExecute_RequiresIdentity(t *testing.T) {
	handler := NewHandler(LoadConfig(), notifyConfig(""), nil, nil, nil, logger.NewTestLogger(t))

	_, err := handler.Execute(context.Background(), &Input{DecisionNotification: models.DecisionNotification{Status: "approved"}})
	assert.ErrorIs(t, err, ErrValidationFailed)

	_, err = handler.Execute(context.Background(), &Input{DecisionNotification: models.DecisionNotification{ApplicationID: "app-1"}})
	assert.ErrorIs(t, err, ErrValidationFailed)
}
