// internal/workers/application/send-registration-confirmation/handler.go
package sendregistrationconfirmation

import (
	"context"
	"encoding/json"
	"time"

	"msad-registration/internal/common/errors"
	"msad-registration/internal/common/logger"
	"msad-registration/internal/common/metrics"
	"msad-registration/internal/common/resilience"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"
)

const (
	TaskType = "send-registration-confirmation"
)

// Operation names guarded by the circuit breaker.
const (
	OpSendEmail = "ses.send-email"
	OpSendSMS   = "sns.publish-sms"
)

type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, text, html string) (string, error)
}

type SMSSender interface {
	SendSMS(ctx context.Context, phone, message string) (string, error)
}

type Handler struct {
	config       *Config
	email        EmailSender
	sms          SMSSender
	executor     *resilience.Executor
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

// NewHandler builds the handler. email or sms may be nil when the channel is
// disabled.
func NewHandler(config *Config, email EmailSender, sms SMSSender, executor *resilience.Executor, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		email:        email,
		sms:          sms,
		executor:     executor,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
		now:          time.Now,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.failJob(ctx, client, job, errors.NewBusinessRuleError("Invalid job variables", err.Error()))
		return
	}

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.failJob(ctx, client, job, err)
		return
	}

	h.completeJob(ctx, client, job, output)
}

// execute sends the confirmation email and, when enabled, an SMS. A failed
// email fails the job so the engine retries it; a failed SMS is only logged.
func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationNumber == "" {
		return nil, errors.NewBusinessRuleError("Missing reference code", "applicationNumber is empty")
	}

	msg, err := renderMessage(input)
	if err != nil {
		return nil, errors.NewInternalError(err)
	}

	output := &Output{
		NotificationID: uuid.New().String(),
		EmailStatus:    StatusDisabled,
		SMSStatus:      StatusDisabled,
		SentAt:         h.now().UTC().Format(time.RFC3339),
	}

	if h.config.EmailEnabled && h.email != nil {
		if input.Email == "" {
			output.EmailStatus = StatusSkipped
		} else {
			var messageID string
			err := h.guard(ctx, OpSendEmail, func(ctx context.Context) error {
				var sendErr error
				messageID, sendErr = h.email.SendEmail(ctx, input.Email, msg.Subject, msg.Text, msg.HTML)
				return sendErr
			})
			if err != nil {
				return nil, err
			}
			output.EmailStatus = StatusSent
			h.logger.Info("confirmation email sent", map[string]interface{}{
				"applicationNumber": input.ApplicationNumber,
				"messageId":         messageID,
			})
		}
	}

	if h.config.SMSEnabled && h.sms != nil {
		if input.Phone == "" {
			output.SMSStatus = StatusSkipped
		} else {
			err := h.guard(ctx, OpSendSMS, func(ctx context.Context) error {
				_, sendErr := h.sms.SendSMS(ctx, input.Phone, msg.SMS)
				return sendErr
			})
			if err != nil {
				output.SMSStatus = StatusFailed
				h.logger.Warn("confirmation sms failed", map[string]interface{}{
					"applicationNumber": input.ApplicationNumber,
					"error":             err,
				})
			} else {
				output.SMSStatus = StatusSent
			}
		}
	}

	return output, nil
}

// guard runs fn through the circuit breaker. An open circuit is reported as
// a retryable send failure.
func (h *Handler) guard(ctx context.Context, operation string, fn func(context.Context) error) error {
	if h.executor == nil {
		return fn(ctx)
	}
	err := h.executor.Execute(ctx, operation, fn, nil)
	if resilience.IsCircuitOpen(err) {
		return errors.NewNotificationSendFailedError(operation, err).WithMetadata("circuit", "open")
	}
	return err
}

func (h *Handler) completeJob(ctx context.Context, client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	if _, err := cmd.Send(ctx); err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	metrics.WorkerJobsCompleted.WithLabelValues(TaskType).Inc()
}

func (h *Handler) failJob(ctx context.Context, client worker.JobClient, job entities.Job, err error) {
	bpmnErr := h.errorHandler.HandleJobError(ctx, client, job, err)
	metrics.WorkerJobsFailed.WithLabelValues(TaskType, bpmnErr.Code).Inc()
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
