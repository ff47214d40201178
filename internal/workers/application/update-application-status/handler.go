// internal/workers/application/update-application-status/handler.go
package updateapplicationstatus

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"regexp"
	"time"

	"msad-registration/internal/common/errors"
	"msad-registration/internal/common/logger"
	"msad-registration/internal/common/metrics"
	"msad-registration/internal/models"
	"msad-registration/internal/registration/feed"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
)

const (
	TaskType = "update-application-status"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

type Handler struct {
	config       *Config
	db           *sql.DB
	publisher    feed.Publisher
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
	now          func() time.Time
}

// NewHandler builds the handler. publisher may be nil, in which case no
// change events are emitted.
func NewHandler(config *Config, db *sql.DB, publisher feed.Publisher, log logger.Logger) (*Handler, error) {
	if config.Table == "" {
		config.Table = "contestants"
	}
	if !tableName.MatchString(config.Table) {
		return nil, fmt.Errorf("invalid table name %q", config.Table)
	}
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		db:           db,
		publisher:    publisher,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
		now:          time.Now,
	}, nil
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewApplicationNotFoundError("")
	}
	if !models.IsValidStatus(input.Status) {
		return nil, errors.NewInvalidStatusError(input.Status)
	}

	query := fmt.Sprintf(`
		UPDATE %[1]s AS c
		SET status = $2, updated_at = NOW()
		FROM (SELECT id, status FROM %[1]s WHERE id = $1 FOR UPDATE) AS prev
		WHERE c.id = prev.id
		RETURNING c.application_number, c.user_id, prev.status`, h.config.Table)

	var (
		number, previous string
		userID           sql.NullString
	)
	err := h.db.QueryRowContext(ctx, query, input.ApplicationID, input.Status).
		Scan(&number, &userID, &previous)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NewApplicationNotFoundError(input.ApplicationID)
	}
	if err != nil {
		return nil, errors.NewDatabaseUpdateFailedError(err)
	}

	updatedAt := h.now().UTC()

	h.logger.Info("application status updated", map[string]interface{}{
		"applicationId":     input.ApplicationID,
		"applicationNumber": number,
		"previousStatus":    previous,
		"status":            input.Status,
		"reason":            input.Reason,
	})

	if h.publisher != nil {
		ev := feed.Event{
			Type:              feed.EventStatusChanged,
			ApplicationID:     input.ApplicationID,
			ApplicationNumber: number,
			UserID:            userID.String,
			Status:            input.Status,
			PreviousStatus:    previous,
			OccurredAt:        updatedAt,
		}
		if err := h.publisher.Publish(ctx, ev); err != nil {
			h.logger.Warn("status change event not published", map[string]interface{}{
				"error":         err,
				"applicationId": input.ApplicationID,
			})
		}
	}

	return &Output{
		ApplicationID:     input.ApplicationID,
		ApplicationNumber: number,
		PreviousStatus:    previous,
		Status:            input.Status,
		UpdatedAt:         updatedAt.Format(time.RFC3339),
	}, nil
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
