// internal/workers/application/index-contestant-application/handler.go
package indexcontestantapplication

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strings"

	"msad-registration/internal/common/errors"
	"msad-registration/internal/common/logger"
	"msad-registration/internal/common/metrics"
	"msad-registration/internal/models"
	"msad-registration/internal/registration/submission"

	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/elastic/go-elasticsearch/v8"
)

const (
	TaskType = "index-contestant-application"
)

// RecordLoader reads a stored application.
type RecordLoader interface {
	Get(ctx context.Context, id string) (*models.ApplicationRecord, error)
}

type Handler struct {
	config       *Config
	records      RecordLoader
	client       *elasticsearch.Client
	errorHandler *errors.ErrorHandler
	logger       logger.Logger
}

func NewHandler(config *Config, records RecordLoader, client *elasticsearch.Client, log logger.Logger) *Handler {
	log = log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:       config,
		records:      records,
		client:       client,
		errorHandler: errors.NewErrorHandler(log),
		logger:       log,
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

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input.ApplicationID == "" {
		return nil, errors.NewApplicationNotFoundError("")
	}

	rec, err := h.records.Get(ctx, input.ApplicationID)
	if stderrors.Is(err, submission.ErrRecordNotFound) {
		return nil, errors.NewApplicationNotFoundError(input.ApplicationID)
	}
	if err != nil {
		return nil, errors.NewDatabaseConnectionFailedError(err)
	}

	body, err := json.Marshal(BuildDocument(rec))
	if err != nil {
		return nil, errors.NewIndexingFailedError(h.config.Index, err)
	}

	res, err := h.client.Index(
		h.config.Index,
		bytes.NewReader(body),
		h.client.Index.WithDocumentID(input.ApplicationID),
		h.client.Index.WithContext(ctx),
	)
	if err != nil {
		return nil, errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, errors.NewIndexingFailedError(h.config.Index, fmt.Errorf("%s", res.String()))
	}

	var parsed indexResponse
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, errors.NewIndexingFailedError(h.config.Index, fmt.Errorf("decode response: %w", err))
	}

	h.logger.Info("application indexed", map[string]interface{}{
		"applicationId":     input.ApplicationID,
		"applicationNumber": rec.ApplicationNumber,
		"index":             h.config.Index,
		"result":            parsed.Result,
		"version":           parsed.Version,
	})

	return &Output{
		ApplicationID: input.ApplicationID,
		Index:         h.config.Index,
		Result:        parsed.Result,
		Version:       parsed.Version,
	}, nil
}

// BuildDocument projects a stored record onto its search document.
func BuildDocument(rec *models.ApplicationRecord) Document {
	doc := Document{
		ApplicationID:     rec.ID,
		ApplicationNumber: rec.ApplicationNumber,
		FullName:          strings.TrimSpace(rec.FirstName + " " + rec.LastName),
		Email:             rec.Email,
		Province:          rec.Province,
		City:              rec.City,
		Age:               rec.Age,
		DisabilityType:    rec.DisabilityType,
		EducationLevel:    rec.EducationLevel,
		Occupation:        rec.Occupation,
		LanguagesSpoken:   rec.LanguagesSpoken,
		TalentDescription: rec.TalentDescription,
		PlatformCause:     rec.PlatformCause,
		WhyCompete:        rec.WhyCompete,
		MedicalClearance:  rec.MedicalClearance,
		Status:            rec.Status,
		CreatedAt:         rec.CreatedAt,
	}
	if doc.LanguagesSpoken == nil {
		doc.LanguagesSpoken = []string{}
	}
	if rec.PhotoURL != nil {
		doc.PhotoURL = *rec.PhotoURL
	}
	return doc
}

const indexMapping = `{
  "mappings": {
    "properties": {
      "application_id":     {"type": "keyword"},
      "application_number": {"type": "keyword"},
      "full_name":          {"type": "text"},
      "email":              {"type": "keyword"},
      "province":           {"type": "keyword"},
      "city":               {"type": "keyword"},
      "age":                {"type": "integer"},
      "disability_type":    {"type": "keyword"},
      "education_level":    {"type": "keyword"},
      "occupation":         {"type": "text"},
      "languages_spoken":   {"type": "keyword"},
      "talent_description": {"type": "text"},
      "platform_cause":     {"type": "text"},
      "why_compete":        {"type": "text"},
      "photo_url":          {"type": "keyword", "index": false},
      "medical_clearance":  {"type": "boolean"},
      "status":             {"type": "keyword"},
      "created_at":         {"type": "date"}
    }
  }
}`

// EnsureIndex creates the index with its mapping when it does not exist.
func (h *Handler) EnsureIndex(ctx context.Context) error {
	res, err := h.client.Indices.Exists([]string{h.config.Index}, h.client.Indices.Exists.WithContext(ctx))
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	res.Body.Close()
	if res.StatusCode == http.StatusOK {
		return nil
	}
	if res.StatusCode != http.StatusNotFound {
		return errors.NewIndexingFailedError(h.config.Index, fmt.Errorf("exists check: %s", res.Status()))
	}

	res, err = h.client.Indices.Create(
		h.config.Index,
		h.client.Indices.Create.WithBody(strings.NewReader(indexMapping)),
		h.client.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return errors.NewElasticsearchConnectionFailedError(err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return errors.NewIndexingFailedError(h.config.Index, fmt.Errorf("create index: %s", res.String()))
	}
	h.logger.Info("search index created", map[string]interface{}{"index": h.config.Index})
	return nil
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
