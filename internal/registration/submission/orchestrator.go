// internal/registration/submission/orchestrator.go
package submission

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"msad-registration/internal/common/logger"
	"msad-registration/internal/common/metrics"
	"msad-registration/internal/models"
	"msad-registration/internal/registration/draft"
	"msad-registration/internal/registration/feed"
	"msad-registration/internal/registration/wizard"
)

const defaultMaxAttempts = 3

// NextSteps is the guidance returned with a successful submission.
var NextSteps = []string{
	"You will receive a confirmation email shortly",
	"Our team will review your application within 5-7 business days",
	"We'll contact you with the next steps",
}

// ReviewStarter launches the review process of a stored application.
type ReviewStarter interface {
	StartReview(ctx context.Context, variables map[string]interface{}) (int64, error)
}

// Request is one final submission.
type Request struct {
	SessionID string
	// Draft is loaded from the draft store when nil.
	Draft  models.FormDraft
	UserID *string
	// Navigator receives the first failing step; a fresh one is used when nil.
	Navigator *wizard.Navigator
}

type Result struct {
	ReferenceCode string   `json:"referenceCode"`
	ApplicationID string   `json:"applicationId"`
	NextSteps     []string `json:"nextSteps"`
}

// Orchestrator validates a whole draft, writes the application record once
// and clears the draft on success.
type Orchestrator struct {
	steps           []wizard.StepDefinition
	drafts          draft.Store
	records         RecordStore
	codes           *ReferenceGenerator
	publisher       feed.Publisher
	reviews         ReviewStarter
	logger          logger.Logger
	now             func() time.Time
	requireIdentity bool
	maxAttempts     int
	timeout         time.Duration

	mu       sync.Mutex
	inFlight map[string]struct{}
}

type Option func(*Orchestrator)

func WithPublisher(p feed.Publisher) Option {
	return func(o *Orchestrator) { o.publisher = p }
}

func WithReviewStarter(r ReviewStarter) Option {
	return func(o *Orchestrator) { o.reviews = r }
}

func WithReferenceGenerator(g *ReferenceGenerator) Option {
	return func(o *Orchestrator) { o.codes = g }
}

// WithRequireIdentity rejects anonymous submissions.
func WithRequireIdentity(required bool) Option {
	return func(o *Orchestrator) { o.requireIdentity = required }
}

// WithClock sets the clock used for the record timestamp and the reference
// code.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithMaxAttempts bounds inserts retried after a reference code clash.
func WithMaxAttempts(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxAttempts = n
		}
	}
}

// WithTimeout bounds the record write and the side effects that follow it.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

func NewOrchestrator(steps []wizard.StepDefinition, drafts draft.Store, records RecordStore, log logger.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		steps:       steps,
		drafts:      drafts,
		records:     records,
		codes:       NewReferenceGenerator(DefaultReferencePrefix),
		logger:      log.WithFields(map[string]interface{}{"component": "submission"}),
		now:         time.Now,
		maxAttempts: defaultMaxAttempts,
		inFlight:    make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Submit runs the final submission of req.SessionID.
func (o *Orchestrator) Submit(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := o.submit(ctx, req)
	metrics.RegistrationSubmissions.WithLabelValues(outcome(err)).Inc()
	if err == nil {
		metrics.RegistrationSubmitDuration.Observe(time.Since(start).Seconds())
	}
	return res, err
}

func (o *Orchestrator) submit(ctx context.Context, req Request) (*Result, error) {
	if !o.acquire(req.SessionID) {
		return nil, ErrSubmissionInProgress
	}
	defer o.release(req.SessionID)

	userID := normalizeUser(req.UserID)
	if userID == nil && o.requireIdentity {
		return nil, ErrIdentityRequired
	}

	d := req.Draft
	if d == nil {
		d = o.drafts.Load(ctx, req.SessionID)
	}
	d = d.Clone()
	if dropped := d.DropUnconfirmedURLs(); len(dropped) > 0 {
		o.logger.Warn("ignoring file urls without a confirmed upload", map[string]interface{}{
			"sessionId": req.SessionID,
			"fields":    dropped,
		})
	}

	nav := req.Navigator
	if nav == nil {
		nav = wizard.New(o.steps)
	}
	if step, fields := nav.Sweep(d); step != 0 {
		o.logger.Info("submission blocked by validation", map[string]interface{}{
			"sessionId": req.SessionID,
			"step":      step,
			"fields":    len(fields),
		})
		return nil, &ValidationError{Step: step, Fields: fields}
	}

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	rec, id, err := o.insert(ctx, d, userID)
	if err != nil {
		o.logger.Error("submission failed, draft kept", map[string]interface{}{
			"sessionId": req.SessionID,
			"error":     err,
		})
		return nil, err
	}

	if userID == nil {
		o.logger.Warn("anonymous application submitted", map[string]interface{}{
			"sessionId":         req.SessionID,
			"applicationNumber": rec.ApplicationNumber,
		})
	}

	if err := o.drafts.Clear(ctx, req.SessionID); err != nil {
		o.logger.Warn("failed to clear submitted draft", map[string]interface{}{
			"sessionId": req.SessionID,
			"error":     err,
		})
	}

	o.afterCommit(ctx, id, rec)

	o.logger.Info("application submitted", map[string]interface{}{
		"sessionId":         req.SessionID,
		"applicationId":     id,
		"applicationNumber": rec.ApplicationNumber,
	})

	return &Result{
		ReferenceCode: rec.ApplicationNumber,
		ApplicationID: id,
		NextSteps:     append([]string(nil), NextSteps...),
	}, nil
}

// insert performs the single logical write, drawing a new reference code
// when the previous one already exists.
func (o *Orchestrator) insert(ctx context.Context, d models.FormDraft, userID *string) (*models.ApplicationRecord, string, error) {
	var lastErr error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		now := o.now()
		rec := BuildRecord(d, o.codes.NextAt(now), userID, now)

		check, err := ValidateRecord(rec)
		if err != nil {
			return nil, "", &SubmissionError{Message: err.Error(), Err: err}
		}
		if !check.Valid {
			msg := "application record rejected: " + strings.Join(check.Messages(), "; ")
			return nil, "", &SubmissionError{Message: msg}
		}

		id, err := o.records.Insert(ctx, rec)
		if err == nil {
			return rec, id, nil
		}
		if !errors.Is(err, ErrDuplicateReference) {
			return nil, "", &SubmissionError{Message: storeMessage(err), Err: err}
		}

		metrics.ReferenceCodeCollisions.Inc()
		o.logger.Warn("reference code collision, retrying", map[string]interface{}{
			"applicationNumber": rec.ApplicationNumber,
			"attempt":           attempt,
		})
		lastErr = err
	}
	return nil, "", &SubmissionError{
		Message: fmt.Sprintf("could not allocate a unique reference code after %d attempts", o.maxAttempts),
		Err:     lastErr,
	}
}

func (o *Orchestrator) afterCommit(ctx context.Context, id string, rec *models.ApplicationRecord) {
	userID := ""
	if rec.UserID != nil {
		userID = *rec.UserID
	}

	if o.publisher != nil {
		err := o.publisher.Publish(ctx, feed.Event{
			Type:              feed.EventSubmitted,
			ApplicationID:     id,
			ApplicationNumber: rec.ApplicationNumber,
			UserID:            userID,
			Status:            rec.Status,
			OccurredAt:        rec.CreatedAt,
		})
		if err != nil {
			o.logger.Warn("failed to publish submission event", map[string]interface{}{
				"applicationId": id,
				"error":         err,
			})
		}
	}

	if o.reviews != nil {
		key, err := o.reviews.StartReview(ctx, ReviewVariables(id, rec))
		if err != nil {
			o.logger.Warn("failed to start review process", map[string]interface{}{
				"applicationId": id,
				"error":         err,
			})
			return
		}
		o.logger.Info("review process started", map[string]interface{}{
			"applicationId":      id,
			"processInstanceKey": key,
		})
	}
}

// ReviewVariables are the process variables of the contestant-review process.
func ReviewVariables(id string, rec *models.ApplicationRecord) map[string]interface{} {
	vars := map[string]interface{}{
		"applicationId":     id,
		"applicationNumber": rec.ApplicationNumber,
		"firstName":         rec.FirstName,
		"lastName":          rec.LastName,
		"email":             rec.Email,
		"phone":             rec.Phone,
		"province":          rec.Province,
		"status":            rec.Status,
		"medicalClearance":  rec.MedicalClearance,
	}
	if rec.UserID != nil {
		vars["userId"] = *rec.UserID
	}
	return vars
}

func (o *Orchestrator) acquire(sessionID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inFlight[sessionID]; busy {
		return false
	}
	o.inFlight[sessionID] = struct{}{}
	return true
}

func (o *Orchestrator) release(sessionID string) {
	o.mu.Lock()
	delete(o.inFlight, sessionID)
	o.mu.Unlock()
}

func normalizeUser(id *string) *string {
	if id == nil || strings.TrimSpace(*id) == "" {
		return nil
	}
	return id
}

// storeMessage strips the sentinel prefix, leaving the store's own text.
func storeMessage(err error) string {
	return strings.TrimPrefix(err.Error(), ErrInsertFailed.Error()+": ")
}

func outcome(err error) string {
	var vErr *ValidationError
	var sErr *SubmissionError
	switch {
	case err == nil:
		return "success"
	case errors.As(err, &vErr):
		return "invalid"
	case errors.As(err, &sErr):
		return "store_error"
	case errors.Is(err, ErrSubmissionInProgress):
		return "in_progress"
	case errors.Is(err, ErrIdentityRequired):
		return "unauthenticated"
	default:
		return "error"
	}
}
