// Package api exposes the registration wizard, uploads, submission and the
// applicant change feed over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"msad-registration/internal/common/logger"
	"msad-registration/internal/common/observability"
	"msad-registration/internal/models"
	"msad-registration/internal/registration/draft"
	"msad-registration/internal/registration/feed"
	"msad-registration/internal/registration/submission"
	"msad-registration/internal/registration/upload"
	"msad-registration/internal/registration/wizard"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DraftStore is the draft persistence the API needs.
type DraftStore interface {
	draft.Store
	Exists(ctx context.Context, sessionID string) (bool, error)
}

type Uploader interface {
	Upload(ctx context.Context, f upload.File, opts ...upload.UploadOption) (*models.UploadedAsset, error)
}

type Submitter interface {
	Submit(ctx context.Context, req submission.Request) (*submission.Result, error)
}

// Identifier resolves the Authorization header to a user id. A nil id
// means anonymous.
type Identifier interface {
	Identify(ctx context.Context, authorization string) (*string, error)
}

type Subscriber interface {
	Subscribe(ctx context.Context, userID string) (<-chan feed.Event, func() error, error)
}

// Check is one readiness probe.
type Check func(ctx context.Context) error

// Deps are the collaborators of the API. Identity and Feed may be nil.
type Deps struct {
	Steps     []wizard.StepDefinition
	Drafts    DraftStore
	Uploader  Uploader
	Submitter Submitter
	Identity  Identifier
	Feed      Subscriber
	Checks    map[string]Check
	Files     http.Handler // serves LocalStore uploads under /files/
	Obs       *observability.Observability
}

type Server struct {
	deps           Deps
	logger         logger.Logger
	heartbeat      time.Duration
	origins        []string
	maxUploadBytes int64
}

type Option func(*Server)

// WithAllowedOrigins enables CORS for the listed origins. "*" allows any.
func WithAllowedOrigins(origins ...string) Option {
	return func(s *Server) { s.origins = origins }
}

// WithHeartbeat sets the keep-alive interval of the event stream.
func WithHeartbeat(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.heartbeat = d
		}
	}
}

// WithMaxUploadBytes sets the file size limit that bounds upload request
// bodies. It should match the upload adapter's limit.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxUploadBytes = n
		}
	}
}

func New(deps Deps, log logger.Logger, opts ...Option) *Server {
	if deps.Obs == nil {
		deps.Obs = observability.Noop()
	}
	s := &Server{
		deps:           deps,
		logger:         log.WithFields(map[string]interface{}{"component": "api"}),
		heartbeat:      25 * time.Second,
		maxUploadBytes: upload.DefaultMaxSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Routes returns the application handler.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	s.route(mux, "POST /api/v1/registrations", "create", s.handleCreate)
	s.route(mux, "GET /api/v1/registrations/{id}", "load", s.handleLoad)
	s.route(mux, "PUT /api/v1/registrations/{id}/draft", "save-draft", s.handleSaveDraft)
	s.route(mux, "DELETE /api/v1/registrations/{id}", "reset", s.handleReset)
	s.route(mux, "POST /api/v1/registrations/{id}/fields/{field}/validate", "validate-field", s.handleValidateField)
	s.route(mux, "POST /api/v1/registrations/{id}/next", "next", s.handleNext)
	s.route(mux, "POST /api/v1/registrations/{id}/previous", "previous", s.handlePrevious)
	s.route(mux, "POST /api/v1/registrations/{id}/uploads/{field}", "upload", s.handleUpload)
	s.route(mux, "POST /api/v1/registrations/{id}/submit", "submit", s.handleSubmit)
	s.route(mux, "GET /api/v1/provinces", "provinces", s.handleProvinces)
	s.route(mux, "GET /api/v1/provinces/{province}/cities", "cities", s.handleCities)
	s.route(mux, "GET /api/v1/applications/events", "events", s.handleEvents)

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.Handler())
	if s.deps.Files != nil {
		mux.Handle("GET /files/", http.StripPrefix("/files", s.deps.Files))
	}

	return s.recoverer(s.cors(mux))
}

func (s *Server) route(mux *http.ServeMux, pattern, name string, h http.HandlerFunc) {
	mux.Handle(pattern, s.instrument(name, h))
}
