// internal/workers/application/index-contestant-application/handler_test.go
package indexcontestantapplication

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"msad-registration/internal/common/errors"
	"msad-registration/internal/common/logger"
	"msad-registration/internal/models"
	"msad-registration/internal/registration/submission"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

type mockRecordLoader struct {
	GetFunc func(ctx context.Context, id string) (*models.ApplicationRecord, error)
}

func (m *mockRecordLoader) Get(ctx context.Context, id string) (*models.ApplicationRecord, error) {
	return m.GetFunc(ctx, id)
}

type fakeES struct {
	mu       sync.Mutex
	requests []string
	docs     map[string]Document
	status   int
	indexes  map[string]bool
}

func newFakeES() *fakeES {
	return &fakeES{docs: map[string]Document{}, indexes: map[string]bool{}, status: http.StatusCreated}
}

func (f *fakeES) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, r.Method+" "+r.URL.Path)
	w.Header().Set("X-Elastic-Product", "Elasticsearch")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/contestants":
		if f.indexes["contestants"] {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	case r.Method == http.MethodPut && r.URL.Path == "/contestants":
		f.indexes["contestants"] = true
		_, _ = io.WriteString(w, `{"acknowledged":true,"index":"contestants"}`)
	case r.Method == http.MethodPut && len(r.URL.Path) > len("/contestants/_doc/"):
		if f.status >= 400 {
			w.WriteHeader(f.status)
			_, _ = io.WriteString(w, `{"error":{"type":"mapper_parsing_exception"},"status":400}`)
			return
		}
		id := r.URL.Path[len("/contestants/_doc/"):]
		var doc Document
		_ = json.NewDecoder(r.Body).Decode(&doc)
		result, version := "created", 1
		if _, ok := f.docs[id]; ok {
			result, version = "updated", 2
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusCreated)
		}
		f.docs[id] = doc
		_, _ = fmt.Fprintf(w, `{"_index":"contestants","_id":%q,"_version":%d,"result":%q}`, id, version, result)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestHandler(t *testing.T, loader RecordLoader) (*Handler, *fakeES) {
	t.Helper()
	fake := newFakeES()
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)

	return NewHandler(&Config{Index: "contestants", Timeout: time.Second}, loader, es, logger.NewTestLogger(t)), fake
}

func storedRecord() *models.ApplicationRecord {
	photo := "https://cdn.example.org/contestant-documents/1-abc.jpg"
	idDoc := "https://cdn.example.org/application-documents/id.pdf"
	return &models.ApplicationRecord{
		ID:                "app-1",
		ApplicationNumber: "MSAD2025000123AZ9",
		FirstName:         "Thandi",
		LastName:          "Mokoena",
		Email:             "thandi@example.org",
		Province:          "gauteng",
		City:              "soweto",
		Age:               24,
		DisabilityType:    "visual",
		LanguagesSpoken:   []string{"English", "isiZulu"},
		PhotoURL:          &photo,
		IDDocumentURL:     &idDoc,
		Status:            models.StatusPending,
		CreatedAt:         time.Date(2025, 10, 1, 9, 30, 0, 0, time.UTC),
	}
}

func loaderFor(rec *models.ApplicationRecord) *mockRecordLoader {
	return &mockRecordLoader{GetFunc: func(_ context.Context, id string) (*models.ApplicationRecord, error) {
		if id != rec.ID {
			return nil, fmt.Errorf("%w: %s", submission.ErrRecordNotFound, id)
		}
		return rec, nil
	}}
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_IndexesDocument(t *testing.T) {
	h, fake := newTestHandler(t, loaderFor(storedRecord()))

	out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	require.NoError(t, err)

	assert.Equal(t, &Output{ApplicationID: "app-1", Index: "contestants", Result: "created", Version: 1}, out)

	doc := fake.docs["app-1"]
	assert.Equal(t, "MSAD2025000123AZ9", doc.ApplicationNumber)
	assert.Equal(t, "Thandi Mokoena", doc.FullName)
	assert.Equal(t, []string{"English", "isiZulu"}, doc.LanguagesSpoken)
	assert.Equal(t, "https://cdn.example.org/contestant-documents/1-abc.jpg", doc.PhotoURL)
}

func TestHandler_Execute_ReindexIsIdempotent(t *testing.T) {
	h, fake := newTestHandler(t, loaderFor(storedRecord()))

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	require.NoError(t, err)
	out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	require.NoError(t, err)

	assert.Equal(t, "updated", out.Result)
	assert.Len(t, fake.docs, 1)
}

func TestBuildDocument_LeavesOutPrivateDocuments(t *testing.T) {
	raw, err := json.Marshal(BuildDocument(storedRecord()))
	require.NoError(t, err)

	assert.NotContains(t, string(raw), "id.pdf")
	assert.NotContains(t, string(raw), "id_document_url")
	assert.NotContains(t, string(raw), "medical_certificate_url")
}

func TestBuildDocument_NilLanguages(t *testing.T) {
	rec := storedRecord()
	rec.LanguagesSpoken = nil
	rec.PhotoURL = nil

	doc := BuildDocument(rec)
	assert.Equal(t, []string{}, doc.LanguagesSpoken)
	assert.Empty(t, doc.PhotoURL)
}

func TestHandler_EnsureIndex(t *testing.T) {
	h, fake := newTestHandler(t, loaderFor(storedRecord()))

	require.NoError(t, h.EnsureIndex(context.Background()))
	require.NoError(t, h.EnsureIndex(context.Background()))

	assert.Equal(t, []string{
		"HEAD /contestants",
		"PUT /contestants",
		"HEAD /contestants",
	}, fake.requests)
}

// ==========================
// Error Tests
// ==========================

func TestHandler_Execute_NotFound(t *testing.T) {
	h, fake := newTestHandler(t, loaderFor(storedRecord()))

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "missing"})
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeApplicationNotFound, stdErr.Code)
	assert.Empty(t, fake.requests)
}

func TestHandler_Execute_LoadFailure(t *testing.T) {
	h, _ := newTestHandler(t, &mockRecordLoader{GetFunc: func(context.Context, string) (*models.ApplicationRecord, error) {
		return nil, stderrors.New("connection refused")
	}})

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeDatabaseConnectionFailed, stdErr.Code)
	assert.True(t, stdErr.Retryable)
}

func TestHandler_Execute_IndexRejected(t *testing.T) {
	h, fake := newTestHandler(t, loaderFor(storedRecord()))
	fake.status = http.StatusBadRequest

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeIndexingFailed, stdErr.Code)
}

func TestHandler_Execute_ElasticsearchDown(t *testing.T) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:    []string{"http://127.0.0.1:1"},
		DisableRetry: true,
	})
	require.NoError(t, err)
	h := NewHandler(&Config{Index: "contestants", Timeout: time.Second}, loaderFor(storedRecord()), es, logger.NewTestLogger(t))

	_, err = h.Execute(context.Background(), &Input{ApplicationID: "app-1"})
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok)
	assert.Equal(t, errors.ErrCodeElasticsearchConnectionFailed, stdErr.Code)
}
