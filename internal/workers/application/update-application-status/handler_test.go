// internal/workers/application/update-application-status/handler_test.go
package updateapplicationstatus

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"msad-registration/internal/common/config"
	"msad-registration/internal/common/errors"
	"msad-registration/internal/common/logger"
	"msad-registration/internal/registration/feed"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2025, 10, 14, 8, 0, 0, 0, time.UTC)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, ev feed.Event) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func newMockPublisher(err error) *mockPublisher {
	m := &mockPublisher{}
	m.On("Publish", mock.Anything, mock.AnythingOfType("feed.Event")).Return(err)
	return m
}

func (m *mockPublisher) published(t *testing.T) []feed.Event {
	t.Helper()
	var events []feed.Event
	for _, call := range m.Calls {
		events = append(events, call.Arguments.Get(1).(feed.Event))
	}
	return events
}

func newTestHandler(t *testing.T, pub feed.Publisher) (*Handler, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	h, err := NewHandler(&Config{Table: "contestants", Timeout: time.Second}, db, pub, logger.NewTestLogger(t))
	require.NoError(t, err)
	h.now = func() time.Time { return fixedNow }
	return h, mock
}

func expectUpdate(mock sqlmock.Sqlmock, id, status string) *sqlmock.ExpectedQuery {
	return mock.ExpectQuery(`UPDATE contestants AS c SET status = \$2`).WithArgs(id, status)
}

func requireCode(t *testing.T, err error, code errors.ErrorCode) {
	t.Helper()
	stdErr, ok := errors.AsStandardError(err)
	require.True(t, ok, "expected StandardError, got %v", err)
	assert.Equal(t, code, stdErr.Code)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestHandler_Execute_Success(t *testing.T) {
	pub := newMockPublisher(nil)
	h, mock := newTestHandler(t, pub)

	expectUpdate(mock, "app-1", "under_review").
		WillReturnRows(sqlmock.NewRows([]string{"application_number", "user_id", "status"}).
			AddRow("MSAD2025000123AZ9", "user-42", "pending"))

	out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1", Status: "under_review"})
	require.NoError(t, err)

	assert.Equal(t, &Output{
		ApplicationID:     "app-1",
		ApplicationNumber: "MSAD2025000123AZ9",
		PreviousStatus:    "pending",
		Status:            "under_review",
		UpdatedAt:         "2025-10-14T08:00:00Z",
	}, out)

	pub.AssertNumberOfCalls(t, "Publish", 1)
	ev := pub.published(t)[0]
	assert.Equal(t, feed.EventStatusChanged, ev.Type)
	assert.Equal(t, "user-42", ev.UserID)
	assert.Equal(t, "pending", ev.PreviousStatus)
	assert.Equal(t, "under_review", ev.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_AnonymousApplication(t *testing.T) {
	pub := newMockPublisher(nil)
	h, mock := newTestHandler(t, pub)

	expectUpdate(mock, "app-2", "approved").
		WillReturnRows(sqlmock.NewRows([]string{"application_number", "user_id", "status"}).
			AddRow("MSAD2025000124B00", nil, "under_review"))

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "app-2", Status: "approved"})
	require.NoError(t, err)
	events := pub.published(t)
	require.Len(t, events, 1)
	assert.Empty(t, events[0].UserID)
}

func TestHandler_Execute_PublishFailureIsNotFatal(t *testing.T) {
	pub := newMockPublisher(stderrors.New("redis down"))
	h, mock := newTestHandler(t, pub)

	expectUpdate(mock, "app-1", "waitlisted").
		WillReturnRows(sqlmock.NewRows([]string{"application_number", "user_id", "status"}).
			AddRow("MSAD2025000123AZ9", nil, "under_review"))

	out, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1", Status: "waitlisted"})
	require.NoError(t, err)
	assert.Equal(t, "waitlisted", out.Status)
	pub.AssertExpectations(t)
}

func TestHandler_Execute_PublishesToRedisFeed(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	f := feed.New(rdb, logger.NewTestLogger(t))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, closeSub, err := f.Subscribe(ctx, "user-42")
	require.NoError(t, err)
	defer closeSub()

	h, mock := newTestHandler(t, f)
	expectUpdate(mock, "app-1", "rejected").
		WillReturnRows(sqlmock.NewRows([]string{"application_number", "user_id", "status"}).
			AddRow("MSAD2025000123AZ9", "user-42", "under_review"))

	_, err = h.Execute(context.Background(), &Input{ApplicationID: "app-1", Status: "rejected"})
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, "app-1", ev.ApplicationID)
		assert.Equal(t, "rejected", ev.Status)
	case <-time.After(2 * time.Second):
		t.Fatal("no event received")
	}
}

// ==========================
// Error Tests
// ==========================

func TestHandler_Execute_InvalidStatus(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1", Status: "shortlisted"})
	requireCode(t, err, errors.ErrCodeInvalidStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestHandler_Execute_NotFound(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	expectUpdate(mock, "missing", "approved").
		WillReturnRows(sqlmock.NewRows([]string{"application_number", "user_id", "status"}))

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "missing", Status: "approved"})
	requireCode(t, err, errors.ErrCodeApplicationNotFound)
}

func TestHandler_Execute_MissingApplicationID(t *testing.T) {
	h, _ := newTestHandler(t, nil)

	_, err := h.Execute(context.Background(), &Input{Status: "approved"})
	requireCode(t, err, errors.ErrCodeApplicationNotFound)
}

func TestHandler_Execute_DatabaseError(t *testing.T) {
	h, mock := newTestHandler(t, nil)

	expectUpdate(mock, "app-1", "approved").WillReturnError(stderrors.New("connection reset by peer"))

	_, err := h.Execute(context.Background(), &Input{ApplicationID: "app-1", Status: "approved"})
	requireCode(t, err, errors.ErrCodeDatabaseUpdateFailed)

	stdErr, _ := errors.AsStandardError(err)
	assert.True(t, stdErr.Retryable)
}

// ==========================
// Configuration Tests
// ==========================

func TestNewHandler_RejectsBadTable(t *testing.T) {
	_, err := NewHandler(&Config{Table: "contestants;--"}, nil, nil, logger.NewNoOpLogger())
	assert.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	cfg := &config.Config{
		Registration: config.RegistrationConfig{Table: "contestants"},
		Workers: map[string]config.WorkerConfig{
			TaskType: {Enabled: true, Timeout: 5000},
		},
	}
	c := LoadConfig(cfg)
	assert.Equal(t, "contestants", c.Table)
	assert.Equal(t, 5*time.Second, c.Timeout)
}
