// internal/registration/submission/fixtures_test.go
package submission

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"msad-registration/internal/common/logger"
	"msad-registration/internal/models"
	"msad-registration/internal/registration/draft"
	"msad-registration/internal/registration/feed"
	"msad-registration/internal/registration/wizard"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

// ==========================
// Test Helper Functions
// ==========================

var fixedNow = time.Date(2025, time.October, 1, 9, 30, 0, 0, time.UTC)

func clock() time.Time { return fixedNow }

func testSteps() []wizard.StepDefinition {
	return wizard.DefaultSteps(wizard.WithClock(clock))
}

func essay(n int) string {
	return strings.TrimSpace(strings.Repeat("access ", n))
}

func validDraft() models.FormDraft {
	return models.FormDraft{
		"firstName":             "Thandi",
		"lastName":              "Mokoena",
		"dateOfBirth":           "2001-05-14",
		"age":                   "24",
		"phone":                 "071 234 5678",
		"email":                 "thandi@example.co.za",
		"province":              "gauteng",
		"city":                  "sandton",
		"address":               "12 Rivonia Road",
		"emergencyContactName":  "Lerato Mokoena",
		"emergencyContactPhone": "+27821234567",
		"disabilityType":        "visual",
		"height":                "1.68",
		"languagesSpoken":       "English, isiZulu, ,Sesotho",
		"platformCause":         essay(50),
		"whyCompete":            essay(55),
		"termsAccepted":         "true",
	}
}

type mockRecordStore struct {
	mu         sync.Mutex
	InsertFunc func(ctx context.Context, rec *models.ApplicationRecord) (string, error)
	inserted   []*models.ApplicationRecord
}

func (m *mockRecordStore) Insert(ctx context.Context, rec *models.ApplicationRecord) (string, error) {
	m.mu.Lock()
	m.inserted = append(m.inserted, rec)
	fn := m.InsertFunc
	m.mu.Unlock()
	if fn != nil {
		return fn(ctx, rec)
	}
	return "6f1c2a9e-0000-4000-8000-000000000001", nil
}

func (m *mockRecordStore) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inserted)
}

type mockPublisher struct {
	PublishFunc func(ctx context.Context, ev feed.Event) error
	events      []feed.Event
}

func (m *mockPublisher) Publish(ctx context.Context, ev feed.Event) error {
	m.events = append(m.events, ev)
	if m.PublishFunc != nil {
		return m.PublishFunc(ctx, ev)
	}
	return nil
}

type mockReviewStarter struct {
	StartReviewFunc func(ctx context.Context, vars map[string]interface{}) (int64, error)
	started         []map[string]interface{}
}

func (m *mockReviewStarter) StartReview(ctx context.Context, vars map[string]interface{}) (int64, error) {
	m.started = append(m.started, vars)
	if m.StartReviewFunc != nil {
		return m.StartReviewFunc(ctx, vars)
	}
	return 2251799813685249, nil
}

func newDraftStore(t *testing.T) (*draft.RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return draft.NewRedisStore(rdb, logger.NewTestLogger(t)), mr
}

func sequenceRand(values ...int) func(int) int {
	i := 0
	return func(int) int {
		v := values[i%len(values)]
		i++
		return v
	}
}
