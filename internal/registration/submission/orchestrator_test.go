// internal/registration/submission/orchestrator_test.go
package submission

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"msad-registration/internal/common/logger"
	"msad-registration/internal/common/storage"
	"msad-registration/internal/models"
	"msad-registration/internal/registration/feed"
	"msad-registration/internal/registration/upload"
	"msad-registration/internal/registration/wizard"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newOrchestrator(t *testing.T, records RecordStore, opts ...Option) (*Orchestrator, *mockPublisher, *mockReviewStarter) {
	t.Helper()
	drafts, _ := newDraftStore(t)
	pub := &mockPublisher{}
	rev := &mockReviewStarter{}
	opts = append([]Option{WithClock(clock), WithPublisher(pub), WithReviewStarter(rev)}, opts...)
	return NewOrchestrator(testSteps(), drafts, records, logger.NewTestLogger(t), opts...), pub, rev
}

// ==========================
// End-to-end scenarios
// ==========================

func TestSubmit_EndToEnd_Success(t *testing.T) {
	ctx := context.Background()
	drafts, mr := newDraftStore(t)
	records := &mockRecordStore{}
	orch := NewOrchestrator(testSteps(), drafts, records, logger.NewTestLogger(t), WithClock(clock))

	files, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8081/files")
	require.NoError(t, err)
	uploader := upload.NewAdapter(files, logger.NewTestLogger(t))

	// Walk the wizard the way a client would: edit, save, next.
	d := validDraft()
	nav := wizard.New(testSteps())
	for step := 1; step <= 3; step++ {
		require.NoError(t, drafts.Save(ctx, "sess-1", d))
		out := nav.Next(d)
		require.True(t, out.Advanced, "step %d: %v", step, out.Errors)
	}

	asset, err := uploader.Upload(ctx, upload.File{
		Field:       "photo",
		Name:        "me.jpg",
		Size:        3 * 1024 * 1024,
		ContentType: "image/jpeg",
		Body:        bytes.NewReader(make([]byte, 3*1024*1024)),
	})
	require.NoError(t, err)
	upload.Attach(d, asset)
	require.NoError(t, drafts.Save(ctx, "sess-1", d))

	res, err := orch.Submit(ctx, Request{SessionID: "sess-1", Navigator: nav})
	require.NoError(t, err)

	var subErr *SubmissionError
	assert.False(t, errors.As(err, &subErr))
	assert.Regexp(t, `^MSAD\d{4}\d{6}[A-Z0-9]{3}$`, res.ReferenceCode)
	assert.True(t, strings.HasPrefix(res.ReferenceCode, "MSAD2025"))
	assert.Equal(t, NextSteps, res.NextSteps)
	assert.NotEmpty(t, res.ApplicationID)

	assert.False(t, mr.Exists(drafts.Key("sess-1")), "draft cleared")
	assert.Empty(t, drafts.Load(ctx, "sess-1"))

	require.Equal(t, 1, records.calls())
	rec := records.inserted[0]
	assert.Equal(t, asset.RemoteURL, *rec.PhotoURL)
	assert.Nil(t, rec.UserID)
	assert.Equal(t, models.StatusPending, rec.Status)
}

func TestSubmit_EndToEnd_MissingStepFour(t *testing.T) {
	ctx := context.Background()
	drafts, _ := newDraftStore(t)
	records := &mockRecordStore{}
	orch := NewOrchestrator(testSteps(), drafts, records, logger.NewTestLogger(t), WithClock(clock))

	d := validDraft() // no photo_url
	require.NoError(t, drafts.Save(ctx, "sess-2", d))
	nav := wizard.New(testSteps())

	res, err := orch.Submit(ctx, Request{SessionID: "sess-2", Navigator: nav})

	assert.Nil(t, res)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 4, vErr.Step)
	assert.Contains(t, vErr.Fields, "photo_url")
	assert.Equal(t, 4, nav.Current())
	assert.Equal(t, vErr.Fields, nav.Errors())
	assert.Zero(t, records.calls(), "no insert")

	assert.Equal(t, d, drafts.Load(ctx, "sess-2"), "draft kept")
}

// ==========================
// Validation sweep
// ==========================

func TestSubmit_FirstFailingStepWins(t *testing.T) {
	records := &mockRecordStore{}
	orch, pub, rev := newOrchestrator(t, records)

	d := validDraft()
	d.RecordAsset("photo", "https://cdn.example.org/p.jpg")
	d["email"] = "broken"
	d["whyCompete"] = "short"

	_, err := orch.Submit(context.Background(), Request{SessionID: "s", Draft: d})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 2, vErr.Step)
	assert.Equal(t, "Please complete all required fields in step 2", vErr.Error())
	assert.Zero(t, records.calls())
	assert.Empty(t, pub.events)
	assert.Empty(t, rev.started)
}

func TestSubmit_UnconfirmedFileURLDoesNotSatisfyStepFour(t *testing.T) {
	records := &mockRecordStore{}
	orch, _, _ := newOrchestrator(t, records)

	d := validDraft()
	d["photo_url"] = "https://elsewhere.example/never-uploaded.jpg"

	_, err := orch.Submit(context.Background(), Request{SessionID: "s", Draft: d})

	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, 4, vErr.Step)
	assert.Contains(t, vErr.Fields, "photo_url")
	assert.Zero(t, records.calls())
}

func TestSubmit_RecordUsesDerivedAgeAndConfirmedURLs(t *testing.T) {
	records := &mockRecordStore{}
	orch, _, _ := newOrchestrator(t, records)

	d := validDraft()
	d["age"] = "99"
	d.RecordAsset("photo", "https://cdn.example.org/p.jpg")
	d["medicalCertificate_url"] = "https://elsewhere.example/cert.pdf"

	_, err := orch.Submit(context.Background(), Request{SessionID: "s", Draft: d})
	require.NoError(t, err)

	require.Equal(t, 1, records.calls())
	rec := records.inserted[0]
	assert.Equal(t, 24, rec.Age, "dob 2001-05-14 on 2025-10-01")
	assert.Equal(t, "https://cdn.example.org/p.jpg", *rec.PhotoURL)
	assert.Nil(t, rec.MedicalCertificateURL)
	assert.False(t, rec.MedicalClearance)
}

func TestSubmit_ReferenceCodeFollowsClock(t *testing.T) {
	records := &mockRecordStore{}
	later := func() time.Time { return time.Date(2031, time.March, 2, 10, 0, 0, 0, time.UTC) }
	orch, _, _ := newOrchestrator(t, records, WithClock(later))

	d := validDraft()
	d.RecordAsset("photo", "https://cdn.example.org/p.jpg")

	res, err := orch.Submit(context.Background(), Request{SessionID: "s", Draft: d})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(res.ReferenceCode, "MSAD2031"), res.ReferenceCode)
	assert.Equal(t, later(), records.inserted[0].CreatedAt)
}

// ==========================
// Store failures
// ==========================

func TestSubmit_StoreFailureKeepsDraft(t *testing.T) {
	ctx := context.Background()
	drafts, _ := newDraftStore(t)
	records := &mockRecordStore{InsertFunc: func(context.Context, *models.ApplicationRecord) (string, error) {
		return "", fmt.Errorf("%w: %s", ErrInsertFailed, "permission denied for table contestants")
	}}
	pub := &mockPublisher{}
	orch := NewOrchestrator(testSteps(), drafts, records, logger.NewTestLogger(t), WithClock(clock), WithPublisher(pub))

	d := validDraft()
	d.RecordAsset("photo", "https://cdn.example.org/p.jpg")
	require.NoError(t, drafts.Save(ctx, "sess-3", d))

	_, err := orch.Submit(ctx, Request{SessionID: "sess-3"})

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.Equal(t, "permission denied for table contestants", subErr.Message)
	assert.ErrorIs(t, err, ErrInsertFailed)
	assert.Equal(t, d, drafts.Load(ctx, "sess-3"))
	assert.Empty(t, pub.events)
	assert.Equal(t, 1, records.calls())
}

func TestSubmit_RetriesOnReferenceCollision(t *testing.T) {
	attempts := 0
	records := &mockRecordStore{InsertFunc: func(context.Context, *models.ApplicationRecord) (string, error) {
		attempts++
		if attempts < 3 {
			return "", ErrDuplicateReference
		}
		return "app-3", nil
	}}
	orch, _, _ := newOrchestrator(t, records, WithReferenceGenerator(&ReferenceGenerator{
		Prefix: "MSAD",
		Now:    clock,
		Rand:   sequenceRand(0, 1, 2, 3, 4, 5, 6, 7, 8),
	}))

	d := validDraft()
	d.RecordAsset("photo", "https://cdn.example.org/p.jpg")

	res, err := orch.Submit(context.Background(), Request{SessionID: "s", Draft: d})
	require.NoError(t, err)

	assert.Equal(t, "app-3", res.ApplicationID)
	require.Equal(t, 3, records.calls())
	codes := map[string]bool{}
	for _, r := range records.inserted {
		codes[r.ApplicationNumber] = true
	}
	assert.Len(t, codes, 3, "fresh code per attempt")
	assert.Equal(t, "MSAD2025000000GHI", res.ReferenceCode)
}

func TestSubmit_CollisionAttemptsExhausted(t *testing.T) {
	records := &mockRecordStore{InsertFunc: func(context.Context, *models.ApplicationRecord) (string, error) {
		return "", ErrDuplicateReference
	}}
	orch, _, _ := newOrchestrator(t, records, WithMaxAttempts(2))

	d := validDraft()
	d.RecordAsset("photo", "https://cdn.example.org/p.jpg")

	_, err := orch.Submit(context.Background(), Request{SessionID: "s", Draft: d})

	var subErr *SubmissionError
	require.ErrorAs(t, err, &subErr)
	assert.ErrorIs(t, err, ErrDuplicateReference)
	assert.Equal(t, 2, records.calls())
}

func TestSubmit_WithPostgresStore(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store, err := NewPostgresStore(db, "contestants")
	require.NoError(t, err)
	orch, pub, rev := newOrchestrator(t, store)

	mock.ExpectQuery(`INSERT INTO contestants`).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key"})
	mock.ExpectQuery(`INSERT INTO contestants`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("9a6e0d1c-7c1e-4f59-9f55-6a1f3f1b2c3d"))

	d := validDraft()
	d.RecordAsset("photo", "https://cdn.example.org/p.jpg")
	user := "kc-42"

	res, err := orch.Submit(context.Background(), Request{SessionID: "s", Draft: d, UserID: &user})
	require.NoError(t, err)
	assert.Equal(t, "9a6e0d1c-7c1e-4f59-9f55-6a1f3f1b2c3d", res.ApplicationID)
	assert.NoError(t, mock.ExpectationsWereMet())

	require.Len(t, pub.events, 1)
	assert.Equal(t, feed.EventSubmitted, pub.events[0].Type)
	assert.Equal(t, "kc-42", pub.events[0].UserID)
	assert.Equal(t, res.ReferenceCode, pub.events[0].ApplicationNumber)

	require.Len(t, rev.started, 1)
	assert.Equal(t, res.ApplicationID, rev.started[0]["applicationId"])
	assert.Equal(t, "kc-42", rev.started[0]["userId"])
}

// ==========================
// Side effects
// ==========================

func TestSubmit_SideEffectFailuresAreNonCritical(t *testing.T) {
	ctx := context.Background()
	drafts, mr := newDraftStore(t)
	pub := &mockPublisher{PublishFunc: func(context.Context, feed.Event) error { return errors.New("redis down") }}
	rev := &mockReviewStarter{StartReviewFunc: func(context.Context, map[string]interface{}) (int64, error) {
		return 0, errors.New("broker unavailable")
	}}
	orch := NewOrchestrator(testSteps(), drafts, &mockRecordStore{}, logger.NewTestLogger(t),
		WithClock(clock), WithPublisher(pub), WithReviewStarter(rev))

	d := validDraft()
	d.RecordAsset("photo", "https://cdn.example.org/p.jpg")
	require.NoError(t, drafts.Save(ctx, "s", d))

	res, err := orch.Submit(ctx, Request{SessionID: "s"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.ReferenceCode)
	assert.Len(t, pub.events, 1)
	assert.Len(t, rev.started, 1)
	assert.False(t, mr.Exists(drafts.Key("s")))
}

// ==========================
// Identity and concurrency
// ==========================

func TestSubmit_IdentityRequired(t *testing.T) {
	records := &mockRecordStore{}
	orch, _, _ := newOrchestrator(t, records, WithRequireIdentity(true))

	d := validDraft()
	d.RecordAsset("photo", "https://cdn.example.org/p.jpg")
	blank := "  "

	_, err := orch.Submit(context.Background(), Request{SessionID: "s", Draft: d, UserID: &blank})
	assert.ErrorIs(t, err, ErrIdentityRequired)
	assert.Zero(t, records.calls())

	user := "kc-1"
	_, err = orch.Submit(context.Background(), Request{SessionID: "s", Draft: d, UserID: &user})
	assert.NoError(t, err)
}

func TestSubmit_AnonymousAllowedByDefault(t *testing.T) {
	records := &mockRecordStore{}
	orch, _, rev := newOrchestrator(t, records)

	d := validDraft()
	d.RecordAsset("photo", "https://cdn.example.org/p.jpg")

	_, err := orch.Submit(context.Background(), Request{SessionID: "s", Draft: d})
	require.NoError(t, err)
	assert.Nil(t, records.inserted[0].UserID)
	assert.NotContains(t, rev.started[0], "userId")
}

func TestSubmit_InFlightGuard(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	records := &mockRecordStore{InsertFunc: func(context.Context, *models.ApplicationRecord) (string, error) {
		close(entered)
		<-release
		return "app-1", nil
	}}
	orch, _, _ := newOrchestrator(t, records)

	d := validDraft()
	d.RecordAsset("photo", "https://cdn.example.org/p.jpg")

	done := make(chan error, 1)
	go func() {
		_, err := orch.Submit(context.Background(), Request{SessionID: "same", Draft: d})
		done <- err
	}()

	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("first submission never reached the store")
	}

	_, err := orch.Submit(context.Background(), Request{SessionID: "same", Draft: d})
	assert.ErrorIs(t, err, ErrSubmissionInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, records.calls())

	// the guard is released afterwards
	records.InsertFunc = nil
	_, err = orch.Submit(context.Background(), Request{SessionID: "same", Draft: d})
	assert.NoError(t, err)
}

func TestSubmit_DoesNotMutateCallerDraft(t *testing.T) {
	orch, _, _ := newOrchestrator(t, &mockRecordStore{})
	d := validDraft()
	d.RecordAsset("photo", "https://cdn.example.org/p.jpg")
	before := d.Clone()

	_, err := orch.Submit(context.Background(), Request{SessionID: "s", Draft: d})
	require.NoError(t, err)
	assert.Equal(t, before, d)
}
