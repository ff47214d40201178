// internal/registration/upload/adapter.go
package upload

import (
	"context"
	"fmt"
	"io"
	"math/rand/v2"
	"path"
	"strconv"
	"strings"
	"time"

	"msad-registration/internal/common/logger"
	"msad-registration/internal/common/metrics"
	"msad-registration/internal/common/storage"
	"msad-registration/internal/models"
)

const (
	DefaultBucket  = "contestant-documents"
	DefaultMaxSize = 5 * 1024 * 1024
	tokenLength    = 6
)

// File is one file chosen for a file field of the wizard.
type File struct {
	Field       string
	Name        string
	Size        int64
	ContentType string
	Body        io.Reader
}

// UploadError is reported against the file field that failed. It never
// affects the rest of the draft.
type UploadError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	// Rejected is true when the file failed a local precondition and no
	// network call was made.
	Rejected bool  `json:"-"`
	Err      error `json:"-"`
}

func (e *UploadError) Error() string {
	return fmt.Sprintf("upload %s: %s", e.Field, e.Message)
}

func (e *UploadError) Unwrap() error { return e.Err }

type uploadOptions struct {
	bucket       string
	maxSize      int64
	classMaxSize int64
	allowedTypes []string
	typesSet     bool
}

// limit resolves the size limit of one call. An explicit WithMaxSize wins;
// otherwise a bucket class may only tighten the adapter's limit.
func (o uploadOptions) limit(adapterMax int64) int64 {
	if o.maxSize > 0 {
		return o.maxSize
	}
	if o.classMaxSize > 0 && o.classMaxSize < adapterMax {
		return o.classMaxSize
	}
	return adapterMax
}

// UploadOption adjusts one Upload call.
type UploadOption func(*uploadOptions)

// WithMaxSize overrides the size limit for this call site, whatever the
// order of the other options.
func WithMaxSize(n int64) UploadOption {
	return func(o *uploadOptions) {
		if n > 0 {
			o.maxSize = n
		}
	}
}

// WithBucket selects the target bucket by alias or by name. An alias also
// brings the class's allowed types, and its size limit when that is lower
// than the adapter's.
func WithBucket(hint string) UploadOption {
	return func(o *uploadOptions) {
		if strings.TrimSpace(hint) == "" {
			return
		}
		class := ResolveBucket(hint)
		o.bucket = class.Bucket
		o.classMaxSize = class.MaxSize
		if !o.typesSet {
			o.allowedTypes = class.AllowedTypes
		}
	}
}

// WithAllowedTypes restricts the accepted content types. It wins over the
// types of a bucket class.
func WithAllowedTypes(types ...string) UploadOption {
	return func(o *uploadOptions) {
		o.allowedTypes = types
		o.typesSet = true
	}
}

// Adapter validates files locally and hands accepted ones to the object store.
// Failed uploads are not retried.
type Adapter struct {
	store         storage.ObjectStore
	defaultBucket string
	maxSize       int64
	now           func() time.Time
	token         func() string
	logger        logger.Logger
}

type Option func(*Adapter)

func WithDefaultBucket(bucket string) Option {
	return func(a *Adapter) {
		if bucket != "" {
			a.defaultBucket = bucket
		}
	}
}

// WithDefaultMaxSize sets the limit used when a call does not override it.
// Bucket classes never raise it.
func WithDefaultMaxSize(n int64) Option {
	return func(a *Adapter) {
		if n > 0 {
			a.maxSize = n
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

func WithTokenSource(token func() string) Option {
	return func(a *Adapter) { a.token = token }
}

func NewAdapter(store storage.ObjectStore, log logger.Logger, opts ...Option) *Adapter {
	a := &Adapter{
		store:         store,
		defaultBucket: DefaultBucket,
		maxSize:       DefaultMaxSize,
		now:           time.Now,
		token:         randomToken,
		logger:        log.WithFields(map[string]interface{}{"component": "upload-adapter"}),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Upload checks f against the size and type limits, stores it under a
// generated name and resolves its URL.
func (a *Adapter) Upload(ctx context.Context, f File, opts ...UploadOption) (*models.UploadedAsset, error) {
	asset, err := a.upload(ctx, f, opts...)
	switch {
	case err == nil:
		metrics.RegistrationUploads.WithLabelValues(f.Field, "stored").Inc()
		metrics.RegistrationUploadBytes.Observe(float64(f.Size))
	case isRejected(err):
		metrics.RegistrationUploads.WithLabelValues(f.Field, "rejected").Inc()
	default:
		metrics.RegistrationUploads.WithLabelValues(f.Field, "failed").Inc()
	}
	return asset, err
}

func isRejected(err error) bool {
	ue, ok := err.(*UploadError)
	return ok && ue.Rejected
}

func (a *Adapter) upload(ctx context.Context, f File, opts ...UploadOption) (*models.UploadedAsset, error) {
	o := uploadOptions{bucket: a.defaultBucket}
	for _, opt := range opts {
		opt(&o)
	}

	if err := a.precheck(f, o.allowedTypes, o.limit(a.maxSize)); err != nil {
		return nil, err
	}

	key := a.FileName(f.Name)
	if err := a.store.Put(ctx, o.bucket, key, f.Body, f.Size, f.ContentType); err != nil {
		a.logger.Warn("upload failed", map[string]interface{}{
			"field":  f.Field,
			"bucket": o.bucket,
			"key":    key,
			"error":  err,
		})
		return nil, &UploadError{Field: f.Field, Message: err.Error(), Err: err}
	}

	url, err := a.store.URL(ctx, o.bucket, key)
	if err != nil {
		return nil, &UploadError{Field: f.Field, Message: err.Error(), Err: err}
	}

	a.logger.Info("file uploaded", map[string]interface{}{
		"field":  f.Field,
		"bucket": o.bucket,
		"key":    key,
		"size":   f.Size,
	})

	return &models.UploadedAsset{
		OriginalFieldName: f.Field,
		RemoteURL:         url,
		RemotePath:        key,
		Bucket:            o.bucket,
		Size:              f.Size,
		ContentType:       f.ContentType,
	}, nil
}

func (a *Adapter) precheck(f File, allowedTypes []string, maxSize int64) error {
	if strings.TrimSpace(f.Field) == "" {
		return &UploadError{Field: f.Field, Message: "File field is required", Rejected: true}
	}
	if f.Body == nil || f.Size <= 0 {
		return &UploadError{Field: f.Field, Message: "Please choose a file to upload", Rejected: true}
	}
	if f.Size > maxSize {
		return &UploadError{Field: f.Field, Message: SizeMessage(maxSize), Rejected: true}
	}
	if len(allowedTypes) > 0 && !contains(allowedTypes, f.ContentType) {
		return &UploadError{
			Field:    f.Field,
			Message:  fmt.Sprintf("File type %q is not allowed for %q", f.ContentType, f.Name),
			Rejected: true,
		}
	}
	return nil
}

// FileName returns <unixMillis>-<token>.<ext> for an original file name.
func (a *Adapter) FileName(original string) string {
	name := strconv.FormatInt(a.now().UnixMilli(), 10) + "-" + a.token()
	if ext := Extension(original); ext != "" {
		name += "." + ext
	}
	return name
}

// Attach records asset's URL on the draft under <field>_url and lists it as
// a confirmed upload.
func Attach(d models.FormDraft, asset *models.UploadedAsset) {
	if d == nil || asset == nil || asset.RemoteURL == "" {
		return
	}
	d.RecordAsset(asset.OriginalFieldName, asset.RemoteURL)
}

// Extension returns the lowercase extension of name without the dot.
func Extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(path.Ext(strings.TrimSpace(name)), "."))
}

// SizeMessage is the error shown when a file exceeds limit bytes.
func SizeMessage(limit int64) string {
	mb := float64(limit) / (1024 * 1024)
	return "File size must be less than " + strconv.FormatFloat(mb, 'f', -1, 64) + "MB"
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

func randomToken() string {
	b := make([]byte, tokenLength)
	for i := range b {
		b[i] = base36[rand.IntN(len(base36))]
	}
	return string(b)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
