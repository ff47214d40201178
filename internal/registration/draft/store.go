// internal/registration/draft/store.go
package draft

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"msad-registration/internal/common/logger"
	"msad-registration/internal/common/metrics"
	"msad-registration/internal/models"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultKeyPrefix = "registrationFormData"
	DefaultTTL       = 30 * 24 * time.Hour
)

var ErrDraftStoreFailed = errors.New("DRAFT_STORE_FAILED")

// Store persists one draft per registration session.
type Store interface {
	Save(ctx context.Context, sessionID string, d models.FormDraft) error
	Load(ctx context.Context, sessionID string) models.FormDraft
	Clear(ctx context.Context, sessionID string) error
}

// RedisStore keeps each draft as a JSON document under <prefix>:<sessionID>.
// Every Save overwrites the whole document and renews its expiry; concurrent
// writers for one session race and the last write wins.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
	ttl    time.Duration
	logger logger.Logger
}

type Option func(*RedisStore)

func WithKeyPrefix(prefix string) Option {
	return func(s *RedisStore) {
		if prefix != "" {
			s.prefix = prefix
		}
	}
}

func WithTTL(ttl time.Duration) Option {
	return func(s *RedisStore) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func NewRedisStore(rdb redis.Cmdable, log logger.Logger, opts ...Option) *RedisStore {
	s := &RedisStore{
		rdb:    rdb,
		prefix: DefaultKeyPrefix,
		ttl:    DefaultTTL,
		logger: log.WithFields(map[string]interface{}{"component": "draft-store"}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Key returns the Redis key of sessionID's draft.
func (s *RedisStore) Key(sessionID string) string {
	return s.prefix + ":" + sessionID
}

func (s *RedisStore) Save(ctx context.Context, sessionID string, d models.FormDraft) error {
	if d == nil {
		d = models.NewFormDraft()
	}
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("%w: encode draft: %v", ErrDraftStoreFailed, err)
	}
	if err := s.rdb.Set(ctx, s.Key(sessionID), data, s.ttl).Err(); err != nil {
		metrics.RegistrationDraftSaves.WithLabelValues("failed").Inc()
		return fmt.Errorf("%w: %v", ErrDraftStoreFailed, err)
	}
	metrics.RegistrationDraftSaves.WithLabelValues("saved").Inc()

	s.logger.Debug("draft saved", map[string]interface{}{
		"sessionId": sessionID,
		"fields":    len(d),
	})
	return nil
}

// Load returns the stored draft, or an empty one when nothing usable is
// stored. Read and decode failures are logged, never returned.
func (s *RedisStore) Load(ctx context.Context, sessionID string) models.FormDraft {
	data, err := s.rdb.Get(ctx, s.Key(sessionID)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			s.logger.Warn("draft read failed, starting empty", map[string]interface{}{
				"sessionId": sessionID,
				"error":     err,
			})
		}
		return models.NewFormDraft()
	}

	var d models.FormDraft
	if err := json.Unmarshal(data, &d); err != nil || d == nil {
		s.logger.Warn("stored draft is malformed, starting empty", map[string]interface{}{
			"sessionId": sessionID,
			"error":     err,
		})
		return models.NewFormDraft()
	}
	return d.Normalize()
}

// Exists reports whether a draft is stored for sessionID.
func (s *RedisStore) Exists(ctx context.Context, sessionID string) (bool, error) {
	n, err := s.rdb.Exists(ctx, s.Key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrDraftStoreFailed, err)
	}
	return n > 0, nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.rdb.Del(ctx, s.Key(sessionID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrDraftStoreFailed, err)
	}
	return nil
}
