// internal/registration/feed/feed.go
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"msad-registration/internal/common/logger"

	"github.com/redis/go-redis/v9"
)

const (
	EventSubmitted     = "application.submitted"
	EventStatusChanged = "application.status_changed"

	// AllApplicationsChannel carries every application event.
	AllApplicationsChannel = "applications"
)

var ErrPublishFailed = errors.New("FEED_PUBLISH_FAILED")

// Event is one change to a contestant application.
type Event struct {
	Type              string    `json:"type"`
	ApplicationID     string    `json:"applicationId"`
	ApplicationNumber string    `json:"applicationNumber,omitempty"`
	UserID            string    `json:"userId,omitempty"`
	Status            string    `json:"status"`
	PreviousStatus    string    `json:"previousStatus,omitempty"`
	OccurredAt        time.Time `json:"occurredAt"`
}

// UserChannel is the channel of one applicant's events.
func UserChannel(userID string) string {
	return "user_applications_" + userID
}

// Publisher sends application events.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Feed publishes and subscribes to application events over Redis pub/sub.
// Delivery is at most once; subscribers that are not connected miss events.
type Feed struct {
	rdb    redis.UniversalClient
	logger logger.Logger
	buffer int
}

func New(rdb redis.UniversalClient, log logger.Logger) *Feed {
	return &Feed{
		rdb:    rdb,
		logger: log.WithFields(map[string]interface{}{"component": "change-feed"}),
		buffer: 16,
	}
}

// Publish writes ev to the shared channel and, when the applicant is known,
// to the applicant's channel.
func (f *Feed) Publish(ctx context.Context, ev Event) error {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("%w: encode event: %v", ErrPublishFailed, err)
	}

	channels := []string{AllApplicationsChannel}
	if ev.UserID != "" {
		channels = append(channels, UserChannel(ev.UserID))
	}
	for _, ch := range channels {
		if err := f.rdb.Publish(ctx, ch, payload).Err(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrPublishFailed, ch, err)
		}
	}

	f.logger.Debug("event published", map[string]interface{}{
		"type":          ev.Type,
		"applicationId": ev.ApplicationID,
		"channels":      channels,
	})
	return nil
}

// Subscribe streams the events of userID, or of every application when
// userID is empty. The channel closes when ctx ends or close is called.
func (f *Feed) Subscribe(ctx context.Context, userID string) (<-chan Event, func() error, error) {
	channel := AllApplicationsChannel
	if userID != "" {
		channel = UserChannel(userID)
	}

	sub := f.rdb.Subscribe(ctx, channel)
	// Wait for the subscription confirmation so no event published after
	// Subscribe returns is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	out := make(chan Event, f.buffer)
	go func() {
		defer close(out)
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				_ = sub.Close()
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					f.logger.Warn("dropping malformed event", map[string]interface{}{
						"channel": msg.Channel,
						"error":   err,
					})
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					_ = sub.Close()
					return
				}
			}
		}
	}()

	return out, sub.Close, nil
}
