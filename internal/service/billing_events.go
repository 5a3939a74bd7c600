package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Event subjects, relative to the configured prefix.
const (
	SubjectPromotionCompleted = "promotion.completed"
	SubjectPaymentRecorded    = "payment.recorded"
)

// EventPublisher emits billing events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, payload interface{}) error
}

type billingEvent struct {
	ID      string      `json:"id"`
	Source  string      `json:"source"`
	Subject string      `json:"subject"`
	Payload interface{} `json:"payload"`
	SentAt  time.Time   `json:"sent_at"`
}

type natsEventPublisher struct {
	conn   *nats.Conn
	prefix string
	nodeID string
	logger zerolog.Logger
}

// NewEventPublisher publishes events on NATS under prefix. A nil connection yields a
// publisher that only logs.
func NewEventPublisher(conn *nats.Conn, prefix string, logger zerolog.Logger) EventPublisher {
	return &natsEventPublisher{
		conn:   conn,
		prefix: strings.Trim(strings.ReplaceAll(prefix, ":", "."), "."),
		nodeID: uuid.NewString(),
		logger: logger.With().Str("component", "billing_events").Logger(),
	}
}

func (p *natsEventPublisher) Publish(ctx context.Context, subject string, payload interface{}) error {
	full := subject
	if p.prefix != "" {
		full = p.prefix + "." + subject
	}

	if p.conn == nil {
		p.logger.Debug().Str("subject", full).Msg("event publishing disabled")
		return nil
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	body, err := json.Marshal(billingEvent{
		ID:      uuid.NewString(),
		Source:  p.nodeID,
		Subject: full,
		Payload: payload,
		SentAt:  time.Now().UTC(),
	})
	if err != nil {
		return err
	}

	return p.conn.Publish(full, body)
}

func summaryCacheKey(studentID uint) string {
	return fmt.Sprintf("billing:summary:%d", studentID)
}

const fleetRiskCacheKey = "billing:risk:fleet"

// purgeBillingCache drops every cached billing projection.
func purgeBillingCache(ctx context.Context, cache *redis.Client, logger zerolog.Logger) {
	if cache == nil {
		return
	}

	iter := cache.Scan(ctx, 0, "billing:*", 100).Iterator()
	keys := make([]string, 0)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		logger.Warn().Err(err).Msg("failed to scan billing cache")
		return
	}
	if len(keys) == 0 {
		return
	}
	if err := cache.Del(ctx, keys...).Err(); err != nil {
		logger.Warn().Err(err).Msg("failed to purge billing cache")
	}
}

func invalidateStudentCache(ctx context.Context, cache *redis.Client, logger zerolog.Logger, studentID uint) {
	if cache == nil {
		return
	}
	if err := cache.Del(ctx, summaryCacheKey(studentID), fleetRiskCacheKey).Err(); err != nil {
		logger.Warn().Err(err).Uint("student_id", studentID).Msg("failed to invalidate billing cache")
	}
}

func readCache(ctx context.Context, cache *redis.Client, logger zerolog.Logger, key string, target interface{}) bool {
	if cache == nil {
		return false
	}

	cached, err := cache.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			logger.Warn().Err(err).Str("key", key).Msg("failed to read billing cache")
		}
		return false
	}

	if err := json.Unmarshal([]byte(cached), target); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("discarding malformed cache entry")
		return false
	}

	return true
}

func writeCache(ctx context.Context, cache *redis.Client, logger zerolog.Logger, key string, value interface{}, ttl time.Duration) {
	if cache == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := cache.Set(ctx, key, payload, ttl).Err(); err != nil {
		logger.Warn().Err(err).Str("key", key).Msg("failed to store billing cache")
	}
}
