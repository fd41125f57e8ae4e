package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/stockcast/internal/config"
	"github.com/andresuchdata/stockcast/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const summaryKeyPrefix = "forecast:summary"

// SummaryCache stores QuickSummary views per owner and run date. A summary computed on
// one calendar day is never served on another.
type SummaryCache interface {
	GetSummary(ctx context.Context, ownerID string, day time.Time) (*domain.QuickSummary, bool, error)
	SetSummary(ctx context.Context, ownerID string, day time.Time, summary *domain.QuickSummary) error
	InvalidateOwner(ctx context.Context, ownerID string) error
	InvalidateAll(ctx context.Context) error
}

type redisSummaryCache struct {
	client *redis.Client
	ttl    time.Duration
}

type noopSummaryCache struct{}

// NewSummaryCache returns a redis-backed cache, or a no-op one when caching is disabled.
func NewSummaryCache(cfg config.CacheConfig) (SummaryCache, error) {
	if !cfg.Enabled {
		return &noopSummaryCache{}, nil
	}

	client, ttl, err := newRedisClient(cfg)
	if err != nil {
		return nil, err
	}

	return &redisSummaryCache{
		client: client,
		ttl:    ttl,
	}, nil
}

func NewNoopSummaryCache() SummaryCache {
	return &noopSummaryCache{}
}

func (c *redisSummaryCache) GetSummary(ctx context.Context, ownerID string, day time.Time) (*domain.QuickSummary, bool, error) {
	payload, err := c.client.Get(ctx, buildSummaryKey(ownerID, day)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get failed: %w", err)
	}

	var summary domain.QuickSummary
	if err := json.Unmarshal(payload, &summary); err != nil {
		return nil, false, fmt.Errorf("decode forecast summary cache: %w", err)
	}
	return &summary, true, nil
}

func (c *redisSummaryCache) SetSummary(ctx context.Context, ownerID string, day time.Time, summary *domain.QuickSummary) error {
	payload, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("encode forecast summary cache: %w", err)
	}

	if err := c.client.Set(ctx, buildSummaryKey(ownerID, day), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (c *redisSummaryCache) InvalidateOwner(ctx context.Context, ownerID string) error {
	removed, err := purgePrefix(ctx, c.client, ownerKeyPrefix(ownerID))
	if err != nil {
		return err
	}
	log.Debug().Str("owner_id", ownerID).Int("keys", removed).Msg("cache: owner summaries invalidated")
	return nil
}

func (c *redisSummaryCache) InvalidateAll(ctx context.Context) error {
	removed, err := purgePrefix(ctx, c.client, summaryKeyPrefix)
	if err != nil {
		return err
	}
	log.Debug().Int("keys", removed).Msg("cache: all summaries invalidated")
	return nil
}

func (n *noopSummaryCache) GetSummary(ctx context.Context, ownerID string, day time.Time) (*domain.QuickSummary, bool, error) {
	return nil, false, nil
}

func (n *noopSummaryCache) SetSummary(ctx context.Context, ownerID string, day time.Time, summary *domain.QuickSummary) error {
	return nil
}

func (n *noopSummaryCache) InvalidateOwner(ctx context.Context, ownerID string) error {
	return nil
}

func (n *noopSummaryCache) InvalidateAll(ctx context.Context) error {
	return nil
}

// ownerKeyPrefix hashes the owner id so arbitrary ids never collide with glob syntax.
func ownerKeyPrefix(ownerID string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(ownerID)))
	return fmt.Sprintf("%s:%s:", summaryKeyPrefix, hex.EncodeToString(sum[:]))
}

func buildSummaryKey(ownerID string, day time.Time) string {
	return ownerKeyPrefix(ownerID) + day.UTC().Format(time.DateOnly)
}
