// Package studyconfig provides cached access to versioned per-study
// configuration. Instrument definitions and safety rule sets change rarely
// and are read on every submission, so lookups go through a two-tier cache:
// an in-memory LRU for hot studies and Redis shared across instances.
package studyconfig

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/pro-outcomes-server/internal/domain"
)

// Source is the authoritative backend the cache falls through to,
// typically the study configuration repository.
type Source interface {
	Instrument(ctx context.Context, studyID, instrumentID string) (*domain.Instrument, error)
	SafetyRules(ctx context.Context, studyID string) (*domain.SafetyRuleSet, error)
}

// CacheStats represents cache performance statistics
type CacheStats struct {
	MemoryHits   int64     `json:"memory_hits"`
	MemoryMisses int64     `json:"memory_misses"`
	RedisHits    int64     `json:"redis_hits"`
	RedisMisses  int64     `json:"redis_misses"`
	SourceLoads  int64     `json:"source_loads"`
	ErrorCount   int64     `json:"error_count"`
	LastReset    time.Time `json:"last_reset"`
}

// CachedProvider implements domain.StudyConfigProvider with two cache tiers
// in front of the authoritative source. Redis is optional; with a nil client
// the provider degrades to memory-only caching.
type CachedProvider struct {
	source Source

	memory *lru.Cache
	redis  *redis.Client

	memoryTTL time.Duration
	redisTTL  time.Duration

	logger  *logrus.Logger
	stats   CacheStats
	statsMu sync.RWMutex
}

// memoryEntry wraps a cached value with its expiry, since the LRU itself
// does not expire entries.
type memoryEntry struct {
	value     any
	expiresAt time.Time
}

// redisEnvelope is the serialized form stored in Redis.
type redisEnvelope struct {
	Payload   json.RawMessage `json:"payload"`
	CachedAt  time.Time       `json:"cached_at"`
	ExpiresAt time.Time       `json:"expires_at"`
}

// ProviderConfig represents configuration for the cached provider
type ProviderConfig struct {
	MaxMemoryItems int
	MemoryTTL      time.Duration
	RedisTTL       time.Duration
}

// NewCachedProvider creates a cached study configuration provider.
// redisClient may be nil when no shared tier is configured.
func NewCachedProvider(source Source, redisClient *redis.Client, config ProviderConfig, logger *logrus.Logger) (*CachedProvider, error) {
	if source == nil {
		return nil, fmt.Errorf("source is required")
	}
	if config.MaxMemoryItems <= 0 {
		config.MaxMemoryItems = 256
	}
	if config.MemoryTTL <= 0 {
		config.MemoryTTL = 5 * time.Minute
	}
	if config.RedisTTL <= 0 {
		config.RedisTTL = 30 * time.Minute
	}

	memory, err := lru.New(config.MaxMemoryItems)
	if err != nil {
		return nil, fmt.Errorf("failed to create memory cache: %w", err)
	}

	return &CachedProvider{
		source:    source,
		memory:    memory,
		redis:     redisClient,
		memoryTTL: config.MemoryTTL,
		redisTTL:  config.RedisTTL,
		logger:    logger,
		stats:     CacheStats{LastReset: time.Now()},
	}, nil
}

// NewRedisClient creates a Redis client from the cache configuration
func NewRedisClient(config domain.CacheConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.PoolSize
	opts.PoolTimeout = config.PoolTimeout
	opts.MaxRetries = config.MaxRetries

	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return client, nil
}

// Instrument returns the latest instrument definition for a study
func (p *CachedProvider) Instrument(ctx context.Context, studyID, instrumentID string) (*domain.Instrument, error) {
	key := instrumentKey(studyID, instrumentID)

	if cached, ok := p.fromMemory(key); ok {
		p.incrementStat("memory_hits")
		return cached.(*domain.Instrument), nil
	}
	p.incrementStat("memory_misses")

	var fromRedis domain.Instrument
	if ok := p.fromRedis(ctx, key, &fromRedis); ok {
		p.incrementStat("redis_hits")
		p.toMemory(key, &fromRedis)
		return &fromRedis, nil
	}
	p.incrementStat("redis_misses")

	p.incrementStat("source_loads")
	instrument, err := p.source.Instrument(ctx, studyID, instrumentID)
	if err != nil {
		p.incrementStat("error_count")
		return nil, err
	}

	p.toMemory(key, instrument)
	p.toRedis(ctx, key, instrument)

	p.logger.WithFields(logrus.Fields{
		"study_id":      studyID,
		"instrument_id": instrumentID,
		"version":       instrument.Version,
	}).Debug("Instrument loaded from source")

	return instrument, nil
}

// SafetyRules returns the latest safety rule set for a study
func (p *CachedProvider) SafetyRules(ctx context.Context, studyID string) (*domain.SafetyRuleSet, error) {
	key := rulesKey(studyID)

	if cached, ok := p.fromMemory(key); ok {
		p.incrementStat("memory_hits")
		return cached.(*domain.SafetyRuleSet), nil
	}
	p.incrementStat("memory_misses")

	var fromRedis domain.SafetyRuleSet
	if ok := p.fromRedis(ctx, key, &fromRedis); ok {
		p.incrementStat("redis_hits")
		p.toMemory(key, &fromRedis)
		return &fromRedis, nil
	}
	p.incrementStat("redis_misses")

	p.incrementStat("source_loads")
	rules, err := p.source.SafetyRules(ctx, studyID)
	if err != nil {
		p.incrementStat("error_count")
		return nil, err
	}

	p.toMemory(key, rules)
	p.toRedis(ctx, key, rules)

	p.logger.WithFields(logrus.Fields{
		"study_id": studyID,
		"version":  rules.Version,
	}).Debug("Safety rule set loaded from source")

	return rules, nil
}

// Invalidate drops all cached configuration for a study from both tiers.
// Called when a new instrument or rule set version is published.
func (p *CachedProvider) Invalidate(ctx context.Context, studyID string) error {
	prefix := "studyconfig:" + studyID + ":"
	for _, key := range p.memory.Keys() {
		if k, ok := key.(string); ok && strings.HasPrefix(k, prefix) {
			p.memory.Remove(key)
		}
	}

	if p.redis != nil {
		iter := p.redis.Scan(ctx, 0, prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			if err := p.redis.Del(ctx, iter.Val()).Err(); err != nil {
				return fmt.Errorf("failed to invalidate Redis key %s: %w", iter.Val(), err)
			}
		}
		if err := iter.Err(); err != nil {
			return fmt.Errorf("failed to scan Redis keys: %w", err)
		}
	}

	p.logger.WithField("study_id", studyID).Info("Study configuration cache invalidated")
	return nil
}

// GetCacheStats returns cache performance statistics
func (p *CachedProvider) GetCacheStats() CacheStats {
	p.statsMu.RLock()
	defer p.statsMu.RUnlock()
	return p.stats
}

func (p *CachedProvider) fromMemory(key string) (any, bool) {
	raw, ok := p.memory.Get(key)
	if !ok {
		return nil, false
	}

	entry := raw.(memoryEntry)
	if time.Now().After(entry.expiresAt) {
		p.memory.Remove(key)
		return nil, false
	}
	return entry.value, true
}

func (p *CachedProvider) toMemory(key string, value any) {
	p.memory.Add(key, memoryEntry{
		value:     value,
		expiresAt: time.Now().Add(p.memoryTTL),
	})
}

func (p *CachedProvider) fromRedis(ctx context.Context, key string, out any) bool {
	if p.redis == nil {
		return false
	}

	val, err := p.redis.Get(ctx, key).Result()
	if err == redis.Nil {
		return false
	}
	if err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Redis cache read failed")
		return false
	}

	var envelope redisEnvelope
	if err := json.Unmarshal([]byte(val), &envelope); err != nil {
		// Remove corrupted cache entry
		p.redis.Del(ctx, key)
		return false
	}

	if time.Now().After(envelope.ExpiresAt) {
		p.redis.Del(ctx, key)
		return false
	}

	if err := json.Unmarshal(envelope.Payload, out); err != nil {
		p.redis.Del(ctx, key)
		return false
	}
	return true
}

func (p *CachedProvider) toRedis(ctx context.Context, key string, value any) {
	if p.redis == nil {
		return
	}

	payload, err := json.Marshal(value)
	if err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Failed to marshal cache payload")
		return
	}

	envelope := redisEnvelope{
		Payload:   payload,
		CachedAt:  time.Now(),
		ExpiresAt: time.Now().Add(p.redisTTL),
	}

	data, err := json.Marshal(envelope)
	if err != nil {
		return
	}

	if err := p.redis.Set(ctx, key, data, p.redisTTL).Err(); err != nil {
		p.logger.WithError(err).WithField("key", key).Warn("Redis cache write failed")
	}
}

func (p *CachedProvider) incrementStat(name string) {
	p.statsMu.Lock()
	defer p.statsMu.Unlock()

	switch name {
	case "memory_hits":
		p.stats.MemoryHits++
	case "memory_misses":
		p.stats.MemoryMisses++
	case "redis_hits":
		p.stats.RedisHits++
	case "redis_misses":
		p.stats.RedisMisses++
	case "source_loads":
		p.stats.SourceLoads++
	case "error_count":
		p.stats.ErrorCount++
	}
}

func instrumentKey(studyID, instrumentID string) string {
	return fmt.Sprintf("studyconfig:%s:instrument:%s", studyID, instrumentID)
}

func rulesKey(studyID string) string {
	return fmt.Sprintf("studyconfig:%s:rules", studyID)
}
