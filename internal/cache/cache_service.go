// Package cache provides Redis-based caching for currency metadata and
// consolidated balance views.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"lending-fund-api/config"
)

// ErrCacheMiss is returned when the key is absent. Callers fall back to the
// database and repopulate.
var ErrCacheMiss = errors.New("cache miss")

// Key prefixes for the cached view types.
const (
	KeyActiveCurrencies = "currencies:active"
	PrefixCurrency      = "currency:%s"        // by code
	KeyConsolidated       = "balances:consolidated"
	PrefixLatestBalance   = "balance:latest:%d" // by currency id
	PatternLatestBalances = "balance:latest:*"
)

// Default TTLs. Currency metadata changes rarely; balance views are
// invalidated explicitly on every consolidation run, so the TTL is only a
// backstop.
const (
	CurrencyTTL = 12 * time.Hour
	BalanceTTL  = 1 * time.Hour
)

// Service provides Redis caching with graceful degradation. When Redis is
// unavailable, operations return errors that callers should handle by
// falling back to database queries.
type Service struct {
	client       *redis.Client
	config       config.RedisConfig
	logger       zerolog.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewService creates the cache service and verifies connectivity. A failed
// initial connection is not fatal: the service starts in degraded mode and
// recovers in the background.
func NewService(cfg config.RedisConfig, logger zerolog.Logger) (*Service, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	s := &Service{
		client:        client,
		config:        cfg,
		logger:        logger.With().Str("component", "cache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("initial redis connection failed, starting degraded")
		return s, nil
	}

	s.healthy = true
	s.lastCheck = time.Now()
	s.logger.Info().Str("address", cfg.Address).Msg("redis connected")

	return s, nil
}

// IsHealthy reports whether Redis is currently available.
func (s *Service) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

func (s *Service) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failureCount++
	if s.failureCount >= s.maxFailures {
		if s.healthy {
			s.logger.Warn().Int("failures", s.failureCount).Msg("circuit breaker open, redis marked unhealthy")
		}
		s.healthy = false
	}
}

func (s *Service) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.healthy {
		s.logger.Info().Msg("circuit breaker closed, redis recovered")
	}
	s.healthy = true
	s.failureCount = 0
	s.lastCheck = time.Now()
}

// checkHealth schedules a background ping when the circuit has been open for
// long enough.
func (s *Service) checkHealth() {
	s.mu.RLock()
	shouldCheck := !s.healthy && time.Since(s.lastCheck) >= s.checkInterval
	s.mu.RUnlock()

	if !shouldCheck {
		return
	}

	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := s.client.Ping(pingCtx).Err(); err == nil {
			s.recordSuccess()
		}
	}()
}

// GetJSON retrieves a key and unmarshals it into dest. Returns ErrCacheMiss
// when the key does not exist.
func (s *Service) GetJSON(ctx context.Context, key string, dest interface{}) error {
	s.checkHealth()

	if !s.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	data, err := s.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return ErrCacheMiss
		}
		s.recordFailure()
		return fmt.Errorf("redis get failed: %w", err)
	}

	s.recordSuccess()

	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

// SetJSON marshals value and stores it under key with the given TTL.
func (s *Service) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	s.checkHealth()

	if !s.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}

	s.recordSuccess()
	return nil
}

// Delete removes keys from the cache. Missing keys are not an error.
func (s *Service) Delete(ctx context.Context, keys ...string) error {
	s.checkHealth()

	if !s.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("redis delete failed: %w", err)
	}

	s.recordSuccess()
	return nil
}

// DeletePattern deletes all keys matching a glob pattern.
func (s *Service) DeletePattern(ctx context.Context, pattern string) error {
	s.checkHealth()

	if !s.IsHealthy() {
		return fmt.Errorf("redis unavailable (circuit breaker open)")
	}

	iter := s.client.Scan(ctx, 0, pattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := s.client.Del(ctx, iter.Val()).Err(); err != nil {
			s.recordFailure()
			return fmt.Errorf("redis delete pattern failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("redis scan failed: %w", err)
	}

	s.recordSuccess()
	return nil
}

// Ping checks Redis connectivity.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		s.recordFailure()
		return err
	}
	s.recordSuccess()
	return nil
}

// Close closes the Redis connection.
func (s *Service) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Stats describes cache health for the monitoring endpoint.
type Stats struct {
	Healthy      bool   `json:"healthy"`
	FailureCount int    `json:"failure_count"`
	Address      string `json:"address"`
	PoolSize     int    `json:"pool_size"`
}

// GetStats returns current cache statistics.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Healthy:      s.healthy,
		FailureCount: s.failureCount,
		Address:      s.config.Address,
		PoolSize:     s.config.PoolSize,
	}
}

// CurrencyKey returns the cache key for a single currency by code.
func CurrencyKey(code string) string {
	return fmt.Sprintf(PrefixCurrency, code)
}

// LatestBalanceKey returns the cache key for a currency's latest balance.
func LatestBalanceKey(currencyID int) string {
	return fmt.Sprintf(PrefixLatestBalance, currencyID)
}
