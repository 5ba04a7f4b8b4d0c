package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	defaultCompanyTTL      = 5 * time.Minute
	defaultCleanupInterval = 30 * time.Second
)

// CompanyCache stores resolved companies keyed by ID. A nil ID addresses the
// default company of a mono-company installation.
type CompanyCache interface {
	Get(ctx context.Context, companyID *uuid.UUID) (*invoicing.Company, error)
	Set(ctx context.Context, companyID *uuid.UUID, company *invoicing.Company, ttl time.Duration) error
	Delete(ctx context.Context, companyID *uuid.UUID) error
	Close() error
}

// companyCacheKey generates the cache key for a company
func companyCacheKey(companyID *uuid.UUID) string {
	if companyID == nil {
		return "company:default"
	}
	return fmt.Sprintf("company:%s", companyID.String())
}

// RedisCompanyCache implements CompanyCache using Redis
type RedisCompanyCache struct {
	client     *redis.Client
	ownsClient bool // true if we created the client and should close it
	ttl        time.Duration
	logger     *zap.Logger
}

// RedisCompanyCacheOption is a functional option for configuring the cache
type RedisCompanyCacheOption func(*RedisCompanyCache)

// WithCompanyTTL sets the default entry lifetime
func WithCompanyTTL(ttl time.Duration) RedisCompanyCacheOption {
	return func(c *RedisCompanyCache) {
		c.ttl = ttl
	}
}

// WithCompanyCacheLogger sets the logger for the cache
func WithCompanyCacheLogger(logger *zap.Logger) RedisCompanyCacheOption {
	return func(c *RedisCompanyCache) {
		c.logger = logger
	}
}

// NewRedisCompanyCache creates a new Redis-based company cache
func NewRedisCompanyCache(cfg RedisConfig, opts ...RedisCompanyCacheOption) (*RedisCompanyCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	cache := &RedisCompanyCache{
		client:     client,
		ownsClient: true,
		ttl:        defaultCompanyTTL,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache, nil
}

// NewRedisCompanyCacheWithClient creates a cache with an existing Redis client
// Note: The caller retains ownership of the client and is responsible for closing it
func NewRedisCompanyCacheWithClient(client *redis.Client, opts ...RedisCompanyCacheOption) *RedisCompanyCache {
	cache := &RedisCompanyCache{
		client:     client,
		ownsClient: false,
		ttl:        defaultCompanyTTL,
		logger:     zap.NewNop(),
	}

	for _, opt := range opts {
		opt(cache)
	}

	return cache
}

// Get retrieves a company from cache. A nil result with nil error is a miss.
func (c *RedisCompanyCache) Get(ctx context.Context, companyID *uuid.UUID) (*invoicing.Company, error) {
	cacheKey := companyCacheKey(companyID)

	data, err := c.client.Get(ctx, cacheKey).Bytes()
	if err == redis.Nil {
		c.logger.Debug("Cache miss for company", zap.String("key", cacheKey))
		return nil, nil
	}
	if err != nil {
		c.logger.Error("Failed to get company from cache",
			zap.String("key", cacheKey),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get company from cache: %w", err)
	}

	var company invoicing.Company
	if err := json.Unmarshal(data, &company); err != nil {
		c.logger.Error("Failed to unmarshal cached company",
			zap.String("key", cacheKey),
			zap.Error(err))
		// Delete corrupted cache entry
		_ = c.client.Del(ctx, cacheKey)
		return nil, fmt.Errorf("failed to unmarshal company: %w", err)
	}

	c.logger.Debug("Cache hit for company", zap.String("key", cacheKey))
	return &company, nil
}

// Set stores a company in cache
func (c *RedisCompanyCache) Set(ctx context.Context, companyID *uuid.UUID, company *invoicing.Company, ttl time.Duration) error {
	if company == nil {
		return nil
	}

	if ttl == 0 {
		ttl = c.ttl
	}

	cacheKey := companyCacheKey(companyID)

	data, err := json.Marshal(company)
	if err != nil {
		return fmt.Errorf("failed to marshal company: %w", err)
	}

	if err := c.client.Set(ctx, cacheKey, data, ttl).Err(); err != nil {
		c.logger.Error("Failed to set company in cache",
			zap.String("key", cacheKey),
			zap.Error(err))
		return fmt.Errorf("failed to set company in cache: %w", err)
	}

	c.logger.Debug("Cached company",
		zap.String("key", cacheKey),
		zap.Duration("ttl", ttl))
	return nil
}

// Delete removes a company from cache
func (c *RedisCompanyCache) Delete(ctx context.Context, companyID *uuid.UUID) error {
	cacheKey := companyCacheKey(companyID)

	if err := c.client.Del(ctx, cacheKey).Err(); err != nil {
		c.logger.Error("Failed to delete company from cache",
			zap.String("key", cacheKey),
			zap.Error(err))
		return fmt.Errorf("failed to delete company from cache: %w", err)
	}

	return nil
}

// Close releases any resources held by the cache
func (c *RedisCompanyCache) Close() error {
	if c.ownsClient {
		return c.client.Close()
	}
	return nil
}

// GetClient returns the underlying Redis client (for testing/monitoring)
func (c *RedisCompanyCache) GetClient() *redis.Client {
	return c.client
}

// Ensure RedisCompanyCache implements CompanyCache
var _ CompanyCache = (*RedisCompanyCache)(nil)

// companyEntry wraps a cached company with expiration time
type companyEntry struct {
	company   *invoicing.Company
	expiresAt time.Time
}

func (e *companyEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// InMemoryCompanyCache implements CompanyCache using in-memory storage.
// Suitable for single-instance deployments and testing.
type InMemoryCompanyCache struct {
	mu        sync.RWMutex
	entries   map[string]companyEntry
	ttl       time.Duration
	stopChan  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewInMemoryCompanyCache creates a new in-memory company cache.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryCompanyCache(ttl time.Duration) *InMemoryCompanyCache {
	if ttl <= 0 {
		ttl = defaultCompanyTTL
	}
	cache := &InMemoryCompanyCache{
		entries:  make(map[string]companyEntry),
		ttl:      ttl,
		stopChan: make(chan struct{}),
	}

	cache.wg.Add(1)
	go cache.cleanupLoop()

	return cache
}

// Get retrieves a company from cache. A nil result with nil error is a miss.
func (c *InMemoryCompanyCache) Get(ctx context.Context, companyID *uuid.UUID) (*invoicing.Company, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, exists := c.entries[companyCacheKey(companyID)]
	if !exists || e.isExpired() {
		return nil, nil
	}
	return e.company, nil
}

// Set stores a company in cache
func (c *InMemoryCompanyCache) Set(ctx context.Context, companyID *uuid.UUID, company *invoicing.Company, ttl time.Duration) error {
	if company == nil {
		return nil
	}
	if ttl == 0 {
		ttl = c.ttl
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[companyCacheKey(companyID)] = companyEntry{
		company:   company,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes a company from cache
func (c *InMemoryCompanyCache) Delete(ctx context.Context, companyID *uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, companyCacheKey(companyID))
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (c *InMemoryCompanyCache) Close() error {
	c.closeOnce.Do(func() {
		close(c.stopChan)
		c.wg.Wait()
	})
	return nil
}

// Size returns the number of entries in the cache (for testing/monitoring)
func (c *InMemoryCompanyCache) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *InMemoryCompanyCache) cleanupLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(defaultCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopChan:
			return
		case <-ticker.C:
			c.cleanup()
		}
	}
}

func (c *InMemoryCompanyCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Ensure InMemoryCompanyCache implements CompanyCache
var _ CompanyCache = (*InMemoryCompanyCache)(nil)
