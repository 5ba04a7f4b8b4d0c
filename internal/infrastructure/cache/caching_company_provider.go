package cache

import (
	"context"
	"time"

	"github.com/facturio/backend/internal/domain/invoicing"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CachingCompanyProvider decorates a CompanyProvider with a read-through
// cache. Company fiscal configuration is read on every numbering operation,
// so resolution sits on the invoice finalization hot path.
type CachingCompanyProvider struct {
	inner  invoicing.CompanyProvider
	cache  CompanyCache
	ttl    time.Duration
	logger *zap.Logger
}

// CachingCompanyProviderOption is a functional option for the provider
type CachingCompanyProviderOption func(*CachingCompanyProvider)

// WithProviderTTL sets the cache entry lifetime
func WithProviderTTL(ttl time.Duration) CachingCompanyProviderOption {
	return func(p *CachingCompanyProvider) {
		p.ttl = ttl
	}
}

// WithProviderLogger sets the logger
func WithProviderLogger(logger *zap.Logger) CachingCompanyProviderOption {
	return func(p *CachingCompanyProvider) {
		p.logger = logger
	}
}

// NewCachingCompanyProvider wraps the given provider with the given cache
func NewCachingCompanyProvider(inner invoicing.CompanyProvider, cache CompanyCache, opts ...CachingCompanyProviderOption) *CachingCompanyProvider {
	p := &CachingCompanyProvider{
		inner:  inner,
		cache:  cache,
		ttl:    defaultCompanyTTL,
		logger: zap.NewNop(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Resolve returns the company for the given ID, consulting the cache first.
// Cache failures degrade to a direct lookup rather than failing resolution.
func (p *CachingCompanyProvider) Resolve(ctx context.Context, companyID *uuid.UUID) (*invoicing.Company, error) {
	cached, err := p.cache.Get(ctx, companyID)
	if err != nil {
		p.logger.Warn("company cache lookup failed, falling through",
			zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	company, err := p.inner.Resolve(ctx, companyID)
	if err != nil {
		return nil, err
	}

	if setErr := p.cache.Set(ctx, companyID, company, p.ttl); setErr != nil {
		p.logger.Warn("failed to cache resolved company", zap.Error(setErr))
	}

	return company, nil
}

// Invalidate drops the cached entry for the given company, forcing the next
// Resolve to hit the underlying provider. Call after fiscal config changes.
func (p *CachingCompanyProvider) Invalidate(ctx context.Context, companyID *uuid.UUID) error {
	return p.cache.Delete(ctx, companyID)
}

// Ensure CachingCompanyProvider implements CompanyProvider
var _ invoicing.CompanyProvider = (*CachingCompanyProvider)(nil)
