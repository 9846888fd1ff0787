package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/core/domain"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/logging"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/metrics"
	"github.com/Neiland85/ochio-club-monorepo-sub001/internal/port"
)

const (
	catalogAllKey    = "catalog:products"
	catalogActiveKey = "catalog:products:active"
)

func catalogProductKey(id string) string { return "catalog:product:" + id }

// CatalogService serves products from a read-through Redis cache. Cache
// calls go through a circuit breaker so an unhealthy Redis only costs
// database reads.
type CatalogService struct {
	products port.ProductRepository
	cache    port.CacheRepository
	cb       *gobreaker.CircuitBreaker[bool]
	ttl      time.Duration
}

func NewCatalogService(products port.ProductRepository, cache port.CacheRepository, ttl time.Duration) *CatalogService {
	cb := gobreaker.NewCircuitBreaker[bool](gobreaker.Settings{
		Name:        "catalog-cache",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
		},
	})

	return &CatalogService{
		products: products,
		cache:    cache,
		cb:       cb,
		ttl:      ttl,
	}
}

func (s *CatalogService) cacheGet(ctx context.Context, key string, dst any) bool {
	found, err := s.cb.Execute(func() (bool, error) {
		return s.cache.GetJSON(ctx, key, dst)
	})
	switch {
	case err != nil:
		metrics.RecordCache("catalog", "error")
		logging.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("catalog cache read failed")
		return false
	case found:
		metrics.RecordCache("catalog", "hit")
	default:
		metrics.RecordCache("catalog", "miss")
	}
	return found
}

func (s *CatalogService) cacheSet(ctx context.Context, key string, value any) {
	_, err := s.cb.Execute(func() (bool, error) {
		return true, s.cache.SetJSON(ctx, key, value, s.ttl)
	})
	if err != nil {
		logging.Ctx(ctx).Debug().Err(err).Str("key", key).Msg("catalog cache write failed")
	}
}

func (s *CatalogService) invalidate(ctx context.Context, productID string) {
	keys := []string{catalogAllKey, catalogActiveKey}
	if productID != "" {
		keys = append(keys, catalogProductKey(productID))
	}
	_, err := s.cb.Execute(func() (bool, error) {
		return true, s.cache.Delete(ctx, keys...)
	})
	if err != nil {
		logging.Ctx(ctx).Warn().Err(err).Strs("keys", keys).Msg("catalog cache invalidation failed")
	}
}

func (s *CatalogService) ListProducts(ctx context.Context, activeOnly bool) ([]domain.Product, error) {
	key := catalogAllKey
	if activeOnly {
		key = catalogActiveKey
	}

	var products []domain.Product
	if s.cacheGet(ctx, key, &products) {
		return products, nil
	}

	products, err := s.products.ListProducts(ctx, activeOnly)
	if err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}

	s.cacheSet(ctx, key, products)
	return products, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	if s.cacheGet(ctx, catalogProductKey(id), &product) {
		return &product, nil
	}

	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", id, err)
	}

	s.cacheSet(ctx, catalogProductKey(id), p)
	return p, nil
}

func validateProduct(p domain.Product) error {
	var errs []string
	if strings.TrimSpace(p.SKU) == "" {
		errs = append(errs, "sku is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, "name is required")
	}
	if p.PriceCents < 0 {
		errs = append(errs, "price must not be negative")
	}
	if p.Stock < 0 {
		errs = append(errs, "stock must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidInput, strings.Join(errs, ", "))
	}
	return nil
}

func (s *CatalogService) CreateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	now := time.Now()
	p.ID = uuid.New().String()
	p.Version = 1
	p.CreatedAt = now
	p.UpdatedAt = now

	if err := s.products.CreateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}

	s.syncProductStock(ctx, p)
	s.invalidate(ctx, "")

	logging.Ctx(ctx).Info().Str("product_id", p.ID).Str("sku", p.SKU).Msg("product created")
	return &p, nil
}

// UpdateProduct changes descriptive fields; stock is left to RestockProduct.
func (s *CatalogService) UpdateProduct(ctx context.Context, p domain.Product) (*domain.Product, error) {
	existing, err := s.products.GetProduct(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("get product %s: %w", p.ID, err)
	}
	p.Stock = existing.Stock
	if err := validateProduct(p); err != nil {
		return nil, err
	}

	if err := s.products.UpdateProduct(ctx, p); err != nil {
		return nil, fmt.Errorf("update product: %w", err)
	}

	updated, err := s.products.GetProduct(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("reload product %s: %w", p.ID, err)
	}

	// toggling active changes what can be ordered
	if updated.Active != existing.Active {
		s.syncProductStock(ctx, *updated)
	}
	s.invalidate(ctx, p.ID)
	return updated, nil
}

func (s *CatalogService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return fmt.Errorf("delete product %s: %w", id, err)
	}

	if err := s.cache.SetStock(ctx, id, 0); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("product_id", id).Msg("failed to zero cached stock")
	}
	s.invalidate(ctx, id)
	return nil
}

// RestockProduct sets absolute stock if version still matches, then
// overwrites the Redis counter with the new value.
func (s *CatalogService) RestockProduct(ctx context.Context, id string, stock, version int) (*domain.Product, error) {
	if stock < 0 {
		return nil, fmt.Errorf("%w: stock must not be negative", ErrInvalidInput)
	}

	if err := s.products.UpdateStock(ctx, id, stock, version); err != nil {
		if errors.Is(err, domain.ErrOptimisticLock) {
			// distinguish a stale version from a missing product
			if _, getErr := s.products.GetProduct(ctx, id); getErr != nil {
				return nil, fmt.Errorf("get product %s: %w", id, getErr)
			}
		}
		return nil, fmt.Errorf("restock product %s: %w", id, err)
	}

	p, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload product %s: %w", id, err)
	}

	s.syncProductStock(ctx, *p)
	s.invalidate(ctx, id)

	logging.Ctx(ctx).Info().Str("product_id", id).Int("stock", p.Stock).Int("version", p.Version).Msg("product restocked")
	return p, nil
}

func (s *CatalogService) syncProductStock(ctx context.Context, p domain.Product) {
	stock := p.Stock
	if !p.Active {
		stock = 0
	}
	if err := s.cache.SetStock(ctx, p.ID, stock); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("product_id", p.ID).Msg("failed to sync cached stock")
	}
}

// SyncStock copies database stock into Redis for every product. Inactive
// products are set to zero so they cannot be reserved.
func (s *CatalogService) SyncStock(ctx context.Context) error {
	products, err := s.products.ListProducts(ctx, false)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}

	for _, p := range products {
		stock := p.Stock
		if !p.Active {
			stock = 0
		}
		if err := s.cache.SetStock(ctx, p.ID, stock); err != nil {
			return fmt.Errorf("set stock %s: %w", p.ID, err)
		}
	}

	s.invalidate(ctx, "")
	logging.Ctx(ctx).Info().Int("products", len(products)).Msg("stock synced to cache")
	return nil
}
