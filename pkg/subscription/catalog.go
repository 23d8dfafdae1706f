package subscription

import (
	"context"
	"errors"
	"io"
	"maps"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/switchkit/pkg/cache"
)

// MemoryCatalog is an in-memory Catalog. It also implements ProductsSource.
type MemoryCatalog struct {
	mu       sync.RWMutex
	products map[uuid.UUID]Product
}

var (
	_ Catalog        = (*MemoryCatalog)(nil)
	_ ProductsSource = (*MemoryCatalog)(nil)
	_ Catalog        = (*CachedCatalog)(nil)
)

// NewMemoryCatalog returns a catalog holding copies of the given products.
func NewMemoryCatalog(products ...Product) *MemoryCatalog {
	c := &MemoryCatalog{products: make(map[uuid.UUID]Product, len(products))}
	for _, p := range products {
		c.products[p.ID] = p
	}
	return c
}

// LoadCatalog loads and validates all products from src into a memory catalog.
func LoadCatalog(ctx context.Context, src ProductsSource) (*MemoryCatalog, error) {
	products, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadProducts, err)
	}
	var errs []error
	for _, p := range products {
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return &MemoryCatalog{products: products}, nil
}

func (c *MemoryCatalog) Product(ctx context.Context, id uuid.UUID) (Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.products[id]
	if !ok {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

// Put adds or replaces a product.
func (c *MemoryCatalog) Put(p Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.products[p.ID] = p
}

func (c *MemoryCatalog) Load(ctx context.Context) (map[uuid.UUID]Product, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return maps.Clone(c.products), nil
}

// CachedCatalog wraps a Catalog with a bounded LRU cache.
type CachedCatalog struct {
	next  Catalog
	cache *cache.LRU[uuid.UUID, Product]
}

// NewCachedCatalog caches up to size products from next for ttl.
func NewCachedCatalog(next Catalog, size int, ttl time.Duration) *CachedCatalog {
	return &CachedCatalog{
		next:  next,
		cache: cache.NewLRU[uuid.UUID, Product](size, cache.WithTTL(ttl)),
	}
}

func (c *CachedCatalog) Product(ctx context.Context, id uuid.UUID) (Product, error) {
	if p, ok := c.cache.Get(id); ok {
		return p, nil
	}
	p, err := c.next.Product(ctx, id)
	if err != nil {
		return Product{}, err
	}
	c.cache.Put(id, p)
	return p, nil
}

// Invalidate drops a product from the cache after it changed upstream.
func (c *CachedCatalog) Invalidate(id uuid.UUID) {
	c.cache.Remove(id)
}

// YAMLCatalogSource reads a product list from YAML:
//
//	products:
//	  - id: 6f1c...
//	    name: Monthly
//	    price: "10.00"
//	    period: month
//	    interval: 1
type YAMLCatalogSource struct {
	r io.Reader
}

// NewYAMLCatalogSource returns a source reading products from r.
func NewYAMLCatalogSource(r io.Reader) *YAMLCatalogSource {
	return &YAMLCatalogSource{r: r}
}

func (s *YAMLCatalogSource) Load(ctx context.Context) (map[uuid.UUID]Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var doc struct {
		Products []Product `yaml:"products"`
	}
	if err := yaml.NewDecoder(s.r).Decode(&doc); err != nil {
		return nil, errors.Join(ErrFailedToParseCatalog, err)
	}
	products := make(map[uuid.UUID]Product, len(doc.Products))
	for _, p := range doc.Products {
		products[p.ID] = p
	}
	return products, nil
}
