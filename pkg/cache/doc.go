// Package cache provides a generic in-process LRU cache with optional expiry.
//
// It backs read-mostly lookups such as the product catalog:
//
//	c := cache.NewLRU[uuid.UUID, subscription.Product](1024, cache.WithTTL(5*time.Minute))
//	c.Put(p.ID, p)
//	p, ok := c.Get(id)
package cache
