// Package redis connects to Redis with retries and stores JSON documents.
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	storage := redis.NewStorage(client, cfg.KeyPrefix)
//	err = storage.SetJSON(ctx, "cart:"+id, cart, 24*time.Hour)
//
// Healthcheck returns a probe function suitable for readiness endpoints.
package redis
