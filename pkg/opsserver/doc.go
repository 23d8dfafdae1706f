// Package opsserver runs the operations HTTP endpoint of a worker process:
// Prometheus metrics plus liveness and readiness probes.
//
//	srv := opsserver.NewFromConfig(cfg,
//		opsserver.WithLogger(log),
//		opsserver.WithGatherer(registry),
//		opsserver.WithCheck("postgres", pg.Healthcheck(pool)),
//		opsserver.WithCheck("redis", redis.Healthcheck(client)),
//	)
//	g.Go(func() error { return srv.Run(ctx) })
//
// Routes:
//
//	GET /metrics  Prometheus exposition of the configured gatherer
//	GET /livez    200 ALIVE while the process serves requests
//	GET /readyz   200 READY when every check passes, 503 NOT_READY otherwise
//
// Run returns when ctx is done, after a graceful shutdown bounded by the
// shutdown timeout. Listen errors are wrapped with ErrStart.
package opsserver
