// Package logger builds log/slog loggers with environment presets, context
// extractors and attribute helpers.
//
//	log := logger.New(
//		logger.WithEnvironment("production", "switchd"),
//		logger.WithContextExtractors(logger.OrderExtractor()),
//	)
//	ctx = logger.WithOrderID(ctx, order.ID)
//	log.InfoContext(ctx, "switch completed", logger.SubscriptionID(sub.ID))
package logger
