// Package logger builds slog loggers and provides attribute helpers for
// consistent structured logging across the service.
//
//	log := logger.New(
//		logger.WithProduction("gatekeeper"),
//		logger.WithLevel(slog.LevelDebug),
//	)
//
//	log.Warn("rate limit exceeded",
//		logger.Component("ratelimiter"),
//		logger.Identifier("IP:203.0.113.7"),
//		logger.Strategy("AUTH"),
//		logger.RetryAfter(6*time.Second),
//	)
//
// Attribute helpers return an empty slog.Attr for nil or empty input, so they
// can be passed unconditionally; slog drops empty attributes.
package logger
