// Package server runs an http.Server with graceful shutdown.
//
// Server.Run returns a func() error suitable for errgroup, so the HTTP server
// and background workers such as the rate limiter sweep share one lifecycle:
//
//	g, ctx := errgroup.WithContext(ctx)
//	g.Go(store.Run(ctx))
//	g.Go(srv.Run(ctx, router))
//	if err := g.Wait(); err != nil {
//		log.Error("service stopped", logger.Error(err))
//	}
//
// Configuration is loaded from SERVER_* environment variables into Config and
// turned into a Server with NewFromConfig.
package server
