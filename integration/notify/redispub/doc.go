// Package redispub publishes rate limit events to Redis pub/sub.
//
// Every denied request produces one message on the configured channel. The
// message is an event.Event envelope whose payload is the
// ratelimiter.LimitExceeded value:
//
//	{"id":"...","name":"LimitExceeded","payload":{"identifier":"IP:203.0.113.7",...},"created_at":"..."}
//
// Wire it into the engine next to other notifiers:
//
//	engine := ratelimiter.NewEngine(store, catalog, ratelimiter.WithNotifier(
//		ratelimiter.MultiNotifier(
//			ratelimiter.LogNotifier(log),
//			redispub.New(client, redispub.WithChannel(cfg.Channel)),
//		),
//	))
//
// Publishing happens on the request path, bounded by the engine notify
// timeout. Failures are logged by the engine and never reach the caller.
package redispub
