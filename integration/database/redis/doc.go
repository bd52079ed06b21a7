// Package redis connects to Redis with retries and exposes a health probe.
//
// The service uses Redis only to fan rate limit events out to other
// processes; admission decisions never touch it.
//
//	var cfg redis.Config
//	config.MustLoad(&cfg)
//
//	client, err := redis.Connect(ctx, cfg)
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	ready := health.Check{Name: "redis", Fn: redis.Healthcheck(client)}
//
// Configuration comes from REDIS_URL (redis:// or rediss://),
// REDIS_RETRY_ATTEMPTS, REDIS_RETRY_INTERVAL and REDIS_CONNECT_TIMEOUT.
// Failures are reported as ErrEmptyConnectionURL,
// ErrFailedToParseRedisConnString, ErrRedisNotReady and ErrHealthcheckFailed.
package redis
