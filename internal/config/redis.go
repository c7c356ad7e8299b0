package config

// This file defines the Redis client constructor.  Redis backs the rate
// limiter and the class listing cache.  If the server cannot be reached at
// startup the constructor returns nil and both features switch themselves
// off.

import (
	"context"
	"crypto/tls"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient instantiates a Redis client using environment variables.
// Supported variables are:
//
//	REDIS_URL – redis:// or rediss:// URL (takes precedence over the rest)
//	REDIS_HOST and REDIS_PORT – hostname and port of the Redis server
//	REDIS_ADDR – host:port shorthand
//	REDIS_PASSWORD – optional password
//	REDIS_DB – database number (default 0)
//	REDIS_TLS – enable TLS when "true" or "1"
//
// The returned client is nil if a connection cannot be established.
func NewRedisClient(logger *slog.Logger) *redis.Client {
	if logger == nil {
		logger = slog.Default()
	}
	opts, err := redisOptions()
	if err != nil {
		logger.Warn("redis disabled: invalid REDIS_URL", "error", err)
		return nil
	}
	client := redis.NewClient(opts)

	// Ping the server with a short timeout.  Return nil on failure.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis disabled: ping failed", "addr", opts.Addr, "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

func redisOptions() (*redis.Options, error) {
	if u := envStr("REDIS_URL", ""); u != "" {
		return redis.ParseURL(u)
	}
	addr := envStr("REDIS_ADDR", "localhost:6379")
	if host, port := envStr("REDIS_HOST", ""), envStr("REDIS_PORT", ""); host != "" && port != "" {
		addr = host + ":" + port
	}
	var tlsConf *tls.Config
	if v := envStr("REDIS_TLS", ""); strings.EqualFold(v, "true") || v == "1" {
		tlsConf = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	return &redis.Options{
		Addr:      addr,
		Password:  envStr("REDIS_PASSWORD", ""),
		DB:        envInt("REDIS_DB", 0),
		TLSConfig: tlsConf,
	}, nil
}
