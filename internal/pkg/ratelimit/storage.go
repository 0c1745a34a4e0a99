package ratelimit

import (
	"net"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/storage/redis"

	"github.com/archiprisma/memberops/internal/pkg/cache"
	"github.com/archiprisma/memberops/internal/pkg/env"
)

// Storage returns the Redis-backed store for the API rate limiter so the
// counters survive restarts and are shared between instances.
func Storage() fiber.Storage {
	cacheClient := cache.GetClient()

	host := "localhost"
	port := 6379
	password := env.GetEnv("CACHE_PASSWORD", "")

	addr := cacheClient.Options().Addr
	if h, p, err := net.SplitHostPort(addr); err == nil {
		host = h
		if v, err := strconv.Atoi(p); err == nil {
			port = v
		}
	}
	if p := cacheClient.Options().Password; p != "" {
		password = p
	}

	// Database 1 keeps limiter counters out of the cache keyspace.
	return redis.New(redis.Config{
		Host:     host,
		Port:     port,
		Password: password,
		Database: 1,
		Reset:    false,
	})
}
