package config

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/akeren/waitlist-edge/internal/log"
	"github.com/akeren/waitlist-edge/pkg/utils"
	"github.com/go-redis/redis/v8"
)

// Cache is the Redis connection shared by the health check and the analytics
// event sink.
type Cache interface {
	Ping(ctx context.Context) error
	Close() error
}

// RedisClientProvider is implemented by caches that expose the underlying client.
type RedisClientProvider interface {
	GetClient() *redis.Client
}

type CacheConfig struct {
	Host     string
	Port     string
	Password string
}

func NewCacheConfig() *CacheConfig {
	return &CacheConfig{
		Host:     os.Getenv("REDIS_HOST"),
		Port:     utils.GetEnvOrDefault("REDIS_PORT", "6379"),
		Password: os.Getenv("REDIS_PASSWORD"),
	}
}

func (cc *CacheConfig) IsConfigured() bool {
	return cc.Host != ""
}

type redisCache struct {
	client *redis.Client
}

func (c *redisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *redisCache) Close() error {
	return c.client.Close()
}

func (c *redisCache) GetClient() *redis.Client {
	return c.client
}

func (cc *CacheConfig) NewCache(logger *log.Logger) (Cache, error) {
	if !cc.IsConfigured() {
		logger.Error("Cache (Redis) configuration is missing")
		return nil, ErrCacheNotConfigured
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", cc.Host, cc.Port),
		Password: cc.Password,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		logger.Error("Failed to create Cache (Redis)", "error", err)
		return nil, err
	}

	logger.Info("Cache (Redis) connected successfully")
	return &redisCache{client: client}, nil
}

func (cc *CacheConfig) NewCacheOrNil(logger *log.Logger) Cache {
	if !cc.IsConfigured() {
		logger.Info("Cache (Redis) is not configured; proceeding without it")
		return nil
	}

	cache, err := cc.NewCache(logger)
	if err != nil {
		logger.Error("Failed to create Cache (Redis)", "error", err)
		return nil
	}

	return cache
}

func GetRedisClient(cache Cache) *redis.Client {
	if cache == nil {
		return nil
	}

	if provider, ok := cache.(RedisClientProvider); ok {
		return provider.GetClient()
	}

	return nil
}

func CloseCache(cache Cache, logger *log.Logger) error {
	if cache == nil {
		logger.Info("No cache provided; skipping cache close")
		return nil
	}

	if err := cache.Close(); err != nil {
		logger.Error("Failed to close cache", "error", err)
		return err
	}

	logger.Info("Cache connection closed")
	return nil
}

var ErrCacheNotConfigured = &CacheError{Message: "cache host is not configured"}

type CacheError struct {
	Message string
}

func (e *CacheError) Error() string {
	return e.Message
}
