package source

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sardine-ai/go-widget-config/model"
	"github.com/sirupsen/logrus"
)

// RedisRepository stores each channel blob as a string key in Redis.
type RedisRepository struct {
	Name   string        // Name of the configuration source
	Prefix string        // Key prefix, e.g. "widget:"
	Client *redis.Client // Redis client instance
}

// RedisOptions holds Redis connection settings.
type RedisOptions struct {
	Addr     string // Redis server address (host:port)
	Password string // Redis password (optional)
	DB       int    // Redis database number
}

// NewRedisRepository connects to Redis and checks the connection.
func NewRedisRepository(ctx context.Context, name, prefix string, options RedisOptions) (*RedisRepository, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         options.Addr,
		Password:     options.Password,
		DB:           options.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	logrus.WithField("addr", options.Addr).WithField("db", options.DB).Info("connected to Redis")
	return &RedisRepository{Name: name, Prefix: prefix, Client: client}, nil
}

// GetName returns the name of the configuration source.
func (r *RedisRepository) GetName() string {
	return r.Name
}

func (r *RedisRepository) key(channel model.Channel) string {
	return r.Prefix + channel.Key()
}

func (r *RedisRepository) Read(ctx context.Context, channel model.Channel) (string, error) {
	blob, err := r.Client.Get(ctx, r.key(channel)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNotFound
	}
	return blob, err
}

func (r *RedisRepository) Write(ctx context.Context, channel model.Channel, blob string) error {
	return r.Client.Set(ctx, r.key(channel), blob, 0).Err()
}

func (r *RedisRepository) Delete(ctx context.Context, channel model.Channel) error {
	return r.Client.Del(ctx, r.key(channel)).Err()
}

// Close closes the Redis connection.
func (r *RedisRepository) Close() error {
	return r.Client.Close()
}
