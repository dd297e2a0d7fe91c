package cache

import (
	"context"
	"errors"
	"time"

	"github.com/gomodule/redigo/redis"
)

// RedisConfig locates the Redis server.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	Prefix   string
}

// Redis is a cache shared between processes.
type Redis struct {
	pool   *redis.Pool
	prefix string
}

// NewRedisPool builds a connection pool for cfg.
func NewRedisPool(cfg RedisConfig) *redis.Pool {
	return &redis.Pool{
		MaxIdle:     10,
		MaxActive:   0,
		Wait:        true,
		IdleTimeout: 180 * time.Second,
		Dial: func() (redis.Conn, error) {
			opts := []redis.DialOption{redis.DialDatabase(cfg.DB)}
			if cfg.Password != "" {
				opts = append(opts, redis.DialPassword(cfg.Password))
			}
			return redis.Dial("tcp", cfg.Address, opts...)
		},
	}
}

func NewRedis(pool *redis.Pool, prefix string) *Redis {
	return &Redis{pool: pool, prefix: prefix}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return nil, false, err
	}
	defer func() {
		_ = conn.Close()
	}()

	reply, err := redis.Bytes(conn.Do("GET", r.prefix+key))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return reply, true, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close()
	}()

	if ttl > 0 {
		ms := ttl.Milliseconds()
		if ms == 0 {
			ms = 1
		}
		_, err = conn.Do("SET", r.prefix+key, value, "PX", ms)
	} else {
		_, err = conn.Do("SET", r.prefix+key, value)
	}
	return err
}

// Ping checks that a connection can be obtained and used.
func (r *Redis) Ping(ctx context.Context) error {
	conn, err := r.pool.GetContext(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = conn.Close()
	}()
	_, err = conn.Do("PING")
	return err
}

func (r *Redis) Close() error {
	return r.pool.Close()
}
