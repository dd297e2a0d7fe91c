package config

import (
	"time"

	"github.com/spf13/pflag"
)

// Cache backends accepted by ServeConfig.CacheBackend.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// ServeConfig holds configuration for the HTTP API.
type ServeConfig struct {
	Common
	Addr          string
	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	PGDSN         string
	Concurrency   int
	MaxVaults     int
}

// LoadServe merges config file, environment variables, and flags into ServeConfig.
func LoadServe(cfgFile string, flags *pflag.FlagSet) (ServeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"addr":         ":5001",
		"cache":        CacheMemory,
		"cache-ttl":    15 * time.Second,
		"redis-addr":   "127.0.0.1:6379",
		"redis-prefix": "praxos:",
		"concurrency":  4,
		"max-vaults":   10,
	})
	if err != nil {
		return ServeConfig{}, err
	}
	if err := bindEnvAliases(v, "pg-dsn", "DATABASE_URL"); err != nil {
		return ServeConfig{}, err
	}

	return ServeConfig{
		Common:        loadCommon(v),
		Addr:          v.GetString("addr"),
		CacheBackend:  v.GetString("cache"),
		CacheTTL:      v.GetDuration("cache-ttl"),
		RedisAddr:     v.GetString("redis-addr"),
		RedisPassword: v.GetString("redis-password"),
		RedisDB:       v.GetInt("redis-db"),
		RedisPrefix:   v.GetString("redis-prefix"),
		PGDSN:         v.GetString("pg-dsn"),
		Concurrency:   v.GetInt("concurrency"),
		MaxVaults:     v.GetInt("max-vaults"),
	}, nil
}
