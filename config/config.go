// Package config reads the tracker's environment and opens the configured
// storage backend.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"task-tracker/storage"
)

// Backend names a storage.KeyValue implementation.
type Backend string

const (
	BackendSQLite Backend = "sqlite"
	BackendMemory Backend = "memory"
	BackendRedis  Backend = "redis"
	BackendTables Backend = "tables"
)

// TablePartition is the partition key holding every tracker entity.
const TablePartition = "tracker"

// Config is the process configuration.
type Config struct {
	Debug          bool
	Backend        Backend
	SQLitePath     string
	RedisConn      string
	RedisPrefix    string
	TablesConn     string
	TableName      string
	CacheTTL       time.Duration
	StorageTimeout time.Duration
	Port           string
}

// FromEnv loads the configuration from the process environment.
func FromEnv() (Config, error) {
	return Load(os.LookupEnv)
}

// Load builds a Config from lookup, applying defaults for unset variables.
func Load(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := Config{
		Backend:     Backend(strings.ToLower(get("TRACKER_STORAGE", string(BackendSQLite)))),
		SQLitePath:  get("SQLITE_PATH", "task-tracker.db"),
		RedisConn:   get("REDIS_CONNECTION_STRING", ""),
		RedisPrefix: get("REDIS_KEY_PREFIX", "tracker:"),
		TablesConn:  get("STORAGE_CONNECTION_STRING", ""),
		TableName:   get("TRACKER_TABLE", "tracker"),
		Port:        get("TRACKER_PORT", "8080"),
	}

	if v := get("DEBUG", ""); v != "" {
		dbg, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("invalid DEBUG: %w", err)
		}
		cfg.Debug = dbg
	}

	var err error
	if cfg.CacheTTL, err = parseDuration(get("CACHE_TTL", "1h"), false); err != nil {
		return Config{}, fmt.Errorf("invalid CACHE_TTL: %w", err)
	}
	if cfg.StorageTimeout, err = parseDuration(get("STORAGE_TIMEOUT", "5s"), true); err != nil {
		return Config{}, fmt.Errorf("invalid STORAGE_TIMEOUT: %w", err)
	}
	if n, err := strconv.Atoi(cfg.Port); err != nil || n <= 0 || n > 65535 {
		return Config{}, fmt.Errorf("invalid TRACKER_PORT %q", cfg.Port)
	}

	switch cfg.Backend {
	case BackendSQLite, BackendMemory:
	case BackendRedis:
		if cfg.RedisConn == "" {
			return Config{}, errors.New("TRACKER_STORAGE=redis requires REDIS_CONNECTION_STRING")
		}
	case BackendTables:
		if cfg.TablesConn == "" {
			return Config{}, errors.New("TRACKER_STORAGE=tables requires STORAGE_CONNECTION_STRING")
		}
	default:
		return Config{}, fmt.Errorf("unknown TRACKER_STORAGE %q", cfg.Backend)
	}
	return cfg, nil
}

func parseDuration(v string, allowZero bool) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, err
	}
	if d < 0 || (d == 0 && !allowZero) {
		return 0, fmt.Errorf("%s must be greater than zero", v)
	}
	return d, nil
}

// ListenAddr is the address the HTTP server binds.
func (c Config) ListenAddr() string {
	return ":" + c.Port
}

// OpenStore opens the configured backend, creating its schema or table when
// needed. The returned func releases the backend's connections.
func (c Config) OpenStore(ctx context.Context, logger *log.Logger) (storage.KeyValue, func() error, error) {
	noop := func() error { return nil }
	entry := logger.WithField("backend", c.Backend)

	switch c.Backend {
	case BackendMemory:
		entry.Warn("using in-memory storage; nothing survives a restart")
		return storage.NewMemory(), noop, nil

	case BackendSQLite:
		db, err := storage.OpenSQLite(c.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		entry.WithField("path", c.SQLitePath).Info("storage ready")
		return db, db.Close, nil

	case BackendRedis:
		client, err := c.redisClient(ctx)
		if err != nil {
			return nil, nil, err
		}
		entry.WithField("prefix", c.RedisPrefix).Info("storage ready")
		return storage.NewRedis(client, c.RedisPrefix), client.Close, nil

	case BackendTables:
		tables, err := storage.NewTables(c.TablesConn, c.TableName, TablePartition)
		if err != nil {
			return nil, nil, fmt.Errorf("tables: %w", err)
		}
		if err := tables.EnsureTable(ctx); err != nil {
			return nil, nil, fmt.Errorf("create table %s: %w", c.TableName, err)
		}
		entry = entry.WithField("table", c.TableName)
		if c.RedisConn == "" {
			entry.Info("storage ready")
			return tables, noop, nil
		}
		client, err := c.redisClient(ctx)
		if err != nil {
			entry.WithError(err).Warn("redis cache unavailable; reading tables directly")
			return tables, noop, nil
		}
		entry.WithField("cache_ttl", c.CacheTTL).Info("storage ready with redis cache")
		return storage.NewCache(tables, client, c.CacheTTL), client.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown backend %q", c.Backend)
}

func (c Config) redisClient(ctx context.Context) (*redis.Client, error) {
	opts, err := storage.ParseRedisOptions(c.RedisConn)
	if err != nil {
		return nil, err
	}
	client := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}
