package server

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/victornm/facematch/internal/storage"
	"github.com/victornm/facematch/internal/storage/postgres"
	redisstore "github.com/victornm/facematch/internal/storage/redis"
	"github.com/victornm/facematch/internal/storage/sqlite"
	"github.com/victornm/facematch/internal/telemetry"
)

const connectTimeout = 10 * time.Second

// OpenStorage connects the configured backend and prepares its schema. Closing the returned
// store releases its connections.
func OpenStorage(ctx context.Context, c StorageConfig) (storage.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	switch c.Driver {
	case "", StorageMemory:
		return storage.NewMemory(), nil

	case StorageRedis:
		r, err := connectRedis(ctx, c.Redis)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}

		return ownedRedis{Store: redisstore.New(r), r: r}, nil

	case StoragePostgres:
		db, err := connectPostgres(ctx, c.Postgres)
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}

		s := postgres.New(db)
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}

		return s, nil

	case StorageSQLite:
		s, err := sqlite.Open(c.SQLite.Path)
		if err != nil {
			return nil, err
		}

		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}

		return s, nil

	default:
		return nil, fmt.Errorf("unknown storage driver %q", c.Driver)
	}
}

type ownedRedis struct {
	*redisstore.Store
	r redis.UniversalClient
}

func (o ownedRedis) Close() error {
	return o.r.Close()
}

func connectRedis(ctx context.Context, c RedisConfig) (redis.UniversalClient, error) {
	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    c.Addrs,
		Password: c.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		r.Close()
		return nil, err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		r.Close()
		return nil, err
	}

	return r, nil
}

func connectPostgres(ctx context.Context, c PostgresConfig) (*pgxpool.Pool, error) {
	cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", c.User, c.Pass, c.Addr, c.Name))
	if err != nil {
		return nil, err
	}

	db, err := pgxpool.NewWithConfig(ctx, cc)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
