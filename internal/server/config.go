package server

import (
	"time"

	"github.com/victornm/facematch/internal/game"
	"github.com/victornm/facematch/internal/score"
)

const (
	StorageMemory   = "memory"
	StorageRedis    = "redis"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

type RedisConfig struct {
	Addrs []string
	Pass  string
}

type PostgresConfig struct {
	Addr string
	User string
	Pass string
	Name string
}

type StorageConfig struct {
	// Driver is one of memory, redis, postgres or sqlite.
	Driver string
	// Prefix namespaces every persisted key.
	Prefix string

	Redis    RedisConfig
	Postgres PostgresConfig
	SQLite   struct {
		Path string
	}
}

type Config struct {
	HTTP struct {
		Port int32
	}

	GRPC struct {
		Port int32
	}

	Log struct {
		Level  string
		Format string
	}

	Game struct {
		// Candidates is the JSON or YAML file listing the people to guess.
		Candidates    string
		DecayInterval time.Duration
		InitialScore  int
		CorrectPoints int
		WrongPenalty  int
		SessionTTL    time.Duration
	}

	Storage StorageConfig

	Pubsub struct {
		// Leaderboard updates are published when Addrs is not empty.
		Redis  RedisConfig
		Prefix string
	}
}

// DefaultConfig is the configuration used for every key the file and environment leave out.
func DefaultConfig() Config {
	var c Config

	c.HTTP.Port = 8080
	c.GRPC.Port = 9090

	c.Log.Level = "info"
	c.Log.Format = "text"

	c.Game.Candidates = "testdata/people.json"
	c.Game.DecayInterval = score.DefaultDecayInterval
	c.Game.InitialScore = score.DefaultInitialScore
	c.Game.CorrectPoints = game.DefaultCorrectPoints
	c.Game.WrongPenalty = game.DefaultWrongPenalty
	c.Game.SessionTTL = game.DefaultSessionTTL

	c.Storage.Driver = StorageMemory
	c.Storage.Prefix = "facematch"
	c.Storage.SQLite.Path = "facematch.db"

	c.Pubsub.Prefix = "facematch"

	return c
}
