package config

import (
	"sync"
	"time"
)

var (
	dbOnce   sync.Once
	dbConfig *DatabaseConfig
)

type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

func GetDatabaseConfig() *DatabaseConfig {
	dbOnce.Do(func() {
		loadEnv()

		dbConfig = &DatabaseConfig{
			DSN:              getEnv("DATABASE_URL", "postgres://localhost:5432/solardocs?sslmode=disable"),
			MaxConns:         int32(getEnvInt("DATABASE_MAX_CONNS", 10)),
			MinConns:         int32(getEnvInt("DATABASE_MIN_CONNS", 1)),
			MaxConnLifetime:  getEnvDuration("DATABASE_CONN_LIFETIME", time.Hour),
			MaxConnIdleTime:  getEnvDuration("DATABASE_CONN_IDLE", 30*time.Minute),
			DialTimeout:      getEnvDuration("DATABASE_DIAL_TIMEOUT", 10*time.Second),
			StatementTimeout: getEnvDuration("DATABASE_STATEMENT_TIMEOUT", 30*time.Second),
		}
	})
	return dbConfig
}
