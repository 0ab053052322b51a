package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	cfg "github.com/solarops/document-processor/config"
	"github.com/solarops/document-processor/pkg/logger"
)

// Open creates the pgx pool for the document store.
func Open(ctx context.Context, dbCfg *cfg.DatabaseConfig, log logger.Logger) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(dbCfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pc.MaxConns = dbCfg.MaxConns
	pc.MinConns = dbCfg.MinConns
	pc.MaxConnLifetime = dbCfg.MaxConnLifetime
	pc.MaxConnIdleTime = dbCfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "document-processor"
	if dbCfg.StatementTimeout > 0 {
		pc.ConnConfig.RuntimeParams["statement_timeout"] = dbCfg.StatementTimeout.String()
	}

	dialCtx, cancel := context.WithTimeout(ctx, dbCfg.DialTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(dialCtx, pc)
	if err != nil {
		log.Error("Failed to connect to database", logger.Error(err))
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(dialCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	log.Info("Connected to database")
	return pool, nil
}
