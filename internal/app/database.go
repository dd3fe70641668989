// Package app собирает общие шаги запуска для cmd/server и cmd/marketctl.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/marketplace-api/internal/config"
	"github.com/ignatzorin/marketplace-api/internal/db"
	"github.com/ignatzorin/marketplace-api/internal/logger"
)

// LogLevel уровень логов для окружения.
func LogLevel(env string) string {
	if env == "development" {
		return "debug"
	}
	return "info"
}

// OpenDatabase подключается к PostgreSQL с повторами и применяет миграции.
func OpenDatabase(ctx context.Context, cfg *config.Config) (*sqlx.DB, error) {
	conn, err := db.ConnectWithRetry(ctx, db.NewPostgres, cfg.DatabaseURL, cfg.DBConnectRetries, cfg.DBConnectBackoff)
	if err != nil {
		return nil, err
	}

	if err := Migrate(ctx, cfg, conn); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// Migrate применяет миграции из cfg.MigrationsPath.
func Migrate(ctx context.Context, cfg *config.Config, conn *sqlx.DB) error {
	applied, err := db.RunMigrations(ctx, conn, db.MigrationsDir(cfg.MigrationsPath))
	if err != nil {
		return fmt.Errorf("app: ошибка миграций: %w", err)
	}
	for _, name := range applied {
		logger.Log.WithField("migration", name).Info("миграция применена")
	}
	return nil
}
