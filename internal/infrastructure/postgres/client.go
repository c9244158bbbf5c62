package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/go-account-api/internal/config"
	"github.com/go-account-api/internal/domain"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
)

// NewDB opens a bun handle over the postgres driver and verifies connectivity.
func NewDB(ctx context.Context, cfg *config.Config) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.PostgresDSN)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Bootstrap creates the user and message tables if they do not exist yet.
func Bootstrap(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*domain.User)(nil),
		(*domain.Message)(nil),
	}
	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}
