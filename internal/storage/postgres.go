// Package storage is the central platform's authoritative store: rules,
// variants, domain configs, binding lifecycle, and the additive stat
// rollups pushed up from edges.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"traffic-decision-engine/internal/config"
)

var ErrRuleNotFound = errors.New("rule not found")

type Store struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg config.Config) (*Store, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres DSN: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.Postgres.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.Postgres.MaxIdleConns)
	poolCfg.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) ListenChannel() string {
	return "tds_data_change"
}

func (s *Store) PgxPool() *pgxpool.Pool {
	if s.pool == nil {
		panic(errors.New("pgx pool is nil"))
	}
	return s.pool
}

// ApplyPostback increments a variant's belief state inside one
// transaction: alpha on conversion, beta otherwise, plus the raw
// diagnostics counters. An unknown rule id is an error; an unknown variant
// URL is a silent no-op so stale clients replaying old URLs stay
// idempotent.
func (s *Store) ApplyPostback(ctx context.Context, ruleID int64, variantURL string, converted bool, revenue float64) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM rules WHERE id = $1)`, ruleID).Scan(&exists); err != nil {
			return fmt.Errorf("check rule: %w", err)
		}
		if !exists {
			return ErrRuleNotFound
		}

		var stmt string
		if converted {
			stmt = `
				UPDATE variants
				SET alpha = alpha + 1,
				    conversions = conversions + 1,
				    revenue = revenue + $3
				WHERE rule_id = $1 AND url = $2`
		} else {
			stmt = `
				UPDATE variants
				SET beta = beta + 1,
				    revenue = revenue + $3
				WHERE rule_id = $1 AND url = $2`
		}
		// zero rows updated means an unknown variant URL: tolerated
		if _, err := tx.Exec(ctx, stmt, ruleID, variantURL, revenue); err != nil {
			return fmt.Errorf("update variant: %w", err)
		}
		return nil
	})
}
