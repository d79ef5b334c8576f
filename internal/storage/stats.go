package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"traffic-decision-engine/internal/stats"
)

// IngestStats folds one pushed batch into the rollup tables. Counters are
// upserted additively, so duplicate rows within retried batches merge
// safely; a batch id seen before is skipped entirely (delivery is
// at-least-once).
func (s *Store) IngestStats(ctx context.Context, b stats.Batch) error {
	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `
			INSERT INTO stat_batches (batch_id, account_id, received_at)
			VALUES ($1, $2, now())
			ON CONFLICT (batch_id) DO NOTHING`, b.BatchID, b.AccountID)
		if err != nil {
			return fmt.Errorf("record batch: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return nil // duplicate delivery of an already-ingested batch
		}

		for _, r := range b.Shield {
			if _, err := tx.Exec(ctx, `
				INSERT INTO stat_shield (account_id, domain_name, rule_id, hour, hits, blocks, passes)
				VALUES ($1, $2, NULLIF($3, 0), $4, $5, $6, $7)
				ON CONFLICT (account_id, domain_name, coalesce(rule_id, 0), hour)
				DO UPDATE SET hits   = stat_shield.hits + EXCLUDED.hits,
				              blocks = stat_shield.blocks + EXCLUDED.blocks,
				              passes = stat_shield.passes + EXCLUDED.passes`,
				b.AccountID, r.Domain, r.RuleID, r.Hour, r.Hits, r.Blocks, r.Passes); err != nil {
				return fmt.Errorf("upsert shield stat: %w", err)
			}
		}

		for _, r := range b.Links {
			if _, err := tx.Exec(ctx, `
				INSERT INTO stat_link (account_id, domain_name, rule_id, hour, country, device, hits, redirects)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
				ON CONFLICT (account_id, domain_name, rule_id, hour, country, device)
				DO UPDATE SET hits      = stat_link.hits + EXCLUDED.hits,
				              redirects = stat_link.redirects + EXCLUDED.redirects`,
				b.AccountID, r.Domain, r.RuleID, r.Hour, r.Country, r.Device, r.Hits, r.Redirects); err != nil {
				return fmt.Errorf("upsert link stat: %w", err)
			}
		}

		// impressions feed the variants' diagnostics counters
		for _, r := range b.Mab {
			if _, err := tx.Exec(ctx, `
				UPDATE variants SET impressions = impressions + $3
				WHERE rule_id = $1 AND url = $2`,
				r.RuleID, r.VariantURL, r.Impressions); err != nil {
				return fmt.Errorf("update variant impressions: %w", err)
			}
		}
		return nil
	})
}
