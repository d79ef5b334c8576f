package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"traffic-decision-engine/internal/rules"
)

// SnapshotData is one serveable rule snapshot for a tenant: the full rule
// set plus the version token that summarizes it.
type SnapshotData struct {
	Version string
	Rules   []rules.Rule
	Configs []rules.DomainConfig
}

// ServeSync answers one edge pull. When the tenant's current version token
// equals clientVersion it returns (nil, false): nothing changed. Otherwise
// it transitions the tenant's pending bindings to applied, loads the full
// snapshot, and returns it with the post-transition token — so the token
// the edge stores is already stable against the transition it triggered.
func (s *Store) ServeSync(ctx context.Context, accountID int64, clientVersion string) (*SnapshotData, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var snap *SnapshotData
	var changed bool
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		token, err := versionToken(ctx, tx, accountID)
		if err != nil {
			return err
		}
		if clientVersion != "" && token == clientVersion {
			return nil
		}
		changed = true

		// pending -> applied; bumps binding updated_at, so recompute the
		// token after the transition
		if _, err := tx.Exec(ctx, `
			UPDATE bindings SET state = 'applied', updated_at = now()
			WHERE account_id = $1 AND state = 'pending'`, accountID); err != nil {
			return fmt.Errorf("apply bindings: %w", err)
		}
		token, err = versionToken(ctx, tx, accountID)
		if err != nil {
			return err
		}

		rs, err := loadRules(ctx, tx, accountID)
		if err != nil {
			return err
		}
		cfgs, err := loadConfigs(ctx, tx, accountID)
		if err != nil {
			return err
		}
		snap = &SnapshotData{Version: token, Rules: rs, Configs: cfgs}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return snap, changed, nil
}

// VersionToken computes the tenant's current token without serving a
// snapshot. Exposed for the sync handler's cheap cached-token check.
func (s *Store) VersionToken(ctx context.Context, accountID int64) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var token string
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		token, err = versionToken(ctx, tx, accountID)
		return err
	})
	return token, err
}

// bindingTuple is one line of a tenant's version-token input: a bound rule
// plus the last-modified times of the rule body and of the binding itself.
type bindingTuple struct {
	RuleID    int64
	RuleAt    time.Time
	BindingAt time.Time
}

// hashTuples folds the tuples into the version token. Tuples are sorted by
// rule id first, so the token is independent of input order; any change to
// a rule body or a binding lifecycle shows up through the updated_at values.
func hashTuples(tuples []bindingTuple) string {
	sort.Slice(tuples, func(i, j int) bool { return tuples[i].RuleID < tuples[j].RuleID })
	h := sha256.New()
	for _, t := range tuples {
		fmt.Fprintf(h, "%d:%d:%d\n", t.RuleID, t.RuleAt.UnixNano(), t.BindingAt.UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}

// versionToken computes the tenant's token from all non-removed bindings.
func versionToken(ctx context.Context, tx pgx.Tx, accountID int64) (string, error) {
	rows, err := tx.Query(ctx, `
		SELECT r.id, r.updated_at, b.updated_at
		FROM bindings b
		JOIN rules r ON r.id = b.rule_id
		WHERE b.account_id = $1 AND b.state <> 'removed'`, accountID)
	if err != nil {
		return "", fmt.Errorf("query bindings: %w", err)
	}
	defer rows.Close()

	var tuples []bindingTuple
	for rows.Next() {
		var t bindingTuple
		if err := rows.Scan(&t.RuleID, &t.RuleAt, &t.BindingAt); err != nil {
			return "", fmt.Errorf("scan binding: %w", err)
		}
		tuples = append(tuples, t)
	}
	if rows.Err() != nil {
		return "", rows.Err()
	}
	return hashTuples(tuples), nil
}

func loadRules(ctx context.Context, tx pgx.Tx, accountID int64) ([]rules.Rule, error) {
	rows, err := tx.Query(ctx, `
		SELECT r.id, r.domain_name, r.priority, r.conditions, r.action,
		       r.action_url, r.status_code, r.active
		FROM bindings b
		JOIN rules r ON r.id = b.rule_id
		WHERE b.account_id = $1 AND b.state <> 'removed'
		ORDER BY r.domain_name, r.priority DESC, r.id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	defer rows.Close()

	var out []rules.Rule
	byID := map[int64]int{}
	for rows.Next() {
		var r rules.Rule
		if err := rows.Scan(&r.ID, &r.Domain, &r.Priority, &r.Conditions,
			&r.Action, &r.ActionURL, &r.StatusCode, &r.Active); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		byID[r.ID] = len(out)
		out = append(out, r)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	vrows, err := tx.Query(ctx, `
		SELECT v.rule_id, v.url, v.alpha, v.beta, v.impressions, v.conversions
		FROM variants v
		JOIN bindings b ON b.rule_id = v.rule_id
		WHERE b.account_id = $1 AND b.state <> 'removed'
		ORDER BY v.rule_id, v.id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query variants: %w", err)
	}
	defer vrows.Close()

	for vrows.Next() {
		var ruleID int64
		var v rules.Variant
		if err := vrows.Scan(&ruleID, &v.URL, &v.Alpha, &v.Beta, &v.Impressions, &v.Conversions); err != nil {
			return nil, fmt.Errorf("scan variant: %w", err)
		}
		if i, ok := byID[ruleID]; ok {
			out[i].Variants = append(out[i].Variants, v)
		}
	}
	return out, vrows.Err()
}

func loadConfigs(ctx context.Context, tx pgx.Tx, accountID int64) ([]rules.DomainConfig, error) {
	rows, err := tx.Query(ctx, `
		SELECT domain_name, tds_enabled, default_action, default_url,
		       smartshield_enabled, bot_action, bot_redirect_url
		FROM domain_configs
		WHERE account_id = $1
		ORDER BY domain_name`, accountID)
	if err != nil {
		return nil, fmt.Errorf("query configs: %w", err)
	}
	defer rows.Close()

	var out []rules.DomainConfig
	for rows.Next() {
		var c rules.DomainConfig
		if err := rows.Scan(&c.Domain, &c.Enabled, &c.DefaultAction, &c.DefaultURL,
			&c.ShieldEnabled, &c.BotAction, &c.BotRedirectURL); err != nil {
			return nil, fmt.Errorf("scan config: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}
