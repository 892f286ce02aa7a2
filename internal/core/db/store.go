package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/solatis/sortdl/internal/types"
)

/*
 * Rule and settings storage.
 *
 * RuleStore persists the ordered rule list. Each rule is stored as its JSON
 * body plus a position; the list is only ever replaced as a whole so the
 * order stays contiguous. Every replacement bumps the rules revision kept in
 * the settings table; the server polls it to pick up changes.
 *
 * SettingsStore is a small key/value table. The only typed setting is the
 * default conflict action applied when a matched rule has none.
 */

// Setting keys.
const (
	settingDefaultConflict = "default_conflict"
	settingRulesRevision   = "rules_revision"
)

type ruleRow struct {
	RuleID    string    `db:"rule_id"`
	Position  int       `db:"position"`
	Name      string    `db:"name"`
	Enabled   bool      `db:"enabled"`
	Body      string    `db:"body"`
	UpdatedAt time.Time `db:"updated_at"`
}

func (r ruleRow) decode() (types.Rule, error) {
	var rule types.Rule
	if err := json.Unmarshal([]byte(r.Body), &rule); err != nil {
		return types.Rule{}, fmt.Errorf("rule %s at position %d: %w", r.RuleID, r.Position, err)
	}
	return rule, nil
}

// RuleStore reads and replaces the stored rule list.
type RuleStore struct {
	db      *sqlx.DB
	queries *Queries
	now     func() time.Time
}

// NewRuleStore creates a rule store over db.
func NewRuleStore(db *sqlx.DB, queries *Queries) *RuleStore {
	return &RuleStore{db: db, queries: queries, now: time.Now}
}

// List returns all rules in evaluation order.
func (s *RuleStore) List(ctx context.Context) ([]types.Rule, error) {
	var rows []ruleRow
	if err := s.queries.Select(ctx, "list-rules", &rows); err != nil {
		return nil, fmt.Errorf("failed to list rules: %w", err)
	}

	rules := make([]types.Rule, 0, len(rows))
	for _, row := range rows {
		rule, err := row.decode()
		if err != nil {
			return nil, err
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// Get returns the rule with the given id or types.ErrRuleNotFound.
func (s *RuleStore) Get(ctx context.Context, id types.RuleID) (*types.Rule, error) {
	var row ruleRow
	err := s.queries.Get(ctx, "get-rule", &row, string(id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", types.ErrRuleNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get rule %s: %w", id, err)
	}

	rule, err := row.decode()
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// Count returns the number of stored rules.
func (s *RuleStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.queries.Get(ctx, "count-rules", &n); err != nil {
		return 0, fmt.Errorf("failed to count rules: %w", err)
	}
	return n, nil
}

// ReplaceAll atomically replaces the stored rules with rules, in order,
// and bumps the rules revision.
func (s *RuleStore) ReplaceAll(ctx context.Context, rules []types.Rule) error {
	now := s.now().UTC()

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	q := s.queries.WithTx(tx)
	if _, err := q.Exec(ctx, "delete-all-rules"); err != nil {
		return fmt.Errorf("failed to clear rules: %w", err)
	}

	for i, rule := range rules {
		body, err := json.Marshal(rule)
		if err != nil {
			return fmt.Errorf("failed to encode rule %s: %w", rule.ID, err)
		}
		if _, err := q.Exec(ctx, "insert-rule", string(rule.ID), i, rule.Name, rule.Enabled, string(body), now); err != nil {
			return fmt.Errorf("failed to insert rule %s: %w", rule.ID, err)
		}
	}

	revision, err := readRevision(ctx, q)
	if err != nil {
		return err
	}
	if err := putSetting(ctx, q, settingRulesRevision, strconv.FormatInt(revision+1, 10), now); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit rules: %w", err)
	}
	return nil
}

// Revision returns a counter that changes every time the rules are
// replaced. Zero means the rules were never written.
func (s *RuleStore) Revision(ctx context.Context) (int64, error) {
	return readRevision(ctx, s.queries)
}

func readRevision(ctx context.Context, q *Queries) (int64, error) {
	value, ok, err := getSetting(ctx, q, settingRulesRevision)
	if err != nil || !ok {
		return 0, err
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s setting %q: %w", settingRulesRevision, value, err)
	}
	return n, nil
}

// SettingsStore reads and writes service settings.
type SettingsStore struct {
	queries *Queries
	now     func() time.Time
}

// NewSettingsStore creates a settings store.
func NewSettingsStore(queries *Queries) *SettingsStore {
	return &SettingsStore{queries: queries, now: time.Now}
}

// DefaultConflict returns the stored default conflict action. ok is false
// when none has been stored.
func (s *SettingsStore) DefaultConflict(ctx context.Context) (c types.ConflictAction, ok bool, err error) {
	value, ok, err := getSetting(ctx, s.queries, settingDefaultConflict)
	if err != nil || !ok {
		return "", false, err
	}
	c, err = types.ParseConflictAction(value)
	if err != nil {
		return "", false, fmt.Errorf("stored %s: %w", settingDefaultConflict, err)
	}
	return c, true, nil
}

// SetDefaultConflict stores the default conflict action.
func (s *SettingsStore) SetDefaultConflict(ctx context.Context, c types.ConflictAction) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %q", types.ErrUnknownConflictAction, c)
	}
	return putSetting(ctx, s.queries, settingDefaultConflict, string(c), s.now().UTC())
}

// EnsureDefaultConflict returns the stored default conflict action,
// storing fallback first when nothing is stored yet.
func (s *SettingsStore) EnsureDefaultConflict(ctx context.Context, fallback types.ConflictAction) (types.ConflictAction, error) {
	c, ok, err := s.DefaultConflict(ctx)
	if err != nil {
		return "", err
	}
	if ok {
		return c, nil
	}
	if err := s.SetDefaultConflict(ctx, fallback); err != nil {
		return "", err
	}
	return fallback, nil
}

func getSetting(ctx context.Context, q *Queries, key string) (string, bool, error) {
	var value string
	err := q.Get(ctx, "get-setting", &value, key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read setting %s: %w", key, err)
	}
	return value, true, nil
}

func putSetting(ctx context.Context, q *Queries, key, value string, now time.Time) error {
	if _, err := q.Exec(ctx, "upsert-setting", key, value, now); err != nil {
		return fmt.Errorf("failed to write setting %s: %w", key, err)
	}
	return nil
}
