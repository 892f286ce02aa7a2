package server

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solatis/sortdl/internal/rules"
	"github.com/solatis/sortdl/internal/types"
)

/*
 * Rule reloading.
 *
 * The engine holds a compiled snapshot of the stored rules. Reloader
 * polls the rules revision and rebuilds the snapshot only when it moved,
 * so edits made by `sortdl rules import` (or another process sharing the
 * database) reach a running server within one interval. The default
 * conflict action is refreshed on every poll.
 */

// RuleSource is the stored rule list. Implemented by *db.RuleStore.
type RuleSource interface {
	List(ctx context.Context) ([]types.Rule, error)
	Revision(ctx context.Context) (int64, error)
}

// ConflictSource is the stored default conflict action. Implemented by
// *db.SettingsStore.
type ConflictSource interface {
	DefaultConflict(ctx context.Context) (types.ConflictAction, bool, error)
}

// Reloader keeps an engine in sync with the rule store.
// Not safe for concurrent use; once Run starts it owns the Reloader.
type Reloader struct {
	rules    RuleSource
	settings ConflictSource
	engine   *rules.Engine
	log      *logrus.Entry

	revision int64
	loaded   bool
}

// NewReloader creates a reloader for engine.
func NewReloader(engine *rules.Engine, ruleSource RuleSource, settings ConflictSource, log *logrus.Entry) *Reloader {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Reloader{
		rules:    ruleSource,
		settings: settings,
		engine:   engine,
		log:      log.WithField("component", "reloader"),
	}
}

// Revision returns the rules revision currently loaded into the engine.
func (r *Reloader) Revision() int64 {
	return r.revision
}

// Load unconditionally loads the stored rules and default conflict action
// into the engine.
func (r *Reloader) Load(ctx context.Context) error {
	revision, err := r.rules.Revision(ctx)
	if err != nil {
		return err
	}
	if err := r.loadRules(ctx, revision); err != nil {
		return err
	}
	return r.loadConflict(ctx)
}

// Poll reloads the rules when the stored revision changed since the last
// load. Reports whether the rules were reloaded.
func (r *Reloader) Poll(ctx context.Context) (bool, error) {
	revision, err := r.rules.Revision(ctx)
	if err != nil {
		return false, err
	}

	reloaded := false
	if !r.loaded || revision != r.revision {
		if err := r.loadRules(ctx, revision); err != nil {
			return false, err
		}
		reloaded = true
	}

	return reloaded, r.loadConflict(ctx)
}

// Run polls every interval until ctx is done. Poll errors are logged and
// the previous snapshot stays in place. A non-positive interval returns
// immediately.
func (r *Reloader) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := r.Poll(ctx); err != nil && ctx.Err() == nil {
				r.log.WithError(err).Warn("Rule reload failed, keeping current rules")
			}
		}
	}
}

func (r *Reloader) loadRules(ctx context.Context, revision int64) error {
	stored, err := r.rules.List(ctx)
	if err != nil {
		return err
	}

	r.engine.Update(stored)
	r.revision = revision
	r.loaded = true

	r.log.WithFields(logrus.Fields{
		"revision": revision,
		"rules":    len(stored),
	}).Info("Loaded rules")
	return nil
}

func (r *Reloader) loadConflict(ctx context.Context) error {
	c, ok, err := r.settings.DefaultConflict(ctx)
	if err != nil || !ok {
		return err
	}
	if c == r.engine.DefaultConflict() {
		return nil
	}
	if err := r.engine.SetDefaultConflict(c); err != nil {
		return fmt.Errorf("default conflict: %w", err)
	}
	r.log.WithField("conflict", c).Info("Default conflict action changed")
	return nil
}
