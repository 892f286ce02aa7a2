// Package api provides the gRPC SuggestService for sortdl.
package api

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/solatis/sortdl/internal/rules"
	"github.com/solatis/sortdl/internal/types"
)

// RuleSource is the stored rule list served by ListRules.
// Implemented by *db.RuleStore.
type RuleSource interface {
	List(ctx context.Context) ([]types.Rule, error)
	Revision(ctx context.Context) (int64, error)
}

// SuggestService implements SuggestServer.
// Thin orchestration layer delegating to the rules engine and the rule store.
type SuggestService struct {
	engine *rules.Engine
	store  RuleSource
	log    *logrus.Entry
}

// NewSuggestService creates service instance with dependencies.
func NewSuggestService(engine *rules.Engine, store RuleSource, log *logrus.Entry) (*SuggestService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}

	return &SuggestService{
		engine: engine,
		store:  store,
		log:    log.WithField("component", "api"),
	}, nil
}
