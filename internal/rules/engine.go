// internal/rules/engine.go
package rules

import (
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/solatis/sortdl/internal/rename"
	"github.com/solatis/sortdl/internal/types"
)

/*
 * Suggestion engine.
 *
 * Engine holds the current compiled rule set and the default conflict
 * action, and turns a download request into a destination suggestion:
 *
 *   1. BuildContext (clock read once)
 *   2. first enabled matching rule
 *   3. ExpandTemplate on the rule's path template, "\" normalized to "/"
 *   4. renamePattern, if set, replaces the final path component
 *   5. transforms
 *   6. conflict: the rule's own, else the default
 *
 * No match leaves the platform's filename alone (Matched=false, Filename is
 * the inferred file name). An unparseable URL is returned as ErrInvalidURL
 * and the caller keeps the platform default for that download.
 *
 * Rule sets are swapped atomically with Update; a Suggest in flight keeps
 * the snapshot it started with. The engine never mutates rules.
 */

// DefaultPathTemplate is used when a matched rule has an empty template.
const DefaultPathTemplate = "{host}/{file}"

// DownloadRequest is a candidate download as reported by the browser.
type DownloadRequest struct {
	URL      string
	FinalURL string // after redirects; preferred over URL when set
	Filename string // platform-suggested filename, may be empty
	Referrer string
	MIME     string
}

// Suggestion is the engine's answer for one download.
type Suggestion struct {
	DownloadID string
	Matched    bool
	RuleID     types.RuleID
	RuleName   string
	Filename   string // "/"-separated path relative to the downloads directory
	Conflict   types.ConflictAction
}

// Engine evaluates downloads against the current rule set.
// Safe for concurrent use.
type Engine struct {
	log             *logrus.Entry
	clock           func() time.Time
	rules           atomic.Pointer[[]*CompiledRule]
	defaultConflict atomic.Value // types.ConflictAction
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine's logger.
func WithLogger(log *logrus.Entry) EngineOption {
	return func(e *Engine) {
		if log != nil {
			e.log = log
		}
	}
}

// WithEngineClock sets the clock used for context construction.
func WithEngineClock(clock func() time.Time) EngineOption {
	return func(e *Engine) {
		if clock != nil {
			e.clock = clock
		}
	}
}

// NewEngine creates an engine with an empty rule set and the uniquify
// default conflict action.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		log:   logrus.WithField("component", "rules"),
		clock: time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	empty := []*CompiledRule{}
	e.rules.Store(&empty)
	e.defaultConflict.Store(types.ConflictUniquify)
	return e
}

// Update compiles rules and swaps them in. The slice is copied. Malformed
// patterns are logged; the affected conditions never match.
func (e *Engine) Update(rules []types.Rule) {
	owned := make([]types.Rule, len(rules))
	copy(owned, rules)

	compiled := make([]*CompiledRule, len(owned))
	for i := range owned {
		compiled[i] = Compile(&owned[i])
		for _, p := range compiled[i].Problems {
			e.log.WithFields(logrus.Fields{
				"rule_id":   compiled[i].ID,
				"rule_name": compiled[i].Name,
			}).WithError(p).Warn("Rule condition will never match")
		}
	}
	e.rules.Store(&compiled)
	e.log.WithField("rules", len(compiled)).Debug("Rule set updated")
}

// Rules returns a copy of the current rule set in evaluation order.
func (e *Engine) Rules() []types.Rule {
	compiled := *e.rules.Load()
	out := make([]types.Rule, len(compiled))
	for i, r := range compiled {
		out[i] = *r.Rule
	}
	return out
}

// SetDefaultConflict sets the conflict action used when a matched rule has
// none. Returns ErrUnknownConflictAction for values outside the enum.
func (e *Engine) SetDefaultConflict(c types.ConflictAction) error {
	c, err := types.ParseConflictAction(string(c))
	if err != nil {
		return err
	}
	e.defaultConflict.Store(c)
	return nil
}

// DefaultConflict returns the current default conflict action.
func (e *Engine) DefaultConflict() types.ConflictAction {
	return e.defaultConflict.Load().(types.ConflictAction)
}

// Context builds the evaluation context for req using the engine clock.
func (e *Engine) Context(req DownloadRequest) (*EvaluationContext, error) {
	raw := req.FinalURL
	if raw == "" {
		raw = req.URL
	}
	return BuildContext(raw, req.Filename, req.Referrer, WithClock(e.clock), WithMIME(req.MIME))
}

// Suggest computes the destination for one download.
func (e *Engine) Suggest(req DownloadRequest) (Suggestion, error) {
	s := Suggestion{
		DownloadID: types.NewDownloadID(),
		Conflict:   e.DefaultConflict(),
	}
	log := e.log.WithField("download_id", s.DownloadID)

	ec, err := e.Context(req)
	if err != nil {
		log.WithError(err).Warn("Skipping rules for download")
		return s, err
	}
	s.Filename = ec.File

	log = log.WithFields(logrus.Fields{
		"host":          ec.Host,
		"referrer_host": ec.ReferrerHost,
	})

	r := SelectCompiled(*e.rules.Load(), ec)
	if r == nil {
		log.Debug("No rule matched")
		return s, nil
	}

	s.Matched = true
	s.RuleID = r.ID
	s.RuleName = r.Name
	s.Filename = BuildPath(r.Rule.Actions, ec)
	if r.Rule.Actions.Conflict != "" {
		s.Conflict = r.Rule.Actions.Conflict
	}

	log.WithFields(logrus.Fields{
		"rule_id":   r.ID,
		"rule_name": r.Name,
		"filename":  s.Filename,
	}).Debug("Rule matched")
	return s, nil
}

// BuildPath computes the destination path for a matched rule's actions.
func BuildPath(actions types.RuleActions, ec *EvaluationContext) string {
	tpl := actions.PathTemplate
	if tpl == "" {
		tpl = DefaultPathTemplate
	}
	p := NormalizePath(ExpandTemplate(tpl, ec))

	if strings.TrimSpace(actions.RenamePattern) != "" {
		name := rename.GenerateFilename(rename.FileMetadata{
			Date:         ec.Now,
			Domain:       hostWithPort(ec),
			OriginalName: ec.File,
		}, actions.RenamePattern)
		p = ReplaceFilename(p, name)
	}

	return ApplyTransforms(p, actions.Transforms)
}

func hostWithPort(ec *EvaluationContext) string {
	if ec.Port == "" {
		return ec.Host
	}
	return ec.Host + ":" + ec.Port
}
