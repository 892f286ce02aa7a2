// internal/rules/compile.go
package rules

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/solatis/sortdl/internal/types"
)

/*
 * Rule compilation.
 *
 * Compiles types.Rule into a CompiledRule whose matching scheme is decided
 * once, here, and nowhere else:
 *
 *   - UnifiedScheme when the rule has at least one unified condition. The
 *     legacy domains and conditions are ignored entirely, even when they
 *     disagree with the unified ones.
 *   - LegacyScheme otherwise: domain globs AND legacy conditions.
 *
 * Patterns (globs and user regexes) are compiled up front. Compilation never
 * fails: a pattern that does not compile is recorded in Problems (wrapping
 * ErrMalformedPattern) and the condition holding it evaluates to false.
 * This keeps one bad rule from aborting a scan over the rule list.
 *
 * Case folding of scalar and list values happens at compile time so that
 * evaluation only folds the target.
 */

// Scheme is the matching strategy a rule uses. Implemented by UnifiedScheme
// and LegacyScheme only.
type Scheme interface {
	Match(ec *EvaluationContext) bool
	scheme()
}

// UnifiedScheme ANDs unified conditions. No conditions means a vacuous match.
type UnifiedScheme struct {
	conditions []unifiedCondition
}

// LegacyScheme ANDs the domain restriction with legacy conditions.
type LegacyScheme struct {
	restrictDomains bool // false when the rule has no domains at all
	domains         []*regexp.Regexp
	conditions      []legacyCondition
}

func (UnifiedScheme) scheme() {}
func (LegacyScheme) scheme()  {}

// CompiledRule is a rule ready for repeated evaluation.
type CompiledRule struct {
	Rule     *types.Rule
	ID       types.RuleID
	Name     string
	Enabled  bool
	Scheme   Scheme
	Problems []error // malformed patterns; each wraps ErrMalformedPattern
}

// Matches reports whether the rule's scheme accepts ec. Enabled is not
// consulted; rule selection skips disabled rules before calling this.
func (r *CompiledRule) Matches(ec *EvaluationContext) bool {
	return r.Scheme.Match(ec)
}

// Compile pre-processes a rule for evaluation. The result keeps a pointer to
// rule, so callers must not mutate it afterwards.
func Compile(rule *types.Rule) *CompiledRule {
	compiled := &CompiledRule{
		Rule:    rule,
		ID:      rule.ID,
		Name:    rule.Name,
		Enabled: rule.Enabled,
	}

	if rule.UsesUnified() {
		s := UnifiedScheme{conditions: make([]unifiedCondition, 0, len(rule.UnifiedConditions))}
		for i, c := range rule.UnifiedConditions {
			uc, err := compileUnified(c)
			if err != nil {
				compiled.Problems = append(compiled.Problems, fmt.Errorf("unifiedConditions[%d]: %w", i, err))
			}
			s.conditions = append(s.conditions, uc)
		}
		compiled.Scheme = s
		return compiled
	}

	s := LegacyScheme{
		restrictDomains: rule.Domains != nil,
		domains:         make([]*regexp.Regexp, 0, len(rule.Domains)),
		conditions:      make([]legacyCondition, 0, len(rule.Conditions)),
	}
	for i, d := range rule.Domains {
		re, err := cachedGlob(d)
		if err != nil {
			compiled.Problems = append(compiled.Problems, fmt.Errorf("domains[%d]: %w", i, err))
			continue
		}
		s.domains = append(s.domains, re)
	}
	for i, c := range rule.Conditions {
		lc, err := compileLegacy(c)
		if err != nil {
			compiled.Problems = append(compiled.Problems, fmt.Errorf("conditions[%d]: %w", i, err))
		}
		s.conditions = append(s.conditions, lc)
	}
	compiled.Scheme = s
	return compiled
}

// unifiedCondition is a pre-processed types.UnifiedCondition.
type unifiedCondition struct {
	conditionType types.ConditionType
	matchType     types.MatchType
	caseSensitive bool
	isList        bool
	scalar        string   // folded unless caseSensitive
	list          []string // folded unless caseSensitive; scalar values become one element
	glob          *regexp.Regexp
	regex         *regexp2.Regexp
}

func compileUnified(c types.UnifiedCondition) (unifiedCondition, error) {
	fold := func(s string) string {
		if c.CaseSensitive {
			return s
		}
		return strings.ToLower(s)
	}

	uc := unifiedCondition{
		conditionType: c.ConditionType,
		matchType:     c.MatchType,
		caseSensitive: c.CaseSensitive,
		isList:        c.Value.IsList,
		scalar:        fold(c.Value.Scalar),
	}

	var err error
	switch c.MatchType {
	case types.MatchRegex:
		if !uc.isList {
			uc.regex, err = cachedRegex(c.Value.Scalar, c.CaseSensitive)
		}
	case types.MatchGlob:
		if !uc.isList {
			uc.glob, err = cachedGlob(c.Value.Scalar)
		}
	case types.MatchIn, types.MatchNotIn:
		if uc.isList {
			uc.list = make([]string, len(c.Value.List))
			for i, v := range c.Value.List {
				uc.list[i] = fold(v)
			}
		} else {
			uc.list = []string{uc.scalar}
		}
	}
	return uc, err
}

// target resolves the context field a unified condition inspects.
func (c *unifiedCondition) target(ec *EvaluationContext) string {
	switch c.conditionType {
	case types.ConditionDomain:
		return ec.Host
	case types.ConditionExtension:
		return ec.Ext
	case types.ConditionFilename:
		return ec.File
	case types.ConditionPath:
		return ec.Path
	case types.ConditionMIME:
		return ec.MIME
	default:
		return ""
	}
}

func (c *unifiedCondition) match(ec *EvaluationContext) bool {
	if compareUnified(c, c.target(ec)) {
		return true
	}
	// Domain conditions also accept the referring page's host.
	if c.conditionType == types.ConditionDomain && ec.ReferrerHost != "" {
		return compareUnified(c, ec.ReferrerHost)
	}
	return false
}

// legacyCondition is a pre-processed types.LegacyCondition.
type legacyCondition struct {
	key    string
	op     types.LegacyOp
	isList bool
	set    map[string]struct{} // lowercased list values
	value  string
	glob   *regexp.Regexp
	regex  *regexp2.Regexp
}

func compileLegacy(c types.LegacyCondition) (legacyCondition, error) {
	lc := legacyCondition{
		key:    c.Key,
		op:     c.Op,
		isList: c.Value.IsList,
		value:  c.Value.Scalar,
	}

	if lc.isList {
		lc.set = make(map[string]struct{}, len(c.Value.List))
		for _, v := range c.Value.List {
			lc.set[strings.ToLower(v)] = struct{}{}
		}
		return lc, nil
	}

	var err error
	switch c.Op {
	case types.OpMatches:
		lc.regex, err = cachedRegex(c.Value.Scalar, false)
	case types.OpGlob:
		lc.glob, err = cachedGlob(c.Value.Scalar)
	}
	return lc, err
}

func (c *legacyCondition) match(ec *EvaluationContext) bool {
	return compareLegacy(c, ec.LegacyField(c.key))
}

// Match implements Scheme.
func (s UnifiedScheme) Match(ec *EvaluationContext) bool {
	for i := range s.conditions {
		if !s.conditions[i].match(ec) {
			return false
		}
	}
	return true
}

// Match implements Scheme.
func (s LegacyScheme) Match(ec *EvaluationContext) bool {
	if s.restrictDomains && !matchDomains(s.domains, ec.Host, ec.ReferrerHost) {
		return false
	}
	for i := range s.conditions {
		if !s.conditions[i].match(ec) {
			return false
		}
	}
	return true
}

func matchDomains(domains []*regexp.Regexp, host, referrerHost string) bool {
	for _, re := range domains {
		if re.MatchString(host) {
			return true
		}
		if referrerHost != "" && re.MatchString(referrerHost) {
			return true
		}
	}
	return false
}
