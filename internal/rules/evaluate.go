// internal/rules/evaluate.go
package rules

import (
	"strconv"
	"strings"

	"github.com/solatis/sortdl/internal/types"
)

/*
 * Rule evaluation and selection.
 *
 * Entry points for callers holding plain types.Rule values. All of them go
 * through the same compiled matchers as the Engine; compiled patterns are
 * cached, so repeated calls with the same rules stay cheap.
 *
 * Selection: rules are scanned in list order, disabled rules are skipped,
 * the first match wins. There is no priority sort; list order is the
 * priority.
 *
 * AND semantics: conditions short-circuit on the first miss. Conditions
 * have no side effects, so evaluation order does not affect the verdict.
 */

// MatchUnifiedCondition evaluates a single unified condition against ec.
// A domain condition that misses the download host is retried against the
// referrer host.
func MatchUnifiedCondition(c types.UnifiedCondition, ec *EvaluationContext) bool {
	uc, _ := compileUnified(c)
	return uc.match(ec)
}

// MatchAllUnifiedConditions ANDs conditions. Empty is a vacuous match.
func MatchAllUnifiedConditions(conditions []types.UnifiedCondition, ec *EvaluationContext) bool {
	for _, c := range conditions {
		if !MatchUnifiedCondition(c, ec) {
			return false
		}
	}
	return true
}

// MatchAll ANDs legacy conditions. Empty is a vacuous match.
func MatchAll(conditions []types.LegacyCondition, ec *EvaluationContext) bool {
	for _, c := range conditions {
		lc, _ := compileLegacy(c)
		if !lc.match(ec) {
			return false
		}
	}
	return true
}

// IsInDomain reports whether any glob pattern matches host or, when set,
// referrerHost.
func IsInDomain(patterns []string, host, referrerHost string) bool {
	for _, p := range patterns {
		if GlobMatch(p, host) {
			return true
		}
		if referrerHost != "" && GlobMatch(p, referrerHost) {
			return true
		}
	}
	return false
}

// MatchRule reports whether rule matches ec, ignoring Enabled. Unified
// conditions, when present, are the only thing consulted.
func MatchRule(rule *types.Rule, ec *EvaluationContext) bool {
	return Compile(rule).Matches(ec)
}

// SelectRule returns the first enabled rule matching ec, or nil.
// The returned pointer aliases an element of rules.
func SelectRule(rules []types.Rule, ec *EvaluationContext) *types.Rule {
	for i := range rules {
		if !rules[i].Enabled {
			continue
		}
		if MatchRule(&rules[i], ec) {
			return &rules[i]
		}
	}
	return nil
}

// SelectCompiled is SelectRule over pre-compiled rules.
func SelectCompiled(rules []*CompiledRule, ec *EvaluationContext) *CompiledRule {
	for _, r := range rules {
		if r.Enabled && r.Matches(ec) {
			return r
		}
	}
	return nil
}

// LegacyField resolves a legacy condition key against ec. Unknown keys and
// missing values resolve to "".
//
// Keys: host, path, file, basename, ext, protocol, mime, hash,
// query.<name> (falls back to the referrer query), referrer.query.<name>,
// referrer.host, path[<n>].
func (ec *EvaluationContext) LegacyField(key string) string {
	switch key {
	case "host":
		return ec.Host
	case "path":
		return ec.Path
	case "file":
		return ec.File
	case "basename":
		return ec.Basename
	case "ext":
		return ec.Ext
	case "protocol":
		return ec.Protocol
	case "mime":
		return ec.MIME
	case "hash":
		return ec.Hash
	case "referrer.host":
		return ec.ReferrerHost
	}

	if name, ok := strings.CutPrefix(key, "query."); ok {
		v, _ := ec.QueryValue(name)
		return v
	}
	if name, ok := strings.CutPrefix(key, "referrer.query."); ok {
		return ec.ReferrerQuery[name]
	}
	if n, ok := parseSegmentIndex(key); ok {
		return ec.Segment(n)
	}
	return ""
}

// parseSegmentIndex parses "path[<n>]" where n is one or more ASCII digits.
func parseSegmentIndex(token string) (int, bool) {
	inner, ok := strings.CutPrefix(token, "path[")
	if !ok {
		return 0, false
	}
	inner, ok = strings.CutSuffix(inner, "]")
	if !ok || inner == "" {
		return 0, false
	}
	for _, r := range inner {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(inner)
	if err != nil {
		// Out of int range; no such segment.
		return -1, true
	}
	return n, true
}
