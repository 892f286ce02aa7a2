// internal/rules/upgrade.go
package rules

import (
	"github.com/solatis/sortdl/internal/types"
)

/*
 * Legacy rule upgrade.
 *
 * UpgradeRule rewrites a legacy rule (domains + key/op/value conditions)
 * into unified conditions, but only when the unified form matches exactly
 * the same downloads. Anything that would change the verdict for some
 * download is reported as not upgradable and the rule is left alone.
 *
 * Not upgradable:
 *   - more than one domain pattern (unified conditions only AND)
 *   - an explicitly empty domain list (matches nothing)
 *   - keys other than path, file, ext, mime; "host" is excluded because a
 *     unified domain condition also accepts the referrer host
 *   - notContains, and in/notIn with a scalar value (always false)
 *
 * Legacy string ops are case-sensitive, so the unified conditions they turn
 * into are marked caseSensitive. List values are compared folded, as in
 * the legacy scheme. The legacy fields are kept on the upgraded rule.
 */

var legacyKeyTypes = map[string]types.ConditionType{
	"path": types.ConditionPath,
	"file": types.ConditionFilename,
	"ext":  types.ConditionExtension,
	"mime": types.ConditionMIME,
}

// UpgradeRule returns rule with equivalent unified conditions and true, or
// rule unchanged and false when it already uses unified conditions or has
// no exact unified equivalent.
func UpgradeRule(rule types.Rule) (types.Rule, bool) {
	if rule.UsesUnified() {
		return rule, false
	}
	if rule.Domains != nil && len(rule.Domains) != 1 {
		return rule, false
	}

	unified := make([]types.UnifiedCondition, 0, len(rule.Conditions)+1)
	if len(rule.Domains) == 1 && rule.Domains[0] != "*" {
		unified = append(unified, types.UnifiedCondition{
			ConditionType: types.ConditionDomain,
			MatchType:     types.MatchGlob,
			Value:         types.StringValue(rule.Domains[0]),
		})
	}

	for _, c := range rule.Conditions {
		uc, ok := upgradeCondition(c)
		if !ok {
			return rule, false
		}
		unified = append(unified, uc)
	}

	// A unified list must be non-empty to take effect; "*" matches anything.
	if len(unified) == 0 {
		unified = append(unified, types.UnifiedCondition{
			ConditionType: types.ConditionDomain,
			MatchType:     types.MatchGlob,
			Value:         types.StringValue("*"),
		})
	}

	upgraded := rule
	upgraded.UnifiedConditions = unified
	return upgraded, true
}

func upgradeCondition(c types.LegacyCondition) (types.UnifiedCondition, bool) {
	ct, ok := legacyKeyTypes[c.Key]
	if !ok {
		return types.UnifiedCondition{}, false
	}
	uc := types.UnifiedCondition{ConditionType: ct, Value: c.Value}

	if c.Value.IsList {
		// Legacy list semantics: "in" wants a hit, every other op a miss.
		uc.MatchType = types.MatchNotIn
		if c.Op == types.OpIn {
			uc.MatchType = types.MatchIn
		}
		return uc, true
	}

	switch c.Op {
	case types.OpEquals:
		uc.MatchType, uc.CaseSensitive = types.MatchExact, true
	case types.OpNotEquals:
		uc.MatchType, uc.CaseSensitive = types.MatchNotIn, true
	case types.OpContains:
		uc.MatchType, uc.CaseSensitive = types.MatchContains, true
	case types.OpStartsWith:
		uc.MatchType, uc.CaseSensitive = types.MatchStartsWith, true
	case types.OpEndsWith:
		uc.MatchType, uc.CaseSensitive = types.MatchEndsWith, true
	case types.OpMatches:
		uc.MatchType = types.MatchRegex
	case types.OpGlob:
		uc.MatchType = types.MatchGlob
	default:
		return types.UnifiedCondition{}, false
	}
	return uc, true
}
