// internal/rules/operators.go
package rules

import (
	"slices"
	"strings"

	"github.com/solatis/sortdl/internal/types"
)

/*
 * Operator comparison logic.
 *
 * Two operator families, one per matching scheme:
 *
 * Unified match types (compareUnified):
 *   - exact/contains/starts_with/ends_with: string tests, both sides
 *     lowercased unless the condition is case-sensitive
 *   - regex: ECMAScript regex tested against the raw target
 *   - glob: glob matcher, always case-insensitive
 *   - in/not_in: membership; a scalar value acts as a one-element list
 *
 * Legacy operators (compareLegacy):
 *   - list value: case-insensitive set hit; "in" wants a hit, any other
 *     op wants a miss
 *   - scalar value: case-sensitive string tests, "matches" is a
 *     case-insensitive regex, "glob" is the glob matcher
 *
 * Anything unknown (or a list where a scalar is needed) is false. Nothing
 * here returns an error: a broken pattern was already recorded at compile
 * time and simply never matches.
 */

// compareUnified applies a compiled unified condition to target.
func compareUnified(c *unifiedCondition, target string) bool {
	// Pattern types see the raw target; they carry their own case handling.
	switch c.matchType {
	case types.MatchRegex:
		return regexMatch(c.regex, target)
	case types.MatchGlob:
		return c.glob != nil && c.glob.MatchString(target)
	}

	if !c.caseSensitive {
		target = strings.ToLower(target)
	}

	switch c.matchType {
	case types.MatchExact:
		return !c.isList && target == c.scalar
	case types.MatchContains:
		return !c.isList && strings.Contains(target, c.scalar)
	case types.MatchStartsWith:
		return !c.isList && strings.HasPrefix(target, c.scalar)
	case types.MatchEndsWith:
		return !c.isList && strings.HasSuffix(target, c.scalar)
	case types.MatchIn:
		return slices.Contains(c.list, target)
	case types.MatchNotIn:
		return !slices.Contains(c.list, target)
	default:
		return false
	}
}

// compareLegacy applies a compiled legacy condition to v.
func compareLegacy(c *legacyCondition, v string) bool {
	if c.isList {
		_, hit := c.set[strings.ToLower(v)]
		if c.op == types.OpIn {
			return hit
		}
		return !hit
	}

	switch c.op {
	case types.OpEquals:
		return v == c.value
	case types.OpNotEquals:
		return v != c.value
	case types.OpContains:
		return strings.Contains(v, c.value)
	case types.OpNotContains:
		return !strings.Contains(v, c.value)
	case types.OpStartsWith:
		return strings.HasPrefix(v, c.value)
	case types.OpEndsWith:
		return strings.HasSuffix(v, c.value)
	case types.OpMatches:
		return regexMatch(c.regex, v)
	case types.OpGlob:
		return c.glob != nil && c.glob.MatchString(v)
	default:
		return false
	}
}
