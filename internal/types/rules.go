// internal/types/rules.go
package types

import (
	"encoding/json"
	"fmt"
)

/*
 * Domain types for download rules.
 *
 * Provides Rule, LegacyCondition, UnifiedCondition and RuleActions as they are
 * persisted by the extension. These types are wire-format agnostic apart from
 * their JSON tags; internal/rules compiles them into matchers.
 *
 * Key types:
 *   - Rule: ordered, user-authored matcher + action pair (first match wins)
 *   - LegacyCondition: key/op/value triple (older scheme)
 *   - UnifiedCondition: conditionType/matchType/value/caseSensitive (newer scheme)
 *   - ConditionValue: a condition value that is either a string or a list
 *
 * Defaults on decode (missing fields):
 *   - domains -> ["*"], conditions -> [], unifiedConditions -> []
 *   - caseSensitive -> false, priority/conflict/renamePattern -> absent
 */

// ConflictAction is forwarded verbatim to the platform download API.
type ConflictAction string

const (
	ConflictUniquify  ConflictAction = "uniquify"
	ConflictOverwrite ConflictAction = "overwrite"
	ConflictPrompt    ConflictAction = "prompt"
)

// Valid reports whether c is one of the known conflict actions.
func (c ConflictAction) Valid() bool {
	switch c {
	case ConflictUniquify, ConflictOverwrite, ConflictPrompt:
		return true
	default:
		return false
	}
}

// ParseConflictAction validates a conflict action string.
func ParseConflictAction(s string) (ConflictAction, error) {
	c := ConflictAction(s)
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownConflictAction, s)
	}
	return c, nil
}

// ConditionType selects which context field a unified condition inspects.
type ConditionType string

const (
	ConditionDomain    ConditionType = "domain"
	ConditionExtension ConditionType = "extension"
	ConditionFilename  ConditionType = "filename"
	ConditionPath      ConditionType = "path"
	ConditionMIME      ConditionType = "mime"
)

// Valid reports whether t is a known condition type.
func (t ConditionType) Valid() bool {
	switch t {
	case ConditionDomain, ConditionExtension, ConditionFilename, ConditionPath, ConditionMIME:
		return true
	default:
		return false
	}
}

// MatchType is the comparison applied by a unified condition.
type MatchType string

const (
	MatchContains   MatchType = "contains"
	MatchExact      MatchType = "exact"
	MatchStartsWith MatchType = "starts_with"
	MatchEndsWith   MatchType = "ends_with"
	MatchRegex      MatchType = "regex"
	MatchGlob       MatchType = "glob"
	MatchIn         MatchType = "in"
	MatchNotIn      MatchType = "not_in"
)

// Valid reports whether m is a known match type.
func (m MatchType) Valid() bool {
	switch m {
	case MatchContains, MatchExact, MatchStartsWith, MatchEndsWith,
		MatchRegex, MatchGlob, MatchIn, MatchNotIn:
		return true
	default:
		return false
	}
}

// LegacyOp is the operator of a legacy condition.
type LegacyOp string

const (
	OpEquals      LegacyOp = "equals"
	OpNotEquals   LegacyOp = "notEquals"
	OpContains    LegacyOp = "contains"
	OpNotContains LegacyOp = "notContains"
	OpStartsWith  LegacyOp = "startsWith"
	OpEndsWith    LegacyOp = "endsWith"
	OpMatches     LegacyOp = "matches"
	OpGlob        LegacyOp = "glob"
	OpIn          LegacyOp = "in"
	OpNotIn       LegacyOp = "notIn"
)

// IsArrayOp reports whether op takes a list value.
func (op LegacyOp) IsArrayOp() bool {
	return op == OpIn || op == OpNotIn
}

// Valid reports whether op is a known legacy operator.
func (op LegacyOp) Valid() bool {
	switch op {
	case OpEquals, OpNotEquals, OpContains, OpNotContains, OpStartsWith,
		OpEndsWith, OpMatches, OpGlob, OpIn, OpNotIn:
		return true
	default:
		return false
	}
}

// Transform post-processes the final filename of a matched rule.
type Transform string

const (
	TransformLowerExt     Transform = "lower-ext"
	TransformUpperExt     Transform = "upper-ext"
	TransformSanitizeFile Transform = "sanitize-file"
	TransformNormalizeNFC Transform = "normalize-nfc"
)

// Valid reports whether t is a known transform.
func (t Transform) Valid() bool {
	switch t {
	case TransformLowerExt, TransformUpperExt, TransformSanitizeFile, TransformNormalizeNFC:
		return true
	default:
		return false
	}
}

// ConditionValue is either a single string or a list of strings.
// IsList disambiguates an empty list from an empty string.
type ConditionValue struct {
	Scalar string
	List   []string
	IsList bool
}

// StringValue builds a scalar condition value.
func StringValue(s string) ConditionValue {
	return ConditionValue{Scalar: s}
}

// ListValue builds a list condition value.
func ListValue(values ...string) ConditionValue {
	return ConditionValue{List: values, IsList: true}
}

// MarshalJSON implements json.Marshaler.
func (v ConditionValue) MarshalJSON() ([]byte, error) {
	if v.IsList {
		if v.List == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.List)
	}
	return json.Marshal(v.Scalar)
}

// UnmarshalJSON implements json.Unmarshaler.
// Accepts a JSON string or an array of strings; anything else is rejected.
func (v *ConditionValue) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil && len(data) > 0 && data[0] == '[' {
		*v = ConditionValue{List: list, IsList: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: condition value must be a string or a list of strings", ErrSchemaViolation)
	}
	*v = ConditionValue{Scalar: s}
	return nil
}

// LegacyCondition is the older key/op/value condition.
// Key selects a context field: host, path, file, basename, ext, protocol,
// mime, hash, query.<name>, referrer.query.<name>, referrer.host, path[<n>].
type LegacyCondition struct {
	Key   string         `json:"key"`
	Op    LegacyOp       `json:"op"`
	Value ConditionValue `json:"value"`
}

// UnifiedCondition is the newer condition record.
// CaseSensitive is false when absent from the persisted JSON.
type UnifiedCondition struct {
	ConditionType ConditionType  `json:"conditionType"`
	MatchType     MatchType      `json:"matchType"`
	Value         ConditionValue `json:"value"`
	CaseSensitive bool           `json:"caseSensitive"`
}

// RuleActions describes where a matched download goes.
type RuleActions struct {
	PathTemplate  string         `json:"pathTemplate"`
	Conflict      ConflictAction `json:"conflict,omitempty"`
	RenamePattern string         `json:"renamePattern,omitempty"`
	Transforms    []Transform    `json:"transforms,omitempty"`
}

// Rule is a user-authored rule. Rules are evaluated in list order and the
// first enabled match wins. When UnifiedConditions is non-empty it is the
// only matching scheme consulted; Domains and Conditions are ignored.
//
// A nil Domains slice places no domain restriction on the legacy scheme;
// an explicitly empty one matches nothing.
type Rule struct {
	ID                RuleID             `json:"id"`
	Name              string             `json:"name"`
	Enabled           bool               `json:"enabled"`
	Domains           []string           `json:"domains"`
	Conditions        []LegacyCondition  `json:"conditions"`
	UnifiedConditions []UnifiedCondition `json:"unifiedConditions"`
	Actions           RuleActions        `json:"actions"`
	Priority          *float64           `json:"priority,omitempty"`
}

// UsesUnified reports whether the rule is matched via unified conditions.
func (r *Rule) UsesUnified() bool {
	return len(r.UnifiedConditions) > 0
}

// UnmarshalJSON implements json.Unmarshaler and applies field defaults.
// Fields missing from data keep the defaults; explicit null clears them.
func (r *Rule) UnmarshalJSON(data []byte) error {
	type rawRule Rule
	decoded := rawRule{
		Domains:           []string{"*"},
		Conditions:        []LegacyCondition{},
		UnifiedConditions: []UnifiedCondition{},
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*r = Rule(decoded)
	return nil
}
