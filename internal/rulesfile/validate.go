// internal/rulesfile/validate.go
package rulesfile

import (
	"errors"
	"fmt"
	"slices"

	"github.com/tidwall/gjson"

	"github.com/solatis/sortdl/internal/types"
)

/*
 * Structural validation of rules documents.
 *
 * Validation runs over the raw JSON with gjson, before decoding, so a
 * missing field is told apart from its zero value ("enabled" is required,
 * "domains" is optional) and wrongly typed fields get a located message.
 *
 * Every problem found is reported, joined with errors.Join. Each is a
 * *types.SchemaError and therefore matches types.ErrSchemaViolation.
 */

var stringOps = []types.LegacyOp{
	types.OpEquals, types.OpNotEquals, types.OpContains, types.OpNotContains,
	types.OpStartsWith, types.OpEndsWith, types.OpMatches, types.OpGlob,
}

// validateDocument checks a JSON rules document, versioned or bare array.
func validateDocument(data []byte) error {
	if !gjson.ValidBytes(data) {
		return &types.SchemaError{RuleIndex: -1, Field: "$", Message: "document is not valid JSON"}
	}

	doc := gjson.ParseBytes(data)
	var rules gjson.Result
	switch {
	case doc.IsArray():
		rules = doc
	case doc.IsObject():
		version := doc.Get("version")
		if version.Type != gjson.Number || version.Num != types.RulesConfigVersion {
			return &types.SchemaError{RuleIndex: -1, Field: "version",
				Message: fmt.Sprintf("expected %d, got %s", types.RulesConfigVersion, describe(version))}
		}
		rules = doc.Get("rules")
		if !rules.IsArray() {
			return &types.SchemaError{RuleIndex: -1, Field: "rules", Message: "expected array, got " + describe(rules)}
		}
	default:
		return &types.SchemaError{RuleIndex: -1, Field: "$", Message: "expected object or array, got " + describe(doc)}
	}

	items := rules.Array()
	if len(items) > types.MaxRules {
		return &types.SchemaError{RuleIndex: -1, Field: "rules",
			Message: fmt.Sprintf("%d rules exceeds limit of %d", len(items), types.MaxRules)}
	}

	var errs []error
	seen := make(map[string]int, len(items))
	for i, item := range items {
		c := &checker{index: i, id: types.RuleID(item.Get("id").String())}
		c.rule(item)
		if id := item.Get("id"); id.Type == gjson.String && id.Str != "" {
			if first, dup := seen[id.Str]; dup {
				c.fail("id", "duplicate of rules[%d]", first)
			} else {
				seen[id.Str] = i
			}
		}
		errs = append(errs, c.errs...)
	}
	return errors.Join(errs...)
}

type checker struct {
	index int
	id    types.RuleID
	errs  []error
}

func (c *checker) fail(field, format string, args ...any) {
	c.errs = append(c.errs, &types.SchemaError{
		RuleIndex: c.index,
		RuleID:    c.id,
		Field:     field,
		Message:   fmt.Sprintf(format, args...),
	})
}

func (c *checker) rule(r gjson.Result) {
	if !r.IsObject() {
		c.fail("$", "expected object, got %s", describe(r))
		return
	}

	c.nonEmptyString(r.Get("id"), "id")
	c.nonEmptyString(r.Get("name"), "name")
	if enabled := r.Get("enabled"); enabled.Type != gjson.True && enabled.Type != gjson.False {
		c.fail("enabled", "expected boolean, got %s", describe(enabled))
	}

	if domains := r.Get("domains"); domains.Exists() {
		if !domains.IsArray() {
			c.fail("domains", "expected array, got %s", describe(domains))
		} else {
			for j, d := range domains.Array() {
				if d.Type != gjson.String {
					c.fail(fmt.Sprintf("domains[%d]", j), "expected string, got %s", describe(d))
				}
			}
		}
	}

	total := 0
	if conds := r.Get("conditions"); conds.Exists() {
		if !conds.IsArray() {
			c.fail("conditions", "expected array, got %s", describe(conds))
		} else {
			for j, cond := range conds.Array() {
				c.legacyCondition(fmt.Sprintf("conditions[%d]", j), cond)
				total++
			}
		}
	}
	if conds := r.Get("unifiedConditions"); conds.Exists() {
		if !conds.IsArray() {
			c.fail("unifiedConditions", "expected array, got %s", describe(conds))
		} else {
			for j, cond := range conds.Array() {
				c.unifiedCondition(fmt.Sprintf("unifiedConditions[%d]", j), cond)
				total++
			}
		}
	}
	if total > types.MaxConditionsPerRule {
		c.fail("conditions", "%d conditions exceeds limit of %d", total, types.MaxConditionsPerRule)
	}

	c.actions(r.Get("actions"))

	if p := r.Get("priority"); p.Exists() && p.Type != gjson.Number {
		c.fail("priority", "expected number, got %s", describe(p))
	}
}

func (c *checker) legacyCondition(field string, cond gjson.Result) {
	if !cond.IsObject() {
		c.fail(field, "expected object, got %s", describe(cond))
		return
	}
	if key := cond.Get("key"); key.Type != gjson.String {
		c.fail(field+".key", "expected string, got %s", describe(key))
	}

	op := cond.Get("op")
	value := cond.Get("value")
	switch {
	case op.Type != gjson.String:
		c.fail(field+".op", "expected string, got %s", describe(op))
	case slices.Contains(stringOps, types.LegacyOp(op.Str)):
		c.nonEmptyString(value, field+".value")
	case types.LegacyOp(op.Str).IsArrayOp():
		if !value.IsArray() {
			c.fail(field+".value", "operator %q expects an array, got %s", op.Str, describe(value))
			return
		}
		values := value.Array()
		if len(values) == 0 {
			c.fail(field+".value", "must contain at least one value")
		}
		c.setSize(field+".value", len(values))
		for k, v := range values {
			c.nonEmptyString(v, fmt.Sprintf("%s.value[%d]", field, k))
		}
	default:
		c.fail(field+".op", "unknown operator %q", op.Str)
	}
}

func (c *checker) unifiedCondition(field string, cond gjson.Result) {
	if !cond.IsObject() {
		c.fail(field, "expected object, got %s", describe(cond))
		return
	}
	if ct := cond.Get("conditionType"); ct.Type != gjson.String || !types.ConditionType(ct.Str).Valid() {
		c.fail(field+".conditionType", "unknown condition type %s", describe(ct))
	}
	if mt := cond.Get("matchType"); mt.Type != gjson.String || !types.MatchType(mt.Str).Valid() {
		c.fail(field+".matchType", "unknown match type %s", describe(mt))
	}

	value := cond.Get("value")
	switch {
	case value.Type == gjson.String:
	case value.IsArray():
		values := value.Array()
		c.setSize(field+".value", len(values))
		for k, v := range values {
			if v.Type != gjson.String {
				c.fail(fmt.Sprintf("%s.value[%d]", field, k), "expected string, got %s", describe(v))
			}
		}
	default:
		c.fail(field+".value", "expected string or array of strings, got %s", describe(value))
	}

	if cs := cond.Get("caseSensitive"); cs.Exists() && cs.Type != gjson.True && cs.Type != gjson.False {
		c.fail(field+".caseSensitive", "expected boolean, got %s", describe(cs))
	}
}

func (c *checker) actions(a gjson.Result) {
	if !a.IsObject() {
		c.fail("actions", "expected object, got %s", describe(a))
		return
	}
	c.nonEmptyString(a.Get("pathTemplate"), "actions.pathTemplate")

	if conflict := a.Get("conflict"); conflict.Exists() {
		if conflict.Type != gjson.String || !types.ConflictAction(conflict.Str).Valid() {
			c.fail("actions.conflict", "unknown conflict action %s", describe(conflict))
		}
	}
	if rp := a.Get("renamePattern"); rp.Exists() && rp.Type != gjson.String {
		c.fail("actions.renamePattern", "expected string, got %s", describe(rp))
	}
	if tr := a.Get("transforms"); tr.Exists() {
		if !tr.IsArray() {
			c.fail("actions.transforms", "expected array, got %s", describe(tr))
			return
		}
		for k, t := range tr.Array() {
			if t.Type != gjson.String || !types.Transform(t.Str).Valid() {
				c.fail(fmt.Sprintf("actions.transforms[%d]", k), "unknown transform %s", describe(t))
			}
		}
	}
}

func (c *checker) nonEmptyString(v gjson.Result, field string) {
	switch {
	case v.Type != gjson.String:
		c.fail(field, "expected string, got %s", describe(v))
	case v.Str == "":
		c.fail(field, "must not be empty")
	}
}

func (c *checker) setSize(field string, n int) {
	if n > types.MaxSetValues {
		c.fail(field, "%d values exceeds limit of %d", n, types.MaxSetValues)
	}
}

// describe renders a value for error messages.
func describe(v gjson.Result) string {
	switch {
	case !v.Exists():
		return "nothing"
	case v.Type == gjson.Null:
		return "null"
	case v.IsArray():
		return "array"
	case v.IsObject():
		return "object"
	case v.Type == gjson.String:
		return fmt.Sprintf("%q", v.Str)
	default:
		return v.Raw
	}
}
