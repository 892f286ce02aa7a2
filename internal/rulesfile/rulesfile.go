// Package rulesfile reads and writes rules documents.
//
// A rules document is either the versioned form
//
//	{"version": 1, "rules": [ ... ]}
//
// or a bare array of rules. Both may be written as JSON or YAML. Every
// document is validated structurally before it is decoded; failures are
// reported as *types.SchemaError values joined into one error.
package rulesfile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/solatis/sortdl/internal/types"
)

// Format is the encoding of a rules document on disk.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatFor picks the document format from a file name. Anything that is
// not .yaml or .yml is treated as JSON.
func FormatFor(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// ToJSON converts a document in format f to JSON. JSON input is returned
// as is.
func ToJSON(data []byte, f Format) ([]byte, error) {
	if f != FormatYAML {
		return data, nil
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &types.SchemaError{RuleIndex: -1, Field: "$", Message: "document is not valid YAML: " + err.Error()}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, &types.SchemaError{RuleIndex: -1, Field: "$", Message: "document cannot be represented as JSON: " + err.Error()}
	}
	return out, nil
}

// Parse validates and decodes a JSON rules document. A bare array is
// returned as a version 1 config.
func Parse(data []byte) (*types.RulesConfig, error) {
	if err := validateDocument(data); err != nil {
		return nil, err
	}

	cfg := &types.RulesConfig{Version: types.RulesConfigVersion}
	rules := data
	if gjson.ParseBytes(data).IsObject() {
		rules = []byte(gjson.GetBytes(data, "rules").Raw)
	}
	if err := json.Unmarshal(rules, &cfg.Rules); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrSchemaViolation, err)
	}
	return cfg, nil
}

// ParseFile reads a rules document from path, choosing the format from
// the file extension.
func ParseFile(path string) (*types.RulesConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	data, err = ToJSON(data, FormatFor(path))
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// SafeParse is Parse that never leaves the caller without rules: when data
// is not a valid document it returns DefaultRules together with the
// validation error.
func SafeParse(data []byte) (*types.RulesConfig, error) {
	cfg, err := Parse(data)
	if err != nil {
		return DefaultRules(), err
	}
	return cfg, nil
}

// Validate checks an in-memory config with the same rules applied to
// documents on import.
func Validate(cfg *types.RulesConfig) error {
	if cfg.Version != types.RulesConfigVersion {
		return &types.SchemaError{RuleIndex: -1, Field: "version",
			Message: fmt.Sprintf("expected %d, got %d", types.RulesConfigVersion, cfg.Version)}
	}
	data, err := json.Marshal(normalize(cfg.Rules))
	if err != nil {
		return fmt.Errorf("%w: %v", types.ErrSchemaViolation, err)
	}
	return validateDocument(data)
}

// Marshal encodes rules as an indented versioned JSON document.
func Marshal(rules []types.Rule) ([]byte, error) {
	body, err := json.Marshal(normalize(rules))
	if err != nil {
		return nil, fmt.Errorf("failed to encode rules: %w", err)
	}

	doc, err := sjson.SetBytes([]byte(`{}`), "version", types.RulesConfigVersion)
	if err != nil {
		return nil, fmt.Errorf("failed to build document: %w", err)
	}
	doc, err = sjson.SetRawBytes(doc, "rules", body)
	if err != nil {
		return nil, fmt.Errorf("failed to build document: %w", err)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, doc, "", "  "); err != nil {
		return nil, fmt.Errorf("failed to format document: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// MarshalFormat encodes rules in format f. YAML output keeps the field
// order of the JSON document.
func MarshalFormat(rules []types.Rule, f Format) ([]byte, error) {
	data, err := Marshal(rules)
	if err != nil || f != FormatYAML {
		return data, err
	}

	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("failed to convert document to YAML: %w", err)
	}
	blockStyle(&node)
	return yaml.Marshal(&node)
}

// blockStyle clears the flow and quoting styles yaml.v3 records when
// reading JSON. The encoder still quotes scalars that need it.
func blockStyle(n *yaml.Node) {
	n.Style &^= yaml.FlowStyle | yaml.DoubleQuotedStyle
	for _, c := range n.Content {
		blockStyle(c)
	}
}

// EnsureIDs gives every rule in a JSON document that has no id (or an
// empty one) a freshly generated id. It returns the updated document and
// the number of ids assigned. Documents that are not an object or array
// are returned unchanged for Parse to reject.
func EnsureIDs(data []byte) ([]byte, int, error) {
	doc := gjson.ParseBytes(data)
	prefix := ""
	rules := doc
	if doc.IsObject() {
		prefix = "rules."
		rules = doc.Get("rules")
	}
	if !rules.IsArray() {
		return data, 0, nil
	}

	assigned := 0
	for i, r := range rules.Array() {
		if !r.IsObject() {
			continue
		}
		if id := r.Get("id"); id.Exists() && id.String() != "" {
			continue
		}
		var err error
		data, err = sjson.SetBytes(data, fmt.Sprintf("%s%d.id", prefix, i), string(types.NewRuleID()))
		if err != nil {
			return nil, assigned, fmt.Errorf("failed to assign rule id: %w", err)
		}
		assigned++
	}
	return data, assigned, nil
}

// normalize returns rules with nil slices replaced by their decoded
// defaults so the encoded form passes validation and re-imports to the
// same matching behavior.
func normalize(rules []types.Rule) []types.Rule {
	out := make([]types.Rule, len(rules))
	for i, r := range rules {
		if r.Domains == nil {
			r.Domains = []string{"*"}
		}
		if r.Conditions == nil {
			r.Conditions = []types.LegacyCondition{}
		}
		if r.UnifiedConditions == nil {
			r.UnifiedConditions = []types.UnifiedCondition{}
		}
		out[i] = r
	}
	return out
}
