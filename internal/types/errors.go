package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for sortdl operations.
var (
	// ErrInvalidURL indicates the primary download URL could not be parsed.
	// Fatal for that download only; callers fall back to the platform default.
	ErrInvalidURL = errors.New("invalid download URL")

	// ErrMalformedPattern indicates a regex or glob in a condition failed to
	// compile. Never returned from matching; the condition evaluates to false.
	ErrMalformedPattern = errors.New("malformed pattern")

	// ErrSchemaViolation indicates a persisted rule failed structural validation.
	ErrSchemaViolation = errors.New("rule schema violation")

	// ErrUnknownConflictAction indicates a conflict action outside uniquify|overwrite|prompt.
	ErrUnknownConflictAction = errors.New("unknown conflict action")

	// ErrRuleNotFound indicates a rule id is not present in the store.
	ErrRuleNotFound = errors.New("rule not found")
)

// SchemaError locates a structural problem inside a rules document.
// Unwraps to ErrSchemaViolation.
type SchemaError struct {
	RuleIndex int    // -1 for document-level problems
	RuleID    RuleID // empty when unknown
	Field     string // JSON path of the offending field, relative to the rule
	Message   string
}

func (e *SchemaError) Error() string {
	if e.RuleIndex < 0 {
		return fmt.Sprintf("%s: %s: %s", ErrSchemaViolation, e.Field, e.Message)
	}
	if e.RuleID != "" {
		return fmt.Sprintf("%s: rules[%d] (%s).%s: %s", ErrSchemaViolation, e.RuleIndex, e.RuleID, e.Field, e.Message)
	}
	return fmt.Sprintf("%s: rules[%d].%s: %s", ErrSchemaViolation, e.RuleIndex, e.Field, e.Message)
}

func (e *SchemaError) Unwrap() error {
	return ErrSchemaViolation
}
