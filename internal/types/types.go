// Package types provides domain models shared across sortdl components.
//
// Zero-dependency design: rules.go and errors.go use only encoding/json so the
// persisted rule shape can be decoded anywhere (store, import, gRPC) without
// pulling in the matching engine. ID utilities in ids.go import uuid but are
// isolated in their own file.
//
// The JSON shape of Rule is the de facto interchange format between the
// browser extension, the rule store and rules documents on disk.
package types

// RuleID is a rule identifier. Imported rules keep whatever id the extension
// assigned; rules created by sortdl get a UUIDv7 (see ids.go).
type RuleID string

// RulesConfigVersion is the only rules document version understood.
const RulesConfigVersion = 1

// RulesConfig is the versioned rules document used for import/export.
type RulesConfig struct {
	Version int    `json:"version"`
	Rules   []Rule `json:"rules"`
}

// Limits applied during structural validation of rules documents.
const (
	// MaxRules bounds a single rules document.
	// Browser sync storage caps out well below this.
	MaxRules = 1000

	// MaxConditionsPerRule bounds AND chains so a scan over the rule list
	// stays short for every download.
	MaxConditionsPerRule = 64

	// MaxSetValues bounds in/not_in membership lists.
	MaxSetValues = 256
)
