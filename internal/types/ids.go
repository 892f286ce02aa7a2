package types

import (
	"time"

	"github.com/google/uuid"
)

// NewRuleID generates a UUIDv7 rule identifier.
// Time-ordered IDs keep newly created rules clustered in the store index.
// Panics on clock regression (uuid.Must); acceptable for ID generation.
func NewRuleID() RuleID {
	return RuleID(uuid.Must(uuid.NewV7()).String())
}

// NewDownloadID generates a UUIDv7 correlation id for one suggestion pass.
func NewDownloadID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// IsGeneratedRuleID reports whether id looks like a sortdl-generated id.
// Extension-assigned ids ("r-docx") are valid rule ids too; this only tells
// the two apart.
func IsGeneratedRuleID(id RuleID) bool {
	u, err := uuid.Parse(string(id))
	if err != nil {
		return false
	}
	return u.Version() == 7
}

// RuleIDTime extracts the creation timestamp embedded in a generated rule id.
// Returns zero time for ids that are not UUIDv7; caller should check IsZero().
func RuleIDTime(id RuleID) time.Time {
	u, err := uuid.Parse(string(id))
	if err != nil || u.Version() != 7 {
		return time.Time{}
	}
	sec, nsec := u.Time().UnixTime()
	return time.Unix(sec, nsec)
}
