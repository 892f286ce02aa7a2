package rulesfile

import (
	"regexp"
	"strings"
)

// DefaultExportFilename is used when no export name is given.
const DefaultExportFilename = "rules.json"

var (
	exportIllegalRun = regexp.MustCompile(`[\\/:*?"<>|]+`)
	leadingDots      = regexp.MustCompile(`^\.+`)
	trailingDots     = regexp.MustCompile(`\.+$`)
	hasExtension     = regexp.MustCompile(`\.[A-Za-z0-9]+$`)
)

// ExportFilename turns a user supplied name into a safe file name for an
// exported rules document. Directories are dropped, illegal character runs
// become "_", leading dots become "_" and trailing dots are removed. Names
// without an extension get ".json".
func ExportFilename(name string) string {
	if i := strings.LastIndexAny(name, `\/`); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return DefaultExportFilename
	}

	safe := exportIllegalRun.ReplaceAllString(name, "_")
	safe = leadingDots.ReplaceAllString(safe, "_")
	safe = trailingDots.ReplaceAllString(safe, "")
	if !hasExtension.MatchString(safe) {
		safe += ".json"
	}
	return safe
}
