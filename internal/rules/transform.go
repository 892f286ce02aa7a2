// internal/rules/transform.go
package rules

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/solatis/sortdl/internal/sanitize"
	"github.com/solatis/sortdl/internal/types"
)

// ApplyTransforms runs a rule's transforms, in order, over a "/"-separated
// destination path. Extension and sanitize transforms touch only the final
// component; normalize-nfc applies to the whole path. Unknown transforms
// are skipped.
func ApplyTransforms(p string, transforms []types.Transform) string {
	for _, t := range transforms {
		switch t {
		case types.TransformLowerExt:
			p = mapFilename(p, func(name string) string { return mapExt(name, strings.ToLower) })
		case types.TransformUpperExt:
			p = mapFilename(p, func(name string) string { return mapExt(name, strings.ToUpper) })
		case types.TransformSanitizeFile:
			p = mapFilename(p, sanitize.Filename)
		case types.TransformNormalizeNFC:
			p = norm.NFC.String(p)
		}
	}
	return p
}

// ReplaceFilename swaps the final component of p for name. name may itself
// contain "/" separators.
func ReplaceFilename(p, name string) string {
	return mapFilename(p, func(string) string { return name })
}

func mapFilename(p string, fn func(string) string) string {
	i := strings.LastIndexByte(p, '/')
	return p[:i+1] + fn(p[i+1:])
}

func mapExt(name string, fn func(string) string) string {
	base, ext := sanitize.SplitExt(name)
	if ext == "" {
		return name
	}
	return base + "." + fn(ext)
}
