// internal/sanitize/sanitize.go
package sanitize

import (
	"regexp"
	"strings"
)

/*
 * Filename and path sanitization.
 *
 * Two independent policies live here and must not be merged:
 *
 *   Segment: path-segment policy used by the template expander. Illegal
 *   character runs collapse to one "_", dot-only and empty segments become
 *   "_", trailing dots and blanks are stripped, Windows device names get a
 *   "_" prefix.
 *
 *   FilenameSegment: filename policy used by smart rename. Each illegal
 *   character becomes "_" one-for-one, whitespace runs collapse to a single
 *   space, the result is trimmed. Empty stays empty.
 *
 * Path and Filename build on FilenameSegment. Path keeps "/" separators
 * (after turning "\" into "/") and cleans every component on its own.
 * Filename cleans only the basename so blanks before the extension go away.
 */

var (
	segmentIllegalRun = regexp.MustCompile(`[\\/:*?"<>|]+`)
	dotsOnly          = regexp.MustCompile(`^\.+$`)
	trailingDots      = regexp.MustCompile(`\.+$`)
	trailingBlanks    = regexp.MustCompile(`[ \t]+$`)
	// Matches the same set as an ECMAScript \s, which includes Unicode spaces.
	whitespaceRun = regexp.MustCompile(`[\s\v\p{Zs}\x{2028}\x{2029}\x{FEFF}]+`)

	filenameIllegal = regexp.MustCompile(`[<>:"/\\|?*]`)
)

// reserved holds Windows device names that cannot be used as a file stem.
var reserved = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// Segment sanitizes one path segment. The result is never empty.
func Segment(name string) string {
	s := segmentIllegalRun.ReplaceAllString(name, "_")
	s = dotsOnly.ReplaceAllString(s, "_")
	s = trailingDots.ReplaceAllString(s, "")
	s = trailingBlanks.ReplaceAllString(s, "")
	s = whitespaceRun.ReplaceAllString(s, " ")
	s = strings.TrimSpace(s)

	if s == "" {
		s = "_"
	}
	if IsReserved(s) {
		s = "_" + s
	}
	return s
}

// IsReserved reports whether the part of name before its first dot is a
// Windows device name (case-insensitive).
func IsReserved(name string) bool {
	stem, _, _ := strings.Cut(name, ".")
	_, ok := reserved[strings.ToUpper(stem)]
	return ok
}

// FilenameSegment replaces each illegal filename character with "_",
// collapses whitespace runs and trims.
func FilenameSegment(segment string) string {
	s := filenameIllegal.ReplaceAllString(segment, "_")
	s = whitespaceRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Path normalizes backslashes to "/" and sanitizes every component with
// FilenameSegment. Separators (including empty components) are preserved.
func Path(p string) string {
	parts := strings.Split(strings.ReplaceAll(p, `\`, "/"), "/")
	for i, part := range parts {
		parts[i] = FilenameSegment(part)
	}
	return strings.Join(parts, "/")
}

// Filename sanitizes the basename of name and reattaches its extension.
// The extension keeps its original casing.
func Filename(name string) string {
	base, ext := SplitExt(name)
	base = FilenameSegment(base)
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// SplitExt splits name on its last dot. A leading dot (".bashrc") or a
// trailing dot ("file.") yields no extension. Casing is left untouched.
func SplitExt(name string) (base, ext string) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return name, ""
	}
	if i == len(name)-1 {
		return name[:i], ""
	}
	return name[:i], name[i+1:]
}

// Ext returns the lowercased extension of name per SplitExt.
func Ext(name string) string {
	_, ext := SplitExt(name)
	return strings.ToLower(ext)
}
