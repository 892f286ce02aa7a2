// Package rename generates download filenames from user rename patterns.
//
// It is separate from path templating in internal/rules: the token set is
// different ({year}, {original_name}, {hostname}...), unknown tokens are
// kept literally rather than dropped, and sanitization uses the filename
// policy instead of the path-segment policy.
package rename

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/solatis/sortdl/internal/sanitize"
)

// FileMetadata describes the file being renamed. Built per download and
// consumed immediately.
type FileMetadata struct {
	Date         time.Time
	Domain       string // full host, possibly with port ("files.cdn.example.com:8080")
	OriginalName string // filename including extension
}

// Variables lists the tokens understood by GenerateFilename.
var Variables = []string{
	"year", "month", "day", "hour", "minute", "second",
	"original_name", "basename", "ext",
	"domain", "hostname",
}

var variablePattern = regexp.MustCompile(`\{([^}]+)\}`)

// GenerateFilename expands pattern against meta.
//
// A blank pattern returns meta.OriginalName untouched. Otherwise tokens are
// substituted, the result is sanitized as a "/"-separated path and, if the
// original name had an extension the result lacks (compared
// case-insensitively), ".<ext>" is appended. The appended extension is
// sanitized like any other filename segment.
func GenerateFilename(meta FileMetadata, pattern string) string {
	if strings.TrimSpace(pattern) == "" {
		return meta.OriginalName
	}

	base, rawExt := sanitize.SplitExt(meta.OriginalName)
	ext := sanitize.FilenameSegment(strings.ToLower(rawExt))

	result := variablePattern.ReplaceAllStringFunc(pattern, func(m string) string {
		if v, ok := resolveVariable(m[1:len(m)-1], meta, base, ext); ok {
			return v
		}
		return m
	})

	result = sanitize.Path(result)

	if ext != "" && !hasExtension(result, ext) {
		result += "." + ext
	}
	return result
}

func resolveVariable(name string, meta FileMetadata, base, ext string) (string, bool) {
	d := meta.Date
	switch name {
	case "year":
		return strconv.Itoa(d.Year()), true
	case "month":
		return pad2(int(d.Month())), true
	case "day":
		return pad2(d.Day()), true
	case "hour":
		return pad2(d.Hour()), true
	case "minute":
		return pad2(d.Minute()), true
	case "second":
		return pad2(d.Second()), true

	case "original_name":
		return sanitize.Filename(meta.OriginalName), true
	case "basename":
		return sanitize.FilenameSegment(base), true
	case "ext":
		return ext, true

	case "domain":
		return sanitize.FilenameSegment(meta.Domain), true
	case "hostname":
		return sanitize.FilenameSegment(Hostname(meta.Domain)), true
	}
	return "", false
}

// Hostname strips any port from domain and keeps its last two labels.
// Domains with two labels or fewer are returned without the port.
func Hostname(domain string) string {
	host, _, _ := strings.Cut(domain, ":")
	labels := strings.Split(host, ".")
	if len(labels) <= 2 {
		return host
	}
	return strings.Join(labels[len(labels)-2:], ".")
}

// hasExtension checks the extension of the final path component.
func hasExtension(p, ext string) bool {
	last := p[strings.LastIndexByte(p, '/')+1:]
	return strings.EqualFold(sanitize.Ext(last), ext)
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
