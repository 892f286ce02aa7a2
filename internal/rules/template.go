// internal/rules/template.go
package rules

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/solatis/sortdl/internal/sanitize"
)

/*
 * Path template expansion.
 *
 * Replaces every {token} in a path template with a value from the
 * evaluation context. Braces do not nest; "{a{b}" resolves the token "a{b".
 *
 * Tokens:
 *   date      yyyy yy mm dd hh min ss yyyy-mm-dd (from ec.Now, in its zone)
 *   url       host path file basename ext protocol
 *   query     query.<name> (falls back to the referrer query)
 *   referrer  referrer.query.<name> referrer.host
 *   segments  path[<n>] (0-indexed, "" when out of range)
 *
 * Every resolved value goes through sanitize.Segment, which also means an
 * empty value becomes "_". Unknown tokens expand to "" without sanitizing.
 * Rename patterns (internal/rename) keep unknown tokens literally instead;
 * the two behaviours are deliberately separate.
 *
 * Separators written in the template itself are kept as-is, so "{host}//x"
 * keeps its double slash. Callers normalize "\" to "/" via NormalizePath
 * before using the result as a destination.
 */

var tokenPattern = regexp.MustCompile(`\{([^}]+)\}`)

// ExpandTemplate expands {token} placeholders in template. Never fails.
func ExpandTemplate(template string, ec *EvaluationContext) string {
	return tokenPattern.ReplaceAllStringFunc(template, func(m string) string {
		token := m[1 : len(m)-1]
		v, ok := resolveToken(token, ec)
		if !ok {
			return ""
		}
		return sanitize.Segment(v)
	})
}

// NormalizePath converts backslashes to forward slashes.
func NormalizePath(p string) string {
	return strings.ReplaceAll(p, `\`, "/")
}

// Tokens lists the fixed template tokens, for help output and previews.
var Tokens = []string{
	"yyyy", "yy", "mm", "dd", "hh", "min", "ss", "yyyy-mm-dd",
	"host", "path", "file", "basename", "ext", "protocol",
	"query.<name>", "referrer.query.<name>", "referrer.host", "path[<n>]",
}

func resolveToken(token string, ec *EvaluationContext) (string, bool) {
	now := ec.Now
	switch token {
	case "yyyy":
		return strconv.Itoa(now.Year()), true
	case "yy":
		y := strconv.Itoa(now.Year())
		return y[max(0, len(y)-2):], true
	case "mm":
		return pad2(int(now.Month())), true
	case "dd":
		return pad2(now.Day()), true
	case "hh":
		return pad2(now.Hour()), true
	case "min":
		return pad2(now.Minute()), true
	case "ss":
		return pad2(now.Second()), true
	case "yyyy-mm-dd":
		return fmt.Sprintf("%d-%s-%s", now.Year(), pad2(int(now.Month())), pad2(now.Day())), true

	case "host":
		return ec.Host, true
	case "path":
		return strings.Join(ec.PathSegments, "/"), true
	case "file":
		return ec.File, true
	case "basename":
		return ec.Basename, true
	case "ext":
		return ec.Ext, true
	case "protocol":
		return ec.Protocol, true
	case "referrer.host":
		return ec.ReferrerHost, true
	}

	if name, ok := strings.CutPrefix(token, "referrer.query."); ok {
		return ec.ReferrerQuery[name], true
	}
	if name, ok := strings.CutPrefix(token, "query."); ok {
		v, _ := ec.QueryValue(name)
		return v, true
	}
	if n, ok := parseSegmentIndex(token); ok {
		return ec.Segment(n), true
	}
	return "", false
}

func pad2(n int) string {
	if n < 10 {
		return "0" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}
