// internal/rules/glob.go
package rules

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/dlclark/regexp2"

	"github.com/solatis/sortdl/internal/types"
)

/*
 * Pattern compilation: globs and user regexes.
 *
 * Globs support a single wildcard, "*", which matches any run of characters
 * (including none). Every other character is literal. Matching is always
 * full-string and case-insensitive. The lone pattern "*" matches every
 * string, the empty string included.
 *
 * User regexes ("regex" match type, legacy "matches" op) are compiled with
 * regexp2 in ECMAScript mode so patterns written for the browser extension
 * keep their meaning (lookarounds, backreferences). Each match is bounded
 * by MatchTimeout; a timeout counts as no match.
 *
 * Compiled patterns are cached by source text. Rule sets are small and
 * patterns repeat across downloads, so the cache is bounded and simply
 * cleared when full.
 */

// MatchTimeout bounds a single user-regex match.
const MatchTimeout = 100 * time.Millisecond

const maxCachedPatterns = 1024

// CompileGlob compiles a "*"-only glob into an anchored, case-insensitive
// regular expression. Errors wrap ErrMalformedPattern.
func CompileGlob(pattern string) (*regexp.Regexp, error) {
	if pattern == "*" {
		return matchAnything, nil
	}
	parts := strings.Split(pattern, "*")
	for i, part := range parts {
		parts[i] = regexp.QuoteMeta(part)
	}
	re, err := regexp.Compile("(?is)^" + strings.Join(parts, ".*") + "$")
	if err != nil {
		return nil, fmt.Errorf("%w: glob %q: %v", types.ErrMalformedPattern, pattern, err)
	}
	return re, nil
}

var matchAnything = regexp.MustCompile(`(?s)^.*$`)

// GlobMatch reports whether s matches the glob pattern.
// A pattern that fails to compile matches nothing.
func GlobMatch(pattern, s string) bool {
	re, err := cachedGlob(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(s)
}

// CompileRegex compiles a user regex with ECMAScript semantics.
// Errors wrap ErrMalformedPattern.
func CompileRegex(pattern string, caseSensitive bool) (*regexp2.Regexp, error) {
	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	if !caseSensitive {
		opts |= regexp2.IgnoreCase
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: regex %q: %v", types.ErrMalformedPattern, pattern, err)
	}
	re.MatchTimeout = MatchTimeout
	return re, nil
}

// regexMatch runs re against s. Timeouts and nil patterns report false.
func regexMatch(re *regexp2.Regexp, s string) bool {
	if re == nil {
		return false
	}
	ok, err := re.MatchString(s)
	return err == nil && ok
}

type patternKey struct {
	kind          byte // 'g' glob, 'r' regex
	caseSensitive bool
	source        string
}

type patternEntry struct {
	glob  *regexp.Regexp
	regex *regexp2.Regexp
	err   error
}

var patterns = struct {
	sync.Mutex
	m map[patternKey]patternEntry
}{m: make(map[patternKey]patternEntry)}

func lookupPattern(key patternKey, compile func() patternEntry) patternEntry {
	patterns.Lock()
	defer patterns.Unlock()

	if e, ok := patterns.m[key]; ok {
		return e
	}
	if len(patterns.m) >= maxCachedPatterns {
		patterns.m = make(map[patternKey]patternEntry)
	}
	e := compile()
	patterns.m[key] = e
	return e
}

func cachedGlob(pattern string) (*regexp.Regexp, error) {
	e := lookupPattern(patternKey{kind: 'g', source: pattern}, func() patternEntry {
		re, err := CompileGlob(pattern)
		return patternEntry{glob: re, err: err}
	})
	return e.glob, e.err
}

func cachedRegex(pattern string, caseSensitive bool) (*regexp2.Regexp, error) {
	e := lookupPattern(patternKey{kind: 'r', caseSensitive: caseSensitive, source: pattern}, func() patternEntry {
		re, err := CompileRegex(pattern, caseSensitive)
		return patternEntry{regex: re, err: err}
	})
	return e.regex, e.err
}
