// internal/rules/context.go
package rules

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/solatis/sortdl/internal/types"
)

/*
 * Evaluation context construction.
 *
 * BuildContext turns a download URL, an optional filename hint and an
 * optional referrer into the normalized view that matching and templating
 * read from. It is built once per download; Now is captured here and never
 * re-read, so date tokens agree with the moment conditions were checked.
 *
 * URL handling follows browser URL semantics where they differ from
 * net/url:
 *   - scheme and host are lowercased
 *   - the port is dropped when it is the scheme default (http 80, https 443...)
 *   - an empty hierarchical path becomes "/" and dot segments are removed
 *   - query parsing is form-style: "+" is a space, the last value wins,
 *     bad escapes are kept literally
 *
 * Only the primary URL can fail (ErrInvalidURL). A referrer that does not
 * parse is dropped silently and its fields stay empty.
 */

// DefaultFilename is used when neither a hint nor the URL yields a name.
const DefaultFilename = "download"

// defaultPorts lists ports that browsers omit from URL.port.
var defaultPorts = map[string]string{
	"http":  "80",
	"https": "443",
	"ws":    "80",
	"wss":   "443",
	"ftp":   "21",
}

// hostRequired lists schemes whose URLs must carry a host.
var hostRequired = map[string]bool{
	"http":  true,
	"https": true,
	"ws":    true,
	"wss":   true,
	"ftp":   true,
}

// EvaluationContext is the derived view of one download event.
// Empty strings stand in for absent optional values (Port, Hash, MIME,
// ReferrerHost). ReferrerQuery is nil when there is no usable referrer.
type EvaluationContext struct {
	URL          string
	Protocol     string
	Host         string
	Port         string
	Path         string
	PathSegments []string
	Query        map[string]string
	QueryKeys    []string // first-appearance order of Query keys
	Hash         string

	File     string
	Basename string
	Ext      string

	Now  time.Time
	MIME string

	ReferrerHost  string
	ReferrerQuery map[string]string
}

// ContextOption customizes BuildContext.
type ContextOption func(*contextOptions)

type contextOptions struct {
	now  func() time.Time
	mime string
}

// WithNow freezes the evaluation clock. Tests use this for deterministic
// date tokens.
func WithNow(t time.Time) ContextOption {
	return func(o *contextOptions) {
		o.now = func() time.Time { return t }
	}
}

// WithClock sets the clock read once during construction.
func WithClock(clock func() time.Time) ContextOption {
	return func(o *contextOptions) {
		if clock != nil {
			o.now = clock
		}
	}
}

// WithMIME attaches the download's MIME type.
func WithMIME(mime string) ContextOption {
	return func(o *contextOptions) {
		o.mime = mime
	}
}

// BuildContext parses rawURL (plus optional filenameHint and referrer) into
// an EvaluationContext. Returns ErrInvalidURL if rawURL is not an absolute URL.
func BuildContext(rawURL, filenameHint, referrer string, opts ...ContextOption) (*EvaluationContext, error) {
	o := contextOptions{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	u, err := parseAbsoluteURL(rawURL)
	if err != nil {
		return nil, err
	}

	p := urlPath(u)
	query, keys := parseQuery(u.RawQuery)

	ec := &EvaluationContext{
		URL:          rawURL,
		Protocol:     u.Scheme,
		Host:         strings.ToLower(u.Hostname()),
		Port:         effectivePort(u),
		Path:         p,
		PathSegments: splitSegments(p),
		Query:        query,
		QueryKeys:    keys,
		Hash:         u.EscapedFragment(),
		Now:          o.now(),
		MIME:         o.mime,
	}

	ec.File = inferFilename(filenameHint, p)
	ec.Basename, ec.Ext = splitFilename(ec.File)

	if referrer != "" {
		if ref, err := parseAbsoluteURL(referrer); err == nil {
			ec.ReferrerHost = strings.ToLower(ref.Hostname())
			ec.ReferrerQuery, _ = parseQuery(ref.RawQuery)
		}
	}

	return ec, nil
}

// QueryValue returns the primary query value for name, falling back to the
// referrer query. Reports false when neither has it.
func (ec *EvaluationContext) QueryValue(name string) (string, bool) {
	if v, ok := ec.Query[name]; ok {
		return v, true
	}
	if v, ok := ec.ReferrerQuery[name]; ok {
		return v, true
	}
	return "", false
}

// Segment returns the n-th (0-indexed) path segment, or "" if out of range.
func (ec *EvaluationContext) Segment(n int) string {
	if n < 0 || n >= len(ec.PathSegments) {
		return ""
	}
	return ec.PathSegments[n]
}

func parseAbsoluteURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidURL, err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("%w: %q is not absolute", types.ErrInvalidURL, raw)
	}
	if hostRequired[u.Scheme] && u.Hostname() == "" {
		return nil, fmt.Errorf("%w: %q has no host", types.ErrInvalidURL, raw)
	}
	return u, nil
}

// urlPath returns the escaped path with dot segments removed. Percent
// escapes are kept, so an encoded slash stays inside its segment. Opaque
// URLs (blob:, data:) report their opaque part as the path.
func urlPath(u *url.URL) string {
	if u.Opaque != "" {
		return u.Opaque
	}
	if u.Path == "" {
		if u.Host != "" || hostRequired[u.Scheme] {
			return "/"
		}
		return ""
	}
	// Resolving an empty reference removes "." and ".." segments.
	return u.ResolveReference(&url.URL{}).EscapedPath()
}

func effectivePort(u *url.URL) string {
	port := u.Port()
	if port == "" || defaultPorts[u.Scheme] == port {
		return ""
	}
	return port
}

func splitSegments(p string) []string {
	parts := strings.Split(p, "/")
	segments := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

// inferFilename prefers the hint, then the last path segment if it contains
// a dot, then DefaultFilename.
func inferFilename(hint, p string) string {
	if hint != "" {
		return hint
	}
	last := p[strings.LastIndexByte(p, '/')+1:]
	if last == "" || !strings.Contains(last, ".") {
		return DefaultFilename
	}
	return last
}

// splitFilename splits on the last dot when a non-empty extension follows.
// The extension is lowercased; the basename keeps its casing.
func splitFilename(file string) (basename, ext string) {
	i := strings.LastIndexByte(file, '.')
	if i < 0 || i == len(file)-1 {
		return file, ""
	}
	return file[:i], strings.ToLower(file[i+1:])
}

// parseQuery decodes an application/x-www-form-urlencoded string.
// Later values overwrite earlier ones; keys keeps first-appearance order.
func parseQuery(raw string) (map[string]string, []string) {
	values := make(map[string]string)
	var keys []string
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		k, v = formUnescape(k), formUnescape(v)
		if _, seen := values[k]; !seen {
			keys = append(keys, k)
		}
		values[k] = v
	}
	return values, keys
}

// formUnescape decodes '+' and every well-formed %XX escape. Malformed
// escapes are kept as written.
func formUnescape(s string) string {
	if !strings.ContainsAny(s, "%+") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '+':
			b.WriteByte(' ')
		case c == '%' && i+2 < len(s) && isHex(s[i+1]) && isHex(s[i+2]):
			b.WriteByte(unhex(s[i+1])<<4 | unhex(s[i+2]))
			i += 2
		default:
			b.WriteByte(c)
		}
	}
	return strings.ToValidUTF8(b.String(), "\uFFFD")
}

func isHex(c byte) bool {
	return '0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F'
}

func unhex(c byte) byte {
	switch {
	case c <= '9':
		return c - '0'
	case c <= 'F':
		return c - 'A' + 10
	default:
		return c - 'a' + 10
	}
}
