// internal/rules/glob_test.go
package rules

import (
	"errors"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/solatis/sortdl/internal/types"
)

func TestCompileGlob(t *testing.T) {
	tests := []struct {
		pattern string
		input   string
		want    bool
	}{
		{"*", "", true},
		{"*", "anything at all", true},
		{"*.example.com", "sub.example.com", true},
		{"*.example.com", "a.b.example.com", true},
		{"*.example.com", "example.com", false},
		{"example.com", "EXAMPLE.COM", true},
		{"example.com", "example.com.evil", false},
		{"example.com", "exampleXcom", false},
		{"file(1).pdf", "file(1).pdf", true},
		{"file(1).pdf", "file[1].pdf", false},
		{"a+b?c", "a+b?c", true},
		{"a+b?c", "aab c", false},
		{"report-*.pdf", "report-2025.PDF", true},
		{"*report*", "annual report final", true},
		{"", "", true},
		{"", "x", false},
		{"$^{}|\\", "$^{}|\\", true},
	}

	for _, tt := range tests {
		re, err := CompileGlob(tt.pattern)
		if err != nil {
			t.Fatalf("CompileGlob(%q) error = %v, want nil", tt.pattern, err)
		}
		if got := re.MatchString(tt.input); got != tt.want {
			t.Errorf("CompileGlob(%q).MatchString(%q) = %v, want %v", tt.pattern, tt.input, got, tt.want)
		}
		if got := GlobMatch(tt.pattern, tt.input); got != tt.want {
			t.Errorf("GlobMatch(%q, %q) = %v, want %v", tt.pattern, tt.input, got, tt.want)
		}
	}
}

func TestCompileRegex(t *testing.T) {
	re, err := CompileRegex(`^report-(\d{4})\.pdf$`, false)
	if err != nil {
		t.Fatalf("CompileRegex() error = %v, want nil", err)
	}
	if !regexMatch(re, "REPORT-2025.pdf") {
		t.Errorf("case-insensitive regex did not match")
	}

	re, err = CompileRegex(`^report`, true)
	if err != nil {
		t.Fatalf("CompileRegex() error = %v, want nil", err)
	}
	if regexMatch(re, "REPORT") {
		t.Errorf("case-sensitive regex matched different case")
	}

	// ECMAScript features unavailable in RE2.
	re, err = CompileRegex(`^(?!tmp).*\.zip$`, false)
	if err != nil {
		t.Fatalf("CompileRegex(lookahead) error = %v, want nil", err)
	}
	if regexMatch(re, "tmp-archive.zip") || !regexMatch(re, "archive.zip") {
		t.Errorf("negative lookahead not honoured")
	}

	// ECMAScript \d is ASCII only.
	re, err = CompileRegex(`^\d+$`, true)
	if err != nil {
		t.Fatalf("CompileRegex(digits) error = %v, want nil", err)
	}
	if !regexMatch(re, "2026") || regexMatch(re, "\u0663\u0664") {
		t.Errorf("digit class is not ECMAScript")
	}

	if _, err := CompileRegex(`([unclosed`, false); !errors.Is(err, types.ErrMalformedPattern) {
		t.Errorf("CompileRegex(bad) error = %v, want ErrMalformedPattern", err)
	}
	if regexMatch(nil, "x") {
		t.Errorf("regexMatch(nil) = true, want false")
	}
}

func TestGlob_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 500
	properties := gopter.NewProperties(parameters)

	properties.Property("star matches every string", prop.ForAll(
		func(s string) bool {
			return GlobMatch("*", s)
		},
		gen.AnyString(),
	))

	properties.Property("a pattern without wildcards matches itself", prop.ForAll(
		func(s string) bool {
			return GlobMatch(s, s)
		},
		gen.AnyString().SuchThat(func(s string) bool { return !strings.ContainsRune(s, '*') }),
	))

	properties.Property("prefix star matches any prefix", prop.ForAll(
		func(prefix, rest string) bool {
			return GlobMatch("*"+rest, prefix+rest)
		},
		gen.AlphaString(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}
