// internal/rules/template_test.go
package rules

import (
	"testing"
	"time"
)

func TestExpandTemplate(t *testing.T) {
	ec := mustContext(t, "https://example.com/api/v1/users.json?id=42&name=a/b", "",
		"https://portal.example.org/view?team=ops&id=7")

	tests := []struct {
		template string
		want     string
	}{
		{"{host}/images/{ext}/{yyyy-mm-dd}/{file}", "example.com/images/json/2023-10-01/users.json"},
		{"{yyyy}/{yy}/{mm}/{dd}", "2023/23/10/01"},
		{"{hh}-{min}-{ss}", "09-05-07"},
		{"{protocol}/{basename}.{ext}", "https/users.json"},
		{"{path}", "api_v1_users.json"},
		{"{path[0]}/{path[1]}/{path[5]}", "api/v1/_"},
		{"{query.id}", "42"},
		{"{query.name}", "a_b"},
		{"{query.team}", "ops"},
		{"{query.missing}", "_"},
		{"{referrer.query.id}", "7"},
		{"{referrer.host}", "portal.example.org"},
		{"{host}//{file}", "example.com//users.json"},
		{"{unknown}/{file}", "/users.json"},
		{"static/dir", "static/dir"},
		{"{}", "{}"},
		{"{host", "{host"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.template, func(t *testing.T) {
			if got := ExpandTemplate(tt.template, ec); got != tt.want {
				t.Errorf("ExpandTemplate(%q) = %q, want %q", tt.template, got, tt.want)
			}
		})
	}
}

func TestExpandTemplate_NoReferrer(t *testing.T) {
	ec := mustContext(t, "https://example.com/file.pdf", "", "")

	if got := ExpandTemplate("{referrer.host}/{referrer.query.x}", ec); got != "_/_" {
		t.Errorf("ExpandTemplate(referrer tokens) = %q, want _/_", got)
	}
}

func TestExpandTemplate_SanitizesValues(t *testing.T) {
	ec := mustContext(t, "https://example.com/x", `CON.txt`, "")
	if got := ExpandTemplate("{file}", ec); got != "_CON.txt" {
		t.Errorf("ExpandTemplate(reserved file) = %q, want _CON.txt", got)
	}

	ec = mustContext(t, "https://example.com/x", `a:b*c?.pdf`, "")
	if got := ExpandTemplate("dl/{file}", ec); got != "dl/a_b_c_.pdf" {
		t.Errorf("ExpandTemplate(illegal file) = %q, want dl/a_b_c_.pdf", got)
	}
}

func TestExpandTemplate_YearNotPadded(t *testing.T) {
	ec := mustContext(t, "https://example.com/", "", "", WithNow(time.Date(987, 3, 4, 0, 0, 0, 0, time.UTC)))
	if got := ExpandTemplate("{yyyy}|{yy}|{yyyy-mm-dd}", ec); got != "987|87|987-03-04" {
		t.Errorf("ExpandTemplate(year 987) = %q, want 987|87|987-03-04", got)
	}
}

func TestExpandTemplate_UsesContextZone(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*3600)
	now := time.Date(2025, 12, 31, 23, 30, 0, 0, time.UTC).In(tokyo)
	ec := mustContext(t, "https://example.com/", "", "", WithNow(now))

	if got := ExpandTemplate("{yyyy-mm-dd} {hh}", ec); got != "2026-01-01 08" {
		t.Errorf("ExpandTemplate(JST) = %q, want 2026-01-01 08", got)
	}
}

func TestNormalizePath(t *testing.T) {
	if got := NormalizePath(`a\b\c.txt`); got != "a/b/c.txt" {
		t.Errorf("NormalizePath() = %q, want a/b/c.txt", got)
	}
}
