package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solatis/sortdl/internal/core/config"
	"github.com/solatis/sortdl/internal/rulesfile"
	"github.com/solatis/sortdl/internal/types"
)

const pdfRulesDoc = `[
  {
    "name": "PDFs",
    "enabled": true,
    "domains": ["*.example.com"],
    "conditions": [{"key": "ext", "op": "equals", "value": "pdf"}],
    "actions": {"pathTemplate": "{host}/docs/{file}", "conflict": "overwrite"}
  }
]`

func clearEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		if name, _, _ := strings.Cut(kv, "="); strings.HasPrefix(name, "SORTDL_") {
			t.Setenv(name, "")
			os.Unsetenv(name)
		}
	}
}

// run executes the CLI with args and returns its stdout.
func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(append(args, "--log-level", "error"))
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestCLI_RulesLifecycle(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	dbURL := "sqlite://" + filepath.Join(dir, "sortdl.db")

	_, err := run(t, "rules", "list", "--db-url", dbURL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pending migrations")

	out, err := run(t, "migrate", "up", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Equal(t, "Database is up to date\n", out)

	out, err = run(t, "migrate", "status", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Contains(t, out, "001_initial_schema.sql")
	assert.Contains(t, out, "applied")

	doc := writeFile(t, dir, "rules.json", pdfRulesDoc)
	out, err = run(t, "rules", "import", doc, "--db-url", dbURL)
	require.NoError(t, err)
	assert.Equal(t, "Imported 1 rules (1 ids generated, 0 upgraded)\n", out)

	out, err = run(t, "rules", "list", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Contains(t, out, "PDFs")
	assert.Contains(t, out, "legacy")

	out, err = run(t, "resolve", "https://files.example.com/reports/q1.pdf", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Contains(t, out, "filename: files.example.com/docs/q1.pdf\n")
	assert.Contains(t, out, "conflict: overwrite\n")
	assert.Contains(t, out, "(PDFs)")

	out, err = run(t, "resolve", "https://other.org/a.zip", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Contains(t, out, "filename: a.zip\n")
	assert.Contains(t, out, "conflict: uniquify\n")
	assert.Contains(t, out, "rule:     none")

	out, err = run(t, "rules", "upgrade", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Contains(t, out, ": upgraded\n")
	assert.Contains(t, out, "1 rules upgraded\n")

	out, err = run(t, "rules", "list", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Contains(t, out, "unified")

	out, err = run(t, "rules", "export", filepath.Join(dir, "My:Rules"), "--db-url", dbURL)
	require.NoError(t, err)
	exported := filepath.Join(dir, "My_Rules.json")
	assert.Contains(t, out, exported)

	cfg, err := rulesfile.ParseFile(exported)
	require.NoError(t, err)
	require.Len(t, cfg.Rules, 1)
	assert.Equal(t, "PDFs", cfg.Rules[0].Name)
	assert.True(t, cfg.Rules[0].UsesUnified())

	out, err = run(t, "rules", "export", "--format", "yaml", "--db-url", dbURL)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "version: 1\n"), "yaml export: %q", out)
}

func TestCLI_DefaultConflict(t *testing.T) {
	clearEnv(t)
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "sortdl.db")

	_, err := run(t, "migrate", "up", "--db-url", dbURL)
	require.NoError(t, err)

	out, err := run(t, "rules", "default-conflict", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Equal(t, "uniquify\n", out)

	out, err = run(t, "rules", "default-conflict", "prompt", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Equal(t, "prompt\n", out)

	out, err = run(t, "rules", "default-conflict", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Equal(t, "prompt\n", out)

	_, err = run(t, "rules", "default-conflict", "rename", "--db-url", dbURL)
	assert.Error(t, err)
}

func TestCLI_ImportDryRunAndErrors(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	dbURL := "sqlite://" + filepath.Join(dir, "never-created.db")

	yamlDoc := writeFile(t, dir, "rules.yaml", `version: 1
rules:
  - id: r-img
    name: Images
    enabled: true
    conditions:
      - {key: ext, op: in, value: [png, jpg]}
    actions:
      pathTemplate: "{host}/images/{file}"
`)
	out, err := run(t, "rules", "import", yamlDoc, "--dry-run", "--upgrade", "--db-url", dbURL)
	require.NoError(t, err)
	assert.Equal(t, "Validated 1 rules (0 ids generated, 1 upgraded)\n", out)
	_, statErr := os.Stat(filepath.Join(dir, "never-created.db"))
	assert.True(t, os.IsNotExist(statErr), "dry run opened the database")

	bad := writeFile(t, dir, "bad.json", `[{"id": "x", "name": "", "enabled": true, "actions": {"pathTemplate": ""}}]`)
	_, err = run(t, "rules", "import", bad, "--dry-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule schema violation")

	jsonDoc := writeFile(t, dir, "doc.json", pdfRulesDoc)
	_, err = run(t, "rules", "import", jsonDoc, "--format", "toml", "--dry-run")
	assert.Error(t, err)
}

func TestCLI_ResolveWithRulesFile(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	rulesPath := writeFile(t, dir, "rules.json", pdfRulesDoc)

	out, err := run(t, "resolve", "https://www.example.com/get?id=1",
		"--filename", "Manual.PDF", "--rules", rulesPath, "-o", "json")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, true, got["matched"])
	assert.Equal(t, "www.example.com/docs/Manual.PDF", got["filename"])
	assert.Equal(t, "overwrite", got["conflict"])
	assert.Equal(t, "PDFs", got["rule_name"])

	out, err = run(t, "resolve", "https://other.org/a.zip", "--rules", rulesPath,
		"--default-conflict", "prompt", "-o", "json")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, false, got["matched"])
	assert.Equal(t, "prompt", got["conflict"])

	yamlPath := writeFile(t, dir, "rules.yaml", `- name: Archives
  enabled: true
  conditions:
    - {key: ext, op: in, value: [zip, gz]}
  actions:
    pathTemplate: "archives/{file}"
`)
	out, err = run(t, "resolve", "https://other.org/a.zip", "--rules", yamlPath)
	require.NoError(t, err)
	assert.Contains(t, out, "filename: archives/a.zip\n")
	assert.Contains(t, out, "(Archives)")

	_, err = run(t, "resolve", "not a url", "--rules", rulesPath)
	assert.Error(t, err)

	_, err = run(t, "resolve", "https://example.com/a", "--rules", rulesPath, "-o", "xml")
	assert.Error(t, err)
}

func TestCLI_Rename(t *testing.T) {
	clearEnv(t)

	out, err := run(t, "rename", "{year}-{basename}", "--name", "Report.PDF", "--date", "2026-01-30T14:35:22Z")
	require.NoError(t, err)
	assert.Equal(t, "2026-Report.pdf\n", out)

	out, err = run(t, "rename", "{hostname}/{original_name}", "--name", "a.zip",
		"--domain", "cdn.files.example.com:8080", "--date", "2026-01-30T14:35:22Z")
	require.NoError(t, err)
	assert.Equal(t, "example.com/a.zip\n", out)

	_, err = run(t, "rename", "{year}", "--name", "a.zip", "--date", "yesterday")
	assert.Error(t, err)

	_, err = run(t, "rename", "{year}")
	assert.Error(t, err, "--name is required")
}

func TestCLI_APIKey(t *testing.T) {
	clearEnv(t)

	out, err := run(t, "api-key")
	require.NoError(t, err)
	key := strings.TrimSpace(out)
	assert.True(t, strings.HasPrefix(key, "sdl-v1-"))
	assert.Len(t, key, 71)
}

func TestExportPath(t *testing.T) {
	tests := map[string]string{
		"rules":             "rules.json",
		"backup/My:Rules":   filepath.Join("backup", "My_Rules.json"),
		"backup/rules.yaml": filepath.Join("backup", "rules.yaml"),
		"backup/":           filepath.Join("backup", "rules.json"),
		"/tmp/..hidden.":    "/tmp/_hidden.json",
	}
	for in, want := range tests {
		assert.Equal(t, want, exportPath(in), "exportPath(%q)", in)
	}
}

func TestSeedStore(t *testing.T) {
	clearEnv(t)
	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "sortdl.db")
	_, err := run(t, "migrate", "up", "--db-url", dbURL)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	cfg.Database.URL = dbURL
	cfg.Downloads.DefaultConflict = "overwrite"
	logger, _ := test.NewNullLogger()
	e := &env{cfg: cfg, log: logrus.NewEntry(logger)}
	require.NoError(t, e.openDB(true))
	defer e.Close()

	ruleStore, settingsStore, err := e.stores()
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, seedStore(ctx, e, ruleStore, settingsStore))
	n, err := ruleStore.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(rulesfile.DefaultRules().Rules), n)

	c, ok, err := settingsStore.DefaultConflict(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, types.ConflictOverwrite, c)

	// A store the user emptied on purpose stays empty.
	require.NoError(t, ruleStore.ReplaceAll(ctx, nil))
	require.NoError(t, seedStore(ctx, e, ruleStore, settingsStore))
	n, err = ruleStore.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
