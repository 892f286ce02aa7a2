// internal/rules/engine_test.go
package rules

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"github.com/solatis/sortdl/internal/types"
)

func newTestEngine(t *testing.T, rules ...types.Rule) (*Engine, *test.Hook) {
	t.Helper()
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	e := NewEngine(
		WithLogger(logrus.NewEntry(logger)),
		WithEngineClock(func() time.Time { return time.Date(2026, 1, 30, 14, 35, 22, 0, time.UTC) }),
	)
	e.Update(rules)
	return e, hook
}

func imagesRule() types.Rule {
	return types.Rule{
		ID: "r-images", Name: "Images", Enabled: true,
		UnifiedConditions: []types.UnifiedCondition{
			unified(types.ConditionExtension, types.MatchIn, list("png", "jpg")),
		},
		Actions: types.RuleActions{
			PathTemplate: "{host}/images/{ext}/{yyyy-mm-dd}/{file}",
			Conflict:     types.ConflictOverwrite,
		},
	}
}

func TestEngine_SuggestMatched(t *testing.T) {
	e, _ := newTestEngine(t, imagesRule())

	s, err := e.Suggest(DownloadRequest{URL: "https://cdn.example.com/a/photo.png"})
	if err != nil {
		t.Fatalf("Suggest() error = %v, want nil", err)
	}
	if !s.Matched || s.RuleID != "r-images" || s.RuleName != "Images" {
		t.Errorf("Suggest() = %+v, want match on r-images", s)
	}
	if s.Filename != "cdn.example.com/images/png/2026-01-30/photo.png" {
		t.Errorf("Filename = %q", s.Filename)
	}
	if s.Conflict != types.ConflictOverwrite {
		t.Errorf("Conflict = %q, want overwrite", s.Conflict)
	}
	if s.DownloadID == "" {
		t.Errorf("DownloadID is empty")
	}
}

func TestEngine_SuggestPrefersFinalURL(t *testing.T) {
	e, _ := newTestEngine(t, imagesRule())

	s, err := e.Suggest(DownloadRequest{
		URL:      "https://example.com/redirect?id=1",
		FinalURL: "https://files.example.net/img/cat.jpg",
	})
	if err != nil {
		t.Fatalf("Suggest() error = %v, want nil", err)
	}
	if !s.Matched || s.Filename != "files.example.net/images/jpg/2026-01-30/cat.jpg" {
		t.Errorf("Suggest() = %+v, want match against the final URL", s)
	}
}

func TestEngine_SuggestNoMatch(t *testing.T) {
	e, _ := newTestEngine(t, imagesRule())
	if err := e.SetDefaultConflict(types.ConflictPrompt); err != nil {
		t.Fatalf("SetDefaultConflict() error = %v", err)
	}

	s, err := e.Suggest(DownloadRequest{URL: "https://example.com/doc.pdf", Filename: "Doc.PDF"})
	if err != nil {
		t.Fatalf("Suggest() error = %v, want nil", err)
	}
	if s.Matched {
		t.Errorf("Matched = true, want false")
	}
	if s.Filename != "Doc.PDF" {
		t.Errorf("Filename = %q, want Doc.PDF", s.Filename)
	}
	if s.Conflict != types.ConflictPrompt {
		t.Errorf("Conflict = %q, want prompt", s.Conflict)
	}
}

func TestEngine_SuggestDefaultConflict(t *testing.T) {
	rule := imagesRule()
	rule.Actions.Conflict = ""
	e, _ := newTestEngine(t, rule)

	s, _ := e.Suggest(DownloadRequest{URL: "https://example.com/a.png"})
	if s.Conflict != types.ConflictUniquify {
		t.Errorf("Conflict = %q, want uniquify", s.Conflict)
	}
}

func TestEngine_SuggestInvalidURL(t *testing.T) {
	e, hook := newTestEngine(t, imagesRule())

	_, err := e.Suggest(DownloadRequest{URL: "::not a url"})
	if !errors.Is(err, types.ErrInvalidURL) {
		t.Fatalf("Suggest() error = %v, want ErrInvalidURL", err)
	}
	if entry := hook.LastEntry(); entry == nil || entry.Level != logrus.WarnLevel {
		t.Errorf("expected a warning to be logged for the invalid URL")
	}
}

func TestEngine_RenamePatternAndTransforms(t *testing.T) {
	rule := types.Rule{
		ID: "r-reports", Name: "Reports", Enabled: true,
		UnifiedConditions: []types.UnifiedCondition{
			unified(types.ConditionFilename, types.MatchContains, str("report")),
		},
		Actions: types.RuleActions{
			PathTemplate:  `{host}\reports\{file}`,
			RenamePattern: "{year}-{month}_{basename}",
			Transforms:    []types.Transform{types.TransformUpperExt},
		},
	}
	e, _ := newTestEngine(t, rule)

	s, err := e.Suggest(DownloadRequest{URL: "https://example.com:8443/Q4%20Report.xlsx"})
	if err != nil {
		t.Fatalf("Suggest() error = %v", err)
	}
	if s.Filename != "example.com/reports/2026-01_Q4%20Report.XLSX" {
		t.Errorf("Filename = %q, want example.com/reports/2026-01_Q4%%20Report.XLSX", s.Filename)
	}
}

func TestEngine_RenameDomainCarriesPort(t *testing.T) {
	rule := types.Rule{
		ID: "r", Enabled: true,
		Actions: types.RuleActions{PathTemplate: "{file}", RenamePattern: "{domain}/{original_name}"},
	}
	e, _ := newTestEngine(t, rule)

	s, _ := e.Suggest(DownloadRequest{URL: "https://sub.example.com:8080/file.txt"})
	if s.Filename != "sub.example.com_8080/file.txt" {
		t.Errorf("Filename = %q, want sub.example.com_8080/file.txt", s.Filename)
	}
}

func TestEngine_EmptyTemplateUsesDefault(t *testing.T) {
	e, _ := newTestEngine(t, types.Rule{ID: "r", Enabled: true})

	s, _ := e.Suggest(DownloadRequest{URL: "https://example.com/x/y.zip"})
	if s.Filename != "example.com/y.zip" {
		t.Errorf("Filename = %q, want example.com/y.zip", s.Filename)
	}
}

func TestEngine_UpdateCopiesRules(t *testing.T) {
	rules := []types.Rule{imagesRule()}
	e, _ := newTestEngine(t, rules...)

	rules[0].Enabled = false
	if got := e.Rules(); len(got) != 1 || !got[0].Enabled {
		t.Errorf("Rules() reflected a caller mutation: %+v", got)
	}
}

func TestEngine_UpdateLogsMalformedPatterns(t *testing.T) {
	rule := imagesRule()
	rule.UnifiedConditions = append(rule.UnifiedConditions,
		unified(types.ConditionFilename, types.MatchRegex, str("(oops")))

	_, hook := newTestEngine(t, rule)

	found := false
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel && entry.Data["rule_id"] == types.RuleID("r-images") {
			found = true
		}
	}
	if !found {
		t.Errorf("no warning logged for malformed pattern")
	}
}

func TestEngine_SetDefaultConflictRejectsUnknown(t *testing.T) {
	e, _ := newTestEngine(t)
	err := e.SetDefaultConflict("rename")
	if !errors.Is(err, types.ErrUnknownConflictAction) {
		t.Errorf("SetDefaultConflict(rename) error = %v, want ErrUnknownConflictAction", err)
	}
	if e.DefaultConflict() != types.ConflictUniquify {
		t.Errorf("DefaultConflict() changed after rejected update")
	}
}

func TestEngine_ConcurrentSuggestAndUpdate(t *testing.T) {
	e, _ := newTestEngine(t, imagesRule())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := e.Suggest(DownloadRequest{URL: "https://example.com/a.png"}); err != nil {
					t.Errorf("Suggest() error = %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				e.Update([]types.Rule{imagesRule()})
			}
		}()
	}
	wg.Wait()
}
