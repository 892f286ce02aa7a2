package rulesfile

import "github.com/solatis/sortdl/internal/types"

// DefaultRules returns the rule set installed on first run and used when a
// stored document fails validation. Each call returns a fresh copy.
func DefaultRules() *types.RulesConfig {
	images := []string{"png", "jpg", "jpeg", "gif", "webp", "svg"}
	words := []string{"doc", "docx"}

	return &types.RulesConfig{
		Version: types.RulesConfigVersion,
		Rules: []types.Rule{
			{
				ID:         "r-docx",
				Name:       "Save Word documents",
				Enabled:    true,
				Domains:    []string{"*"},
				Conditions: []types.LegacyCondition{{Key: "ext", Op: types.OpIn, Value: types.ListValue(words...)}},
				UnifiedConditions: []types.UnifiedCondition{{
					ConditionType: types.ConditionExtension,
					MatchType:     types.MatchIn,
					Value:         types.ListValue(words...),
				}},
				Actions: types.RuleActions{
					PathTemplate: "{host}/images/{ext}/{yyyy-mm-dd}/{file}",
					Conflict:     types.ConflictUniquify,
				},
			},
			{
				ID:         "r-images",
				Name:       "Save image files",
				Enabled:    true,
				Domains:    []string{"*"},
				Conditions: []types.LegacyCondition{{Key: "ext", Op: types.OpIn, Value: types.ListValue(images...)}},
				UnifiedConditions: []types.UnifiedCondition{{
					ConditionType: types.ConditionExtension,
					MatchType:     types.MatchIn,
					Value:         types.ListValue(images...),
				}},
				Actions: types.RuleActions{
					PathTemplate: "{host}/images/{ext}/{yyyy-mm-dd}/{file}",
					Conflict:     types.ConflictUniquify,
				},
			},
			{
				ID:         "r-catch-all",
				Name:       "Default",
				Enabled:    true,
				Domains:    []string{"*"},
				Conditions: []types.LegacyCondition{},
				UnifiedConditions: []types.UnifiedCondition{{
					ConditionType: types.ConditionDomain,
					MatchType:     types.MatchGlob,
					Value:         types.StringValue("*"),
				}},
				Actions: types.RuleActions{
					PathTemplate: "{host}/{file}",
					Conflict:     types.ConflictUniquify,
				},
			},
		},
	}
}
