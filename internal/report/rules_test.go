package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func decodeRules(t *testing.T, raw string) []any {
	t.Helper()
	var rules []any
	require.NoError(t, json.Unmarshal([]byte(raw), &rules))
	return rules
}

func TestNormalizeRuleResultsCopiesCounters(t *testing.T) {
	t.Parallel()

	rules := decodeRules(t, `[{"rule_id":"IMAGE_1","results_passed":4,"results_violation":1,"results":[{"ordinal_position":3}]}]`)
	out := NormalizeRuleResults(rules, Options{})

	require.Len(t, out, 1)
	rule := out[0]
	require.EqualValues(t, 4, rule["elements_passed"])
	require.EqualValues(t, 1, rule["elements_violation"])
	require.EqualValues(t, 4, rule["results_passed"], "rename is by copy")
	require.Contains(t, rule, "elements_warning")
	require.Nil(t, rule["elements_warning"])
	require.Equal(t, "IMAGE_1", rule["rule_id"])
	require.NotContains(t, rule, FieldResults)
	require.Len(t, rule[FieldElementResults], 1)
}

func TestNormalizeRuleResultsBackfillsLegacyFields(t *testing.T) {
	t.Parallel()

	out := NormalizeRuleResults(decodeRules(t, `[{"results_hidden":0}]`), Options{})

	for _, key := range []string{FieldGuidelineCode, FieldRuleGroupCode, FieldRuleGroupNLS} {
		require.Contains(t, out[0], key)
		require.Nil(t, out[0][key])
	}
	for _, f := range countFields {
		require.Contains(t, out[0], f.to)
	}
}

func TestNormalizeRuleResultsKeepsExistingLegacyValues(t *testing.T) {
	t.Parallel()

	rules := decodeRules(t, `[{
		"guideline_code":"1.1.1",
		"element_results":[{"ordinal_position":1}],
		"results":[{"ordinal_position":9},{"ordinal_position":10}]
	}]`)
	out := NormalizeRuleResults(rules, Options{})

	require.Equal(t, "1.1.1", out[0][FieldGuidelineCode])
	elements := out[0][FieldElementResults].([]any)
	require.Len(t, elements, 1, "existing element_results must not be overwritten")
	require.Len(t, out[0][FieldResults], 2)
}

func TestNormalizeRuleResultsDoesNotMutateInput(t *testing.T) {
	t.Parallel()

	raw := `[{"results_failure":2,"results":[{"element_identifier":"element","ordinal_position":null}]}]`
	rules := decodeRules(t, raw)
	out := NormalizeRuleResults(rules, Options{Destructive: true})

	SynthesizeOrdinals(Object{FieldRuleResults: anySlice(out)})

	require.Equal(t, decodeRules(t, raw), rules)
	require.NotContains(t, out[0], "results_failure")
	require.EqualValues(t, 2, out[0]["elements_failure"])
}

func TestNormalizeRuleResultsIsIdempotent(t *testing.T) {
	t.Parallel()

	rules := decodeRules(t, `[
		{"results_passed":1,"results_manual_check":2,"results":[{"element_identifier":"website"}]},
		{"elements_passed":5,"rule_group_code_nls":"Images"},
		"not-an-object"
	]`)
	once := NormalizeRuleResults(rules, Options{})
	twice := NormalizeRuleResults(anySlice(once), Options{})

	require.Len(t, once, 2)
	require.Equal(t, once, twice)
}

func TestNormalizeRuleResultsEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, NormalizeRuleResults(nil, Options{}))
}

func TestNormalizeRuleResultsKeepsTypedElementSlices(t *testing.T) {
	t.Parallel()

	inner := Object{"ordinal_position": 5}
	src := []any{Object{"rule_id": "IMAGE_1", "results": []map[string]any{inner}}}

	out := NormalizeRuleResults(src, Options{})

	require.Len(t, out, 1)
	elements := out[0][FieldElementResults].([]any)
	require.Len(t, elements, 1)
	require.EqualValues(t, 5, elements[0].(Object)["ordinal_position"])

	elements[0].(Object)["ordinal_position"] = 9
	require.EqualValues(t, 5, inner["ordinal_position"], "elements are copied")
}
