package report

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func elementsOf(t *testing.T, container Object) []Object {
	t.Helper()
	rules := asObjects(container[FieldRuleResults])
	require.NotEmpty(t, rules)
	return asObjects(rules[0][FieldElementResults])
}

func TestSynthesizeOrdinals(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		element     Object
		wantID      any
		wantOrdinal any
	}{
		{
			name:        "missing identifier becomes page",
			element:     Object{},
			wantID:      IdentifierPage,
			wantOrdinal: SyntheticOrdinal,
		},
		{
			name:        "generic element becomes page",
			element:     Object{FieldElementIdentifier: IdentifierElement, FieldOrdinalPosition: nil},
			wantID:      IdentifierPage,
			wantOrdinal: SyntheticOrdinal,
		},
		{
			name:        "website is kept",
			element:     Object{FieldElementIdentifier: IdentifierWebsite},
			wantID:      IdentifierWebsite,
			wantOrdinal: SyntheticOrdinal,
		},
		{
			name:        "specific tag is kept",
			element:     Object{FieldElementIdentifier: "img"},
			wantID:      "img",
			wantOrdinal: SyntheticOrdinal,
		},
		{
			name:        "existing ordinal is untouched",
			element:     Object{FieldElementIdentifier: IdentifierElement, FieldOrdinalPosition: float64(7)},
			wantID:      IdentifierElement,
			wantOrdinal: float64(7),
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			container := Object{FieldRuleResults: []any{
				Object{FieldElementResults: []any{tc.element}},
			}}
			SynthesizeOrdinals(container)

			got := elementsOf(t, container)[0]
			require.Equal(t, tc.wantID, got[FieldElementIdentifier])
			require.Equal(t, tc.wantOrdinal, got[FieldOrdinalPosition])
		})
	}
}

func TestFinalizeOverridesPageState(t *testing.T) {
	t.Parallel()

	container := NormalizeContainer(`{"eval_url":"about:blank","eval_title":"stale","rule_results":[]}`, Options{})
	record, err := Finalize(container, PageInfo{URL: "https://example.com/a%20b", Title: "A B"}, LegacyOptions{})
	require.NoError(t, err)

	require.Equal(t, "https://example.com/a%20b", record.URL)
	require.Equal(t, "A B", record.Title)
	got := record.Results.(Object)
	require.Equal(t, "https://example.com/a%20b", got[FieldEvalURL])
	require.Equal(t, "A B", got[FieldEvalTitle])
	require.NotContains(t, got, FieldEvalURLEncoded)
}

func TestFinalizeURLEncodingParity(t *testing.T) {
	t.Parallel()

	record, err := Finalize(Object{}, PageInfo{URL: "https://example.com/?q=a b"}, LegacyOptions{URLEncodingParity: true})
	require.NoError(t, err)

	got := record.Results.(Object)
	require.Equal(t, got[FieldEvalURL], got[FieldEvalURLEncoded])
}

func TestFinalizeWrapResults(t *testing.T) {
	t.Parallel()

	container := NormalizeContainer(sampleReport, Options{})
	record, err := Finalize(container, PageInfo{URL: "https://example.com/", Title: "Home"}, LegacyOptions{WrapResults: true})
	require.NoError(t, err)

	encoded, ok := record.Results.(string)
	require.True(t, ok, "wrapped results must be a JSON string")

	var decoded Object
	require.NoError(t, json.Unmarshal([]byte(encoded), &decoded))
	require.Equal(t, "WCAG21", decoded[FieldRulesetID])
	require.Equal(t, "Home", decoded[FieldEvalTitle])

	// A wrapped record feeds back into the normalizer unchanged.
	again := NormalizeContainer(encoded, Options{})
	require.Equal(t, decoded[FieldRulesetID], again[FieldRulesetID])
	require.Len(t, again[FieldRuleResults], 1)
}

func TestFinalizeNilContainer(t *testing.T) {
	t.Parallel()

	record, err := Finalize(nil, PageInfo{URL: "https://example.com/"}, LegacyOptions{})
	require.NoError(t, err)
	require.Equal(t, "https://example.com/", record.Results.(Object)[FieldEvalURL])
}

func TestNormalizeThenFinalizeIsIdempotent(t *testing.T) {
	t.Parallel()

	page := PageInfo{URL: "https://example.com/", Title: "Home"}
	first, err := Finalize(NormalizeContainer(sampleReport, Options{}), page, LegacyOptions{WrapResults: true})
	require.NoError(t, err)
	second, err := Finalize(NormalizeContainer(first.Results, Options{}), page, LegacyOptions{WrapResults: true})
	require.NoError(t, err)

	require.JSONEq(t, first.Results.(string), second.Results.(string))
}
