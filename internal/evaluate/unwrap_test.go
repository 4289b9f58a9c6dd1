package evaluate

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func encodeString(t *testing.T, s string) string {
	t.Helper()
	b, err := json.Marshal(s)
	require.NoError(t, err)
	return string(b)
}

func TestUnwrap(t *testing.T) {
	t.Parallel()

	report := `{"ruleset":"WCAG21"}`
	once := encodeString(t, report)
	twice := encodeString(t, once)

	got, err := Unwrap(report, 1)
	require.NoError(t, err)
	require.Equal(t, report, got)

	got, err = Unwrap(once, 1)
	require.NoError(t, err)
	require.Equal(t, report, got)

	_, err = Unwrap(twice, 1)
	require.ErrorIs(t, err, ErrTooDeep)

	got, err = Unwrap(twice, 2)
	require.NoError(t, err)
	require.Equal(t, report, got)
}

func TestUnwrapLeavesNonJSON(t *testing.T) {
	t.Parallel()

	got, err := Unwrap("  <html>oops</html> ", 1)
	require.NoError(t, err)
	require.Equal(t, "<html>oops</html>", got)
}

func TestUnwrapEmpty(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "   ", `""`, "null"} {
		_, err := Unwrap(raw, 1)
		require.ErrorIs(t, err, ErrEvaluationFailed, raw)
	}
}
