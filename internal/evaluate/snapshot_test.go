package evaluate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/a11y-crawler/internal/report"
)

type node struct {
	Name     string   `json:"name"`
	Next     *node    `json:"next,omitempty"`
	Callback func()   `json:"callback"`
	Tags     []string `json:"tags,omitempty"`
	hidden   int
	Skipped  string `json:"-"`
}

type RuleCounts struct {
	Passed    int `json:"results_passed"`
	Violation int `json:"results_violation"`
}

type Ruleset struct {
	ID string `json:"ruleset_id"`
}

type ruleReport struct {
	RuleCounts
	*Ruleset
	Violation int    `json:"results_violation"`
	RuleID    string `json:"rule_id"`
}

func TestSnapshotBreaksCycles(t *testing.T) {
	t.Parallel()

	a := &node{Name: "a", Callback: func() {}}
	b := &node{Name: "b", Next: a, hidden: 1}
	a.Next = b

	got, err := Snapshot(a)
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"a","next":{"name":"b"}}`, got)
}

func TestSnapshotSelfReferencingMap(t *testing.T) {
	t.Parallel()

	m := map[string]any{"ruleset": "WCAG21"}
	m["self"] = m
	m["fn"] = func() {}
	m["list"] = []any{1, m, "x"}

	got, err := Snapshot(m)
	require.NoError(t, err)
	require.JSONEq(t, `{"ruleset":"WCAG21","list":[1,null,"x"]}`, got)
}

func TestSnapshotOmitsRepeatedIdentity(t *testing.T) {
	t.Parallel()

	shared := map[string]any{"k": "v"}
	got, err := Snapshot(map[string]any{"first": shared, "second": shared})
	require.NoError(t, err)

	decoded := report.DecodeAny(got)
	require.Len(t, decoded, 1, "a shared value is emitted once")
}

func TestSnapshotFlattensEmbeddedStructs(t *testing.T) {
	t.Parallel()

	got, err := Snapshot(ruleReport{
		RuleCounts: RuleCounts{Passed: 4, Violation: 9},
		Ruleset:    &Ruleset{ID: "WCAG21"},
		Violation:  1,
		RuleID:     "IMAGE_1",
	})
	require.NoError(t, err)
	require.JSONEq(t, `{"results_passed":4,"results_violation":1,"ruleset_id":"WCAG21","rule_id":"IMAGE_1"}`, got)

	got, err = Snapshot(ruleReport{RuleID: "IMAGE_1"})
	require.NoError(t, err)
	require.JSONEq(t, `{"results_passed":0,"results_violation":0,"rule_id":"IMAGE_1"}`, got)
}

func TestSnapshotUsesMarshalers(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	got, err := Snapshot(map[string]any{"date": ts, "n": 1.5, "ch": make(chan int)})
	require.NoError(t, err)
	require.JSONEq(t, `{"date":"2024-05-01T00:00:00Z","n":1.5}`, got)
}

func TestSnapshotNormalizes(t *testing.T) {
	t.Parallel()

	raw := map[string]any{
		"ruleset": "WCAG21",
		"version": "1.0",
		"allRuleResults": []any{
			map[string]any{"results_violation": 3, "results": []any{map[string]any{"ordinal_position": nil}}},
		},
	}
	raw["self"] = raw

	text, err := Snapshot(raw)
	require.NoError(t, err)

	container := report.NormalizeContainer(text, report.Options{})
	require.Equal(t, "WCAG21", container[report.FieldRulesetID])
	require.Len(t, container[report.FieldRuleResults], 1)
}

func TestInProcess(t *testing.T) {
	t.Parallel()

	var gotReq Request
	p := &InProcess{
		Request: Request{Ruleset: "WCAG22"},
		Report: func(_ context.Context, _ string, req Request) (any, error) {
			gotReq = req
			out := map[string]any{"ruleset": req.Ruleset}
			out["loop"] = out
			return out, nil
		},
	}

	require.NoError(t, p.WaitReady(context.Background(), nil))
	text, err := p.Invoke(context.Background(), nil)
	require.NoError(t, err)
	require.JSONEq(t, `{"ruleset":"WCAG22"}`, text)
	require.Equal(t, "WCAG22", gotReq.Ruleset)
}
