package report

// Field names shared by both report shapes.
const (
	FieldResults        = "results"
	FieldElementResults = "element_results"
	FieldGuidelineCode  = "guideline_code"
	FieldRuleGroupCode  = "rule_group_code"
	FieldRuleGroupNLS   = "rule_group_code_nls"
)

// countField maps a new-shape counter to its legacy name.
type countField struct {
	from string
	to   string
}

var countFields = [...]countField{
	{from: "results_passed", to: "elements_passed"},
	{from: "results_violation", to: "elements_violation"},
	{from: "results_warning", to: "elements_warning"},
	{from: "results_failure", to: "elements_failure"},
	{from: "results_manual_check", to: "elements_manual_check"},
	{from: "results_hidden", to: "elements_hidden"},
}

var legacyOnlyFields = [...]string{
	FieldGuidelineCode,
	FieldRuleGroupCode,
	FieldRuleGroupNLS,
}

// Options tunes normalization.
type Options struct {
	// Destructive removes new-only fields once their values have been
	// carried over to legacy names.
	Destructive bool
}

// NormalizeRuleResults converts new-shape rule results into legacy rule
// results. The input slice and its elements are left untouched; entries that
// are not objects are dropped.
func NormalizeRuleResults(rules []any, opts Options) []Object {
	out := make([]Object, 0, len(rules))
	for _, rule := range asObjects(rules) {
		out = append(out, normalizeRule(rule, opts))
	}
	return out
}

func normalizeRule(src Object, opts Options) Object {
	rule := cloneObject(src)

	for _, f := range countFields {
		if v, ok := rule[f.from]; ok {
			rule[f.to] = v
			if opts.Destructive {
				delete(rule, f.from)
			}
		} else if !present(rule, f.to) {
			rule[f.to] = nil
		}
	}

	if results, ok := rule[FieldResults]; ok && !present(rule, FieldElementResults) {
		rule[FieldElementResults] = results
		delete(rule, FieldResults)
	}
	rule[FieldElementResults] = cloneElements(rule[FieldElementResults])

	for _, key := range legacyOnlyFields {
		if !present(rule, key) {
			rule[key] = nil
		}
	}
	return rule
}

// cloneElements copies an element list so later in-place edits (ordinal
// synthesis) never reach the caller's data. Non-list values become an empty
// list.
func cloneElements(v any) []any {
	var items []any
	switch typed := v.(type) {
	case []any:
		items = typed
	case []Object:
		items = anySlice(typed)
	default:
		return []any{}
	}
	out := make([]any, len(items))
	for i, item := range items {
		if obj, ok := item.(map[string]any); ok && obj != nil {
			out[i] = cloneObject(obj)
			continue
		}
		out[i] = item
	}
	return out
}
