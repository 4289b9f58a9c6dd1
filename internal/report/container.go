package report

// Container-level field names.
const (
	FieldRulesetID         = "ruleset_id"
	FieldRulesetVersion    = "ruleset_version"
	FieldRulesetTitle      = "ruleset_title"
	FieldRulesetAbbrev     = "ruleset_abbrev"
	FieldMarkupInformation = "markup_information"
	FieldRuleResults       = "rule_results"
	FieldEvalURL           = "eval_url"
	FieldEvalTitle         = "eval_title"
	FieldEvalURLEncoded    = "eval_url_encoded"

	fieldRuleset        = "ruleset"
	fieldVersion        = "version"
	fieldAllRuleResults = "allRuleResults"
)

// newOnlyFields are dropped from the container when destructive cleanup is
// requested.
var newOnlyFields = [...]string{
	fieldRuleset,
	fieldVersion,
	"scope_filter",
	"date",
	fieldAllRuleResults,
}

// NormalizeContainer converts an evaluation report (object or JSON string)
// into a legacy container. It never fails: undecodable input yields a
// container with every legacy field defaulted.
func NormalizeContainer(input any, opts Options) Object {
	container := cloneObject(unwrapResults(DecodeAny(input)))

	container[FieldRulesetID] = firstNonNull(container, FieldRulesetID, fieldRuleset)
	container[FieldRulesetVersion] = firstNonNull(container, FieldRulesetVersion, fieldVersion)
	if !present(container, FieldRulesetTitle) {
		container[FieldRulesetTitle] = nil
	}
	if !present(container, FieldRulesetAbbrev) {
		container[FieldRulesetAbbrev] = nil
	}
	if _, ok := container[FieldMarkupInformation].(map[string]any); !ok {
		container[FieldMarkupInformation] = Object{}
	}

	container[FieldRuleResults] = anySlice(NormalizeRuleResults(ruleSource(container), opts))

	if opts.Destructive {
		for _, key := range newOnlyFields {
			delete(container, key)
		}
	}
	return container
}

// unwrapResults replaces a wrapper object with its inner "results" field when
// that field holds a nested report (object or encoded string). Only one level
// is unwrapped; a wrapper that already carries rule arrays is left alone.
func unwrapResults(outer Object) Object {
	if present(outer, FieldRuleResults) || present(outer, fieldAllRuleResults) {
		return outer
	}
	inner, ok := outer[FieldResults]
	if !ok {
		return outer
	}
	switch inner.(type) {
	case string, map[string]any:
		return DecodeAny(inner)
	default:
		return outer
	}
}

// ruleSource prefers an existing legacy rule array over the library's native
// one. Arrays built in Go ([]Object) are accepted next to decoded JSON.
func ruleSource(container Object) []any {
	for _, key := range []string{FieldRuleResults, fieldAllRuleResults} {
		switch rules := container[key].(type) {
		case []any:
			return rules
		case []Object:
			return anySlice(rules)
		}
	}
	return nil
}

func anySlice(objs []Object) []any {
	out := make([]any, len(objs))
	for i, o := range objs {
		out[i] = o
	}
	return out
}
