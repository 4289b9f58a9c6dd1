package report

import (
	"encoding/json"
	"fmt"

	"github.com/JakeFAU/a11y-crawler/internal/crawler"
)

// Element identifier tags.
const (
	IdentifierPage    = "page"
	IdentifierWebsite = "website"
	IdentifierElement = "element"

	FieldElementIdentifier = "element_identifier"
	FieldOrdinalPosition   = "ordinal_position"
)

// SyntheticOrdinal is assigned to element results that arrive without an
// ordinal position. It approximates a page-level hit; it does not identify
// an actual element occurrence.
const SyntheticOrdinal = 2

// LegacyOptions selects the final legacy adjustments.
type LegacyOptions struct {
	// URLEncodingParity copies eval_url verbatim into eval_url_encoded. Older
	// consumers read the "encoded" field, which historically held the raw URL.
	URLEncodingParity bool
	// WrapResults emits results as a JSON string instead of a live object.
	WrapResults bool
}

// PageInfo is the page state that overrides whatever the evaluator reported.
type PageInfo struct {
	URL   string
	Title string
}

// Finalize applies the legacy touch-ups to a normalized container and builds
// the record to persist. The container is modified in place and must not be
// shared.
func Finalize(container Object, page PageInfo, opts LegacyOptions) (crawler.PageRecord, error) {
	if container == nil {
		container = Object{}
	}
	container[FieldEvalURL] = page.URL
	container[FieldEvalTitle] = page.Title
	if opts.URLEncodingParity {
		container[FieldEvalURLEncoded] = page.URL
	}

	SynthesizeOrdinals(container)

	record := crawler.PageRecord{
		Title:   page.Title,
		URL:     page.URL,
		Results: container,
	}
	if opts.WrapResults {
		encoded, err := json.Marshal(container)
		if err != nil {
			return crawler.PageRecord{}, fmt.Errorf("encode legacy container: %w", err)
		}
		record.Results = string(encoded)
	}
	return record, nil
}

// SynthesizeOrdinals fills in missing ordinal positions on every element
// result of every rule result. Generic or missing identifiers become "page";
// "website" and other explicit tags are kept.
func SynthesizeOrdinals(container Object) {
	for _, rule := range asObjects(container[FieldRuleResults]) {
		for _, element := range asObjects(rule[FieldElementResults]) {
			synthesizeOrdinal(element)
		}
	}
}

func synthesizeOrdinal(element Object) {
	if _, ok := NullableInt(element, FieldOrdinalPosition); ok {
		return
	}
	id, hasID := NullableString(element, FieldElementIdentifier)
	if !hasID || id == IdentifierElement {
		element[FieldElementIdentifier] = IdentifierPage
	}
	element[FieldOrdinalPosition] = SyntheticOrdinal
}
