// Package evaluate drives the accessibility audit that runs inside a page.
//
// The audit itself is an opaque library injected into the document as
// window.openA11y. This package waits for it to become callable, invokes it
// with the configured ruleset, and returns the report as JSON text. Results
// are serialized in-page with a cycle-safe stringifier so that function
// values and self references never reach the Go side.
package evaluate
