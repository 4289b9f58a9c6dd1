package crawler

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Skip reasons recorded when a page leaves the pipeline early.
const (
	SkipReasonRateLimit  = "rate_limit"
	SkipReasonPreflight  = "preflight"
	SkipReasonLoad       = "load"
	SkipReasonCapability = "capability_timeout"
	SkipReasonEvaluation = "evaluation"
	SkipReasonFinalize   = "finalize"
	SkipReasonSink       = "sink"
)

// ErrNotHTML reports that a URL does not serve an HTML document.
var ErrNotHTML = errors.New("not an html document")

// PageRecord is the one record persisted per evaluated page. Results holds
// either the live legacy container or its JSON encoding, depending on the
// configured wrap mode.
type PageRecord struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Results any    `json:"results"`

	// ID and CreatedAt are stamped once per page, before any write attempt,
	// so a retried write lands on the same row or object.
	ID        uuid.UUID `json:"-"`
	CreatedAt time.Time `json:"-"`
}

// Item is a frontier entry.
type Item struct {
	URL    string
	Depth  int
	Parent string
}

// CheckResult describes a lightweight HTTP check made before a page is opened
// in the browser.
type CheckResult struct {
	URL         string
	StatusCode  int
	ContentType string
	Duration    time.Duration
	// RobotsFallback is set when robots.txt could not be fetched and an
	// allow-all policy was assumed.
	RobotsFallback bool
}

// ConsoleMessage is a console call or uncaught exception mirrored out of a
// page.
type ConsoleMessage struct {
	URL   string
	Level string
	Text  string
	TS    time.Time
}
