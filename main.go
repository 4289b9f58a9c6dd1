// Command a11y-crawler crawls websites in headless Chrome and records an
// accessibility evaluation report for every page it renders.
//
// Pipeline per page: optional HTTP preflight (robots.txt, status and content
// type), render in a chromedp tab with the evaluation library injected, wait
// for the library to become callable, run the audit, normalize the report
// into the legacy record shape, persist it to every configured sink, then
// enqueue in-scope links. Progress events for each stage are batched through
// a hub into zap logs, Prometheus collectors and the /v1/status board.
//
// Configuration comes from an optional file, A11Y_* environment variables and
// CLI flags, in increasing precedence.
package main

import "github.com/JakeFAU/a11y-crawler/cmd"

func main() {
	cmd.Execute()
}
