// Package crawler holds the types and collaborator interfaces shared by the
// accessibility crawl pipeline: the browser, the evaluation invoker, the
// preflight checker, politeness limiting, and result sinks.
package crawler
