// Package health runs named component checks and serves them over HTTP.
//
// Components register a CheckFunc under a name; the checker runs all of
// them concurrently with a per-check timeout and aggregates the results.
// The HTTP handler answers 200 while every check passes and 503 once any
// check degrades, without ever failing the process itself.
package health
