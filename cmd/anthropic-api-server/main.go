// Anthropic API Server is a local gateway exposing a stable REST/SSE
// surface over the Anthropic Messages API.
//
// It decouples client applications from the provider's native protocol,
// providing:
//   - Unary and streaming (SSE) message generation
//   - Message batch lifecycle tracking with staleness-bounded polling
//   - A stable response envelope and error taxonomy across provider changes
//   - Token usage accounting and request audit trails
//
// Usage:
//
//	# Start the gateway with defaults (reads ANTHROPIC_API_KEY)
//	anthropic-api-server run
//
//	# Start with a configuration file
//	anthropic-api-server run --config /path/to/config.yaml
//
//	# Check a configuration file without starting
//	anthropic-api-server validate --config /path/to/config.yaml
//
//	# Show version information
//	anthropic-api-server version
package main

func main() {
	Execute()
}
