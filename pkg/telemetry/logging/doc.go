// Package logging builds the gateway's structured logger on log/slog.
//
// New returns a *slog.Logger configured by level and format; components
// derive their own loggers with logger.With("component", ...). Records
// logged with the Context variants automatically carry the request id
// stored in the context by the HTTP middleware.
package logging
