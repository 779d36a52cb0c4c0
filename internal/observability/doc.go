// Package observability provides structured logging and metrics for the
// subscription gateway.
//
// This package implements:
//   - zap logger construction from level and format settings
//   - A context-aware logger that attaches the chi request ID
//   - Prometheus collectors for HTTP traffic, subscription outcomes and
//     rate-limit decisions, on a private registry
package observability
