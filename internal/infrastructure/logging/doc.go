// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Bridge-specific field helpers (Instance, Call, Handle, EnvelopeKind)
// keep log lines queryable by the identifiers that flow through the
// message plane.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Info("instance mounted", logging.Instance(id))
//	logger.Error("invoke failed", logging.Call(callID), zap.Error(err))
package logging
