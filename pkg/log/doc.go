// Package log provides the protocol trace for BLE provisioning sessions.
//
// This package defines the Logger sinks and Event types for capturing
// protocol-level events at multiple layers (link, message, session).
// It is separate from operational logging (slog): the trace is a complete
// machine-readable record of a session for debugging and analysis.
//
// # Basic Usage
//
// Applications configure tracing by providing a Logger implementation:
//
//	// For development: trace to console via slog
//	trace := log.NewSlogAdapter(slog.Default())
//
//	// For field use: write to binary file
//	trace, _ := log.NewFileLogger("/var/log/thingprov/session.plog")
//
//	// Both
//	trace := log.Tee(log.NewSlogAdapter(slog.Default()), fileLogger)
//
// # Event Types
//
// Events are captured at multiple layers:
//   - Link: raw GATT bytes (FrameEvent)
//   - Message: decoded records and notifications (MessageEvent)
//   - Session: phase changes (StateChangeEvent)
//
// Errors have a dedicated event type. Secrets never appear in a trace:
// outbound frames are recorded only in enveloped form and decoded records
// carry their type and ready flag, not their content.
//
// # File Format
//
// Trace files are a stream of CBOR events with integer keys, usually named
// *.plog. Every event belongs to a session and its layer, category and
// payload must agree (see Event.Validate); the file logger drops events
// that do not and the reader stops at the first such record. The
// thingprov trace subcommands provide viewing and statistics.
package log
