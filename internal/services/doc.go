// Package services defines shared utilities consumed by the pipeline
// components and external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp item IDs, stage names, component names, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so loops can tell a
//     transient failure (retry next cycle) from a configuration failure
//     (stop and ask the operator).
//
// Use these helpers when wiring new component logic so error handling and
// observability stay uniform across the pipeline.
package services
