// Package services defines shared utilities consumed by the pipeline stages
// and the HTTP surface.
//
// Key responsibilities:
//   - Context helpers that stamp job IDs, stage names, and correlation
//     identifiers for logging.
//   - The error taxonomy: sentinel markers, the Wrap helper that attaches
//     stage context, and KindOf, which turns any wrapped failure into the
//     stable kind persisted on failed jobs.
//
// Use these helpers when wiring new stage logic so failures classify the same
// way whether they surface through the API, the CLI, or a stored record.
package services
