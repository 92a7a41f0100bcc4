// Package api defines the wire-format types returned by the HTTP server and
// the CLI's JSON output, the converters from metadata records, and the
// mapping from classified failures onto HTTP status codes.
//
// # Key Types
//
// Video: transport representation of a job record. Timestamps use RFC3339
// with milliseconds; empty optional fields are omitted.
//
// ErrorEnvelope: the {"error":{"code","message"}} body sent for every
// non-2xx response. Code is the stable services.Kind name.
//
// HealthResponse: dependency, store, and repository reachability.
//
// # Services
//
// VideoService wraps a metadata.Repository with the read and edit operations
// the /api/videos routes expose, converting records to Video on the way out
// and validating list filters on the way in.
package api
