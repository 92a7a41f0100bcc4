// Package subtitles obtains the subtitle track for an aggregation job.
//
// A track arrives either inline with the submission or as a URL on the
// upstream subtitle service. Either way the payload is decoded to UTF-8,
// parsed as SRT, and rejected with services.ErrSubtitleUnavailable when it
// is empty, malformed, oversized, or unreachable.
package subtitles
