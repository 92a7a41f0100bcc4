// Package jobs runs the aggregation pipeline for one submitted video.
//
// An Orchestrator validates the request, records the job as processing,
// resolves subtitles, burns them in with ffmpeg, uploads the artifact and
// finalizes the record as saved. Any failure lands the record in failed
// with a classified error kind. Each job owns a scratch Workspace that is
// removed before Submit returns, and a Pool bounds how many transcodes run
// at once. No stage is retried.
package jobs
