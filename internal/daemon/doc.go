// Package daemon coordinates the long-running burnin process.
//
// It wires configuration, the metadata repository, the artifact store, and
// the job orchestrator into a single lifecycle with flock-based locking so
// only one process owns a data directory. On start it reconciles jobs left in
// processing by a previous run, then serves the HTTP API and periodically
// sweeps stale scratch directories.
//
// Keep orchestration logic here: job stages live in their own packages while
// the daemon focuses on startup, shutdown, and the HTTP surface.
package daemon
