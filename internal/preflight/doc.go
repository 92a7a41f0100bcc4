// Package preflight provides readiness checks for the filesystem paths and
// stores burnin depends on.
//
// These checks run in two contexts:
//   - The daemon calls CheckPaths at startup and logs failures as warnings.
//   - The CLI "burnin check" command calls RunAll to display service health.
package preflight
