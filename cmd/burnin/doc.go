// Command burnin runs the subtitle burn-in service and its operator tools.
//
// `burnin serve` starts the HTTP daemon. The remaining commands work
// directly against the configured metadata database and artifact store, so
// they are usable whether or not a daemon is running.
package main
