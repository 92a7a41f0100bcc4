// Package stream serves stored artifacts over HTTP with byte-range support.
//
// ParseRange implements the single-range subset of RFC 9110 that video
// players use for seeking. Responder copies bodies through a fixed-size
// buffer so memory use does not grow with artifact size. The package only
// reads from the artifact store.
package stream
