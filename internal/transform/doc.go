// Package transform drives ffmpeg to burn a subtitle track into a video and
// scale it to one of the supported resolutions.
//
// BuildArgs is the pure command contract; Runner abstracts process execution
// (ExecRunner runs each encode in its own process group so a deadline or
// cancellation kills the whole tree); Invoker ties the two together with the
// configured timeout and classifies failures into the services taxonomy.
package transform
