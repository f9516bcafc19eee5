// Package probe inspects sources with ffprobe before anything is decoded.
// A single JSON call per file reports the container and its streams; the
// result is reduced to a media.SourceDescriptor (primary video params and
// either the first audio stream's params or an explicit no-audio marker).
//
// ProbeAll probes a whole batch concurrently and fails on the first source
// that cannot be read or has no video stream, so a bad input aborts the run
// before any output is created.
package probe
