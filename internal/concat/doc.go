// Package concat joins an ordered list of sources into one output movie.
//
// A Pipeline owns the output clock and processes one source at a time:
// every decoded frame is normalized to the target format and restamped
// with the next output frame index, then the source's audio is decoded,
// resampled when its params differ from the target, and padded or trimmed
// to exactly the length of the video just written before being chunked
// into the audio encoder. Sources without audio contribute silence of the
// same length. Source timestamps are never carried into the output.
//
// Decoding, scaling, resampling, encoding and muxing are delegated to a
// Backend. The libav package provides the production implementation and
// concattest an in-memory one for tests.
//
// Progress is pulled with [Pipeline.Next] (or ranged over with
// [Pipeline.All]); each call performs all work for one source. A caller
// that stops before the sequence ends must call [Pipeline.Close], which
// discards the unfinished output.
package concat
