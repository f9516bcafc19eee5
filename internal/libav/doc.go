// Package libav implements concat.Backend on FFmpeg's libraries through
// go-astiav: demuxing and decoding with libavformat/libavcodec, scaling
// with libswscale, resampling with libswresample and muxing into a
// temporary file that is renamed over the destination on Finalize.
package libav
