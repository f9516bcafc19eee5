package probe

import (
	"errors"
	"strconv"
	"strings"
)

// ErrNoVideo is wrapped by Error when a source has no usable video stream.
var ErrNoVideo = errors.New("no video stream")

// Error reports a source that could not be probed.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string { return "probe " + e.Path + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// FormatInfo holds container-level metadata from ffprobe's format section.
type FormatInfo struct {
	Filename   string
	FormatName string
	Duration   float64
	Size       int64
	BitRate    int64
	Tags       map[string]string
}

// VideoStream holds the parsed properties of a single video stream.
type VideoStream struct {
	Index          int
	Codec          string
	PixFmt         string
	Width          int
	Height         int
	BitRate        int64
	FieldOrder     string
	ColorTransfer  string
	ColorPrimaries string
	IsAttachedPic  bool
	AvgFrameRate   string
	RFrameRate     string
}

// AudioStream holds the parsed properties of a single audio stream.
type AudioStream struct {
	Index         int
	Codec         string
	Channels      int
	ChannelLayout string
	SampleRate    int
	SampleFmt     string
	BitRate       int64
	Language      string
}

// ProbeResult is the fully parsed output of a single ffprobe JSON call.
// PrimaryVideo is the first non-attached-pic video stream (nil if none).
type ProbeResult struct {
	Path         string
	Format       FormatInfo
	PrimaryVideo *VideoStream
	AudioStreams []AudioStream
}

// VideoBitRate returns the primary video stream bitrate in bits/sec,
// falling back to the format-level bitrate when the stream value is
// unavailable or zero.
func (p *ProbeResult) VideoBitRate() int64 {
	if p.PrimaryVideo != nil && p.PrimaryVideo.BitRate > 0 {
		return p.PrimaryVideo.BitRate
	}
	return p.Format.BitRate
}

// Resolution returns "WxH" for the primary video stream, or "unknown".
func (p *ProbeResult) Resolution() string {
	if p.PrimaryVideo == nil || p.PrimaryVideo.Width <= 0 || p.PrimaryVideo.Height <= 0 {
		return "unknown"
	}
	return strconv.Itoa(p.PrimaryVideo.Width) + "x" + strconv.Itoa(p.PrimaryVideo.Height)
}

// Traits lists properties that the concatenation does not preserve: HDR
// transfer curves are passed through swscale as plain pixels and interlaced
// fields are scaled as progressive frames.
func (p *ProbeResult) Traits() []string {
	v := p.PrimaryVideo
	if v == nil {
		return nil
	}
	var out []string
	switch {
	case v.ColorTransfer == "smpte2084", v.ColorTransfer == "arib-std-b67", v.ColorPrimaries == "bt2020":
		out = append(out, "HDR")
	}
	switch strings.ToLower(strings.TrimSpace(v.FieldOrder)) {
	case "tt", "bb", "tb", "bt":
		out = append(out, "Interlaced")
	}
	return out
}
