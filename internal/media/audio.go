package media

import "fmt"

// SampleFormat names a PCM sample encoding using libav's short names.
// Planar formats carry a "p" suffix and store one plane per channel.
type SampleFormat string

const (
	SampleU8   SampleFormat = "u8"
	SampleS16  SampleFormat = "s16"
	SampleS32  SampleFormat = "s32"
	SampleS64  SampleFormat = "s64"
	SampleFlt  SampleFormat = "flt"
	SampleDbl  SampleFormat = "dbl"
	SampleU8P  SampleFormat = "u8p"
	SampleS16P SampleFormat = "s16p"
	SampleS32P SampleFormat = "s32p"
	SampleS64P SampleFormat = "s64p"
	SampleFltP SampleFormat = "fltp"
	SampleDblP SampleFormat = "dblp"
)

var sampleSizes = map[SampleFormat]int{
	SampleU8: 1, SampleU8P: 1,
	SampleS16: 2, SampleS16P: 2,
	SampleS32: 4, SampleS32P: 4,
	SampleFlt: 4, SampleFltP: 4,
	SampleS64: 8, SampleS64P: 8,
	SampleDbl: 8, SampleDblP: 8,
}

// Valid reports whether f is a known sample format.
func (f SampleFormat) Valid() bool {
	_, ok := sampleSizes[f]
	return ok
}

// BytesPerSample is the size of one sample of one channel.
func (f SampleFormat) BytesPerSample() int { return sampleSizes[f] }

// Planar reports whether each channel lives in its own plane.
func (f SampleFormat) Planar() bool {
	switch f {
	case SampleU8P, SampleS16P, SampleS32P, SampleS64P, SampleFltP, SampleDblP:
		return true
	}
	return false
}

// SilenceByte is the byte value that encodes zero amplitude. Unsigned 8-bit
// audio is offset binary, so its midpoint is 0x80.
func (f SampleFormat) SilenceByte() byte {
	if f == SampleU8 || f == SampleU8P {
		return 0x80
	}
	return 0
}

// ChannelLayout names a channel arrangement using libav's layout strings.
type ChannelLayout string

const (
	LayoutMono       ChannelLayout = "mono"
	LayoutStereo     ChannelLayout = "stereo"
	Layout2Point1    ChannelLayout = "2.1"
	LayoutSurround   ChannelLayout = "3.0"
	Layout4Point0    ChannelLayout = "4.0"
	LayoutQuad       ChannelLayout = "quad"
	Layout5Point0    ChannelLayout = "5.0"
	Layout5Point0Sid ChannelLayout = "5.0(side)"
	Layout5Point1    ChannelLayout = "5.1"
	Layout5Point1Sid ChannelLayout = "5.1(side)"
	Layout7Point1    ChannelLayout = "7.1"
)

var layoutChannels = map[ChannelLayout]int{
	LayoutMono:       1,
	LayoutStereo:     2,
	Layout2Point1:    3,
	LayoutSurround:   3,
	Layout4Point0:    4,
	LayoutQuad:       4,
	Layout5Point0:    5,
	Layout5Point0Sid: 5,
	Layout5Point1:    6,
	Layout5Point1Sid: 6,
	Layout7Point1:    8,
}

// Valid reports whether l is a known layout.
func (l ChannelLayout) Valid() bool {
	_, ok := layoutChannels[l]
	return ok
}

// Channels returns the channel count, or 0 for an unknown layout.
func (l ChannelLayout) Channels() int { return layoutChannels[l] }

// LayoutForChannels returns libav's default layout for n channels. ffprobe
// leaves channel_layout empty for some streams, reporting only a count.
func LayoutForChannels(n int) (ChannelLayout, bool) {
	switch n {
	case 1:
		return LayoutMono, true
	case 2:
		return LayoutStereo, true
	case 3:
		return Layout2Point1, true
	case 4:
		return Layout4Point0, true
	case 5:
		return Layout5Point0, true
	case 6:
		return Layout5Point1, true
	case 8:
		return Layout7Point1, true
	}
	return "", false
}

// AudioParams fully describes a PCM stream. Two streams with equal params
// can share an encoder without conversion.
type AudioParams struct {
	SampleRate int
	Layout     ChannelLayout
	Format     SampleFormat
}

// Valid reports whether every field is set to a known value.
func (p AudioParams) Valid() bool {
	return p.SampleRate > 0 && p.Layout.Valid() && p.Format.Valid()
}

// Channels is a shorthand for p.Layout.Channels().
func (p AudioParams) Channels() int { return p.Layout.Channels() }

// Planes is the number of data planes a buffer in this format has.
func (p AudioParams) Planes() int {
	if p.Format.Planar() {
		return p.Channels()
	}
	return 1
}

// PlaneBytes is the number of bytes n samples occupy in one plane.
func (p AudioParams) PlaneBytes(n int) int {
	size := n * p.Format.BytesPerSample()
	if !p.Format.Planar() {
		size *= p.Channels()
	}
	return size
}

func (p AudioParams) String() string {
	return fmt.Sprintf("%d Hz %s %s", p.SampleRate, p.Layout, p.Format)
}
