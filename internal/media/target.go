package media

import "fmt"

// TargetFormat is the canonical output format. Video fields are fixed before
// any source is read. Audio stays nil until resolved from the first source
// that has audio; a run with no audio never resolves it and writes no audio
// stream.
type TargetFormat struct {
	Width        int
	Height       int
	PixelFormat  string
	FrameRate    Rational
	VideoCodec   string
	VideoOptions map[string]string

	// AudioPreset holds explicitly configured audio fields. Zero fields are
	// filled from the first audio-bearing source by ResolveAudio.
	AudioPreset  AudioParams
	Audio        *AudioParams
	AudioCodec   string
	AudioOptions map[string]string
}

// VideoTimeBase is 1/frame_rate.
func (t *TargetFormat) VideoTimeBase() Rational { return t.FrameRate.Inverse() }

// AudioTimeBase is 1/sample_rate. It panics if audio is unresolved.
func (t *TargetFormat) AudioTimeBase() Rational {
	return NewRational(1, int64(t.Audio.SampleRate))
}

// ResolveAudio fixes the audio params from src, keeping any preset fields.
// It is a no-op once audio is resolved.
func (t *TargetFormat) ResolveAudio(src AudioParams) error {
	if t.Audio != nil {
		return nil
	}
	p := t.AudioPreset
	if p.SampleRate == 0 {
		p.SampleRate = src.SampleRate
	}
	if p.Layout == "" {
		p.Layout = src.Layout
	}
	if p.Format == "" {
		p.Format = src.Format
	}
	if !p.Valid() {
		return fmt.Errorf("cannot resolve audio target from %s", src)
	}
	t.Audio = &p
	return nil
}

// Validate checks the video fields.
func (t *TargetFormat) Validate() error {
	if t.Width <= 0 || t.Height <= 0 {
		return fmt.Errorf("invalid target size %dx%d", t.Width, t.Height)
	}
	if !t.FrameRate.Valid() {
		return fmt.Errorf("invalid target frame rate %s", t.FrameRate)
	}
	if t.PixelFormat == "" || t.VideoCodec == "" {
		return fmt.Errorf("target pixel format and video codec must be set")
	}
	return nil
}
