package media

// VideoParams are the declared properties of a source's primary video stream.
type VideoParams struct {
	Width       int
	Height      int
	FrameRate   Rational
	PixelFormat string
	Codec       string
	BitRate     int64
}

// AudioTrack is a source's audio, resolved once at probe time. It is either
// WithAudio or WithoutAudio; callers switch on the concrete type instead of
// re-inspecting the source while it is processed.
type AudioTrack interface {
	audioTrack()
}

// WithAudio marks a source whose first audio stream has the given params.
type WithAudio struct {
	Params AudioParams
	Codec  string
}

// WithoutAudio marks a source that has no audio stream.
type WithoutAudio struct{}

func (WithAudio) audioTrack()    {}
func (WithoutAudio) audioTrack() {}

// SourceDescriptor is everything known about one input before it is decoded.
type SourceDescriptor struct {
	Index    int
	Path     string
	Size     int64
	Duration float64 // seconds, as declared by the container
	Video    VideoParams
	Audio    AudioTrack
}

// AudioParams returns the source's audio params and true, or false when the
// source is silent.
func (d SourceDescriptor) AudioParams() (AudioParams, bool) {
	if a, ok := d.Audio.(WithAudio); ok {
		return a.Params, true
	}
	return AudioParams{}, false
}

// HasAudio reports whether the source carries an audio stream.
func (d SourceDescriptor) HasAudio() bool {
	_, ok := d.AudioParams()
	return ok
}
