package concat

import "github.com/backmassage/reelcat/internal/media"

// GlobalClock holds the output timeline: the next video frame index and the
// next audio sample index. Both only advance by what was actually handed to
// an encoder and never reset between sources.
type GlobalClock struct {
	videoFrames  int64
	audioSamples int64
}

// StampVideo gives f the next frame index and advances by one.
func (c *GlobalClock) StampVideo(f media.VideoFrame) {
	f.SetPTS(c.videoFrames)
	c.videoFrames++
}

// StampAudio gives b the next sample index and advances by its length.
func (c *GlobalClock) StampAudio(b *media.AudioBuffer) {
	b.PTS = c.audioSamples
	c.audioSamples += int64(b.Samples)
}

// VideoFrames is the number of frames stamped so far.
func (c GlobalClock) VideoFrames() int64 { return c.videoFrames }

// AudioSamples is the number of samples stamped so far.
func (c GlobalClock) AudioSamples() int64 { return c.audioSamples }
