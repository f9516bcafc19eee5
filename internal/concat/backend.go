package concat

import (
	"context"

	"github.com/backmassage/reelcat/internal/media"
)

// Backend supplies the codec machinery. Each method returns a resource the
// pipeline closes when it is done with it.
type Backend interface {
	// OpenVideo opens src for decoding its primary video stream.
	OpenVideo(ctx context.Context, src media.SourceDescriptor) (VideoDecoder, error)
	// OpenAudio opens src for decoding its first audio stream. It is only
	// called for sources probed WithAudio.
	OpenAudio(ctx context.Context, src media.SourceDescriptor) (AudioDecoder, error)
	NewNormalizer(target *media.TargetFormat) (FrameNormalizer, error)
	NewResampler(from, to media.AudioParams) (Resampler, error)
	// CreateMuxer prepares an output at path. Nothing is visible at path
	// until Finalize succeeds.
	CreateMuxer(path string, metadata map[string]string) (Muxer, error)
}

// VideoDecoder yields decoded frames in presentation order and io.EOF once
// the stream is exhausted. The caller releases every frame it receives.
type VideoDecoder interface {
	ReadFrame(ctx context.Context) (media.VideoFrame, error)
	Close() error
}

// AudioDecoder yields decoded sample blocks in the source's own params and
// io.EOF once the stream is exhausted.
type AudioDecoder interface {
	ReadAudio(ctx context.Context) (*media.AudioBuffer, error)
	Close() error
}

// FrameNormalizer converts a frame to the target size and pixel format.
// The returned frame is a new handle owned by the caller; the input frame
// is left untouched.
type FrameNormalizer interface {
	Normalize(f media.VideoFrame) (media.VideoFrame, error)
	Close() error
}

// Resampler converts blocks between two fixed audio params. Flush drains
// samples the converter is still holding and may return nil.
type Resampler interface {
	Resample(b *media.AudioBuffer) (*media.AudioBuffer, error)
	Flush() (*media.AudioBuffer, error)
	Close() error
}

// Muxer writes one container. Streams are added before WriteHeader; packets
// are accepted after it. WritePacket owns the packet it is given, whether it
// succeeds or not. Exactly one of Finalize or Discard ends its life.
type Muxer interface {
	AddVideoStream(target *media.TargetFormat) (VideoEncoder, error)
	AddAudioStream(target *media.TargetFormat) (AudioEncoder, error)
	WriteHeader() error
	WritePacket(pkt media.Packet) error
	Finalize() error
	Discard() error
}

// VideoEncoder and AudioEncoder may buffer input, so a call can return no
// packets or several. Flush is called once, after the last Encode.
type VideoEncoder interface {
	Encode(f media.VideoFrame) ([]media.Packet, error)
	Flush() ([]media.Packet, error)
	Close() error
}

type AudioEncoder interface {
	Encode(b *media.AudioBuffer) ([]media.Packet, error)
	Flush() ([]media.Packet, error)
	Close() error
}

// Logger receives per-source diagnostics. Satisfied by *logging.Logger.
type Logger interface {
	Debug(verbose bool, format string, args ...interface{})
}

type nopLogger struct{}

func (nopLogger) Debug(bool, string, ...interface{}) {}
