package libav

import (
	"context"

	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/backmassage/reelcat/internal/concat"
	"github.com/backmassage/reelcat/internal/media"
)

// Options tunes the backend.
type Options struct {
	// DecoderThreads is passed to every decoder; 0 lets libavcodec choose.
	DecoderThreads int
	// Verbose raises libav's own log level from error to info.
	Verbose bool
}

// Backend is the production concat.Backend.
type Backend struct {
	opts Options
}

var _ concat.Backend = (*Backend)(nil)

// New configures libav logging and returns a Backend.
func New(opts Options) *Backend {
	if opts.Verbose {
		astiav.SetLogLevel(astiav.LogLevelInfo)
	} else {
		astiav.SetLogLevel(astiav.LogLevelError)
	}
	return &Backend{opts: opts}
}

// HasEncoder reports whether libavcodec was built with the named encoder.
func HasEncoder(name string) bool {
	return astiav.FindEncoderByName(name) != nil
}

func (b *Backend) OpenVideo(ctx context.Context, src media.SourceDescriptor) (concat.VideoDecoder, error) {
	d, err := openDemuxer(ctx, src.Path, astiav.MediaTypeVideo, b.opts.DecoderThreads)
	if err != nil {
		return nil, err
	}
	return &videoDecoder{d}, nil
}

func (b *Backend) OpenAudio(ctx context.Context, src media.SourceDescriptor) (concat.AudioDecoder, error) {
	d, err := openDemuxer(ctx, src.Path, astiav.MediaTypeAudio, b.opts.DecoderThreads)
	if err != nil {
		return nil, err
	}
	return &audioDecoder{d}, nil
}

func (b *Backend) NewNormalizer(target *media.TargetFormat) (concat.FrameNormalizer, error) {
	return newNormalizer(target)
}

func (b *Backend) NewResampler(from, to media.AudioParams) (concat.Resampler, error) {
	return newResampler(from, to)
}

func (b *Backend) CreateMuxer(path string, metadata map[string]string) (concat.Muxer, error) {
	return createMuxer(path, metadata)
}

func toAV(r media.Rational) astiav.Rational {
	return astiav.NewRational(int(r.Num), int(r.Den))
}

func fromAV(r astiav.Rational) media.Rational {
	return media.NewRational(int64(r.Num()), int64(r.Den()))
}

// newDictionary copies opts into a libav dictionary. The caller frees it.
func newDictionary(opts map[string]string) (*astiav.Dictionary, error) {
	d := astiav.NewDictionary()
	for k, v := range opts {
		if err := d.Set(k, v, 0); err != nil {
			d.Free()
			return nil, errors.Wrapf(err, "set option %s=%s", k, v)
		}
	}
	return d, nil
}
