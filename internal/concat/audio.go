package concat

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/backmassage/reelcat/internal/media"
)

// runAudio writes exactly as much audio for src as its frames of video
// last. Sources without audio contribute silence; sources with audio are
// decoded, resampled when needed, then padded or trimmed.
func (p *Pipeline) runAudio(ctx context.Context, src media.SourceDescriptor, frames int64) (Alignment, error) {
	if p.target.Audio == nil {
		return Alignment{}, nil
	}
	expected := ExpectedSamples(frames, p.target.FrameRate, p.target.Audio.SampleRate)
	fifo := media.NewAudioFIFO(*p.target.Audio)

	switch src.Audio.(type) {
	case media.WithAudio:
		if err := p.decodeAudio(ctx, src, fifo); err != nil {
			return Alignment{}, err
		}
	case media.WithoutAudio:
	}

	al, err := Align(fifo, expected)
	if err != nil {
		return al, &SourceError{Op: "pad audio", Index: src.Index, Path: src.Path, Kind: ErrResample, Err: err}
	}
	switch {
	case al.Padded > 0:
		p.log.Debug(p.opts.Verbose, "  audio: pad %d samples (%d decoded, %d expected)", al.Padded, al.Actual, al.Expected)
	case al.Trimmed > 0:
		p.log.Debug(p.opts.Verbose, "  audio: trim %d samples (%d decoded, %d expected)", al.Trimmed, al.Actual, al.Expected)
	}

	for fifo.Len() > 0 {
		chunk := fifo.Read(p.opts.ChunkSize)
		p.clock.StampAudio(chunk)
		pkts, err := p.aenc.Encode(chunk)
		if err != nil {
			media.DropPackets(pkts)
			return al, &SourceError{Op: "encode audio", Index: src.Index, Path: src.Path, Kind: ErrEncode, Err: err}
		}
		if err := p.write(pkts); err != nil {
			return al, &SourceError{Op: "mux audio", Index: src.Index, Path: src.Path, Kind: ErrMux, Err: err}
		}
	}
	return al, nil
}

// decodeAudio fills fifo with all of src's audio in the target params.
// Source timestamps are dropped; only sample content and count survive.
func (p *Pipeline) decodeAudio(ctx context.Context, src media.SourceDescriptor, fifo *media.AudioFIFO) (err error) {
	serr := func(op string, kind, err error) error {
		return &SourceError{Op: op, Index: src.Index, Path: src.Path, Kind: kind, Err: err}
	}
	want := fifo.Params()

	dec, err := p.backend.OpenAudio(ctx, src)
	if err != nil {
		return serr("open audio", ErrDecode, err)
	}
	defer dec.Close()

	var (
		rs   Resampler
		from media.AudioParams
	)
	// drain flushes the current resampler into fifo and closes it.
	drain := func() error {
		if rs == nil {
			return nil
		}
		defer func() { _ = rs.Close(); rs = nil }()
		out, err := rs.Flush()
		if err != nil {
			return serr("resample audio", ErrResample, err)
		}
		if out != nil && out.Samples > 0 {
			if err := fifo.Write(out); err != nil {
				return serr("resample audio", ErrResample, err)
			}
		}
		return nil
	}
	defer func() {
		if rs != nil {
			_ = rs.Close()
		}
	}()

	for {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %w", ErrAborted, err)
		}
		buf, err := dec.ReadAudio(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return serr("decode audio", ErrDecode, err)
		}
		if buf.Samples == 0 {
			continue
		}

		if buf.Params == want {
			if err := drain(); err != nil {
				return err
			}
			if err := fifo.Write(buf); err != nil {
				return serr("buffer audio", ErrResample, err)
			}
			continue
		}

		// Decoders can change params mid-stream; a resampler is bound to one
		// input format.
		if rs != nil && buf.Params != from {
			if err := drain(); err != nil {
				return err
			}
		}
		if rs == nil {
			if rs, err = p.backend.NewResampler(buf.Params, want); err != nil {
				return serr("open resampler", ErrResample, fmt.Errorf("%s -> %s: %w", buf.Params, want, err))
			}
			from = buf.Params
		}
		out, err := rs.Resample(buf)
		if err != nil {
			return serr("resample audio", ErrResample, err)
		}
		if out != nil && out.Samples > 0 {
			if err := fifo.Write(out); err != nil {
				return serr("resample audio", ErrResample, err)
			}
		}
	}
	return drain()
}
