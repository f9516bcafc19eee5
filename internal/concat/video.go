package concat

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/backmassage/reelcat/internal/media"
)

// runVideo decodes every frame of src, normalizes and restamps it, and
// encodes it. It returns the number of frames written.
func (p *Pipeline) runVideo(ctx context.Context, src media.SourceDescriptor) (int64, error) {
	serr := func(op string, kind, err error) error {
		return &SourceError{Op: op, Index: src.Index, Path: src.Path, Kind: kind, Err: err}
	}

	dec, err := p.backend.OpenVideo(ctx, src)
	if err != nil {
		return 0, serr("open video", ErrDecode, err)
	}
	defer dec.Close()

	var frames int64
	for {
		if err := ctx.Err(); err != nil {
			return frames, fmt.Errorf("%w: %w", ErrAborted, err)
		}
		f, err := dec.ReadFrame(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return frames, serr("decode video", ErrDecode, err)
		}

		nf, err := p.norm.Normalize(f)
		f.Release()
		if err != nil {
			return frames, serr("scale video", ErrEncode, err)
		}
		if nf.Width() != p.target.Width || nf.Height() != p.target.Height || nf.PixelFormat() != p.target.PixelFormat {
			nf.Release()
			return frames, serr("scale video", ErrEncode, fmt.Errorf("frame is %dx%d %s, want %dx%d %s",
				nf.Width(), nf.Height(), nf.PixelFormat(), p.target.Width, p.target.Height, p.target.PixelFormat))
		}

		p.clock.StampVideo(nf)
		pkts, err := p.venc.Encode(nf)
		nf.Release()
		if err != nil {
			media.DropPackets(pkts)
			return frames, serr("encode video", ErrEncode, err)
		}
		if err := p.write(pkts); err != nil {
			return frames, serr("mux video", ErrMux, err)
		}
		frames++
	}
	return frames, nil
}
