package libav

import (
	"context"

	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/backmassage/reelcat/internal/media"
)

type videoDecoder struct {
	*demuxer
}

func (v *videoDecoder) ReadFrame(ctx context.Context) (media.VideoFrame, error) {
	if err := v.next(ctx); err != nil {
		return nil, err
	}
	f := astiav.AllocFrame()
	if err := f.Ref(v.frame); err != nil {
		f.Free()
		v.frame.Unref()
		return nil, errors.Wrap(err, "ref frame")
	}
	v.frame.Unref()
	return &videoFrame{f: f}, nil
}

type audioDecoder struct {
	*demuxer
}

func (a *audioDecoder) ReadAudio(ctx context.Context) (*media.AudioBuffer, error) {
	if err := a.next(ctx); err != nil {
		return nil, err
	}
	defer a.frame.Unref()
	p, err := frameParams(a.frame)
	if err != nil {
		return nil, errors.Wrap(err, a.path)
	}
	return bufferFromFrame(a.frame, p)
}
