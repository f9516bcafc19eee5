package libav

import (
	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/backmassage/reelcat/internal/media"
)

var sampleFormats = map[media.SampleFormat]astiav.SampleFormat{
	media.SampleU8:   astiav.SampleFormatU8,
	media.SampleS16:  astiav.SampleFormatS16,
	media.SampleS32:  astiav.SampleFormatS32,
	media.SampleS64:  astiav.SampleFormatS64,
	media.SampleFlt:  astiav.SampleFormatFlt,
	media.SampleDbl:  astiav.SampleFormatDbl,
	media.SampleU8P:  astiav.SampleFormatU8P,
	media.SampleS16P: astiav.SampleFormatS16P,
	media.SampleS32P: astiav.SampleFormatS32P,
	media.SampleS64P: astiav.SampleFormatS64P,
	media.SampleFltP: astiav.SampleFormatFltp,
	media.SampleDblP: astiav.SampleFormatDblp,
}

// Keys are libav layout names; "5.0" and "5.1" are the back-speaker
// variants and the side variants carry a "(side)" suffix.
var channelLayouts = map[media.ChannelLayout]astiav.ChannelLayout{
	media.LayoutMono:       astiav.ChannelLayoutMono,
	media.LayoutStereo:     astiav.ChannelLayoutStereo,
	media.Layout2Point1:    astiav.ChannelLayout2Point1,
	media.LayoutSurround:   astiav.ChannelLayoutSurround,
	media.Layout4Point0:    astiav.ChannelLayout4Point0,
	media.LayoutQuad:       astiav.ChannelLayoutQuad,
	media.Layout5Point0:    astiav.ChannelLayout5Point0Back,
	media.Layout5Point0Sid: astiav.ChannelLayout5Point0,
	media.Layout5Point1:    astiav.ChannelLayout5Point1Back,
	media.Layout5Point1Sid: astiav.ChannelLayout5Point1,
	media.Layout7Point1:    astiav.ChannelLayout7Point1,
}

func avSampleFormat(f media.SampleFormat) (astiav.SampleFormat, error) {
	if v, ok := sampleFormats[f]; ok {
		return v, nil
	}
	return astiav.SampleFormatNone, errors.Errorf("unsupported sample format %q", f)
}

func avChannelLayout(l media.ChannelLayout) (astiav.ChannelLayout, error) {
	if v, ok := channelLayouts[l]; ok {
		return v, nil
	}
	return astiav.ChannelLayout{}, errors.Errorf("unsupported channel layout %q", l)
}

// frameParams reads the audio params a decoded or converted frame carries.
// Layouts libav describes without a name (unordered channels) fall back to
// the default layout for their channel count.
func frameParams(f *astiav.Frame) (media.AudioParams, error) {
	p := media.AudioParams{
		SampleRate: f.SampleRate(),
		Format:     media.SampleFormat(f.SampleFormat().Name()),
		Layout:     media.ChannelLayout(f.ChannelLayout().String()),
	}
	if !p.Layout.Valid() {
		l, ok := media.LayoutForChannels(f.ChannelLayout().Channels())
		if !ok {
			return p, errors.Errorf("unsupported channel layout %q", f.ChannelLayout().String())
		}
		p.Layout = l
	}
	if !p.Valid() {
		return p, errors.Errorf("unsupported audio params %s", p)
	}
	return p, nil
}

// bufferFromFrame copies an audio frame's samples into Go memory.
func bufferFromFrame(f *astiav.Frame, p media.AudioParams) (*media.AudioBuffer, error) {
	n := f.NbSamples()
	if n == 0 {
		return &media.AudioBuffer{Params: p, Planes: make([][]byte, p.Planes())}, nil
	}
	data, err := f.Data().Bytes(1)
	if err != nil {
		return nil, errors.Wrap(err, "read samples")
	}
	size := p.PlaneBytes(n)
	if len(data) < size*p.Planes() {
		return nil, errors.Errorf("frame holds %d bytes, %d samples of %s need %d", len(data), n, p, size*p.Planes())
	}
	b := &media.AudioBuffer{Params: p, Samples: n, Planes: make([][]byte, p.Planes())}
	for i := range b.Planes {
		b.Planes[i] = data[i*size : (i+1)*size]
	}
	return b, nil
}

// fillFrame makes f a fresh audio frame holding b's samples.
func fillFrame(f *astiav.Frame, b *media.AudioBuffer) error {
	sf, err := avSampleFormat(b.Params.Format)
	if err != nil {
		return err
	}
	cl, err := avChannelLayout(b.Params.Layout)
	if err != nil {
		return err
	}
	f.Unref()
	f.SetSampleFormat(sf)
	f.SetChannelLayout(cl)
	f.SetSampleRate(b.Params.SampleRate)
	f.SetNbSamples(b.Samples)
	if err := f.AllocBuffer(0); err != nil {
		return errors.Wrap(err, "allocate audio frame")
	}
	size := b.Params.PlaneBytes(b.Samples)
	data := make([]byte, 0, size*len(b.Planes))
	for _, pl := range b.Planes {
		data = append(data, pl[:size]...)
	}
	if err := f.Data().SetBytes(data, 1); err != nil {
		return errors.Wrap(err, "write samples")
	}
	f.SetPts(b.PTS)
	return nil
}

// videoFrame wraps a decoded or scaled libav frame. Release frees it.
type videoFrame struct {
	f *astiav.Frame
}

func (v *videoFrame) Width() int          { return v.f.Width() }
func (v *videoFrame) Height() int         { return v.f.Height() }
func (v *videoFrame) PixelFormat() string { return v.f.PixelFormat().Name() }
func (v *videoFrame) PTS() int64          { return v.f.Pts() }
func (v *videoFrame) SetPTS(pts int64)    { v.f.SetPts(pts) }

func (v *videoFrame) Release() {
	if v.f != nil {
		v.f.Free()
		v.f = nil
	}
}

func unwrapFrame(f media.VideoFrame) (*astiav.Frame, error) {
	v, ok := f.(*videoFrame)
	if !ok || v.f == nil {
		return nil, errors.Errorf("frame %T was not produced by this backend", f)
	}
	return v.f, nil
}
