package libav

import (
	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/backmassage/reelcat/internal/media"
)

// encoder is the send/receive loop shared by both stream kinds. Packets
// leave as references the muxer writes and frees.
type encoder struct {
	kind    media.StreamKind
	cc      *astiav.CodecContext
	tb      media.Rational
	pkt     *astiav.Packet
	flushed bool
}

func openEncoder(kind media.StreamKind, name string, globalHeader bool, opts map[string]string, setup func(*astiav.CodecContext, *astiav.Codec) error) (*encoder, error) {
	codec := astiav.FindEncoderByName(name)
	if codec == nil {
		return nil, errors.Errorf("encoder %q not available", name)
	}
	cc := astiav.AllocCodecContext(codec)
	if cc == nil {
		return nil, errors.Errorf("alloc %s context", name)
	}
	if err := setup(cc, codec); err != nil {
		cc.Free()
		return nil, err
	}
	if globalHeader {
		cc.SetFlags(cc.Flags().Add(astiav.CodecContextFlagGlobalHeader))
	}
	d, err := newDictionary(opts)
	if err != nil {
		cc.Free()
		return nil, err
	}
	defer d.Free()
	if err := cc.Open(codec, d); err != nil {
		cc.Free()
		return nil, errors.Wrapf(err, "open %s encoder", name)
	}
	return &encoder{kind: kind, cc: cc, tb: fromAV(cc.TimeBase()), pkt: astiav.AllocPacket()}, nil
}

// send submits f (nil drains) and collects every packet now available.
func (e *encoder) send(f *astiav.Frame) ([]media.Packet, error) {
	if err := e.cc.SendFrame(f); err != nil {
		return nil, errors.Wrapf(err, "encode %s", e.kind)
	}
	var out []media.Packet
	for {
		err := e.cc.ReceivePacket(e.pkt)
		if errors.Is(err, astiav.ErrEagain) || errors.Is(err, astiav.ErrEof) {
			return out, nil
		}
		if err != nil {
			return out, errors.Wrapf(err, "receive %s packet", e.kind)
		}
		ref := astiav.AllocPacket()
		if err := ref.Ref(e.pkt); err != nil {
			ref.Free()
			e.pkt.Unref()
			return out, errors.Wrap(err, "ref packet")
		}
		e.pkt.Unref()
		out = append(out, media.Packet{
			Stream:   e.kind,
			PTS:      ref.Pts(),
			DTS:      ref.Dts(),
			Duration: ref.Duration(),
			Key:      ref.Flags().Has(astiav.PacketFlagKey),
			TimeBase: e.tb,
			Size:     ref.Size(),
			Native:   ref,
			Free:     ref.Free,
		})
	}
}

func (e *encoder) flush() ([]media.Packet, error) {
	if e.flushed {
		return nil, errors.Errorf("%s encoder already flushed", e.kind)
	}
	e.flushed = true
	return e.send(nil)
}

func (e *encoder) Close() error {
	if e.pkt != nil {
		e.pkt.Free()
		e.pkt = nil
	}
	if e.cc != nil {
		e.cc.Free()
		e.cc = nil
	}
	return nil
}

// videoEncoder encodes normalized frames whose PTS counts frames.
type videoEncoder struct {
	*encoder
}

func newVideoEncoder(t *media.TargetFormat, globalHeader bool) (*videoEncoder, error) {
	pf := astiav.FindPixelFormatByName(t.PixelFormat)
	if pf == astiav.PixelFormatNone {
		return nil, errors.Errorf("unknown pixel format %q", t.PixelFormat)
	}
	e, err := openEncoder(media.StreamVideo, t.VideoCodec, globalHeader, t.VideoOptions,
		func(cc *astiav.CodecContext, _ *astiav.Codec) error {
			cc.SetWidth(t.Width)
			cc.SetHeight(t.Height)
			cc.SetPixelFormat(pf)
			cc.SetTimeBase(toAV(t.VideoTimeBase()))
			cc.SetFramerate(toAV(t.FrameRate))
			return nil
		})
	if err != nil {
		return nil, err
	}
	return &videoEncoder{e}, nil
}

func (v *videoEncoder) Encode(f media.VideoFrame) ([]media.Packet, error) {
	if v.flushed {
		return nil, errors.New("video encode after flush")
	}
	af, err := unwrapFrame(f)
	if err != nil {
		return nil, err
	}
	return v.send(af)
}

func (v *videoEncoder) Flush() ([]media.Packet, error) { return v.flush() }

// audioEncoder feeds the codec exactly frame_size samples per frame. Input
// chunks of any length are queued; the short remainder goes out on Flush.
// When the codec cannot take the target sample format the queue holds the
// codec's format and chunks are converted on the way in.
type audioEncoder struct {
	*encoder
	params  media.AudioParams
	convert *resampler
	fifo    *media.AudioFIFO
	next    int64
	size    int
	frame   *astiav.Frame
}

func newAudioEncoder(t *media.TargetFormat, globalHeader bool) (*audioEncoder, error) {
	want := *t.Audio
	params := want
	e, err := openEncoder(media.StreamAudio, t.AudioCodec, globalHeader, t.AudioOptions,
		func(cc *astiav.CodecContext, codec *astiav.Codec) error {
			sf, err := avSampleFormat(want.Format)
			if err != nil {
				return err
			}
			if fmts := codec.SampleFormats(); len(fmts) > 0 && !containsFormat(fmts, sf) {
				sf = fmts[0]
				params.Format = media.SampleFormat(sf.Name())
			}
			cl, err := avChannelLayout(want.Layout)
			if err != nil {
				return err
			}
			cc.SetSampleFormat(sf)
			cc.SetChannelLayout(cl)
			cc.SetSampleRate(want.SampleRate)
			cc.SetTimeBase(astiav.NewRational(1, want.SampleRate))
			return nil
		})
	if err != nil {
		return nil, err
	}
	a := &audioEncoder{
		encoder: e,
		params:  params,
		fifo:    media.NewAudioFIFO(params),
		size:    e.cc.FrameSize(),
		frame:   astiav.AllocFrame(),
	}
	if params != want {
		if a.convert, err = newResampler(want, params); err != nil {
			a.Close()
			return nil, err
		}
	}
	return a, nil
}

func containsFormat(fmts []astiav.SampleFormat, f astiav.SampleFormat) bool {
	for _, v := range fmts {
		if v == f {
			return true
		}
	}
	return false
}

func (a *audioEncoder) Encode(b *media.AudioBuffer) ([]media.Packet, error) {
	if a.flushed {
		return nil, errors.New("audio encode after flush")
	}
	if a.fifo.Len() == 0 {
		a.next = b.PTS
	}
	if a.convert != nil {
		cb, err := a.convert.Resample(b)
		if err != nil {
			return nil, err
		}
		b = cb
	}
	if err := a.fifo.Write(b); err != nil {
		return nil, err
	}
	// Codecs with a variable frame size take each chunk as it comes.
	size := a.size
	if size <= 0 {
		size = a.fifo.Len()
	}
	var out []media.Packet
	for a.fifo.Len() >= size && size > 0 {
		pkts, err := a.sendSamples(size)
		out = append(out, pkts...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

func (a *audioEncoder) sendSamples(n int) ([]media.Packet, error) {
	chunk := a.fifo.Read(n)
	chunk.PTS = a.next
	a.next += int64(chunk.Samples)
	if err := fillFrame(a.frame, chunk); err != nil {
		return nil, err
	}
	defer a.frame.Unref()
	return a.send(a.frame)
}

func (a *audioEncoder) Flush() ([]media.Packet, error) {
	var out []media.Packet
	if a.convert != nil {
		tail, err := a.convert.Flush()
		if err != nil {
			return nil, err
		}
		if tail != nil && tail.Samples > 0 {
			if err := a.fifo.Write(tail); err != nil {
				return nil, err
			}
		}
	}
	for a.fifo.Len() > 0 {
		n := a.fifo.Len()
		if a.size > 0 && n > a.size {
			n = a.size
		}
		pkts, err := a.sendSamples(n)
		out = append(out, pkts...)
		if err != nil {
			return out, err
		}
	}
	pkts, err := a.flush()
	return append(out, pkts...), err
}

func (a *audioEncoder) Close() error {
	if a.convert != nil {
		_ = a.convert.Close()
		a.convert = nil
	}
	if a.frame != nil {
		a.frame.Free()
		a.frame = nil
	}
	return a.encoder.Close()
}
