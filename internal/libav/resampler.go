package libav

import (
	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/backmassage/reelcat/internal/media"
)

// resampler converts between two fixed audio params with libswresample.
type resampler struct {
	from, to media.AudioParams
	swr      *astiav.SoftwareResampleContext
	in, out  *astiav.Frame

	outFmt    astiav.SampleFormat
	outLayout astiav.ChannelLayout
}

// Extra output room per call for samples swresample is still holding.
const resampleSlack = 1024

func newResampler(from, to media.AudioParams) (*resampler, error) {
	if _, err := avSampleFormat(from.Format); err != nil {
		return nil, err
	}
	if _, err := avChannelLayout(from.Layout); err != nil {
		return nil, err
	}
	outFmt, err := avSampleFormat(to.Format)
	if err != nil {
		return nil, err
	}
	outLayout, err := avChannelLayout(to.Layout)
	if err != nil {
		return nil, err
	}
	swr := astiav.AllocSoftwareResampleContext()
	if swr == nil {
		return nil, errors.New("alloc resample context")
	}
	return &resampler{
		from: from, to: to, swr: swr,
		in: astiav.AllocFrame(), out: astiav.AllocFrame(),
		outFmt: outFmt, outLayout: outLayout,
	}, nil
}

func (r *resampler) prepareOut(n int) error {
	r.out.Unref()
	r.out.SetSampleFormat(r.outFmt)
	r.out.SetChannelLayout(r.outLayout)
	r.out.SetSampleRate(r.to.SampleRate)
	r.out.SetNbSamples(n)
	return errors.Wrap(r.out.AllocBuffer(0), "allocate resampled frame")
}

func (r *resampler) Resample(b *media.AudioBuffer) (*media.AudioBuffer, error) {
	if b.Params != r.from {
		return nil, errors.Errorf("resampler converts %s, got %s", r.from, b.Params)
	}
	if err := fillFrame(r.in, b); err != nil {
		return nil, err
	}
	defer r.in.Unref()
	capacity := int(int64(b.Samples)*int64(r.to.SampleRate)/int64(r.from.SampleRate)) + resampleSlack
	if err := r.prepareOut(capacity); err != nil {
		return nil, err
	}
	if err := r.swr.ConvertFrame(r.in, r.out); err != nil {
		return nil, errors.Wrapf(err, "convert %s -> %s", r.from, r.to)
	}
	defer r.out.Unref()
	return bufferFromFrame(r.out, r.to)
}

// Flush drains the converter's delay line into one buffer.
func (r *resampler) Flush() (*media.AudioBuffer, error) {
	fifo := media.NewAudioFIFO(r.to)
	for {
		if err := r.prepareOut(resampleSlack); err != nil {
			return nil, err
		}
		if err := r.swr.ConvertFrame(nil, r.out); err != nil {
			return nil, errors.Wrap(err, "flush resampler")
		}
		if r.out.NbSamples() == 0 {
			r.out.Unref()
			break
		}
		b, err := bufferFromFrame(r.out, r.to)
		r.out.Unref()
		if err != nil {
			return nil, err
		}
		if err := fifo.Write(b); err != nil {
			return nil, err
		}
	}
	return fifo.Read(fifo.Len()), nil
}

func (r *resampler) Close() error {
	if r.swr != nil {
		r.swr.Free()
		r.swr = nil
	}
	if r.in != nil {
		r.in.Free()
		r.in = nil
	}
	if r.out != nil {
		r.out.Free()
		r.out = nil
	}
	return nil
}
