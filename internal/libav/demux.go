package libav

import (
	"context"
	"io"

	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"
)

// demuxer reads one stream of one file and decodes it.
type demuxer struct {
	path    string
	fc      *astiav.FormatContext
	st      *astiav.Stream
	cc      *astiav.CodecContext
	pkt     *astiav.Packet
	frame   *astiav.Frame
	drained bool
}

// openDemuxer opens path and a decoder for libavformat's best stream of
// type mt. Attached pictures rank below real video streams.
func openDemuxer(ctx context.Context, path string, mt astiav.MediaType, threads int) (_ *demuxer, err error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d := &demuxer{path: path, fc: astiav.AllocFormatContext()}
	if d.fc == nil {
		return nil, errors.New("alloc format context")
	}
	defer func() {
		if err != nil {
			d.Close()
		}
	}()

	if err := d.fc.OpenInput(path, nil, nil); err != nil {
		d.fc.Free()
		d.fc = nil
		return nil, errors.Wrapf(err, "open %s", path)
	}
	if err := d.fc.FindStreamInfo(nil); err != nil {
		return nil, errors.Wrapf(err, "find stream info in %s", path)
	}
	s, _, err := d.fc.FindBestStream(mt, -1, -1)
	if err != nil || s == nil {
		return nil, errors.Errorf("%s has no %s stream", path, mt)
	}
	d.st = s

	par := d.st.CodecParameters()
	codec := astiav.FindDecoder(par.CodecID())
	if codec == nil {
		return nil, errors.Errorf("no decoder for %s in %s", par.CodecID(), path)
	}
	if d.cc = astiav.AllocCodecContext(codec); d.cc == nil {
		return nil, errors.New("alloc decoder context")
	}
	if err := par.ToCodecContext(d.cc); err != nil {
		return nil, errors.Wrap(err, "copy codec parameters")
	}
	d.cc.SetThreadCount(threads)
	if err := d.cc.Open(codec, nil); err != nil {
		return nil, errors.Wrapf(err, "open %s decoder", codec.Name())
	}
	d.pkt = astiav.AllocPacket()
	d.frame = astiav.AllocFrame()
	return d, nil
}

// next decodes the following frame into d.frame, returning io.EOF once the
// decoder has been drained.
func (d *demuxer) next(ctx context.Context) error {
	for {
		err := d.cc.ReceiveFrame(d.frame)
		switch {
		case err == nil:
			return nil
		case errors.Is(err, astiav.ErrEof):
			return io.EOF
		case !errors.Is(err, astiav.ErrEagain):
			return errors.Wrapf(err, "decode %s", d.path)
		case d.drained:
			return io.EOF
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := d.feed(); err != nil {
			return err
		}
	}
}

// feed sends the next packet of the selected stream to the decoder, or the
// drain signal at end of file.
func (d *demuxer) feed() error {
	for {
		if err := d.fc.ReadFrame(d.pkt); err != nil {
			if errors.Is(err, astiav.ErrEof) {
				d.drained = true
				if err := d.cc.SendPacket(nil); err != nil && !errors.Is(err, astiav.ErrEof) {
					return errors.Wrapf(err, "drain %s", d.path)
				}
				return nil
			}
			return errors.Wrapf(err, "read %s", d.path)
		}
		if d.pkt.StreamIndex() != d.st.Index() {
			d.pkt.Unref()
			continue
		}
		err := d.cc.SendPacket(d.pkt)
		d.pkt.Unref()
		if err != nil && !errors.Is(err, astiav.ErrEagain) {
			return errors.Wrapf(err, "decode %s", d.path)
		}
		return nil
	}
}

func (d *demuxer) Close() error {
	if d.frame != nil {
		d.frame.Free()
		d.frame = nil
	}
	if d.pkt != nil {
		d.pkt.Free()
		d.pkt = nil
	}
	if d.cc != nil {
		d.cc.Free()
		d.cc = nil
	}
	if d.fc != nil {
		d.fc.CloseInput()
		d.fc.Free()
		d.fc = nil
	}
	return nil
}
