package libav

import (
	"github.com/asticode/go-astiav"
	"github.com/pkg/errors"

	"github.com/backmassage/reelcat/internal/media"
)

// normalizer scales frames to the target size and pixel format with
// libswscale. The scale context is rebuilt whenever the input geometry
// changes, which happens at every source boundary with mixed inputs.
type normalizer struct {
	width, height int
	pf            astiav.PixelFormat

	ssc    *astiav.SoftwareScaleContext
	srcW   int
	srcH   int
	srcPix astiav.PixelFormat
}

func newNormalizer(t *media.TargetFormat) (*normalizer, error) {
	pf := astiav.FindPixelFormatByName(t.PixelFormat)
	if pf == astiav.PixelFormatNone {
		return nil, errors.Errorf("unknown pixel format %q", t.PixelFormat)
	}
	return &normalizer{width: t.Width, height: t.Height, pf: pf}, nil
}

func (n *normalizer) Normalize(in media.VideoFrame) (media.VideoFrame, error) {
	src, err := unwrapFrame(in)
	if err != nil {
		return nil, err
	}
	dst := astiav.AllocFrame()

	if src.Width() == n.width && src.Height() == n.height && src.PixelFormat() == n.pf {
		if err := dst.Ref(src); err != nil {
			dst.Free()
			return nil, errors.Wrap(err, "ref frame")
		}
		// A decoded keyframe would otherwise force a keyframe in the output.
		dst.SetPictureType(astiav.PictureTypeNone)
		return &videoFrame{f: dst}, nil
	}

	if err := n.ensure(src); err != nil {
		dst.Free()
		return nil, err
	}
	dst.SetWidth(n.width)
	dst.SetHeight(n.height)
	dst.SetPixelFormat(n.pf)
	if err := dst.AllocBuffer(0); err != nil {
		dst.Free()
		return nil, errors.Wrap(err, "allocate scaled frame")
	}
	if err := n.ssc.ScaleFrame(src, dst); err != nil {
		dst.Free()
		return nil, errors.Wrapf(err, "scale %dx%d %s", src.Width(), src.Height(), src.PixelFormat().Name())
	}
	return &videoFrame{f: dst}, nil
}

func (n *normalizer) ensure(src *astiav.Frame) error {
	w, h, pix := src.Width(), src.Height(), src.PixelFormat()
	if n.ssc != nil && w == n.srcW && h == n.srcH && pix == n.srcPix {
		return nil
	}
	n.free()
	ssc, err := astiav.CreateSoftwareScaleContext(
		w, h, pix,
		n.width, n.height, n.pf,
		astiav.NewSoftwareScaleContextFlags(astiav.SoftwareScaleContextFlagBicubic),
	)
	if err != nil {
		return errors.Wrapf(err, "create scaler %dx%d %s -> %dx%d %s",
			w, h, pix.Name(), n.width, n.height, n.pf.Name())
	}
	n.ssc = ssc
	n.srcW, n.srcH, n.srcPix = w, h, pix
	return nil
}

func (n *normalizer) free() {
	if n.ssc != nil {
		n.ssc.Free()
		n.ssc = nil
	}
}

func (n *normalizer) Close() error {
	n.free()
	return nil
}
