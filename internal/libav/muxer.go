package libav

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/backmassage/reelcat/internal/concat"
	"github.com/backmassage/reelcat/internal/media"
)

type outStream struct {
	st *astiav.Stream
	tb media.Rational
}

// muxer writes to a hidden temp file beside the destination. Finalize
// renames it into place; Discard removes it, so an interrupted run never
// leaves a truncated file at the requested path.
type muxer struct {
	path    string
	tmp     string
	fc      *astiav.FormatContext
	pb      *astiav.IOContext
	streams [2]*outStream
	header  bool
	done    bool
}

// TempPath returns the name the output is written under until Finalize.
func TempPath(path string) string {
	dir, base := filepath.Split(path)
	return filepath.Join(dir, "."+uuid.NewString()+"-"+base)
}

func createMuxer(path string, metadata map[string]string) (_ *muxer, err error) {
	m := &muxer{path: path, tmp: TempPath(path)}
	// The container is picked from the destination's extension; the temp
	// name keeps it.
	if m.fc, err = astiav.AllocOutputFormatContext(nil, "", m.tmp); err != nil {
		return nil, errors.Wrapf(err, "no container format for %s", path)
	}
	if m.fc == nil {
		return nil, errors.Errorf("no container format for %s", path)
	}
	defer func() {
		if err != nil {
			_ = m.Discard()
		}
	}()

	if len(metadata) > 0 {
		d, err := newDictionary(metadata)
		if err != nil {
			return nil, err
		}
		// The format context owns d from here on.
		m.fc.SetMetadata(d)
	}
	if !m.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagNofile) {
		if m.pb, err = astiav.OpenIOContext(m.tmp, astiav.NewIOContextFlags(astiav.IOContextFlagWrite), nil, nil); err != nil {
			return nil, errors.Wrapf(err, "create %s", m.tmp)
		}
		m.fc.SetPb(m.pb)
	}
	return m, nil
}

func (m *muxer) globalHeader() bool {
	return m.fc.OutputFormat().Flags().Has(astiav.IOFormatFlagGlobalheader)
}

func (m *muxer) addStream(kind media.StreamKind, cc *astiav.CodecContext) error {
	if m.header {
		return errors.New("stream added after header")
	}
	st := m.fc.NewStream(nil)
	if st == nil {
		return errors.Errorf("new %s stream", kind)
	}
	if err := cc.ToCodecParameters(st.CodecParameters()); err != nil {
		return errors.Wrapf(err, "copy %s codec parameters", kind)
	}
	st.SetTimeBase(cc.TimeBase())
	m.streams[kind] = &outStream{st: st, tb: fromAV(cc.TimeBase())}
	return nil
}

func (m *muxer) AddVideoStream(t *media.TargetFormat) (concat.VideoEncoder, error) {
	e, err := newVideoEncoder(t, m.globalHeader())
	if err != nil {
		return nil, err
	}
	if err := m.addStream(media.StreamVideo, e.cc); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (m *muxer) AddAudioStream(t *media.TargetFormat) (concat.AudioEncoder, error) {
	if t.Audio == nil {
		return nil, errors.New("audio target unresolved")
	}
	e, err := newAudioEncoder(t, m.globalHeader())
	if err != nil {
		return nil, err
	}
	if err := m.addStream(media.StreamAudio, e.cc); err != nil {
		e.Close()
		return nil, err
	}
	return e, nil
}

func (m *muxer) WriteHeader() error {
	opts := map[string]string{}
	if name := m.fc.OutputFormat().Name(); strings.Contains(name, "mp4") || strings.Contains(name, "mov") {
		opts["movflags"] = "+faststart"
	}
	d, err := newDictionary(opts)
	if err != nil {
		return err
	}
	defer d.Free()
	if err := m.fc.WriteHeader(d); err != nil {
		return errors.Wrapf(err, "write header to %s", m.tmp)
	}
	// The header may adjust stream time bases.
	for _, s := range m.streams {
		if s != nil {
			s.tb = fromAV(s.st.TimeBase())
		}
	}
	m.header = true
	return nil
}

func (m *muxer) WritePacket(p media.Packet) error {
	pkt, ok := p.Native.(*astiav.Packet)
	if !ok || pkt == nil {
		return errors.Errorf("%s packet was not produced by this backend", p.Stream)
	}
	defer pkt.Free()
	s := m.streams[p.Stream]
	if s == nil || !m.header {
		return errors.Errorf("no open %s stream", p.Stream)
	}
	pkt.SetStreamIndex(s.st.Index())
	pkt.RescaleTs(toAV(p.TimeBase), s.st.TimeBase())
	if err := m.fc.WriteInterleavedFrame(pkt); err != nil {
		return errors.Wrapf(err, "write %s packet", p.Stream)
	}
	return nil
}

func (m *muxer) Finalize() error {
	if m.done {
		return errors.New("output already closed")
	}
	if err := m.fc.WriteTrailer(); err != nil {
		_ = m.Discard()
		return errors.Wrapf(err, "write trailer to %s", m.tmp)
	}
	m.closeIO()
	m.done = true
	if err := os.Rename(m.tmp, m.path); err != nil {
		_ = os.Remove(m.tmp)
		return errors.Wrapf(err, "move output into place")
	}
	return nil
}

func (m *muxer) Discard() error {
	if m.done {
		return nil
	}
	m.closeIO()
	m.done = true
	if err := os.Remove(m.tmp); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "remove %s", m.tmp)
	}
	return nil
}

func (m *muxer) closeIO() {
	if m.pb != nil {
		_ = m.pb.Close()
		m.pb.Free()
		m.pb = nil
	}
	if m.fc != nil {
		m.fc.Free()
		m.fc = nil
	}
}
