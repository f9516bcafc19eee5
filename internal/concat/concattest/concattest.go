// Package concattest provides an in-memory concat.Backend. Decoders replay
// scripted frame and sample counts, encoders record what they were fed, and
// the muxer records every packet, so pipeline behavior can be checked
// without codecs or files.
package concattest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/backmassage/reelcat/internal/concat"
	"github.com/backmassage/reelcat/internal/media"
)

// ErrInjected is returned by any operation configured to fail.
var ErrInjected = errors.New("injected failure")

// Source scripts what decoding one path yields.
type Source struct {
	Width, Height int
	PixelFormat   string
	Frames        int

	// AudioParams is what the decoder reports; AudioBlocks are the sample
	// counts of successive decoded blocks. Every byte of block i (0-based)
	// is Marker(i). From block SwitchAt on (when positive) the decoder
	// reports SwitchParams instead.
	AudioParams  media.AudioParams
	AudioBlocks  []int
	SwitchAt     int
	SwitchParams media.AudioParams

	// FailVideoAt makes the decoder fail on that frame (1-based). Zero means never.
	FailVideoAt int
	FailAudio   bool
}

// Descriptor returns the probe result that matches s.
func (s *Source) Descriptor(path string, rate media.Rational) media.SourceDescriptor {
	d := media.SourceDescriptor{
		Path:  path,
		Video: media.VideoParams{Width: s.Width, Height: s.Height, FrameRate: rate, PixelFormat: s.PixelFormat},
		Audio: media.WithoutAudio{},
	}
	if len(s.AudioBlocks) > 0 {
		d.Audio = media.WithAudio{Params: s.AudioParams}
	}
	return d
}

// Backend is a scripted concat.Backend. Configure it before use; the
// recorded fields are read after the pipeline finishes.
type Backend struct {
	Sources map[string]*Source

	// VideoDelay is how many frames the video encoder holds back before it
	// emits packets, like a codec with B-frames. FailEncodeAt makes the
	// video encoder fail on that frame (1-based).
	VideoDelay   int
	FailEncodeAt int
	FailResample bool
	// FailWriteAt makes the muxer reject that packet (1-based).
	FailWriteAt int

	mu         sync.Mutex
	Muxer      *Muxer
	Resamplers int
	live       int
	packets    int
}

// Live returns the number of decoders, resamplers, normalizers and encoders
// that were opened and not yet closed.
func (b *Backend) Live() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.live
}

// LivePackets returns the number of encoded packets that were neither
// written nor dropped.
func (b *Backend) LivePackets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.packets
}

// track counts pkt as live until it is freed once.
func (b *Backend) track(pkt media.Packet) media.Packet {
	b.mu.Lock()
	b.packets++
	b.mu.Unlock()
	var once sync.Once
	pkt.Free = func() {
		once.Do(func() { b.mu.Lock(); b.packets--; b.mu.Unlock() })
	}
	return pkt
}

func (b *Backend) open()  { b.mu.Lock(); b.live++; b.mu.Unlock() }
func (b *Backend) close() { b.mu.Lock(); b.live--; b.mu.Unlock() }

func (b *Backend) source(path string) (*Source, error) {
	s, ok := b.Sources[path]
	if !ok {
		return nil, fmt.Errorf("%s: no such file", path)
	}
	return s, nil
}

func (b *Backend) OpenVideo(_ context.Context, src media.SourceDescriptor) (concat.VideoDecoder, error) {
	s, err := b.source(src.Path)
	if err != nil {
		return nil, err
	}
	b.open()
	return &videoDecoder{b: b, s: s}, nil
}

func (b *Backend) OpenAudio(_ context.Context, src media.SourceDescriptor) (concat.AudioDecoder, error) {
	s, err := b.source(src.Path)
	if err != nil {
		return nil, err
	}
	if s.FailAudio {
		return nil, ErrInjected
	}
	b.open()
	return &audioDecoder{b: b, s: s}, nil
}

func (b *Backend) NewNormalizer(target *media.TargetFormat) (concat.FrameNormalizer, error) {
	b.open()
	return &normalizer{b: b, target: *target}, nil
}

func (b *Backend) NewResampler(from, to media.AudioParams) (concat.Resampler, error) {
	if b.FailResample {
		return nil, ErrInjected
	}
	b.open()
	b.mu.Lock()
	b.Resamplers++
	b.mu.Unlock()
	return &resampler{b: b, from: from, to: to}, nil
}

func (b *Backend) CreateMuxer(path string, metadata map[string]string) (concat.Muxer, error) {
	m := &Muxer{b: b, Path: path, Metadata: metadata}
	b.Muxer = m
	return m, nil
}

// Frame is a picture with no pixel data.
type Frame struct {
	W, H   int
	Format string
	Pts    int64
}

func (f *Frame) Width() int          { return f.W }
func (f *Frame) Height() int         { return f.H }
func (f *Frame) PixelFormat() string { return f.Format }
func (f *Frame) PTS() int64          { return f.Pts }
func (f *Frame) SetPTS(pts int64)    { f.Pts = pts }
func (f *Frame) Release()            {}

type videoDecoder struct {
	b    *Backend
	s    *Source
	read int
}

func (d *videoDecoder) ReadFrame(context.Context) (media.VideoFrame, error) {
	if d.read >= d.s.Frames {
		return nil, io.EOF
	}
	d.read++
	if d.read == d.s.FailVideoAt {
		return nil, ErrInjected
	}
	// Source timestamps start far from zero so tests can tell them apart.
	return &Frame{W: d.s.Width, H: d.s.Height, Format: d.s.PixelFormat, Pts: 90000 + int64(d.read)*3003}, nil
}

func (d *videoDecoder) Close() error { d.b.close(); return nil }

type audioDecoder struct {
	b    *Backend
	s    *Source
	next int
}

// Marker is the byte value filling decoded audio block i. It is never a
// silence byte.
func Marker(i int) byte { return byte(1 + i%100) }

func (d *audioDecoder) ReadAudio(context.Context) (*media.AudioBuffer, error) {
	if d.next >= len(d.s.AudioBlocks) {
		return nil, io.EOF
	}
	params := d.s.AudioParams
	if d.s.SwitchAt > 0 && d.next >= d.s.SwitchAt {
		params = d.s.SwitchParams
	}
	n := d.s.AudioBlocks[d.next]
	mark := Marker(d.next)
	d.next++
	buf := media.NewAudioBuffer(params, n)
	buf.PTS = 12345
	for _, pl := range buf.Planes {
		for i := range pl {
			pl[i] = mark
		}
	}
	return buf, nil
}

func (d *audioDecoder) Close() error { d.b.close(); return nil }

type normalizer struct {
	b      *Backend
	target media.TargetFormat
}

func (n *normalizer) Normalize(f media.VideoFrame) (media.VideoFrame, error) {
	return &Frame{W: n.target.Width, H: n.target.Height, Format: n.target.PixelFormat, Pts: f.PTS()}, nil
}

func (n *normalizer) Close() error { n.b.close(); return nil }

// resampler converts sample counts by the rate ratio, carrying the
// fractional remainder between calls like a real converter's delay line.
// Output samples repeat the first byte of the input they came from.
type resampler struct {
	b        *Backend
	from, to media.AudioParams
	in, out  int64
}

func (r *resampler) Resample(buf *media.AudioBuffer) (*media.AudioBuffer, error) {
	if buf.Params != r.from {
		return nil, fmt.Errorf("resampler bound to %s, got %s", r.from, buf.Params)
	}
	r.in += int64(buf.Samples)
	total := r.in * int64(r.to.SampleRate) / int64(r.from.SampleRate)
	n := int(total - r.out)
	r.out = total
	var mark byte = 1
	if buf.Samples > 0 {
		mark = buf.Planes[0][0]
	}
	out := media.NewAudioBuffer(r.to, n)
	for _, pl := range out.Planes {
		for i := range pl {
			pl[i] = mark
		}
	}
	return out, nil
}

func (r *resampler) Flush() (*media.AudioBuffer, error) { return nil, nil }

func (r *resampler) Close() error { r.b.close(); return nil }

// Muxer records packets in write order.
type Muxer struct {
	b        *Backend
	Path     string
	Metadata map[string]string

	Video *VideoEncoder
	Audio *AudioEncoder

	HeaderWritten bool
	Packets       []media.Packet
	Finalized     bool
	Discarded     bool
}

// StreamPackets returns the recorded packets of one stream.
func (m *Muxer) StreamPackets(kind media.StreamKind) []media.Packet {
	var out []media.Packet
	for _, p := range m.Packets {
		if p.Stream == kind {
			out = append(out, p)
		}
	}
	return out
}

func (m *Muxer) AddVideoStream(target *media.TargetFormat) (concat.VideoEncoder, error) {
	if m.HeaderWritten {
		return nil, errors.New("stream added after header")
	}
	m.b.open()
	m.Video = &VideoEncoder{b: m.b, timeBase: target.VideoTimeBase()}
	return m.Video, nil
}

func (m *Muxer) AddAudioStream(target *media.TargetFormat) (concat.AudioEncoder, error) {
	if m.HeaderWritten {
		return nil, errors.New("stream added after header")
	}
	m.b.open()
	m.Audio = &AudioEncoder{b: m.b, timeBase: target.AudioTimeBase(), params: *target.Audio}
	return m.Audio, nil
}

func (m *Muxer) WriteHeader() error {
	m.HeaderWritten = true
	return nil
}

func (m *Muxer) WritePacket(pkt media.Packet) error {
	defer pkt.Drop()
	if len(m.Packets)+1 == m.b.FailWriteAt {
		return ErrInjected
	}
	if !m.HeaderWritten {
		return errors.New("packet before header")
	}
	if m.Finalized || m.Discarded {
		return errors.New("packet after close")
	}
	m.Packets = append(m.Packets, pkt)
	return nil
}

func (m *Muxer) Finalize() error {
	if m.Finalized || m.Discarded {
		return errors.New("muxer already closed")
	}
	m.Finalized = true
	return nil
}

func (m *Muxer) Discard() error {
	if m.Finalized || m.Discarded {
		return errors.New("muxer already closed")
	}
	m.Discarded = true
	return nil
}

// VideoEncoder records every frame PTS it was given.
type VideoEncoder struct {
	b        *Backend
	timeBase media.Rational
	PTS      []int64
	pending  []int64
	Flushes  int
	closed   bool
}

func (e *VideoEncoder) Encode(f media.VideoFrame) ([]media.Packet, error) {
	if e.Flushes > 0 {
		return nil, errors.New("encode after flush")
	}
	if len(e.PTS)+1 == e.b.FailEncodeAt {
		return nil, ErrInjected
	}
	e.PTS = append(e.PTS, f.PTS())
	e.pending = append(e.pending, f.PTS())
	if len(e.pending) <= e.b.VideoDelay {
		return nil, nil
	}
	pts := e.pending[0]
	e.pending = e.pending[1:]
	return []media.Packet{e.packet(pts)}, nil
}

func (e *VideoEncoder) Flush() ([]media.Packet, error) {
	e.Flushes++
	var out []media.Packet
	for _, pts := range e.pending {
		out = append(out, e.packet(pts))
	}
	e.pending = nil
	return out, nil
}

func (e *VideoEncoder) packet(pts int64) media.Packet {
	return e.b.track(media.Packet{Stream: media.StreamVideo, PTS: pts, DTS: pts, Duration: 1, TimeBase: e.timeBase, Size: 1})
}

func (e *VideoEncoder) Close() error {
	if !e.closed {
		e.closed = true
		e.b.close()
	}
	return nil
}

// AudioEncoder records every chunk it was given.
type AudioEncoder struct {
	b        *Backend
	timeBase media.Rational
	params   media.AudioParams
	PTS      []int64
	Chunks   []int
	Silent   int64
	// Runs is the first byte of every encoded sample, with repeats
	// collapsed, so decode order can be checked.
	Runs    []byte
	Flushes int
	closed  bool
}

// Samples is the total number of samples encoded.
func (e *AudioEncoder) Samples() int64 {
	var n int64
	for _, c := range e.Chunks {
		n += int64(c)
	}
	return n
}

func (e *AudioEncoder) Encode(buf *media.AudioBuffer) ([]media.Packet, error) {
	if e.Flushes > 0 {
		return nil, errors.New("encode after flush")
	}
	if buf.Params != e.params {
		return nil, fmt.Errorf("encoder wants %s, got %s", e.params, buf.Params)
	}
	e.PTS = append(e.PTS, buf.PTS)
	e.Chunks = append(e.Chunks, buf.Samples)
	size := buf.Params.PlaneBytes(1)
	for i := 0; i < buf.Samples; i++ {
		b := buf.Planes[0][i*size]
		if b == buf.Params.Format.SilenceByte() {
			e.Silent++
		}
		if len(e.Runs) == 0 || e.Runs[len(e.Runs)-1] != b {
			e.Runs = append(e.Runs, b)
		}
	}
	return []media.Packet{e.b.track(media.Packet{
		Stream: media.StreamAudio, PTS: buf.PTS, DTS: buf.PTS,
		Duration: int64(buf.Samples), TimeBase: e.timeBase, Size: 1,
	})}, nil
}

func (e *AudioEncoder) Flush() ([]media.Packet, error) {
	e.Flushes++
	return nil, nil
}

func (e *AudioEncoder) Close() error {
	if !e.closed {
		e.closed = true
		e.b.close()
	}
	return nil
}
