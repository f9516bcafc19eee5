package concat

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math"

	"github.com/backmassage/reelcat/internal/media"
)

// DefaultChunkSize is the number of samples handed to the audio encoder
// per call. The last chunk of a source may be shorter.
const DefaultChunkSize = 1024

// State is the pipeline's lifecycle stage. Transitions only move forward.
type State int

const (
	StateInit State = iota
	StatePerSource
	StateFlushing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StatePerSource:
		return "per-source"
	case StateFlushing:
		return "flushing"
	default:
		return "closed"
	}
}

// Options configures a Pipeline. Output is required.
type Options struct {
	Output    string
	Metadata  map[string]string
	ChunkSize int
	Logger    Logger
	Verbose   bool
}

// Progress is reported once per completed source. Index is zero-based.
type Progress struct {
	Index     int
	Total     int
	Path      string
	Frames    int64
	Alignment Alignment
}

// Pipeline concatenates sources into one output. It is not safe for
// concurrent use.
type Pipeline struct {
	backend Backend
	sources []media.SourceDescriptor
	target  media.TargetFormat
	opts    Options
	log     Logger

	state     State
	next      int
	clock     GlobalClock
	finalized bool
	err       error

	mux     Muxer
	venc    VideoEncoder
	aenc    AudioEncoder
	norm    FrameNormalizer
	lastDTS [2]int64
	packets [2]int64
}

// New validates its inputs and returns a pipeline in StateInit. No output
// is created until the first call to Next.
func New(b Backend, sources []media.SourceDescriptor, target media.TargetFormat, opts Options) (*Pipeline, error) {
	if len(sources) == 0 {
		return nil, errors.New("no sources")
	}
	if opts.Output == "" {
		return nil, errors.New("no output path")
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	for i, s := range sources {
		if s.Audio == nil {
			return nil, fmt.Errorf("source %d (%s): audio track not probed", i+1, s.Path)
		}
	}
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	p := &Pipeline{
		backend: b,
		sources: append([]media.SourceDescriptor(nil), sources...),
		target:  target,
		opts:    opts,
		log:     opts.Logger,
	}
	if p.log == nil {
		p.log = nopLogger{}
	}
	for i := range p.sources {
		p.sources[i].Index = i
	}
	p.lastDTS = [2]int64{math.MinInt64, math.MinInt64}
	return p, nil
}

// State returns the current lifecycle stage.
func (p *Pipeline) State() State { return p.state }

// Target returns the output format. Audio is nil until the pipeline has
// started, and stays nil for a run where no source has audio.
func (p *Pipeline) Target() media.TargetFormat { return p.target }

// Clock returns a copy of the output clock.
func (p *Pipeline) Clock() GlobalClock { return p.clock }

// Finalized reports whether the output was completed and moved into place.
func (p *Pipeline) Finalized() bool { return p.finalized }

// Packets returns how many packets were muxed for each stream kind.
func (p *Pipeline) Packets(kind media.StreamKind) int64 { return p.packets[kind] }

// Next processes the next source and reports it. After the last source the
// output is flushed and finalized before that source's Progress is
// returned; the call after that returns io.EOF. Any failure discards the
// output and is returned from every later call.
func (p *Pipeline) Next(ctx context.Context) (Progress, error) {
	if p.err != nil {
		return Progress{}, p.err
	}
	if p.state == StateClosed {
		return Progress{}, io.EOF
	}
	if err := ctx.Err(); err != nil {
		return Progress{}, p.fail(fmt.Errorf("%w: %w", ErrAborted, err))
	}
	if p.state == StateInit {
		if err := p.start(); err != nil {
			return Progress{}, p.fail(err)
		}
		p.state = StatePerSource
	}

	src := p.sources[p.next]
	frames, err := p.runVideo(ctx, src)
	if err != nil {
		return Progress{}, p.fail(err)
	}
	al, err := p.runAudio(ctx, src, frames)
	if err != nil {
		return Progress{}, p.fail(err)
	}
	pr := Progress{Index: p.next, Total: len(p.sources), Path: src.Path, Frames: frames, Alignment: al}
	p.next++

	if p.next == len(p.sources) {
		p.state = StateFlushing
		if err := p.flush(); err != nil {
			return Progress{}, p.fail(err)
		}
		p.release()
		p.state = StateClosed
		p.finalized = true
	}
	return pr, nil
}

// All ranges over the remaining progress items. Breaking out of the loop
// leaves the output unfinished; call Close afterwards.
func (p *Pipeline) All(ctx context.Context) iter.Seq2[Progress, error] {
	return func(yield func(Progress, error) bool) {
		for {
			pr, err := p.Next(ctx)
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(pr, err) || err != nil {
				return
			}
		}
	}
}

// Run drives the pipeline to completion, calling fn after each source. A
// non-nil error from fn stops the run and discards the output.
func (p *Pipeline) Run(ctx context.Context, fn func(Progress) error) (err error) {
	defer func() {
		if cerr := p.Close(); err == nil && cerr != nil && !errors.Is(cerr, ErrAborted) {
			err = cerr
		}
	}()
	for {
		pr, err := p.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if fn != nil {
			if err := fn(pr); err != nil {
				return err
			}
		}
	}
}

// Close releases every resource. If the output was not finalized it is
// discarded and ErrAborted is returned, so an early stop is never mistaken
// for a complete output. Close is idempotent.
func (p *Pipeline) Close() error {
	if p.state == StateClosed {
		if p.finalized || p.err != nil {
			return nil
		}
		return ErrAborted
	}
	p.release()
	var err error
	if p.mux != nil {
		err = p.mux.Discard()
		p.mux = nil
	}
	p.state = StateClosed
	p.err = ErrClosed
	if err != nil {
		return errors.Join(ErrAborted, err)
	}
	return ErrAborted
}

// start resolves the audio target, creates the output and writes its
// header. Every stream must exist before the header, so audio params come
// from the first source probed with audio rather than the first decoded.
func (p *Pipeline) start() error {
	for _, s := range p.sources {
		if ap, ok := s.AudioParams(); ok {
			if err := p.target.ResolveAudio(ap); err != nil {
				return &SourceError{Op: "resolve audio", Index: s.Index, Path: s.Path, Kind: ErrResample, Err: err}
			}
			break
		}
	}

	mux, err := p.backend.CreateMuxer(p.opts.Output, p.opts.Metadata)
	if err != nil {
		return outputError("create output", ErrMux, err)
	}
	p.mux = mux

	if p.venc, err = mux.AddVideoStream(&p.target); err != nil {
		return outputError("open video encoder", ErrEncode, err)
	}
	if p.target.Audio != nil {
		if p.aenc, err = mux.AddAudioStream(&p.target); err != nil {
			return outputError("open audio encoder", ErrEncode, err)
		}
	}
	if p.norm, err = p.backend.NewNormalizer(&p.target); err != nil {
		return outputError("open scaler", ErrEncode, err)
	}
	if err := mux.WriteHeader(); err != nil {
		return outputError("write header", ErrMux, err)
	}
	return nil
}

// flush drains video then audio, then finalizes the container.
func (p *Pipeline) flush() error {
	pkts, err := p.venc.Flush()
	if err != nil {
		media.DropPackets(pkts)
		return outputError("flush video", ErrEncode, err)
	}
	if err := p.write(pkts); err != nil {
		return outputError("flush video", ErrMux, err)
	}
	if p.aenc != nil {
		pkts, err := p.aenc.Flush()
		if err != nil {
			media.DropPackets(pkts)
			return outputError("flush audio", ErrEncode, err)
		}
		if err := p.write(pkts); err != nil {
			return outputError("flush audio", ErrMux, err)
		}
	}
	if err := p.mux.Finalize(); err != nil {
		return outputError("finalize", ErrMux, err)
	}
	p.mux = nil
	return nil
}

// write muxes pkts in order, enforcing non-decreasing DTS per stream. On
// failure the packets not handed to the muxer are dropped.
func (p *Pipeline) write(pkts []media.Packet) error {
	for i, pkt := range pkts {
		if pkt.DTS < p.lastDTS[pkt.Stream] {
			media.DropPackets(pkts[i:])
			return fmt.Errorf("%s dts %d after %d", pkt.Stream, pkt.DTS, p.lastDTS[pkt.Stream])
		}
		if err := p.mux.WritePacket(pkt); err != nil {
			media.DropPackets(pkts[i+1:])
			return err
		}
		p.lastDTS[pkt.Stream] = pkt.DTS
		p.packets[pkt.Stream]++
	}
	return nil
}

// fail releases everything, discards the output and makes err sticky.
func (p *Pipeline) fail(err error) error {
	p.release()
	if p.mux != nil {
		if derr := p.mux.Discard(); derr != nil {
			err = errors.Join(err, derr)
		}
		p.mux = nil
	}
	p.state = StateClosed
	p.err = err
	return err
}

func (p *Pipeline) release() {
	if p.norm != nil {
		_ = p.norm.Close()
		p.norm = nil
	}
	if p.venc != nil {
		_ = p.venc.Close()
		p.venc = nil
	}
	if p.aenc != nil {
		_ = p.aenc.Close()
		p.aenc = nil
	}
}
