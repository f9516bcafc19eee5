package media

import "fmt"

// AudioBuffer is a block of PCM samples. Planes holds one slice per channel
// for planar formats and a single interleaved slice otherwise. PTS is in
// units of 1/SampleRate and is only meaningful once the pipeline stamps it.
type AudioBuffer struct {
	Params  AudioParams
	Planes  [][]byte
	Samples int
	PTS     int64
}

// NewAudioBuffer allocates a zero-filled buffer of n samples. Zero bytes
// are silence for every format except unsigned 8-bit.
func NewAudioBuffer(p AudioParams, n int) *AudioBuffer {
	planes := make([][]byte, p.Planes())
	for i := range planes {
		planes[i] = make([]byte, p.PlaneBytes(n))
	}
	return &AudioBuffer{Params: p, Planes: planes, Samples: n}
}

// Check verifies that the plane count and sizes agree with Params and Samples.
func (b *AudioBuffer) Check() error {
	if len(b.Planes) != b.Params.Planes() {
		return fmt.Errorf("audio buffer has %d planes, %s needs %d", len(b.Planes), b.Params, b.Params.Planes())
	}
	want := b.Params.PlaneBytes(b.Samples)
	for i, pl := range b.Planes {
		if len(pl) < want {
			return fmt.Errorf("audio plane %d holds %d bytes, %d samples need %d", i, len(pl), b.Samples, want)
		}
	}
	return nil
}

// AudioFIFO is a sample queue with a fixed format. It decouples the block
// sizes a decoder or resampler produces from the chunk size the encoder is
// fed.
type AudioFIFO struct {
	params AudioParams
	planes [][]byte
	n      int
}

// NewAudioFIFO returns an empty queue for p.
func NewAudioFIFO(p AudioParams) *AudioFIFO {
	return &AudioFIFO{params: p, planes: make([][]byte, p.Planes())}
}

// Params returns the queue's sample format.
func (f *AudioFIFO) Params() AudioParams { return f.params }

// Len returns the number of queued samples.
func (f *AudioFIFO) Len() int { return f.n }

// Write appends all of b. The buffer must already be in the queue's format.
func (f *AudioFIFO) Write(b *AudioBuffer) error {
	if b.Params != f.params {
		return fmt.Errorf("fifo holds %s, got %s", f.params, b.Params)
	}
	if err := b.Check(); err != nil {
		return err
	}
	size := f.params.PlaneBytes(b.Samples)
	for i := range f.planes {
		f.planes[i] = append(f.planes[i], b.Planes[i][:size]...)
	}
	f.n += b.Samples
	return nil
}

// Read removes and returns up to n samples from the front of the queue.
// It returns nil when the queue is empty.
func (f *AudioFIFO) Read(n int) *AudioBuffer {
	if n > f.n {
		n = f.n
	}
	if n <= 0 {
		return nil
	}
	size := f.params.PlaneBytes(n)
	out := &AudioBuffer{Params: f.params, Planes: make([][]byte, len(f.planes)), Samples: n}
	for i := range f.planes {
		out.Planes[i] = append([]byte(nil), f.planes[i][:size]...)
		f.planes[i] = f.planes[i][size:]
	}
	f.n -= n
	return out
}

// Truncate drops samples from the back so that at most n remain.
func (f *AudioFIFO) Truncate(n int) {
	if n < 0 {
		n = 0
	}
	if n >= f.n {
		return
	}
	size := f.params.PlaneBytes(n)
	for i := range f.planes {
		f.planes[i] = f.planes[i][:size]
	}
	f.n = n
}
