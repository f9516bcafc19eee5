package media

// VideoFrame is a decoded picture owned by a backend. PTS is the decoder's
// timestamp until the pipeline restamps it.
type VideoFrame interface {
	Width() int
	Height() int
	PixelFormat() string
	PTS() int64
	SetPTS(int64)
	// Release returns the frame's memory to the backend. The frame must not
	// be used afterwards.
	Release()
}

// StreamKind identifies an output stream.
type StreamKind int

const (
	StreamVideo StreamKind = iota
	StreamAudio
)

func (k StreamKind) String() string {
	if k == StreamAudio {
		return "audio"
	}
	return "video"
}

// Packet is an encoded unit for one output stream. Timestamps are in
// TimeBase units. Native carries the backend's own packet so a muxer from
// the same backend can write it without a copy; Data is set otherwise.
// Free, when set, returns Native to the backend.
type Packet struct {
	Stream   StreamKind
	PTS      int64
	DTS      int64
	Duration int64
	Key      bool
	TimeBase Rational
	Size     int
	Data     []byte
	Native   any
	Free     func()
}

// Drop frees a packet that will not be written.
func (p Packet) Drop() {
	if p.Free != nil {
		p.Free()
	}
}

// DropPackets drops every packet in pkts.
func DropPackets(pkts []Packet) {
	for _, p := range pkts {
		p.Drop()
	}
}
