package concat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/reelcat/internal/media"
)

var stereo48k = media.AudioParams{SampleRate: 48000, Layout: media.LayoutStereo, Format: media.SampleFltP}

func TestExpectedSamples(t *testing.T) {
	tests := []struct {
		name   string
		frames int64
		rate   media.Rational
		sr     int
		want   int64
	}{
		{"one second at 30", 30, media.NewRational(30, 1), 48000, 48000},
		{"ntsc exact", 10, media.NewRational(30000, 1001), 48000, 16016},
		{"ntsc rounds down", 7, media.NewRational(30000, 1001), 48000, 11211},      // 11211.2
		{"rounds down below half", 1, media.NewRational(30000, 1001), 44100, 1471}, // 1471.47
		{"rounds up above half", 1, media.NewRational(30000, 1001), 22050, 736},    // 735.735
		{"tie rounds away from zero", 1, media.NewRational(4, 1), 10, 3},           // 2.5
		{"no frames", 0, media.NewRational(25, 1), 48000, 0},
		{"large run stays exact", 1_000_000, media.NewRational(24000, 1001), 48000, 2002000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExpectedSamples(tt.frames, tt.rate, tt.sr)
			if got != tt.want {
				t.Errorf("ExpectedSamples(%d, %s, %d) = %d, want %d", tt.frames, tt.rate, tt.sr, got, tt.want)
			}
		})
	}
}

func fifoWith(t *testing.T, n int) *media.AudioFIFO {
	t.Helper()
	f := media.NewAudioFIFO(stereo48k)
	b := media.NewAudioBuffer(stereo48k, n)
	for _, pl := range b.Planes {
		for i := range pl {
			pl[i] = 7
		}
	}
	require.NoError(t, f.Write(b))
	return f
}

func TestAlign_TrimsSurplusFromEnd(t *testing.T) {
	f := fifoWith(t, 1100)
	al, err := Align(f, 1000)
	require.NoError(t, err)
	assert.Equal(t, Alignment{Expected: 1000, Actual: 1100, Trimmed: 100}, al)
	assert.Equal(t, 1000, f.Len())

	// The kept samples are the leading ones.
	out := f.Read(1000)
	assert.Equal(t, byte(7), out.Planes[1][len(out.Planes[1])-1])
}

func TestAlign_PadsDeficitWithTrailingSilence(t *testing.T) {
	f := fifoWith(t, 950)
	al, err := Align(f, 1000)
	require.NoError(t, err)
	assert.Equal(t, Alignment{Expected: 1000, Actual: 950, Padded: 50}, al)
	require.Equal(t, 1000, f.Len())

	out := f.Read(1000)
	size := stereo48k.PlaneBytes(1)
	assert.Equal(t, byte(7), out.Planes[0][949*size])
	for _, pl := range out.Planes {
		for _, v := range pl[950*size:] {
			require.Zero(t, v)
		}
	}
}

func TestAlign_ExactIsUntouched(t *testing.T) {
	f := fifoWith(t, 1000)
	al, err := Align(f, 1000)
	require.NoError(t, err)
	assert.Zero(t, al.Padded)
	assert.Zero(t, al.Trimmed)
	assert.Equal(t, 1000, f.Len())
}

func TestSilence(t *testing.T) {
	u8 := media.AudioParams{SampleRate: 8000, Layout: media.LayoutMono, Format: media.SampleU8}
	b := Silence(u8, 16)
	require.Equal(t, 16, b.Samples)
	for _, v := range b.Planes[0] {
		require.Equal(t, byte(0x80), v)
	}

	s := Silence(stereo48k, 4)
	assert.Len(t, s.Planes, 2)
	assert.Len(t, s.Planes[0], 16)
}

func TestGlobalClock(t *testing.T) {
	var c GlobalClock
	a := media.NewAudioBuffer(stereo48k, 1024)
	b := media.NewAudioBuffer(stereo48k, 500)
	c.StampAudio(a)
	c.StampAudio(b)
	assert.Equal(t, int64(0), a.PTS)
	assert.Equal(t, int64(1024), b.PTS)
	assert.Equal(t, int64(1524), c.AudioSamples())
	assert.Zero(t, c.VideoFrames())
}
