package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var stereoFltp = AudioParams{SampleRate: 48000, Layout: LayoutStereo, Format: SampleFltP}

func filled(p AudioParams, n int, v byte) *AudioBuffer {
	b := NewAudioBuffer(p, n)
	for _, pl := range b.Planes {
		for i := range pl {
			pl[i] = v
		}
	}
	return b
}

func TestAudioParamsLayout(t *testing.T) {
	assert.Equal(t, 2, stereoFltp.Planes())
	assert.Equal(t, 40, stereoFltp.PlaneBytes(10))

	s16 := AudioParams{SampleRate: 44100, Layout: Layout5Point1, Format: SampleS16}
	assert.Equal(t, 1, s16.Planes())
	assert.Equal(t, 120, s16.PlaneBytes(10))

	assert.Equal(t, byte(0x80), SampleU8.SilenceByte())
	assert.Equal(t, byte(0), SampleS16.SilenceByte())
}

func TestLayoutForChannels(t *testing.T) {
	l, ok := LayoutForChannels(2)
	require.True(t, ok)
	assert.Equal(t, LayoutStereo, l)

	_, ok = LayoutForChannels(7)
	assert.False(t, ok)
}

func TestAudioFIFO_ReadInOrder(t *testing.T) {
	f := NewAudioFIFO(stereoFltp)
	require.NoError(t, f.Write(filled(stereoFltp, 3, 1)))
	require.NoError(t, f.Write(filled(stereoFltp, 2, 2)))
	assert.Equal(t, 5, f.Len())

	first := f.Read(4)
	require.NotNil(t, first)
	assert.Equal(t, 4, first.Samples)
	assert.Equal(t, byte(1), first.Planes[0][0])
	assert.Equal(t, byte(2), first.Planes[1][12])

	rest := f.Read(4)
	require.NotNil(t, rest)
	assert.Equal(t, 1, rest.Samples)
	assert.Equal(t, 0, f.Len())
	assert.Nil(t, f.Read(1))
}

func TestAudioFIFO_Truncate(t *testing.T) {
	f := NewAudioFIFO(stereoFltp)
	require.NoError(t, f.Write(filled(stereoFltp, 10, 1)))
	f.Truncate(4)
	assert.Equal(t, 4, f.Len())
	f.Truncate(8)
	assert.Equal(t, 4, f.Len())

	out := f.Read(10)
	require.NotNil(t, out)
	assert.Len(t, out.Planes[0], 16)
}

func TestAudioFIFO_RejectsForeignFormat(t *testing.T) {
	f := NewAudioFIFO(stereoFltp)
	mono := AudioParams{SampleRate: 48000, Layout: LayoutMono, Format: SampleFltP}
	assert.Error(t, f.Write(NewAudioBuffer(mono, 4)))
}
