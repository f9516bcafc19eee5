package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveAudio(t *testing.T) {
	src := AudioParams{SampleRate: 44100, Layout: LayoutMono, Format: SampleS16}

	t.Run("inferred from source", func(t *testing.T) {
		tf := &TargetFormat{}
		require.NoError(t, tf.ResolveAudio(src))
		assert.Equal(t, src, *tf.Audio)
		assert.Equal(t, NewRational(1, 44100), tf.AudioTimeBase())
	})

	t.Run("preset fields win", func(t *testing.T) {
		tf := &TargetFormat{AudioPreset: AudioParams{SampleRate: 48000, Format: SampleFltP}}
		require.NoError(t, tf.ResolveAudio(src))
		assert.Equal(t, AudioParams{SampleRate: 48000, Layout: LayoutMono, Format: SampleFltP}, *tf.Audio)
	})

	t.Run("immutable once resolved", func(t *testing.T) {
		tf := &TargetFormat{}
		require.NoError(t, tf.ResolveAudio(src))
		require.NoError(t, tf.ResolveAudio(stereoFltp))
		assert.Equal(t, src, *tf.Audio)
	})
}

func TestSourceDescriptorAudio(t *testing.T) {
	d := SourceDescriptor{Audio: WithoutAudio{}}
	assert.False(t, d.HasAudio())

	d.Audio = WithAudio{Params: stereoFltp}
	p, ok := d.AudioParams()
	require.True(t, ok)
	assert.Equal(t, stereoFltp, p)
}
