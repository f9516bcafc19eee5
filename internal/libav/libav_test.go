package libav

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/reelcat/internal/concat"
	"github.com/backmassage/reelcat/internal/media"
)

func TestTempPath(t *testing.T) {
	got := TempPath("/out/dir/movie.mp4")
	assert.Equal(t, "/out/dir", filepath.Dir(got))
	base := filepath.Base(got)
	assert.True(t, strings.HasPrefix(base, "."))
	assert.True(t, strings.HasSuffix(base, "-movie.mp4"))
	assert.NotEqual(t, got, TempPath("/out/dir/movie.mp4"))
}

func TestTablesCoverMediaEnums(t *testing.T) {
	for f := range sampleFormats {
		assert.True(t, f.Valid(), "sample format %s", f)
		got, err := avSampleFormat(f)
		require.NoError(t, err)
		assert.Equal(t, string(f), got.Name())
	}
	for l := range channelLayouts {
		assert.True(t, l.Valid(), "layout %s", l)
		got, err := avChannelLayout(l)
		require.NoError(t, err)
		assert.Equal(t, l.Channels(), got.Channels())
	}
	_, err := avSampleFormat("s24")
	assert.Error(t, err)
}

func TestAudioFrameRoundTrip(t *testing.T) {
	p := media.AudioParams{SampleRate: 48000, Layout: media.LayoutStereo, Format: media.SampleS16P}
	in := media.NewAudioBuffer(p, 100)
	for i := range in.Planes[1] {
		in.Planes[1][i] = byte(i)
	}
	f := astiav.AllocFrame()
	defer f.Free()
	require.NoError(t, fillFrame(f, in))

	got, err := frameParams(f)
	require.NoError(t, err)
	assert.Equal(t, p, got)

	out, err := bufferFromFrame(f, got)
	require.NoError(t, err)
	assert.Equal(t, in.Samples, out.Samples)
	assert.Equal(t, in.Planes, out.Planes)
}

// writeClip encodes a synthetic clip with the backend's own muxer.
func writeClip(t *testing.T, path string, frames int, w, h int, audio *media.AudioParams) {
	t.Helper()
	tf := &media.TargetFormat{
		Width: w, Height: h, PixelFormat: "yuv420p", FrameRate: media.NewRational(25, 1),
		VideoCodec: "mpeg4", AudioCodec: "aac",
	}
	m, err := createMuxer(path, nil)
	require.NoError(t, err)
	venc, err := m.AddVideoStream(tf)
	require.NoError(t, err)
	defer venc.Close()
	var aenc concat.AudioEncoder
	if audio != nil {
		require.NoError(t, tf.ResolveAudio(*audio))
		aenc, err = m.AddAudioStream(tf)
		require.NoError(t, err)
		defer aenc.Close()
	}
	require.NoError(t, m.WriteHeader())

	write := func(pkts []media.Packet, err error) {
		require.NoError(t, err)
		for _, p := range pkts {
			require.NoError(t, m.WritePacket(p))
		}
	}
	for i := 0; i < frames; i++ {
		f := astiav.AllocFrame()
		f.SetWidth(w)
		f.SetHeight(h)
		f.SetPixelFormat(astiav.PixelFormatYuv420P)
		require.NoError(t, f.AllocBuffer(0))
		vf := &videoFrame{f: f}
		vf.SetPTS(int64(i))
		write(venc.Encode(vf))
		vf.Release()
	}
	write(venc.Flush())
	if aenc != nil {
		n := int(concat.ExpectedSamples(int64(frames), tf.FrameRate, audio.SampleRate))
		write(aenc.Encode(concat.Silence(*audio, n)))
		write(aenc.Flush())
	}
	require.NoError(t, m.Finalize())
}

func countFrames(t *testing.T, b *Backend, path string) int {
	t.Helper()
	dec, err := b.OpenVideo(context.Background(), media.SourceDescriptor{Path: path})
	require.NoError(t, err)
	defer dec.Close()
	n := 0
	for {
		f, err := dec.ReadFrame(context.Background())
		if errors.Is(err, io.EOF) {
			return n
		}
		require.NoError(t, err)
		f.Release()
		n++
	}
}

func TestConcatenateEndToEnd(t *testing.T) {
	for _, enc := range []string{"mpeg4", "aac"} {
		if !HasEncoder(enc) {
			t.Skipf("libavcodec built without %s", enc)
		}
	}
	dir := t.TempDir()
	stereo := media.AudioParams{SampleRate: 48000, Layout: media.LayoutStereo, Format: media.SampleFltP}
	mono := media.AudioParams{SampleRate: 44100, Layout: media.LayoutMono, Format: media.SampleFltP}

	a := filepath.Join(dir, "a.mkv")
	b := filepath.Join(dir, "b.mkv")
	c := filepath.Join(dir, "c.mkv")
	writeClip(t, a, 25, 320, 240, &stereo)
	writeClip(t, b, 10, 176, 144, nil)
	writeClip(t, c, 15, 320, 180, &mono)

	be := New(Options{})
	fps := media.NewRational(25, 1)
	srcs := []media.SourceDescriptor{
		{Path: a, Video: media.VideoParams{Width: 320, Height: 240, FrameRate: fps}, Audio: media.WithAudio{Params: stereo}},
		{Path: b, Video: media.VideoParams{Width: 176, Height: 144, FrameRate: fps}, Audio: media.WithoutAudio{}},
		{Path: c, Video: media.VideoParams{Width: 320, Height: 180, FrameRate: fps}, Audio: media.WithAudio{Params: mono}},
	}
	out := filepath.Join(dir, "out.mkv")
	p, err := concat.New(be, srcs, media.TargetFormat{
		Width: 320, Height: 240, PixelFormat: "yuv420p", FrameRate: fps,
		VideoCodec: "mpeg4", AudioCodec: "aac",
	}, concat.Options{Output: out, Metadata: map[string]string{"title": "joined"}})
	require.NoError(t, err)

	var seen []int
	require.NoError(t, p.Run(context.Background(), func(pr concat.Progress) error {
		seen = append(seen, pr.Index)
		return nil
	}))
	assert.Equal(t, []int{0, 1, 2}, seen)
	assert.True(t, p.Finalized())
	assert.Equal(t, int64(50), p.Clock().VideoFrames())
	assert.Equal(t, int64(96000), p.Clock().AudioSamples())

	_, err = os.Stat(out)
	require.NoError(t, err)
	assert.Equal(t, 50, countFrames(t, be, out))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), "."), "leftover temp file %s", e.Name())
	}
}

func TestDiscardRemovesTempFile(t *testing.T) {
	dir := t.TempDir()
	m, err := createMuxer(filepath.Join(dir, "x.mkv"), nil)
	require.NoError(t, err)
	_, err = os.Stat(m.tmp)
	require.NoError(t, err)

	require.NoError(t, m.Discard())
	_, err = os.Stat(m.tmp)
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(dir, "x.mkv"))
	assert.True(t, os.IsNotExist(err))
}

func TestOpenPicksStreamByType(t *testing.T) {
	for _, enc := range []string{"mpeg4", "aac"} {
		if !HasEncoder(enc) {
			t.Skipf("libavcodec built without %s", enc)
		}
	}
	dir := t.TempDir()
	stereo := media.AudioParams{SampleRate: 48000, Layout: media.LayoutStereo, Format: media.SampleFltP}
	withAudio := filepath.Join(dir, "av.mkv")
	videoOnly := filepath.Join(dir, "v.mkv")
	writeClip(t, withAudio, 5, 176, 144, &stereo)
	writeClip(t, videoOnly, 5, 176, 144, nil)

	be := New(Options{})
	assert.Equal(t, 5, countFrames(t, be, withAudio))

	dec, err := be.OpenAudio(context.Background(), media.SourceDescriptor{Path: withAudio})
	require.NoError(t, err)
	buf, err := dec.ReadAudio(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stereo, buf.Params)
	require.NoError(t, dec.Close())

	_, err = be.OpenAudio(context.Background(), media.SourceDescriptor{Path: videoOnly})
	assert.ErrorContains(t, err, "no audio stream")
}
