package check

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/backmassage/reelcat/internal/config"
)

// mockLogger records every line by level.
type mockLogger struct {
	lines map[string][]string
}

func newMockLogger() *mockLogger { return &mockLogger{lines: map[string][]string{}} }

func (m *mockLogger) add(level, format string, args ...interface{}) {
	m.lines[level] = append(m.lines[level], fmt.Sprintf(format, args...))
}

func (m *mockLogger) Info(f string, a ...interface{})    { m.add("info", f, a...) }
func (m *mockLogger) Success(f string, a ...interface{}) { m.add("success", f, a...) }
func (m *mockLogger) Warn(f string, a ...interface{})    { m.add("warn", f, a...) }
func (m *mockLogger) Error(f string, a ...interface{})   { m.add("error", f, a...) }
func (m *mockLogger) Debug(v bool, f string, a ...interface{}) {
	if v {
		m.add("debug", f, a...)
	}
}

// fakeFfprobe writes an executable script that prints a version banner.
func fakeFfprobe(t *testing.T) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script stand-in needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ffprobe")
	script := "#!/bin/sh\necho 'ffprobe version 7.1 Copyright (c) 2007-2024'\necho 'built with gcc'\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func only(names ...string) EncoderLookup {
	return func(name string) bool {
		for _, n := range names {
			if n == name {
				return true
			}
		}
		return false
	}
}

func TestCheckDeps(t *testing.T) {
	ffprobe := fakeFfprobe(t)
	tests := []struct {
		name    string
		ffprobe string
		lookup  EncoderLookup
		wantErr error
	}{
		{"all present", ffprobe, only("libx264", "aac"), nil},
		{"missing ffprobe", filepath.Join(t.TempDir(), "nope"), only("libx264", "aac"), ErrFfprobeNotFound},
		{"missing video encoder", ffprobe, only("aac"), ErrEncoderUnavailable},
		{"missing audio encoder", ffprobe, only("libx264"), ErrEncoderUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.FFprobePath = tt.ffprobe
			err := CheckDeps(&cfg, tt.lookup)
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestRunCheck_ReportsEverything(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.FFprobePath = fakeFfprobe(t)
	cfg.Verbose = true
	log := newMockLogger()

	ok := RunCheck(&cfg, log, only("libx264", "aac"))

	assert.True(t, ok)
	assert.Equal(t, []string{
		"ffprobe: ffprobe version 7.1 Copyright (c) 2007-2024",
		"Video encoder: libx264",
		"Audio encoder: aac",
	}, log.lines["success"])
	assert.Empty(t, log.lines["error"])
	assert.Len(t, log.lines["debug"], 1)
}

func TestRunCheck_KeepsGoingOnFailure(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.FFprobePath = filepath.Join(t.TempDir(), "nope")
	cfg.VideoCodec = "libsvtav1"
	log := newMockLogger()

	ok := RunCheck(&cfg, log, only("aac"))

	assert.False(t, ok)
	assert.Len(t, log.lines["error"], 2)
	assert.Equal(t, []string{"Audio encoder: aac"}, log.lines["success"])
	assert.Empty(t, log.lines["debug"])
}
