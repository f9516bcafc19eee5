package term

import (
	"os"
	"testing"

	"github.com/backmassage/reelcat/internal/config"
)

func TestConfigure(t *testing.T) {
	t.Cleanup(func() { Configure(config.ColorNever) })

	Configure(config.ColorAlways)
	if !Enabled() {
		t.Error("ColorAlways: Enabled() = false")
	}
	if got := Red.Sprint("x"); got == "x" {
		t.Errorf("Red.Sprint(%q) = %q, want escape codes", "x", got)
	}

	Configure(config.ColorNever)
	if Enabled() {
		t.Error("ColorNever: Enabled() = true")
	}
	if got := Red.Sprint("x"); got != "x" {
		t.Errorf("Red.Sprint(%q) = %q, want %q", "x", got, "x")
	}
}

func TestResolve_NoColorEnv(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	if resolve(config.ColorAuto) {
		t.Error("resolve(auto) with NO_COLOR = true")
	}
	if !resolve(config.ColorAlways) {
		t.Error("resolve(always) with NO_COLOR = false")
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(nil) {
		t.Error("IsTerminal(nil) = true")
	}
	f, err := os.CreateTemp(t.TempDir(), "tty")
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if IsTerminal(f) {
		t.Error("IsTerminal(regular file) = true")
	}
}
