package audio

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeSilence writes n frames of silence as a wav file.
func writeSilence(t *testing.T, path string, rate beep.SampleRate, n int) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	format := beep.Format{SampleRate: rate, NumChannels: 2, Precision: 2}
	if err := wav.Encode(f, beep.Silence(n), format); err != nil {
		t.Fatalf("encode: %v", err)
	}
}

func TestLoad_DecodesAndCaches(t *testing.T) {
	root := t.TempDir()
	writeSilence(t, filepath.Join(root, "sounds", "door.wav"), sampleRate, 441)

	p := NewPlayer(root, quietLogger())
	buf, err := p.Load("sounds/door.wav")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if buf.Len() != 441 {
		t.Errorf("Len = %d, want 441", buf.Len())
	}

	again, err := p.Load("sounds/door.wav")
	if err != nil {
		t.Fatal(err)
	}
	if again != buf {
		t.Error("expected the cached buffer")
	}
}

func TestLoad_Resamples(t *testing.T) {
	root := t.TempDir()
	writeSilence(t, filepath.Join(root, "half.wav"), sampleRate/2, 1000)

	p := NewPlayer(root, quietLogger())
	buf, err := p.Load("half.wav")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if buf.Format().SampleRate != sampleRate {
		t.Errorf("SampleRate = %d, want %d", buf.Format().SampleRate, sampleRate)
	}
	// Twice the rate, roughly twice the frames.
	if buf.Len() < 1900 || buf.Len() > 2100 {
		t.Errorf("Len = %d, want about 2000", buf.Len())
	}
}

func TestLoad_Errors(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "noise.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "junk.wav"), []byte("not a wav"), 0o644); err != nil {
		t.Fatal(err)
	}
	p := NewPlayer(root, quietLogger())

	for _, res := range []string{"missing.wav", "noise.mp3", "junk.wav"} {
		if _, err := p.Load(res); err == nil {
			t.Errorf("Load(%q): expected error", res)
		}
	}
}

// Play without a speaker must not panic or block.
func TestPlay_WithoutSpeaker(t *testing.T) {
	root := t.TempDir()
	writeSilence(t, filepath.Join(root, "door.wav"), sampleRate, 10)

	p := NewPlayer(root, quietLogger())
	p.Play("door.wav")
	p.Play("missing.wav")
	p.Close()

	if _, ok := p.cache["door.wav"]; !ok {
		t.Error("expected door.wav to be decoded")
	}
}

func TestInitialize(t *testing.T) {
	p := NewPlayer(t.TempDir(), quietLogger())
	if err := p.Initialize(); err != nil {
		t.Logf("no audio device: %v", err)
		return
	}
	if err := p.Initialize(); err != nil {
		t.Errorf("second Initialize: %v", err)
	}
	p.Close()
}

func TestRecorder(t *testing.T) {
	r := NewRecorder(quietLogger())
	r.Play("a.oga")
	r.Play("b.oga")
	got := r.Played()
	if len(got) != 2 || got[0] != "a.oga" || got[1] != "b.oga" {
		t.Errorf("Played = %v", got)
	}
	got[0] = "changed"
	if r.Played()[0] != "a.oga" {
		t.Error("Played should return a copy")
	}
}
