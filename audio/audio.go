// Package audio plays the short sound effects triggers queue. Sounds are
// decoded once, resampled to the speaker rate, and kept in memory.
package audio

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/vorbis"
	"github.com/gopxl/beep/wav"
)

const (
	sampleRate = beep.SampleRate(44100)
	quality    = 4
)

// Player decodes sound resources under a root directory and mixes them
// into the speaker. Play never blocks the caller.
type Player struct {
	root   string
	logger *slog.Logger

	mu          sync.Mutex
	mixer       *beep.Mixer
	cache       map[string]*beep.Buffer
	initialized bool
	wg          sync.WaitGroup
}

// NewPlayer returns a Player that resolves resources relative to root.
func NewPlayer(root string, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.Default()
	}
	return &Player{
		root:   root,
		logger: logger,
		mixer:  &beep.Mixer{},
		cache:  map[string]*beep.Buffer{},
	}
}

// Initialize opens the speaker. Without it, Play only decodes.
func (p *Player) Initialize() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.initialized {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(100*time.Millisecond)); err != nil {
		return fmt.Errorf("audio: init speaker: %w", err)
	}
	speaker.Play(p.mixer)
	p.initialized = true
	return nil
}

// Play starts resource in the background. Failures are logged.
func (p *Player) Play(resource string) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		buf, err := p.Load(resource)
		if err != nil {
			p.logger.Warn("sound failed", "resource", resource, "error", err)
			return
		}

		p.mu.Lock()
		defer p.mu.Unlock()
		if !p.initialized {
			p.logger.Debug("sound dropped, no speaker", "resource", resource)
			return
		}
		speaker.Lock()
		p.mixer.Add(buf.Streamer(0, buf.Len()))
		speaker.Unlock()
		p.logger.Debug("sound playing", "resource", resource)
	}()
}

// Load decodes resource, or returns the cached buffer.
func (p *Player) Load(resource string) (*beep.Buffer, error) {
	p.mu.Lock()
	buf, ok := p.cache[resource]
	p.mu.Unlock()
	if ok {
		return buf, nil
	}

	buf, err := decodeFile(filepath.Join(p.root, filepath.FromSlash(resource)))
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.cache[resource]; ok {
		return cached, nil
	}
	p.cache[resource] = buf
	return buf, nil
}

// Close waits for pending Play calls and silences the mixer.
func (p *Player) Close() {
	p.wg.Wait()

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.initialized {
		return
	}
	speaker.Lock()
	p.mixer.Clear()
	speaker.Unlock()
	speaker.Close()
	p.initialized = false
}

func decodeFile(path string) (*beep.Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	var (
		stream beep.StreamSeekCloser
		format beep.Format
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".wav":
		stream, format, err = wav.Decode(f)
	case ".ogg", ".oga":
		stream, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, fmt.Errorf("audio: unsupported format %q", filepath.Ext(path))
	}
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	defer stream.Close()

	buf := beep.NewBuffer(beep.Format{SampleRate: sampleRate, NumChannels: 2, Precision: 2})
	buf.Append(beep.Resample(quality, format.SampleRate, sampleRate, stream))
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	return buf, nil
}
