package audio

import (
	"log/slog"
	"sync"
)

// Recorder is a silent sound sink. It keeps the resources it was asked
// to play, in order.
type Recorder struct {
	mu     sync.Mutex
	played []string
	logger *slog.Logger
}

// NewRecorder returns a Recorder that logs each sound at debug level.
func NewRecorder(logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{logger: logger}
}

func (r *Recorder) Play(resource string) {
	r.mu.Lock()
	r.played = append(r.played, resource)
	r.mu.Unlock()
	r.logger.Debug("sound muted", "resource", resource)
}

// Played returns a copy of every resource played so far.
func (r *Recorder) Played() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.played...)
}
