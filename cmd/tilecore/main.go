// Tilecore runs a tile-based game world: areas loaded on demand from
// content, tile triggers, save slots, and a renderer.
// Usage: tilecore [--version] [--config <file>] [--plain] [--map] [--script <file>] [--trace] [--observe <addr>]
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/nathoo/tilecore/audio"
	"github.com/nathoo/tilecore/cli"
	"github.com/nathoo/tilecore/config"
	"github.com/nathoo/tilecore/engine"
	"github.com/nathoo/tilecore/engine/play"
	"github.com/nathoo/tilecore/engine/trigger"
	"github.com/nathoo/tilecore/loader"
	"github.com/nathoo/tilecore/logger"
	"github.com/nathoo/tilecore/observer"
	"github.com/nathoo/tilecore/storage"
	"github.com/nathoo/tilecore/triggers"
	"github.com/nathoo/tilecore/tui"
)

// Set via -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const usage = "Usage: tilecore [--version] [--config <file>] [--plain] [--map] [--script <file>] [--trace] [--observe <addr>]"

type options struct {
	configPath string
	plain      bool
	showMap    bool
	trace      bool
	scriptFile string
	observe    string
}

func main() {
	opts, ok := parseArgs(os.Args[1:])
	if !ok {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func parseArgs(args []string) (options, bool) {
	var opts options
	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--version":
			fmt.Printf("tilecore %s (commit %s, built %s)\n", version, commit, date)
			os.Exit(0)
		case "--plain":
			opts.plain = true
		case "--map":
			opts.showMap = true
		case "--trace":
			opts.trace = true
		case "--config", "--script", "--observe":
			if i+1 >= len(args) {
				fmt.Fprintf(os.Stderr, "%s requires a value\n", args[i])
				return opts, false
			}
			i++
			switch args[i-1] {
			case "--config":
				opts.configPath = args[i]
			case "--script":
				opts.scriptFile = args[i]
			default:
				opts.observe = args[i]
			}
		default:
			fmt.Fprintf(os.Stderr, "unknown argument %q\n", args[i])
			return opts, false
		}
	}
	return opts, true
}

func run(ctx context.Context, opts options) error {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.observe != "" {
		cfg.ObserverAddr = opts.observe
	}
	log := logger.Setup(cfg, nil)

	store, err := storage.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	cat, err := loader.Load(cfg.ContentRoot)
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}

	sound, closeSound := openSound(cfg, log)
	defer closeSound()

	reg := trigger.NewRegistry()
	if err := triggers.Register(reg); err != nil {
		return err
	}

	eng := engine.New(engine.Options{
		Loader:      loader.Chain(cat, loader.NewJSONLoader(cfg.ContentRoot, log)),
		Triggers:    reg,
		Sound:       sound,
		Slot:        cfg.SaveSlot,
		LockTimeout: cfg.LockTimeout,
		Logger:      log,
	})
	session := play.New(eng, store, cfg.StartArea, cfg.StartX, cfg.StartY)
	session.Trace = opts.trace

	// The observer owns the redraw queue, so the local side runs as a
	// plain prompt without a map.
	if cfg.ObserverAddr != "" {
		srv := observer.NewServer(eng, log)
		errc := make(chan error, 1)
		go func() { errc <- srv.ListenAndServe(ctx, cfg.ObserverAddr, cfg.FrameInterval) }()

		c, closeIn, err := newCLI(session, opts)
		if err != nil {
			return err
		}
		defer closeIn()
		c.ShowMap = false
		if err := c.Run(ctx); err != nil {
			return err
		}
		// Input ended; keep serving until interrupted.
		return <-errc
	}

	if opts.scriptFile != "" || opts.plain || !isTerminal() {
		c, closeIn, err := newCLI(session, opts)
		if err != nil {
			return err
		}
		defer closeIn()
		return c.Run(ctx)
	}

	return tui.Run(ctx, session, cfg.FrameInterval)
}

// newCLI builds the plain front end. Script mode reads the file and
// echoes each command.
func newCLI(s *play.Session, opts options) (*cli.CLI, func(), error) {
	c := cli.New(s)
	c.ShowMap = opts.showMap
	if opts.scriptFile == "" {
		return c, func() {}, nil
	}
	f, err := os.Open(opts.scriptFile)
	if err != nil {
		return nil, nil, fmt.Errorf("opening script: %w", err)
	}
	c.In = f
	c.EchoInput = true
	return c, func() { f.Close() }, nil
}

// openSound starts the speaker. Muted runs, and machines without an
// audio device, record sounds to the log instead.
func openSound(cfg *config.Config, log *slog.Logger) (trigger.Sound, func()) {
	if cfg.Mute {
		return audio.NewRecorder(log), func() {}
	}
	p := audio.NewPlayer(cfg.SoundRoot, log)
	if err := p.Initialize(); err != nil {
		log.Warn("audio unavailable, sounds muted", "error", err)
		return audio.NewRecorder(log), func() {}
	}
	return p, p.Close
}

// isTerminal returns true if stdout is a terminal (not piped/redirected).
func isTerminal() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
