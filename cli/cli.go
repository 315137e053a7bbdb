// Package cli is the line-mode driver: it reads commands from a reader,
// runs them through a play session and prints the results. It also plays
// back command scripts.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/nathoo/tilecore/engine/play"
)

// CLI handles terminal interaction with the player.
type CLI struct {
	Session   *play.Session
	In        io.Reader
	Out       io.Writer
	EchoInput bool // echo each input line after the prompt (for script playback)
	ShowMap   bool // redraw the map whenever the current area is repainted
}

// New creates a CLI on stdin and stdout.
func New(s *play.Session) *CLI {
	return &CLI{
		Session: s,
		In:      os.Stdin,
		Out:     os.Stdout,
	}
}

// Run describes the starting tile, then loops: prompt, input, dispatch,
// output, repaint. It returns when input ends, on /quit, or when ctx is
// done.
func (c *CLI) Run(ctx context.Context) error {
	intro, err := c.Session.Start(ctx)
	if err != nil {
		return err
	}
	c.printLines(intro)
	c.repaint(ctx)

	scanner := bufio.NewScanner(c.In)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		// Skip comment lines (for script files).
		if strings.HasPrefix(input, "#") {
			continue
		}
		if c.EchoInput {
			c.printLine(input)
		}

		res := c.Session.Exec(ctx, input)
		c.printLines(res.Output)
		if res.Quit {
			return nil
		}
		c.repaint(ctx)
	}
	return scanner.Err()
}

// repaint drains the redraw queue and draws the current area if it was
// among those repainted. With ShowMap off the queue is left to whoever
// else renders frames.
func (c *CLI) repaint(ctx context.Context) {
	if !c.ShowMap {
		return
	}
	for _, a := range c.Session.Engine.Frame() {
		if a.Path() != c.Session.Area {
			continue
		}
		st, err := a.Snapshot(ctx)
		if err != nil {
			a.RequestRedraw()
			c.printLine(fmt.Sprintf("[Repaint failed: %v]", err))
			continue
		}
		c.printLines(play.RenderMap(st, a, c.Session.X, c.Session.Y))
	}
}

func (c *CLI) printLines(lines []string) {
	for _, line := range lines {
		c.printLine(line)
	}
}

func (c *CLI) printLine(text string) {
	fmt.Fprintln(c.Out, text)
}

func (c *CLI) print(text string) {
	fmt.Fprint(c.Out, text)
}
