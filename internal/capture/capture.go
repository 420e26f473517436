// Package capture waits for the mouse click that marks the watch's
// zero-second instant.
package capture

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/term"

	"github.com/Tiliavir/watch-drift/internal/timesource"
)

var (
	// ErrAborted is returned when the user cancels with Esc, Enter, Space or Ctrl-C.
	ErrAborted = errors.New("capture aborted")
	// ErrTimeout is returned when no click arrives in time.
	ErrTimeout = errors.New("no click received")
	// ErrNoTerminal is returned when stdin is not an interactive terminal.
	ErrNoTerminal = errors.New("click capture needs an interactive terminal (use --at to pass a timestamp)")
)

// DefaultTimeout is how long WaitForClick waits before giving up.
const DefaultTimeout = 70 * time.Second

const prompt = "Press the mouse button when the seconds hand reaches 12 o'clock."

// Capturer reads a single left click from a terminal screen.
type Capturer struct {
	Screen  tcell.Screen
	Source  timesource.Source
	Timeout time.Duration
	Watch   string
}

// New creates a capturer on the controlling terminal.
func New(src timesource.Source, watch string, timeout time.Duration) (*Capturer, error) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil, ErrNoTerminal
	}
	screen, err := tcell.NewScreen()
	if err != nil {
		return nil, err
	}
	return &Capturer{Screen: screen, Source: src, Timeout: timeout, Watch: watch}, nil
}

type stop struct{ err error }

// WaitForClick shows the prompt and returns the true-time instant at which
// the first left button press was received.
func (c *Capturer) WaitForClick(ctx context.Context) (time.Time, error) {
	if err := c.Screen.Init(); err != nil {
		return time.Time{}, err
	}
	defer c.Screen.Fini()
	c.Screen.EnableMouse()
	c.draw()

	timeout := c.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	timer := time.AfterFunc(timeout, func() {
		_ = c.Screen.PostEvent(tcell.NewEventInterrupt(stop{ErrTimeout}))
	})
	defer timer.Stop()
	unwatch := context.AfterFunc(ctx, func() {
		_ = c.Screen.PostEvent(tcell.NewEventInterrupt(stop{ctx.Err()}))
	})
	defer unwatch()

	for {
		switch ev := c.Screen.PollEvent().(type) {
		case nil:
			return time.Time{}, ErrAborted
		case *tcell.EventMouse:
			if ev.Buttons()&tcell.Button1 != 0 {
				// The event time is taken when the press is read from the
				// terminal, before it waits in the event queue.
				return c.Source.At(ev.When()), nil
			}
		case *tcell.EventKey:
			if isAbortKey(ev) {
				return time.Time{}, ErrAborted
			}
		case *tcell.EventInterrupt:
			if s, ok := ev.Data().(stop); ok {
				return time.Time{}, s.err
			}
		case *tcell.EventResize:
			c.Screen.Sync()
			c.draw()
		}
	}
}

func isAbortKey(ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyEnter, tcell.KeyCtrlC:
		return true
	case tcell.KeyRune:
		return ev.Rune() == ' '
	}
	return false
}

func (c *Capturer) draw() {
	c.Screen.Clear()
	lines := []string{prompt, "Esc, Enter or Space to cancel."}
	if c.Watch != "" {
		lines = append([]string{"Watch: " + c.Watch}, lines...)
	}
	for y, line := range lines {
		drawText(c.Screen, 1, y+1, line)
	}
	c.Screen.Show()
}

func drawText(s tcell.Screen, x, y int, text string) {
	for i, r := range []rune(text) {
		s.SetContent(x+i, y, r, nil, tcell.StyleDefault)
	}
}
