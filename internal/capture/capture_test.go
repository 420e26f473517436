package capture_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/Tiliavir/watch-drift/internal/capture"
	"github.com/Tiliavir/watch-drift/internal/timesource"
)

var clickAt = time.Date(2024, 1, 2, 0, 0, 5, 0, time.UTC)

func newCapturer(timeout time.Duration) (*capture.Capturer, tcell.SimulationScreen) {
	screen := tcell.NewSimulationScreen("UTF-8")
	return &capture.Capturer{
		Screen:  screen,
		Source:  timesource.Fixed(clickAt),
		Timeout: timeout,
		Watch:   "seamaster",
	}, screen
}

// inject queues events once the screen has been initialised.
func inject(t *testing.T, screen tcell.SimulationScreen, fn func()) {
	t.Helper()
	go func() {
		time.Sleep(50 * time.Millisecond)
		fn()
	}()
}

func TestWaitForClickLeftButton(t *testing.T) {
	c, screen := newCapturer(5 * time.Second)
	inject(t, screen, func() {
		screen.InjectMouse(3, 3, tcell.ButtonNone, tcell.ModNone)
		screen.InjectMouse(3, 3, tcell.Button2, tcell.ModNone)
		screen.InjectMouse(3, 3, tcell.Button1, tcell.ModNone)
	})

	got, err := c.WaitForClick(context.Background())
	if err != nil {
		t.Fatalf("WaitForClick: %v", err)
	}
	if !got.Equal(clickAt) {
		t.Errorf("WaitForClick = %v, want %v", got, clickAt)
	}
}

func TestWaitForClickAbortKeys(t *testing.T) {
	tests := []struct {
		name string
		key  tcell.Key
		r    rune
	}{
		{"escape", tcell.KeyEscape, 0},
		{"enter", tcell.KeyEnter, 0},
		{"space", tcell.KeyRune, ' '},
		{"ctrl-c", tcell.KeyCtrlC, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, screen := newCapturer(5 * time.Second)
			inject(t, screen, func() {
				screen.InjectKey(tcell.KeyRune, 'x', tcell.ModNone)
				screen.InjectKey(tt.key, tt.r, tcell.ModNone)
			})

			_, err := c.WaitForClick(context.Background())
			if !errors.Is(err, capture.ErrAborted) {
				t.Errorf("err = %v, want ErrAborted", err)
			}
		})
	}
}

func TestWaitForClickTimeout(t *testing.T) {
	c, _ := newCapturer(100 * time.Millisecond)
	_, err := c.WaitForClick(context.Background())
	if !errors.Is(err, capture.ErrTimeout) {
		t.Errorf("err = %v, want ErrTimeout", err)
	}
}

func TestWaitForClickContextCancelled(t *testing.T) {
	c, _ := newCapturer(5 * time.Second)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := c.WaitForClick(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want context.DeadlineExceeded", err)
	}
}

// recordingSource shifts local readings by offset and remembers the last one.
type recordingSource struct {
	offset time.Duration
	mu     sync.Mutex
	local  time.Time
}

func (r *recordingSource) Now() time.Time { return r.At(time.Now()) }

func (r *recordingSource) At(local time.Time) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.local = local
	return local.Add(r.offset)
}

func TestWaitForClickUsesEventTime(t *testing.T) {
	screen := tcell.NewSimulationScreen("UTF-8")
	src := &recordingSource{offset: -2 * time.Second}
	c := &capture.Capturer{Screen: screen, Source: src, Timeout: 5 * time.Second, Watch: "seamaster"}

	injected := make(chan time.Time, 1)
	inject(t, screen, func() {
		screen.InjectMouse(3, 3, tcell.Button1, tcell.ModNone)
		injected <- time.Now()
	})

	got, err := c.WaitForClick(context.Background())
	if err != nil {
		t.Fatalf("WaitForClick: %v", err)
	}
	after := <-injected

	src.mu.Lock()
	local := src.local
	src.mu.Unlock()
	if local.After(after) {
		t.Errorf("click read at %v, after the press was injected at %v", local, after)
	}
	if !got.Equal(local.Add(-2 * time.Second)) {
		t.Errorf("WaitForClick = %v, want the event time corrected by the offset", got)
	}
}
