package output

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"golang.org/x/term"
)

// Spinner displays a progress animation on a terminal. On any other
// writer it stays silent until Success or Fail.
type Spinner struct {
	w        io.Writer
	message  string
	frames   []string
	animate  bool
	interval time.Duration

	mu      sync.Mutex
	started bool
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

// NewSpinner creates a new spinner.
func NewSpinner(w io.Writer, message string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		frames:   []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"},
		animate:  isTerminal(w),
		interval: 100 * time.Millisecond,
		done:     make(chan struct{}),
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || !s.animate {
		return
	}
	s.started = true

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for i := 0; ; i++ {
			fmt.Fprintf(s.w, "\r%s %s", SpinnerStyle.Render(s.frames[i%len(s.frames)]), s.message)
			select {
			case <-s.done:
				return
			case <-ticker.C:
			}
		}
	}()
}

// halt stops the animation goroutine and clears its line. It is safe to
// call more than once.
func (s *Spinner) halt() {
	s.once.Do(func() {
		close(s.done)
		s.wg.Wait()
		s.mu.Lock()
		started := s.started
		s.mu.Unlock()
		if started {
			fmt.Fprint(s.w, "\r\033[K")
		}
	})
}

// Stop stops the spinner and clears the line.
func (s *Spinner) Stop() {
	s.halt()
}

// Success stops the spinner with a success message.
func (s *Spinner) Success(message string) {
	s.halt()
	Successf(s.w, "%s", message)
}

// Fail stops the spinner with a failure message.
func (s *Spinner) Fail(message string) {
	s.halt()
	Errorf(s.w, "✗ %s", message)
}
