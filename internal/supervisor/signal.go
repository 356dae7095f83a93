// SPDX-License-Identifier: MPL-2.0

package supervisor

import (
	"context"
	"os"
	"sync"

	"github.com/charmbracelet/log"
)

// shutdown is a write-once broadcast. Fire may be called any number of
// times from any goroutine; only the first call has an effect.
type shutdown struct {
	once sync.Once
	ch   chan struct{}
}

func newShutdown() *shutdown {
	return &shutdown{ch: make(chan struct{})}
}

// Fire closes the channel returned by Done. It never blocks.
func (s *shutdown) Fire() {
	s.once.Do(func() { close(s.ch) })
}

// Done is closed once Fire has been called.
func (s *shutdown) Done() <-chan struct{} { return s.ch }

// watchInterrupts fires sd on the first interrupt, on ctx cancellation, or
// when interrupts is closed, and then returns. Interrupts arriving after
// that are left unread. The watcher also returns if sd fires for another
// reason so it never outlives the supervisor.
func watchInterrupts(ctx context.Context, interrupts <-chan os.Signal, sd *shutdown, logger *log.Logger) {
	select {
	case sig, ok := <-interrupts:
		if ok {
			logger.Info("received signal, shutting down", "signal", sig)
		}
	case <-ctx.Done():
		logger.Debug("context done, shutting down", "error", ctx.Err())
	case <-sd.Done():
		return
	}
	sd.Fire()
}
