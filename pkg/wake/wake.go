package wake

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"

	"pixivwatch/pkg/logger"
)

// Reason says which branch of the cooperative wait resolved first
type Reason int

const (
	// Tick means the fixed poll delay elapsed
	Tick Reason = iota
	// Wake means an external wake event arrived; the caller resets its
	// comparison token and restarts the loop with no added delay
	Wake
	// Shutdown is the sole loop-terminating reason
	Shutdown
)

func (r Reason) String() string {
	switch r {
	case Tick:
		return "tick"
	case Wake:
		return "wake"
	case Shutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Source multiplexes the fixed-delay timer, OS shutdown signals and an
// optional wake-file watch into a single Wait call.
type Source struct {
	delay   time.Duration
	signals chan os.Signal
	watcher *fsnotify.Watcher
	logger  logger.Logger
}

// New creates a Source listening for SIGINT and SIGTERM
func New(delay time.Duration) *Source {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	return &Source{
		delay:   delay,
		signals: signals,
		logger:  logger.GetLogger(),
	}
}

// WatchFile arranges for any filesystem event on path (touch it to wake) to
// resolve Wait early. The file is created if absent.
func (s *Source) WatchFile(path string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to create wake file: %w", err)
	}
	f.Close()

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch wake file: %w", err)
	}

	s.watcher = watcher
	s.logger.WithField("path", path).Info("watching wake file")
	return nil
}

// Wait suspends on the race among the timer, a shutdown signal and wake
// events. Events that arrived while a tick was in flight are drained first
// so they do not immediately re-trigger.
func (s *Source) Wait(ctx context.Context) Reason {
	var events chan fsnotify.Event
	var errs chan error
	if s.watcher != nil {
		s.drain()
		events = s.watcher.Events
		errs = s.watcher.Errors
	}

	timer := time.NewTimer(s.delay)
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			return Tick
		case sig := <-s.signals:
			s.logger.WithField("signal", sig.String()).Warn("shutting down")
			return Shutdown
		case <-ctx.Done():
			return Shutdown
		case event := <-events:
			s.logger.WithField("op", event.Op.String()).Info("wake event")
			return Wake
		case err := <-errs:
			s.logger.WithError(err).Error("wake watcher error")
			// keep waiting on the remaining branches
		}
	}
}

func (s *Source) drain() {
	for {
		select {
		case event := <-s.watcher.Events:
			s.logger.WithField("op", event.Op.String()).Debug("stale wake event")
		case <-s.watcher.Errors:
		default:
			return
		}
	}
}

// Close releases the signal registration and the file watcher
func (s *Source) Close() {
	signal.Stop(s.signals)
	if s.watcher != nil {
		s.watcher.Close()
	}
}
