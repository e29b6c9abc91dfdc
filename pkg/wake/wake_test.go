package wake

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWaitTick(t *testing.T) {
	s := New(10 * time.Millisecond)
	defer s.Close()

	assert.Equal(t, Tick, s.Wait(context.Background()))
}

func TestWaitContextCancel(t *testing.T) {
	s := New(time.Hour)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Equal(t, Shutdown, s.Wait(ctx))
}

func TestWaitWakeFile(t *testing.T) {
	s := New(5 * time.Second)
	defer s.Close()

	path := filepath.Join(t.TempDir(), "notify")
	require.NoError(t, s.WatchFile(path))

	go func() {
		time.Sleep(50 * time.Millisecond)
		os.WriteFile(path, []byte("x"), 0644)
	}()

	start := time.Now()
	assert.Equal(t, Wake, s.Wait(context.Background()))
	assert.Less(t, time.Since(start), 2*time.Second, "wake must beat the timer")
}

func TestWatchFileCreatesFile(t *testing.T) {
	s := New(time.Second)
	defer s.Close()

	path := filepath.Join(t.TempDir(), "notify")
	require.NoError(t, s.WatchFile(path))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestWaitDrainsStaleEvents(t *testing.T) {
	s := New(100 * time.Millisecond)
	defer s.Close()

	path := filepath.Join(t.TempDir(), "notify")
	require.NoError(t, s.WatchFile(path))

	// Touch while nobody is waiting, as if during an in-flight tick
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, Tick, s.Wait(context.Background()), "stale events must not wake the next wait")
}

func TestReasonString(t *testing.T) {
	assert.Equal(t, "tick", Tick.String())
	assert.Equal(t, "wake", Wake.String())
	assert.Equal(t, "shutdown", Shutdown.String())
}
