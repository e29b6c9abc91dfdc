package notify

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
)

// ExecSink invokes a local callback executable with the event as six
// positional arguments: distance, marker id, since, since-ago, remain (0/1)
// and skip (0/1).
type ExecSink struct {
	path string
}

// NewExecSink creates an exec sink if path names an executable file,
// (nil, nil) otherwise.
func NewExecSink(path string) (*ExecSink, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to stat callback: %w", err)
	}
	if !info.Mode().IsRegular() || info.Mode().Perm()&0111 == 0 {
		return nil, nil
	}
	return &ExecSink{path: path}, nil
}

func (s *ExecSink) Name() string {
	return "exec:" + s.path
}

// Notify runs the callback and waits for it to exit
func (s *ExecSink) Notify(ctx context.Context, event Event) error {
	cmd := exec.CommandContext(ctx, s.path,
		strconv.Itoa(event.Distance),
		strconv.FormatUint(uint64(event.MarkerID), 10),
		event.Since,
		event.SinceAgo,
		boolArg(event.Remain),
		boolArg(event.Skip),
	)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("callback failed: %w", err)
	}
	return nil
}

func boolArg(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
