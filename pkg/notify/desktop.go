package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
)

// desktopSender is a platform-specific desktop notification backend
type desktopSender interface {
	send(ctx context.Context, title, message string) error
}

type linuxSender struct{}

func (linuxSender) send(ctx context.Context, title, message string) error {
	return exec.CommandContext(ctx, "notify-send", title, message).Run()
}

type macosSender struct{}

func (macosSender) send(ctx context.Context, title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	return exec.CommandContext(ctx, "osascript", "-e", script).Run()
}

type windowsSender struct{}

func (windowsSender) send(ctx context.Context, title, message string) error {
	script := fmt.Sprintf(`New-BurntToastNotification -Text %q, %q`, title, message)
	return exec.CommandContext(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script).Run()
}

// DesktopSink shows the change event as a desktop notification
type DesktopSink struct {
	sender desktopSender
}

// NewDesktopSink creates a desktop sink for the current platform,
// nil when the platform has no supported backend.
func NewDesktopSink() *DesktopSink {
	var sender desktopSender
	switch runtime.GOOS {
	case "linux":
		sender = linuxSender{}
	case "darwin":
		sender = macosSender{}
	case "windows":
		sender = windowsSender{}
	default:
		return nil
	}
	return &DesktopSink{sender: sender}
}

func (s *DesktopSink) Name() string {
	return "desktop"
}

// Notify renders the event the way the log line does: "> " marks a
// truncated search, "~ " an early skip.
func (s *DesktopSink) Notify(ctx context.Context, event Event) error {
	message := fmt.Sprintf("%s%s%d works since %s (%s)",
		prefixIf(event.Remain, "> "),
		prefixIf(event.Skip, "~ "),
		event.Distance,
		event.Since,
		event.SinceAgo,
	)
	return s.sender.send(ctx, "pixivwatch", message)
}

func prefixIf(cond bool, prefix string) string {
	if cond {
		return prefix
	}
	return ""
}
