package adapter

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// Launcher opens cover image URLs in an external viewer
type Launcher struct {
	command string   // configured viewer command, empty for system default
	args    []string // additional arguments for the viewer
	logger  *slog.Logger

	// start runs a command without waiting for it
	start func(name string, args ...string) error
}

// defaultOpeners are tried in order when no viewer is configured
var defaultOpeners = map[string][][]string{
	"darwin":  {{"open"}},
	"linux":   {{"xdg-open"}, {"gio", "open"}},
	"windows": {{"cmd", "/c", "start", ""}},
}

// NewLauncher creates a Launcher. An empty command uses the system default handler.
func NewLauncher(command string, args []string, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{
		command: command,
		args:    args,
		logger:  logger,
		start:   startCommand,
	}
}

func startCommand(name string, args ...string) error {
	if _, err := exec.LookPath(name); err != nil {
		return err
	}
	return exec.Command(name, args...).Start()
}

// Launch opens url in the configured viewer or the system default
func (l *Launcher) Launch(url string) error {
	if url == "" {
		return fmt.Errorf("nothing to open")
	}

	if l.command != "" {
		args := append(append([]string{}, l.args...), url)
		l.logger.Info("launching viewer", "command", l.command, "args", args)
		return l.start(l.command, args...)
	}

	openers, ok := defaultOpeners[runtime.GOOS]
	if !ok {
		openers = defaultOpeners["linux"]
	}

	var lastErr error
	for _, opener := range openers {
		args := append(append([]string{}, opener[1:]...), url)
		if err := l.start(opener[0], args...); err != nil {
			l.logger.Debug("opener not available", "command", opener[0], "error", err)
			lastErr = err
			continue
		}
		l.logger.Info("launched with system default", "os", runtime.GOOS, "url", url)
		return nil
	}
	return fmt.Errorf("no viewer available: %w", lastErr)
}
