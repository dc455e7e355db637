package session

import (
	"os"
	"os/exec"
	"sync"
	"syscall"
	"time"

	applogger "OptiBase/pkg/logger"
)

const stopGrace = 5 * time.Second

// Helper supervises one optional child process for the lifetime of a
// session. An empty command disables it entirely.
type Helper struct {
	command string
	args    []string
	l       *applogger.Logger

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan struct{}
}

// NewHelper creates a supervisor for the given command line.
func NewHelper(command string, args []string) *Helper {
	return &Helper{command: command, args: args}
}

// SetLogger injects a structured logger.
func (h *Helper) SetLogger(l *applogger.Logger) { h.l = l }

// Enabled reports whether a helper command is configured.
func (h *Helper) Enabled() bool { return h.command != "" }

// Start launches the child. A start failure is logged and swallowed: a
// broken helper never blocks the session.
func (h *Helper) Start() {
	if !h.Enabled() {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.startLocked()
}

func (h *Helper) startLocked() {
	cmd := exec.Command(h.command, h.args...)
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		if h.l != nil {
			h.l.Warn("helper failed to start",
				applogger.String("command", h.command),
				applogger.Error(err),
			)
		}
		h.cmd = nil
		h.done = nil
		return
	}
	done := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(done)
	}()
	h.cmd = cmd
	h.done = done
	if h.l != nil {
		h.l.Info("helper started",
			applogger.String("command", h.command),
			applogger.Int("pid", cmd.Process.Pid),
		)
	}
}

// Alive reports whether the child is currently running.
func (h *Helper) Alive() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.aliveLocked()
}

func (h *Helper) aliveLocked() bool {
	if h.cmd == nil || h.done == nil {
		return false
	}
	select {
	case <-h.done:
		return false
	default:
		return true
	}
}

// EnsureAlive restarts the child when it has died, reporting whether a
// restart was attempted.
func (h *Helper) EnsureAlive() bool {
	if !h.Enabled() {
		return false
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.aliveLocked() {
		return false
	}
	if h.l != nil {
		h.l.Warn("helper not running, restarting",
			applogger.String("command", h.command),
		)
	}
	h.startLocked()
	return true
}

// Stop terminates the child, escalating to SIGKILL after a grace period.
func (h *Helper) Stop() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.aliveLocked() {
		h.cmd = nil
		h.done = nil
		return
	}
	_ = h.cmd.Process.Signal(syscall.SIGTERM)
	select {
	case <-h.done:
	case <-time.After(stopGrace):
		_ = h.cmd.Process.Kill()
		<-h.done
	}
	if h.l != nil {
		h.l.Info("helper stopped", applogger.String("command", h.command))
	}
	h.cmd = nil
	h.done = nil
}
