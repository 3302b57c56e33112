package process

import (
	"bufio"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// State represents the state of a process.
type State int

const (
	// StateCreated indicates the process has been created but not started.
	StateCreated State = iota
	// StateRunning indicates the process is currently running.
	StateRunning
	// StateExited indicates the process has exited normally or with an error.
	StateExited
	// StateKilled indicates the process was killed by a signal.
	StateKilled
)

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateExited:
		return "exited"
	case StateKilled:
		return "killed"
	default:
		return fmt.Sprintf("unknown(%d)", s)
	}
}

// Process is a supervised worker process.
//
// Process wraps an exec.Cmd with exit tracking and a line-oriented view of
// the worker's standard error. Standard output is discarded. It is safe for
// concurrent use.
type Process struct {
	// ID uniquely identifies this handle. A respawned worker gets a new ID.
	ID string

	// Name is a human-readable name for the process.
	Name string

	// Cmd is the underlying exec.Cmd.
	Cmd *exec.Cmd

	// Started is the time the process was started.
	Started time.Time

	stderr *os.File

	// onStderr receives each line written to stderr.
	onStderr func(line string)

	// stderrDone is closed once stderr reaches EOF.
	stderrDone chan struct{}

	// done is closed when the process exits.
	done chan struct{}

	state    atomic.Int32
	exitCode atomic.Int32

	// stderrLines counts lines read from stderr.
	stderrLines atomic.Int64

	mu      sync.RWMutex
	exitErr error

	waitOnce sync.Once
}

// NewProcess creates a new Process wrapping the given command.
//
// The command should not be started before calling NewProcess.
// Use Supervisor.Start() to start the process with proper tracking.
func NewProcess(id, name string, cmd *exec.Cmd) *Process {
	p := &Process{
		ID:         id,
		Name:       name,
		Cmd:        cmd,
		stderrDone: make(chan struct{}),
		done:       make(chan struct{}),
	}
	p.state.Store(int32(StateCreated))
	p.exitCode.Store(-1) // -1 indicates not exited
	return p
}

// State returns the current process state.
func (p *Process) State() State {
	return State(p.state.Load())
}

// ExitCode returns the process exit code.
// Returns -1 if the process has not exited.
func (p *Process) ExitCode() int {
	return int(p.exitCode.Load())
}

// ExitError returns any error from waiting on the process.
func (p *Process) ExitError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.exitErr
}

// Done returns a channel that is closed when the process exits.
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// IsRunning returns true if the process is currently running.
func (p *Process) IsRunning() bool {
	return p.State() == StateRunning
}

// HasExited returns true if the process has exited (normally or killed).
func (p *Process) HasExited() bool {
	state := p.State()
	return state == StateExited || state == StateKilled
}

// StderrLines returns how many stderr lines the worker has written.
func (p *Process) StderrLines() int64 {
	return p.stderrLines.Load()
}

// PID returns the process ID, or -1 if not started.
func (p *Process) PID() int {
	if p.Cmd.Process == nil {
		return -1
	}
	return p.Cmd.Process.Pid
}

// Terminate asks the process to exit: SIGTERM on unix, a hard kill where
// the platform has no termination signal.
func (p *Process) Terminate() error {
	if !p.IsRunning() || p.Cmd.Process == nil {
		return ErrProcessNotStarted
	}
	return terminate(p.Cmd.Process)
}

// Kill kills the process immediately.
func (p *Process) Kill() error {
	if !p.IsRunning() || p.Cmd.Process == nil {
		return ErrProcessNotStarted
	}
	return p.Cmd.Process.Kill()
}

// start starts the process and begins tracking it.
// This is called by the Supervisor.
func (p *Process) start() error {
	if p.State() != StateCreated {
		return ErrProcessAlreadyStarted
	}

	// The child gets the write end directly so Wait never blocks on
	// grandchildren that inherit it.
	var w *os.File
	if p.Cmd.Stderr == nil {
		r, pw, err := os.Pipe()
		if err != nil {
			return fmt.Errorf("create stderr pipe: %w", err)
		}
		p.stderr, w = r, pw
		p.Cmd.Stderr = w
	}

	err := p.Cmd.Start()
	if w != nil {
		_ = w.Close()
	}
	if err != nil {
		if p.stderr != nil {
			_ = p.stderr.Close()
		}
		return fmt.Errorf("start process: %w", err)
	}

	p.Started = time.Now()
	p.state.Store(int32(StateRunning))

	go p.readStderr()
	go p.waitLoop()

	return nil
}

// readStderr forwards stderr lines until EOF.
func (p *Process) readStderr() {
	defer close(p.stderrDone)
	if p.stderr == nil {
		return
	}

	scanner := bufio.NewScanner(p.stderr)
	scanner.Buffer(make([]byte, 0, 4096), 1024*1024)
	for scanner.Scan() {
		p.stderrLines.Add(1)
		if p.onStderr != nil {
			p.onStderr(scanner.Text())
		}
	}
}

// stderrGrace bounds how long exit waits for buffered stderr lines.
const stderrGrace = 100 * time.Millisecond

// waitLoop waits for the process to exit and updates state.
func (p *Process) waitLoop() {
	p.waitOnce.Do(func() {
		err := p.Cmd.Wait()

		if p.stderr != nil {
			select {
			case <-p.stderrDone:
			case <-time.After(stderrGrace):
			}
			_ = p.stderr.Close()
			<-p.stderrDone
		}

		p.mu.Lock()
		p.exitErr = err
		p.mu.Unlock()

		exitCode := 0
		state := StateExited

		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				exitCode = exitErr.ExitCode()
				if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
					state = StateKilled
				}
			} else {
				exitCode = -1
			}
		}

		p.exitCode.Store(int32(exitCode))
		p.state.Store(int32(state))
		close(p.done)
	})
}

// Runtime returns the duration the process has been running.
func (p *Process) Runtime() time.Duration {
	if p.Started.IsZero() {
		return 0
	}
	return time.Since(p.Started)
}
