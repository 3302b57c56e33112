package process

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Spec describes how to launch the worker.
//
// Paths are validated lazily, when Start is called, so a configuration can
// be edited into shape without restarting the host.
type Spec struct {
	// Executable is the interpreter or binary to run. Bare names are
	// resolved through PATH.
	Executable string

	// Script is passed as the first argument.
	Script string

	// Args are appended after the script.
	Args []string

	// Env, if non-nil, is appended to the host environment.
	Env []string
}

// Validate resolves both paths and reports the first failure as a *PathError.
// Unset fields are reported before either path is resolved.
func (s Spec) Validate() (exe string, err error) {
	if s.Executable == "" {
		return "", &PathError{Field: "executable", Err: ErrPathNotSet}
	}
	if s.Script == "" {
		return "", &PathError{Field: "script", Err: ErrPathNotSet}
	}
	exe, err = exec.LookPath(s.Executable)
	if err != nil {
		return "", &PathError{Field: "executable", Path: s.Executable, Err: fmt.Errorf("%w: %v", ErrPathNotFound, err)}
	}
	if _, err := os.Stat(s.Script); err != nil {
		return "", &PathError{Field: "script", Path: s.Script, Err: fmt.Errorf("%w: %v", ErrPathNotFound, err)}
	}
	return exe, nil
}

// Command builds the exec.Cmd for the spec.
func (s Spec) Command() (*exec.Cmd, error) {
	exe, err := s.Validate()
	if err != nil {
		return nil, err
	}
	args := append([]string{s.Script}, s.Args...)

	cmd := exec.Command(exe, args...)
	if s.Env != nil {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	return cmd, nil
}

// Supervisor owns at most one worker process at a time.
//
// The Supervisor provides:
//   - Idempotent start and stop
//   - Exit notification tagged with whether the handle was still current
//   - Line-oriented stderr forwarding
//   - Graceful shutdown with timeout
//
// A handle that exits after it was replaced never clears the newer handle.
// Supervisor is safe for concurrent use.
type Supervisor struct {
	mu      sync.Mutex
	current *Process

	// wg tracks monitor goroutines
	wg sync.WaitGroup

	// closed indicates the supervisor has been shut down
	closed atomic.Bool

	// onExit is called when a process exits. current is false for stale handles.
	onExit func(p *Process, current bool)

	// onStderr is called for each stderr line of any handle
	onStderr func(p *Process, line string)
}

// SupervisorOption configures a Supervisor instance.
type SupervisorOption func(*Supervisor)

// WithExitCallback sets a callback for when a worker exits.
func WithExitCallback(fn func(p *Process, current bool)) SupervisorOption {
	return func(s *Supervisor) {
		s.onExit = fn
	}
}

// WithStderrCallback sets a callback for worker stderr lines.
func WithStderrCallback(fn func(p *Process, line string)) SupervisorOption {
	return func(s *Supervisor) {
		s.onStderr = fn
	}
}

// NewSupervisor creates a new worker supervisor.
func NewSupervisor(opts ...SupervisorOption) *Supervisor {
	s := &Supervisor{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the worker described by spec.
//
// If a worker is already live, Start returns it with started == false and
// does nothing else. Path problems are returned as *PathError.
// Returns ErrSupervisorShutdown after Shutdown.
func (s *Supervisor) Start(spec Spec) (proc *Process, started bool, err error) {
	if s.closed.Load() {
		return nil, false, ErrSupervisorShutdown
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		return s.current, false, nil
	}

	cmd, err := spec.Command()
	if err != nil {
		return nil, false, err
	}

	proc = NewProcess(uuid.New().String(), spec.Executable, cmd)
	if s.onStderr != nil {
		cb := s.onStderr
		proc.onStderr = func(line string) {
			defer func() { _ = recover() }()
			cb(proc, line)
		}
	}

	if err := proc.start(); err != nil {
		return nil, false, err
	}

	s.current = proc
	s.wg.Add(1)
	go s.monitorProcess(proc)

	return proc, true, nil
}

// Stop terminates the current worker.
//
// The handle is cleared before the signal is sent, so Live reports false
// as soon as Stop returns. Stop without a live worker returns false.
func (s *Supervisor) Stop() (bool, error) {
	s.mu.Lock()
	proc := s.current
	s.current = nil
	s.mu.Unlock()

	if proc == nil {
		return false, nil
	}
	if err := proc.Terminate(); err != nil && proc.IsRunning() {
		return true, fmt.Errorf("terminate worker %s: %w", proc.ID, err)
	}
	return true, nil
}

// Current returns the live worker handle, or nil.
func (s *Supervisor) Current() *Process {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Live reports whether a worker handle is held.
func (s *Supervisor) Live() bool {
	return s.Current() != nil
}

// monitorProcess waits for exit and releases the handle if still current.
func (s *Supervisor) monitorProcess(proc *Process) {
	defer s.wg.Done()
	<-proc.Done()

	s.mu.Lock()
	current := s.current == proc
	if current {
		s.current = nil
	}
	s.mu.Unlock()

	if s.onExit != nil {
		func() {
			defer func() { _ = recover() }()
			s.onExit(proc, current)
		}()
	}
}

// Shutdown stops the worker and refuses further starts.
//
// It sends a termination request and waits up to timeout before killing.
// Shutdown blocks until exit callbacks have returned.
func (s *Supervisor) Shutdown(timeout time.Duration) {
	if s.closed.Swap(true) {
		return
	}

	s.mu.Lock()
	proc := s.current
	s.current = nil
	s.mu.Unlock()

	if proc != nil && proc.IsRunning() {
		_ = proc.Terminate()
		select {
		case <-proc.Done():
		case <-time.After(timeout):
			_ = proc.Kill()
			<-proc.Done()
		}
	}

	s.wg.Wait()
}
