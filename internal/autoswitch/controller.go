package autoswitch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dshills/langswitch/internal/config"
	"github.com/dshills/langswitch/internal/integration"
	"github.com/dshills/langswitch/internal/integration/control"
	"github.com/dshills/langswitch/internal/integration/process"
	"github.com/dshills/langswitch/internal/logging"
	"github.com/dshills/langswitch/internal/status"
	"github.com/dshills/langswitch/internal/switcher"
	"github.com/dshills/langswitch/internal/syntax"
)

// DefaultShutdownTimeout bounds how long Close waits for the worker to exit
// before killing it.
const DefaultShutdownTimeout = 2 * time.Second

// Notices shown to the user.
const (
	NoticeEnabled      = "Auto language switching enabled."
	NoticeDisabled     = "Auto language switching disabled."
	NoticePathsNotSet  = "Python or script path not set in settings."
	noticeStartFailure = "Could not start the language server: %v"
	noticeSaveFailure  = "Could not save settings: %v"
)

// ForcedLTRNotice is the notice hosts show when the forced LTR
// presentation flag changes.
func ForcedLTRNotice(on bool) string {
	if on {
		return "Forced LTR for active line is now ON."
	}
	return "Forced LTR for active line is now OFF."
}

// Channel is the control channel to the worker.
type Channel interface {
	CheckHealth(ctx context.Context) control.Result
	PressShortcut(ctx context.Context, tokens []string) control.Result
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		if l != nil {
			c.base = l
		}
	}
}

// WithChannel replaces the HTTP control client built from the config.
// A supplied channel is kept across ApplyConfig.
func WithChannel(ch Channel) Option {
	return func(c *Controller) {
		if ch != nil {
			c.channel = ch
			c.ownChannel = false
		}
	}
}

// WithConfigPath makes Toggle and SetEnabled persist the enabled flag.
func WithConfigPath(path string) Option {
	return func(c *Controller) {
		c.configPath = path
	}
}

// WithShutdownTimeout sets the worker grace period used by Close.
func WithShutdownTimeout(d time.Duration) Option {
	return func(c *Controller) {
		if d > 0 {
			c.shutdownTimeout = d
		}
	}
}

// Controller owns the switching pipeline and the worker.
type Controller struct {
	base            *logging.Logger
	logger          *logging.Logger
	configPath      string
	shutdownTimeout time.Duration

	channel    Channel
	ownChannel bool

	sup      *process.Supervisor
	machine  *switcher.Machine
	debounce *integration.Debouncer[syntax.Snapshot]
	notify   *notifier

	ops       chan func()
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	// ctx is canceled on Close so in-flight requests give up.
	ctx      context.Context
	cancel   context.CancelFunc
	inflight sync.WaitGroup

	// Loop-owned state.
	cfg         config.Config
	enabled     bool
	workerID    string
	serverError bool
	health      status.Health
	healthTimer *time.Timer
	passes      uint64

	current atomic.Pointer[status.Status]

	obsMu     sync.Mutex
	statusObs []func(status.Status)
	noticeObs []func(string)
}

// New creates a Controller and starts its loop. The worker is not started
// until Run, SetEnabled or StartWorker.
func New(cfg config.Config, opts ...Option) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		base:            logging.Nop(),
		shutdownTimeout: DefaultShutdownTimeout,
		machine:         switcher.New(),
		ops:             make(chan func()),
		quit:            make(chan struct{}),
		done:            make(chan struct{}),
		ctx:             ctx,
		cancel:          cancel,
		cfg:             cfg,
		enabled:         cfg.Enabled,
		ownChannel:      true,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.base.WithComponent("autoswitch")
	if c.ownChannel {
		c.channel = c.newClient(cfg)
	}

	c.sup = process.NewSupervisor(
		process.WithExitCallback(func(p *process.Process, current bool) {
			c.post(func() { c.workerExited(p, current) })
		}),
		process.WithStderrCallback(func(p *process.Process, line string) {
			c.post(func() { c.workerStderr(p, line) })
		}),
	)
	c.debounce = integration.NewDebouncer(cfg.Debounce, func(s syntax.Snapshot) {
		c.post(func() { c.classify(s) })
	})
	c.notify = newNotifier()

	initial := status.New(c.inputs())
	c.current.Store(&initial)

	go c.loop()
	return c
}

func (c *Controller) newClient(cfg config.Config) Channel {
	return control.New(cfg.Host, cfg.Port, control.WithLogger(c.base.WithComponent("control")))
}

// Run starts the worker if enabled and blocks until ctx is done or the
// controller is closed. It closes the controller before returning.
func (c *Controller) Run(ctx context.Context) error {
	c.call(func() {
		if c.enabled {
			_ = c.start()
		}
		c.refresh()
	})

	select {
	case <-ctx.Done():
	case <-c.quit:
	}
	return c.Close()
}

// Close cancels pending work, stops the worker and waits for the loop to
// exit. The context state is left as it was. Close is idempotent.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() { close(c.quit) })
	<-c.done
	return nil
}

// Done is closed once the controller has shut down.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) loop() {
	defer close(c.done)
	for {
		select {
		case fn := <-c.ops:
			fn()
		case <-c.quit:
			c.teardown()
			return
		}
	}
}

func (c *Controller) teardown() {
	c.debounce.Cancel()
	c.stopHealthTimer()
	c.sup.Shutdown(c.shutdownTimeout)
	c.workerID = ""
	c.cancel()
	c.inflight.Wait()
	c.notify.close()
	c.logger.Debug("controller closed", "passes", c.passes, "transitions", c.machine.Transitions())
}

// post queues fn on the loop. It reports false once the controller is closed.
func (c *Controller) post(fn func()) bool {
	select {
	case c.ops <- fn:
		return true
	case <-c.quit:
		return false
	}
}

// call runs fn on the loop and waits for it.
func (c *Controller) call(fn func()) bool {
	finished := make(chan struct{})
	if !c.post(func() {
		defer close(finished)
		fn()
	}) {
		return false
	}
	<-finished
	return true
}

// OnStatus registers an observer for status changes.
func (c *Controller) OnStatus(fn func(status.Status)) {
	c.obsMu.Lock()
	c.statusObs = append(c.statusObs, fn)
	c.obsMu.Unlock()
}

// OnNotice registers an observer for transient user notices.
func (c *Controller) OnNotice(fn func(string)) {
	c.obsMu.Lock()
	c.noticeObs = append(c.noticeObs, fn)
	c.obsMu.Unlock()
}

// Status returns the last computed status.
func (c *Controller) Status() status.Status {
	return *c.current.Load()
}

// Notify hands the controller the latest editor state. Classification
// happens after the debounce window, on the newest snapshot only.
// Nothing is armed while switching is disabled.
func (c *Controller) Notify(snap syntax.Snapshot) {
	if snap == nil {
		return
	}
	c.post(func() {
		if !c.enabled {
			return
		}
		c.debounce.Call(snap)
	})
}

// SetEnabled turns automatic switching on or off and persists the choice.
// Enabling starts the worker; disabling cancels any pending classification
// and stops it.
func (c *Controller) SetEnabled(enabled bool) {
	c.call(func() { c.setEnabled(enabled, true) })
}

// Toggle flips automatic switching and returns the new state.
func (c *Controller) Toggle() bool {
	var enabled bool
	ok := c.call(func() {
		c.setEnabled(!c.enabled, true)
		enabled = c.enabled
	})
	if !ok {
		return false
	}
	return enabled
}

// Enabled reports whether automatic switching is on.
func (c *Controller) Enabled() bool {
	return c.Status().Inputs.Enabled
}

// StartWorker starts the worker if none is live.
func (c *Controller) StartWorker() error {
	var err error
	if !c.call(func() { err = c.start() }) {
		return process.ErrSupervisorShutdown
	}
	return err
}

// StopWorker stops the live worker, if any.
func (c *Controller) StopWorker() {
	c.call(c.stop)
}

// CheckHealth asks the worker whether it is reachable. The result arrives
// as a status update.
func (c *Controller) CheckHealth() {
	c.post(c.checkHealth)
}

// ApplyConfig adopts a new configuration. Worker paths take effect on the
// next start; a change of the enabled flag is applied without persisting.
func (c *Controller) ApplyConfig(cfg config.Config) {
	c.call(func() { c.applyConfig(cfg) })
}

// Config returns the configuration in effect.
func (c *Controller) Config() config.Config {
	var cfg config.Config
	c.call(func() { cfg = c.cfg })
	return cfg
}

func (c *Controller) applyConfig(cfg config.Config) {
	old := c.cfg
	c.cfg = cfg

	if cfg.Debounce != old.Debounce {
		c.debounce.SetDelay(cfg.Debounce)
	}
	if cfg.LogLevel != old.LogLevel {
		c.logger.SetLevel(cfg.LogLevel)
	}
	if c.ownChannel && (cfg.Host != old.Host || cfg.Port != old.Port) {
		c.channel = c.newClient(cfg)
		c.health = status.Unknown
	}
	if c.workerID != "" && (cfg.PythonPath != old.PythonPath || cfg.ScriptPath != old.ScriptPath) {
		c.logger.Info("worker paths changed, restart the worker to apply")
	}
	if cfg.Enabled != c.enabled {
		c.setEnabled(cfg.Enabled, false)
	}
	c.logger.Debug("config applied")
	c.refresh()
}

func (c *Controller) setEnabled(enabled, persist bool) {
	changed := enabled != c.enabled
	c.enabled = enabled
	c.cfg.Enabled = enabled

	if enabled {
		_ = c.start()
	} else {
		c.debounce.Cancel()
		c.stop()
	}

	if persist && changed && c.configPath != "" {
		if err := config.SetEnabled(c.configPath, enabled); err != nil {
			c.logger.Error("persist enabled flag", "path", c.configPath, "error", err)
			c.notice(fmt.Sprintf(noticeSaveFailure, err))
		}
	}
	if changed {
		if enabled {
			c.notice(NoticeEnabled)
		} else {
			c.notice(NoticeDisabled)
		}
	}
	c.refresh()
}

func (c *Controller) start() error {
	spec := process.Spec{Executable: c.cfg.PythonPath, Script: c.cfg.ScriptPath}
	proc, started, err := c.sup.Start(spec)
	if err != nil {
		c.logger.Error("start worker", "executable", spec.Executable, "script", spec.Script, "error", err)
		if errors.Is(err, process.ErrPathNotSet) {
			c.notice(NoticePathsNotSet)
		} else {
			c.notice(fmt.Sprintf(noticeStartFailure, err))
		}
		c.refresh()
		return err
	}
	if !started {
		return nil
	}

	c.workerID = proc.ID
	c.serverError = false
	c.health = status.Unknown
	c.logger.Info("worker started", "id", proc.ID, "pid", proc.PID())
	c.scheduleHealthCheck(proc.ID)
	c.refresh()
	return nil
}

func (c *Controller) stop() {
	c.stopHealthTimer()
	c.workerID = ""
	stopped, err := c.sup.Stop()
	if err != nil {
		c.logger.Warn("stop worker", "error", err)
	}
	if stopped {
		c.logger.Info("worker stopped")
	}
	c.refresh()
}

func (c *Controller) scheduleHealthCheck(id string) {
	c.stopHealthTimer()
	c.healthTimer = time.AfterFunc(c.cfg.HealthCheckDelay, func() {
		c.post(func() {
			if c.workerID == id {
				c.checkHealth()
			}
		})
	})
}

func (c *Controller) stopHealthTimer() {
	if c.healthTimer != nil {
		c.healthTimer.Stop()
		c.healthTimer = nil
	}
}

func (c *Controller) checkHealth() {
	id, ch := c.workerID, c.channel
	c.async(func(ctx context.Context) func() {
		res := ch.CheckHealth(ctx)
		return func() {
			if id != c.workerID || errors.Is(res.Err, context.Canceled) {
				return
			}
			if res.OK {
				c.health = status.Reachable
			} else {
				c.health = status.Unreachable
			}
			c.logger.Debug("health check", "ok", res.OK, "status", res.StatusCode)
			c.refresh()
		}
	})
}

func (c *Controller) workerExited(p *process.Process, current bool) {
	if !current || p.ID != c.workerID {
		c.logger.Debug("stale worker exit", "id", p.ID, "code", p.ExitCode())
		return
	}
	c.workerID = ""
	c.stopHealthTimer()
	c.logger.Warn("worker exited", "id", p.ID, "code", p.ExitCode(),
		"runtime", p.Runtime().String(), "stderr_lines", p.StderrLines())
	c.refresh()
}

func (c *Controller) workerStderr(p *process.Process, line string) {
	c.logger.Warn("worker stderr", "id", p.ID, "line", line)
	if p.ID != c.workerID || c.serverError {
		return
	}
	c.serverError = true
	c.refresh()
}

// live reports whether the loop holds a worker the supervisor agrees is up.
func (c *Controller) live() bool {
	return c.workerID != "" && c.sup.Live()
}

func (c *Controller) classify(snap syntax.Snapshot) {
	if !c.enabled || !c.live() {
		return
	}
	c.passes++

	root, err := snap.Tree()
	if err != nil {
		c.logger.Warn("parse snapshot", "error", err)
		return
	}
	inside := syntax.Classify(root, snap.Caret())

	tr, changed := c.machine.Observe(inside)
	if !changed {
		return
	}
	lang := tr.Language()
	c.logger.Debug("context changed", "inside_math", tr.To, "language", lang.String())

	// The new state is visible before the switch is requested.
	c.refresh()
	c.press(lang)
}

func (c *Controller) press(lang switcher.Language) {
	shortcut := c.cfg.HebrewShortcut
	if lang == switcher.English {
		shortcut = c.cfg.EnglishShortcut
	}
	id, ch, tokens := c.workerID, c.channel, shortcut.Tokens()

	c.async(func(ctx context.Context) func() {
		res := ch.PressShortcut(ctx, tokens)
		return func() {
			if id != c.workerID || errors.Is(res.Err, context.Canceled) {
				return
			}
			switch {
			case res.OK:
				c.health = status.Reachable
			case res.Transport():
				c.health = status.Unreachable
				c.logger.Warn("switch failed", "language", lang.String(), "error", res.Err)
			default:
				// The worker answered, so it is reachable even though the press failed.
				c.health = status.Reachable
				c.logger.Warn("switch rejected", "language", lang.String(), "status", res.StatusCode, "body", res.Body)
			}
			c.refresh()
		}
	})
}

// async runs a request off the loop and posts its continuation back.
func (c *Controller) async(req func(ctx context.Context) func()) {
	c.inflight.Add(1)
	integration.SafeGo(func() {
		defer c.inflight.Done()
		if next := req(c.ctx); next != nil {
			c.post(next)
		}
	}, func(err error) {
		c.logger.Error("request panicked", "error", err)
	})
}

func (c *Controller) inputs() status.Inputs {
	return status.Inputs{
		Enabled:     c.enabled,
		Live:        c.live(),
		InsideMath:  c.machine.Inside(),
		ServerError: c.serverError,
		Health:      c.health,
	}
}

// refresh recomputes the status and notifies observers if it changed.
func (c *Controller) refresh() {
	s := status.New(c.inputs())
	if prev := c.current.Load(); prev != nil && *prev == s {
		return
	}
	c.current.Store(&s)

	c.obsMu.Lock()
	observers := append(([]func(status.Status))(nil), c.statusObs...)
	c.obsMu.Unlock()

	c.notify.push(func() {
		for _, fn := range observers {
			if err := integration.SafeCall(func() { fn(s) }); err != nil {
				c.logger.Error("status observer panicked", "error", err)
			}
		}
	})
}

func (c *Controller) notice(msg string) {
	c.obsMu.Lock()
	observers := append(([]func(string))(nil), c.noticeObs...)
	c.obsMu.Unlock()

	c.notify.push(func() {
		for _, fn := range observers {
			if err := integration.SafeCall(func() { fn(msg) }); err != nil {
				c.logger.Error("notice observer panicked", "error", err)
			}
		}
	})
}
