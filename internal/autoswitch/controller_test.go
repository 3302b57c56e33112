package autoswitch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/dshills/langswitch/internal/config"
	"github.com/dshills/langswitch/internal/integration/control"
	"github.com/dshills/langswitch/internal/integration/process"
	"github.com/dshills/langswitch/internal/logging"
	"github.com/dshills/langswitch/internal/status"
	"github.com/dshills/langswitch/internal/syntax"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeChannel records control requests.
type fakeChannel struct {
	mu      sync.Mutex
	presses [][]string
	health  int

	pressResult  control.Result
	healthResult control.Result
	onPress      func()
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{
		pressResult:  control.Result{OK: true, StatusCode: http.StatusOK, Body: "OK"},
		healthResult: control.Result{OK: true, StatusCode: http.StatusOK, Body: "Server is running"},
	}
}

func (f *fakeChannel) CheckHealth(ctx context.Context) control.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.health++
	return f.healthResult
}

func (f *fakeChannel) PressShortcut(ctx context.Context, tokens []string) control.Result {
	f.mu.Lock()
	hook := f.onPress
	f.presses = append(f.presses, tokens)
	res := f.pressResult
	f.mu.Unlock()
	if hook != nil {
		hook()
	}
	return res
}

func (f *fakeChannel) setPressResult(r control.Result) {
	f.mu.Lock()
	f.pressResult = r
	f.mu.Unlock()
}

func (f *fakeChannel) pressList() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.presses...)
}

func (f *fakeChannel) healthChecks() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.health
}

// countingSnapshot counts how often its tree is requested.
type countingSnapshot struct {
	text  string
	caret int
	trees *atomic.Int32
}

func (s countingSnapshot) Tree() (syntax.Node, error) {
	s.trees.Add(1)
	return syntax.ParseMarkdown([]byte(s.text)), nil
}

func (s countingSnapshot) Caret() int { return s.caret }

type failingSnapshot struct{}

func (failingSnapshot) Tree() (syntax.Node, error) { return nil, errors.New("bad tree") }
func (failingSnapshot) Caret() int                 { return 0 }

const doc = "area $x^2$ here"

func writeWorker(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "server.sh")
	if err := os.WriteFile(path, []byte(body+"\n"), 0o644); err != nil {
		t.Fatalf("write worker: %v", err)
	}
	return path
}

func testConfig(t *testing.T, script string) config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.PythonPath = "sh"
	cfg.ScriptPath = script
	cfg.Debounce = 30 * time.Millisecond
	cfg.HealthCheckDelay = 10 * time.Millisecond
	return cfg
}

func newController(t *testing.T, cfg config.Config, opts ...Option) (*Controller, *fakeChannel) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	ch := newFakeChannel()
	c := New(cfg, append([]Option{WithChannel(ch), WithShutdownTimeout(time.Second)}, opts...)...)
	t.Cleanup(func() { _ = c.Close() })
	return c, ch
}

func startedController(t *testing.T, opts ...Option) (*Controller, *fakeChannel) {
	t.Helper()
	c, ch := newController(t, testConfig(t, writeWorker(t, "exec sleep 30")), opts...)
	if err := c.StartWorker(); err != nil {
		t.Fatalf("start worker: %v", err)
	}
	waitFor(t, func() bool { return c.Status().Inputs.Health == status.Reachable }, "worker never became reachable")
	return c, ch
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func waitDisplay(t *testing.T, c *Controller, want status.Display) {
	t.Helper()
	waitFor(t, func() bool { return c.Status().Display == want }, "display never became "+want.String()+", is "+c.Status().Display.String())
}

// settle waits until the loop and the notifier are idle.
func settle(c *Controller) {
	flushed := make(chan struct{})
	if !c.call(func() { c.notify.push(func() { close(flushed) }) }) {
		return
	}
	<-flushed
}

// drain waits for a pending classification to fire and run.
func drain(t *testing.T, c *Controller) {
	t.Helper()
	waitFor(t, func() bool { return !c.pending() }, "debounce never fired")
	time.Sleep(20 * time.Millisecond)
	settle(c)
}

func (c *Controller) classificationPasses() uint64 {
	var n uint64
	c.call(func() { n = c.passes })
	return n
}

func (c *Controller) pending() bool {
	var p bool
	c.call(func() { p = c.debounce.IsPending() })
	return p
}

func TestController_InitialStatus(t *testing.T) {
	cfg := testConfig(t, "")
	c, _ := newController(t, cfg)
	if got := c.Status().Display; got != status.Disconnected {
		t.Errorf("expected Disconnected before start, got %v", got)
	}

	cfg.Enabled = false
	off, _ := newController(t, cfg)
	if got := off.Status().Label; got != "Lang: Off" {
		t.Errorf("expected 'Lang: Off', got %q", got)
	}
}

func TestController_BurstCoalesces(t *testing.T) {
	c, ch := startedController(t)
	var trees atomic.Int32

	for caret := 0; caret < 10; caret++ {
		c.Notify(countingSnapshot{text: doc, caret: caret, trees: &trees})
	}

	waitFor(t, func() bool { return len(ch.pressList()) == 1 }, "expected one switch")
	time.Sleep(100 * time.Millisecond)
	settle(c)

	if n := trees.Load(); n != 1 {
		t.Errorf("expected one parse, got %d", n)
	}
	if n := c.classificationPasses(); n != 1 {
		t.Errorf("expected one classification pass, got %d", n)
	}
	// The last snapshot (caret 9) is inside $x^2$, so English is requested.
	presses := ch.pressList()
	if len(presses) != 1 || config.Shortcut(presses[0]).String() != "alt,shiftleft,2" {
		t.Errorf("expected one English press, got %v", presses)
	}
	waitDisplay(t, c, status.English)
}

func TestController_CommitBeforeDispatch(t *testing.T) {
	c, ch := startedController(t)
	var insideAtDispatch atomic.Bool
	ch.mu.Lock()
	ch.onPress = func() { insideAtDispatch.Store(c.Status().Inputs.InsideMath) }
	ch.mu.Unlock()

	var trees atomic.Int32
	c.Notify(countingSnapshot{text: doc, caret: 6, trees: &trees})

	waitFor(t, func() bool { return len(ch.pressList()) == 1 }, "expected one switch")
	if !insideAtDispatch.Load() {
		t.Error("state must be committed before the switch request is sent")
	}
}

func TestController_EdgeTriggered(t *testing.T) {
	c, ch := startedController(t)
	var trees atomic.Int32
	notifyAndWait := func(caret int) {
		c.Notify(countingSnapshot{text: doc, caret: caret, trees: &trees})
		drain(t, c)
	}

	notifyAndWait(1)  // prose: equal to initial state, no switch
	notifyAndWait(7)  // enter math
	notifyAndWait(8)  // still inside
	notifyAndWait(12) // leave math
	waitFor(t, func() bool { return len(ch.pressList()) == 2 }, "expected two switches")
	time.Sleep(50 * time.Millisecond)

	presses := ch.pressList()
	if len(presses) != 2 {
		t.Fatalf("expected 2 presses, got %v", presses)
	}
	if config.Shortcut(presses[0]).String() != "alt,shiftleft,2" || config.Shortcut(presses[1]).String() != "alt,shiftleft,1" {
		t.Errorf("unexpected press order %v", presses)
	}
	waitDisplay(t, c, status.Hebrew)
}

func TestController_BoundaryIsInside(t *testing.T) {
	c, ch := startedController(t)
	var trees atomic.Int32
	// Offset 5 is the opening '$' of $x^2$.
	c.Notify(countingSnapshot{text: doc, caret: 5, trees: &trees})
	waitFor(t, func() bool { return len(ch.pressList()) == 1 }, "boundary caret should switch to English")
}

func TestController_FailedSwitchNoRollbackNoRetry(t *testing.T) {
	c, ch := startedController(t)
	ch.setPressResult(control.Result{StatusCode: http.StatusInternalServerError, Body: "boom", Err: errors.New("status 500")})

	var trees atomic.Int32
	c.Notify(countingSnapshot{text: doc, caret: 7, trees: &trees})
	waitFor(t, func() bool { return len(ch.pressList()) == 1 }, "expected one switch attempt")
	settle(c)

	c.Notify(countingSnapshot{text: doc, caret: 8, trees: &trees})
	drain(t, c)

	if n := len(ch.pressList()); n != 1 {
		t.Errorf("expected no retry, got %d presses", n)
	}
	s := c.Status()
	if !s.Inputs.InsideMath || s.Display != status.English {
		t.Errorf("expected committed English state, got %+v", s)
	}
}

func TestController_TransportFailureShowsDisconnected(t *testing.T) {
	c, ch := startedController(t)
	ch.setPressResult(control.Result{Err: errors.New("connection refused")})

	var trees atomic.Int32
	c.Notify(countingSnapshot{text: doc, caret: 7, trees: &trees})
	waitDisplay(t, c, status.Disconnected)

	if !c.Status().Inputs.Live {
		t.Error("worker should still be live")
	}

	// A successful health check restores the context label.
	c.CheckHealth()
	waitDisplay(t, c, status.English)
}

func TestController_ParseErrorIsLogged(t *testing.T) {
	c, ch := startedController(t)
	c.Notify(failingSnapshot{})
	drain(t, c)

	if len(ch.pressList()) != 0 {
		t.Error("expected no switch on parse failure")
	}
	if c.Status().Inputs.InsideMath {
		t.Error("state must not change on parse failure")
	}
}

func TestController_DisabledArmsNothing(t *testing.T) {
	cfg := testConfig(t, writeWorker(t, "exec sleep 30"))
	cfg.Enabled = false
	c, ch := newController(t, cfg)

	var trees atomic.Int32
	c.Notify(countingSnapshot{text: doc, caret: 7, trees: &trees})
	if c.pending() {
		t.Error("disabled controller armed a debounce timer")
	}
	time.Sleep(80 * time.Millisecond)
	settle(c)

	if trees.Load() != 0 || len(ch.pressList()) != 0 || ch.healthChecks() != 0 {
		t.Errorf("expected no work while disabled: trees=%d presses=%d health=%d",
			trees.Load(), len(ch.pressList()), ch.healthChecks())
	}
	if c.Status().Display != status.Off {
		t.Errorf("expected Off, got %v", c.Status().Display)
	}
}

func TestController_DisableCancelsPendingAndStops(t *testing.T) {
	c, ch := startedController(t)
	var trees atomic.Int32

	// Enter math first so there is context state to preserve.
	c.Notify(countingSnapshot{text: doc, caret: 7, trees: &trees})
	waitFor(t, func() bool { return len(ch.pressList()) == 1 }, "expected one switch")

	cfg := c.Config()
	cfg.Debounce = time.Hour
	c.ApplyConfig(cfg)
	c.Notify(countingSnapshot{text: doc, caret: 12, trees: &trees})
	if !c.pending() {
		t.Fatal("expected a pending classification")
	}

	c.SetEnabled(false)
	if c.pending() {
		t.Error("disabling must cancel the pending classification")
	}
	s := c.Status()
	if s.Display != status.Off || s.Inputs.Live {
		t.Errorf("expected Off with no worker, got %+v", s)
	}
	if !s.Inputs.InsideMath {
		t.Error("disabling must leave the context state as-is")
	}
}

func TestController_WorkerCrash(t *testing.T) {
	c, ch := startedController(t)
	waitDisplay(t, c, status.Hebrew)

	proc := c.sup.Current()
	if proc == nil {
		t.Fatal("expected a live worker")
	}
	if err := proc.Kill(); err != nil {
		t.Fatalf("kill: %v", err)
	}
	waitDisplay(t, c, status.Disconnected)

	var trees atomic.Int32
	c.Notify(countingSnapshot{text: doc, caret: 7, trees: &trees})
	drain(t, c)
	if len(ch.pressList()) != 0 {
		t.Error("no switch may be requested without a live worker")
	}

	before := ch.healthChecks()
	if c.Toggle() {
		t.Fatal("expected Toggle to disable")
	}
	if !c.Toggle() {
		t.Fatal("expected Toggle to enable")
	}
	waitFor(t, func() bool { return ch.healthChecks() > before }, "no health check after respawn")
	waitDisplay(t, c, status.Hebrew)
	if c.sup.Current() == proc {
		t.Error("expected a new worker handle")
	}
}

func TestController_StderrMeansServerError(t *testing.T) {
	c, ch := newController(t, testConfig(t, writeWorker(t, "echo 'Traceback: boom' >&2\nexec sleep 30")))
	if err := c.StartWorker(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitDisplay(t, c, status.ServerError)

	var trees atomic.Int32
	c.Notify(countingSnapshot{text: doc, caret: 7, trees: &trees})
	waitFor(t, func() bool { return len(ch.pressList()) == 1 }, "switching continues while degraded")
	if c.Status().Display != status.ServerError {
		t.Errorf("server error outranks context label, got %v", c.Status().Display)
	}

	// A fresh start clears the flag.
	cfg := c.Config()
	cfg.ScriptPath = writeWorker(t, "exec sleep 30")
	c.ApplyConfig(cfg)
	c.StopWorker()
	if err := c.StartWorker(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	waitDisplay(t, c, status.English)
}

func TestController_StopTwice(t *testing.T) {
	c, _ := startedController(t)
	c.StopWorker()
	c.StopWorker()
	if c.Status().Display != status.Disconnected {
		t.Errorf("expected Disconnected, got %v", c.Status().Display)
	}
}

func TestController_StartIsIdempotent(t *testing.T) {
	c, _ := startedController(t)
	first := c.sup.Current()
	if err := c.StartWorker(); err != nil {
		t.Fatalf("second start: %v", err)
	}
	if c.sup.Current() != first {
		t.Error("second start replaced the live worker")
	}
}

func TestController_PathsNotSet(t *testing.T) {
	c, _ := newController(t, testConfig(t, ""))
	var notices []string
	var mu sync.Mutex
	c.OnNotice(func(msg string) {
		mu.Lock()
		notices = append(notices, msg)
		mu.Unlock()
	})

	err := c.StartWorker()
	if !errors.Is(err, process.ErrPathNotSet) {
		t.Fatalf("expected ErrPathNotSet, got %v", err)
	}
	settle(c)

	mu.Lock()
	defer mu.Unlock()
	if len(notices) != 1 || notices[0] != NoticePathsNotSet {
		t.Errorf("expected one path notice, got %v", notices)
	}
	if c.Status().Display != status.Disconnected {
		t.Errorf("expected Disconnected, got %v", c.Status().Display)
	}
}

func TestController_MissingScript(t *testing.T) {
	c, _ := newController(t, testConfig(t, "/nonexistent/lang_server.py"))
	err := c.StartWorker()
	var pe *process.PathError
	if !errors.As(err, &pe) || pe.Field != "script" {
		t.Fatalf("expected script PathError, got %v", err)
	}
}

func TestController_TogglePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	c, _ := newController(t, testConfig(t, writeWorker(t, "exec sleep 30")), WithConfigPath(path))

	notices := make(chan string, 4)
	c.OnNotice(func(msg string) { notices <- msg })

	if c.Toggle() {
		t.Fatal("expected disabled after toggle")
	}
	select {
	case msg := <-notices:
		if msg != NoticeDisabled {
			t.Errorf("unexpected notice %q", msg)
		}
	case <-time.After(time.Second):
		t.Fatal("no notice")
	}

	saved, err := config.Load(path)
	if err != nil {
		t.Fatalf("load saved config: %v", err)
	}
	if saved.Enabled {
		t.Error("expected enabled=false persisted")
	}
}

func TestController_ApplyConfigEnabledDoesNotPersist(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	c, _ := startedController(t, WithConfigPath(path))

	cfg := c.Config()
	cfg.Enabled = false
	c.ApplyConfig(cfg)

	if c.Status().Display != status.Off {
		t.Errorf("expected Off, got %v", c.Status().Display)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Error("config reload must not write the file")
	}
}

func TestController_StatusObserversOnlyOnChange(t *testing.T) {
	c, _ := startedController(t)
	settle(c)

	var mu sync.Mutex
	var seen []status.Display
	c.OnStatus(func(s status.Status) {
		mu.Lock()
		seen = append(seen, s.Display)
		mu.Unlock()
	})

	c.CheckHealth()
	c.CheckHealth()
	time.Sleep(30 * time.Millisecond)
	settle(c)

	c.SetEnabled(false)
	settle(c)

	mu.Lock()
	defer mu.Unlock()
	// Health stays Reachable, so only disabling produces updates.
	if len(seen) == 0 || seen[len(seen)-1] != status.Off {
		t.Errorf("expected final Off update, got %v", seen)
	}
	for _, d := range seen {
		if d == status.Hebrew {
			t.Errorf("unchanged status was re-announced: %v", seen)
		}
	}
}

func TestController_ObserverMayCallBack(t *testing.T) {
	c, _ := newController(t, testConfig(t, writeWorker(t, "exec sleep 30")))
	reentered := make(chan bool, 1)
	var once sync.Once
	c.OnNotice(func(string) {
		once.Do(func() { reentered <- c.Toggle() })
	})
	c.OnStatus(func(status.Status) { panic("observer bug") })

	c.SetEnabled(false)
	select {
	case enabled := <-reentered:
		if !enabled {
			t.Error("expected re-entrant toggle to enable")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("observer call back deadlocked")
	}
}

func TestController_RunAndClose(t *testing.T) {
	c, ch := newController(t, testConfig(t, writeWorker(t, "exec sleep 30")))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	waitFor(t, func() bool { return ch.healthChecks() > 0 }, "Run did not start the worker")
	waitDisplay(t, c, status.Hebrew)
	proc := c.sup.Current()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return")
	}
	<-c.Done()
	if proc != nil && !proc.HasExited() {
		t.Error("worker still running after close")
	}

	// Operations after close are no-ops.
	if err := c.StartWorker(); !errors.Is(err, process.ErrSupervisorShutdown) {
		t.Errorf("expected ErrSupervisorShutdown, got %v", err)
	}
	c.Notify(failingSnapshot{})
	c.SetEnabled(true)
	if c.Toggle() {
		t.Error("toggle after close reports enabled")
	}
	if err := c.Close(); err != nil {
		t.Errorf("second close: %v", err)
	}
}

// logBuffer is a goroutine-safe log sink.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestController_CloseLogsTransitions(t *testing.T) {
	var logs logBuffer
	c, ch := startedController(t, WithLogger(logging.NewWithWriter(&logs, "debug")))

	var trees atomic.Int32
	c.Notify(countingSnapshot{text: doc, caret: 7, trees: &trees})
	waitFor(t, func() bool { return len(ch.pressList()) == 1 }, "expected a switch to english")
	c.Notify(countingSnapshot{text: doc, caret: 12, trees: &trees})
	waitFor(t, func() bool { return len(ch.pressList()) == 2 }, "expected a switch to hebrew")

	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	out := logs.String()
	if !strings.Contains(out, `"msg":"controller closed"`) || !strings.Contains(out, `"transitions":2`) {
		t.Errorf("expected close log with two transitions, got:\n%s", out)
	}
}

func TestController_ExitLogsStderrLines(t *testing.T) {
	var logs logBuffer
	c, _ := newController(t, testConfig(t, writeWorker(t, "echo boom >&2\nexit 3")),
		WithLogger(logging.NewWithWriter(&logs, "debug")))
	if err := c.StartWorker(); err != nil {
		t.Fatalf("start: %v", err)
	}
	waitFor(t, func() bool { return strings.Contains(logs.String(), `"msg":"worker exited"`) }, "worker exit never logged")

	out := logs.String()
	if !strings.Contains(out, `"stderr_lines":1`) || !strings.Contains(out, `"code":3`) {
		t.Errorf("expected exit log with code and stderr count, got:\n%s", out)
	}
}
