// Package integration holds the pieces that connect the context pipeline to
// the outside world.
//
// The package itself provides Debouncer, which collapses bursts of editor
// events into a single classification pass, and SafeCall/SafeGo, which run
// callbacks without letting a panic escape into the host. Subpackages cover
// the worker process and its control channel:
//
//   - process: supervision of the single keyboard-switching worker
//   - control: the loopback request/response client used for health checks
//     and shortcut presses
//
// # Debouncing
//
//	d := integration.NewDebouncer(50*time.Millisecond, func(s syntax.Snapshot) {
//	    classify(s)
//	})
//	d.Call(snap) // re-arms; only the last snapshot in a burst is delivered
//
// # Thread Safety
//
// Debouncer is safe for concurrent use.
package integration
