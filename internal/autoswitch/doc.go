// Package autoswitch wires the context pipeline together.
//
// A Controller receives editor snapshots, debounces them, classifies the
// caret position, and asks the worker to switch the keyboard layout on every
// change between math and prose. It also owns the worker lifecycle and the
// status indicator.
//
//	ctrl := autoswitch.New(cfg, autoswitch.WithLogger(log))
//	ctrl.OnStatus(func(s status.Status) { bar.SetText(s.Label) })
//	go ctrl.Run(ctx)
//
//	// on every document or selection change
//	ctrl.Notify(syntax.NewTextSnapshot(text, caret, parser))
//
// All state lives on one goroutine. Exported methods post work to it, and
// timers, process observers and network completions post their results
// back, so no two steps of the pipeline ever run at once. Observers are
// called in order on a separate goroutine and may call any Controller
// method.
package autoswitch
