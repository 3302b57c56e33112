// Package process supervises the shortcut worker.
//
// A Supervisor holds at most one worker process. Each started worker gets a
// fresh handle ID, and exit notifications say whether the exiting handle was
// still the current one, so a late exit from a replaced worker cannot be
// mistaken for a crash of its successor.
//
//	sup := process.NewSupervisor(
//	    process.WithExitCallback(func(p *process.Process, current bool) {
//	        if current {
//	            log.Printf("worker %s exited: %d", p.ID, p.ExitCode())
//	        }
//	    }),
//	)
//	defer sup.Shutdown(2 * time.Second)
//
//	proc, started, err := sup.Start(process.Spec{Executable: "python3", Script: "server.py"})
//
// Stop clears the handle immediately and then asks the process to exit.
// On unix that is SIGTERM; on Windows the process is killed.
package process
