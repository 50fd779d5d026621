package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/ShayCichocki/posse/internal/tui"
)

// submitOutcome carries the result of the delegation goroutine.
type submitOutcome struct {
	message string
	err     error
}

// runWithTUI runs a delegation under the live monitor. submit performs the
// blocking Delegate or DelegateParallel call and returns the completion
// message shown in the footer.
func runWithTUI(ctx context.Context, eng *engine, submit func(context.Context) (string, error)) (retErr error) {
	// Suppress log output while the TUI is active (it corrupts the display)
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	// Recover from panics
	defer func() {
		if r := recover(); r != nil {
			retErr = fmt.Errorf("PANIC in runWithTUI: %v", r)
		}
	}()

	program, _ := tui.NewProgram()

	stopForward := tui.ForwardBus(program, eng.bus)
	defer stopForward()

	eng.relay.Set(func(runID, chunk string) {
		program.Send(tui.StreamChunkMsg{RunID: runID, Text: chunk})
	})
	defer eng.relay.Set(nil)

	verbose := os.Getenv("POSSE_DEBUG") != ""
	debugLog := func(msg string) {
		if verbose {
			program.Send(tui.DebugLogMsg{Message: msg})
		}
	}

	outcomeCh := make(chan submitOutcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				outcomeCh <- submitOutcome{err: fmt.Errorf("PANIC in delegation: %v", r)}
			}
		}()
		message, err := submit(ctx)
		outcomeCh <- submitOutcome{message: message, err: err}
	}()

	tuiDone := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				tuiDone <- fmt.Errorf("PANIC in TUI: %v", r)
			}
		}()
		_, err := program.Run()
		tuiDone <- err
	}()

	debugLog("monitor started, waiting for completion...")

	select {
	case outcome := <-outcomeCh:
		debugLog(fmt.Sprintf("delegation done, err=%v", outcome.err))
		if outcome.err != nil {
			program.Send(tui.MonitorDoneMsg{Success: false, Message: outcome.err.Error()})
		} else {
			message := outcome.message
			if message == "" {
				message = "All runs finished"
			}
			program.Send(tui.MonitorDoneMsg{Success: true, Message: message})
		}
		// Wait for the user to quit so they can read the result
		<-tuiDone
		return outcome.err

	case err := <-tuiDone:
		// User quit while work was still in flight; the deferred cancel
		// in the calling command stops the runs.
		return err
	}
}
