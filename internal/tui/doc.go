// Package tui provides the live terminal monitor for posse runs.
//
// The monitor is a read-only view over the orchestrator's event bus. It shows:
//   - Every run admitted this session with its status, duration, and tokens
//   - A filterable log of lifecycle, tool, and progress events
//   - Aggregate session stats (runs by outcome, tokens, per-agent totals)
//
// Users can scroll and filter but never mutate orchestration state from the
// monitor. Quit with 'q' or Ctrl+C; quitting the monitor does not cancel runs.
//
// Usage:
//
//	program, _ := tui.NewProgram()
//	stop := tui.ForwardBus(program, bus)
//	defer stop()
//	go program.Run()
//
//	// Signal completion when all delegations have returned
//	program.Send(tui.MonitorDoneMsg{Success: true, Message: "3 runs finished"})
//
// Bus events arrive as BusEventMsg via program.Send; the monitor routes them
// to the runs table, log view, and stats column.
package tui
