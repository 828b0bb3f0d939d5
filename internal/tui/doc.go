// Package tui provides the terminal chat interface for taskflow.
//
// The chat model reads instructions from an input line, hands each one to
// a Handler and appends the resulting OutcomeReport to a scrollable
// transcript. While an instruction runs, orchestrator progress events are
// shown as they arrive.
//
// Usage:
//
//	events := orchestrator.NewEventEmitter(64, logger)
//	program, chat := tui.NewChatProgram(ctx, handler, events.Events())
//	_, err := program.Run()
//
// Users quit with Ctrl+C or by typing /quit.
package tui
