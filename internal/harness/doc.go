// Package harness runs YAML scenarios against a real demo Core.
//
// A scenario lists steps (fire an event, fire a threshold command, advance
// the manual clock, flush) and the expected outcome (final state, pending
// command count, executed command IDs, version). Files are decoded with
// strict field checking and validated against an embedded CUE schema
// before they run.
//
// Each run gets a fresh Core with a testutil.ManualClock and deterministic
// IDs, and records a trace of every applied event and executed command.
// The trace is rendered as canonical JSON so it can be compared with a
// golden file:
//
//	go test ./internal/harness -update
//
// regenerates testdata/golden/*.golden.
//
// # Determinism
//
// Command expiry reads the clock on the worker. An advance step flushes the
// Core before moving the clock, so every event fired before it is scanned
// at the earlier time.
package harness
