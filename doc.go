// Package reactor implements a unidirectional state container.
//
// A Core owns one authoritative State value. State changes only by folding
// Events through a Reducer, one at a time, on a dedicated worker goroutine.
// Subscribers observe every committed State (or a projection of it) on their
// own delivery Executor, middleware observe every (event, state) pair on the
// worker, and Commands defer work until the State satisfies a precondition.
//
// ARCHITECTURE:
//
// Single-Writer Worker:
// Every Core runs exactly one worker goroutine fed by an unbounded FIFO.
// Fire and FireCommand enqueue and return immediately. The worker applies
// each job in submission order, so two events fired concurrently are
// linearized and never reduced in parallel.
//
// Mutation Cycle (one per event):
//  1. reduce State with the Event and publish the new snapshot
//  2. scan the pending command queue: expired entries are dropped, entries
//     whose precondition now holds are removed and executed in FIFO order
//  3. invoke middleware in registration order
//  4. schedule a delivery for every live subscription
//
// Commands:
// A command whose precondition holds when the worker reaches it executes
// immediately and is never subject to expiry. Otherwise it is parked with
// an absolute deadline (submission time + expiry) and re-evaluated after
// every subsequent event. Entries leave the queue before their action runs,
// so an action executes at most once.
//
// Subscriptions:
// The registry has its own lock, separate from the worker. Each
// subscription delivers on a FIFO Executor and sees strictly increasing
// state versions. Remove blocks until any in-flight delivery to that
// subscriber has returned; after Remove returns the subscriber is never
// called again.
//
// Snapshots:
// State is replaced wholesale on every event, so State() reads an
// immutable snapshot without taking a lock.
package reactor
