// Package workpool implements a fixed size pool of workers that each own some state
// for their whole lifetime, e.g. a client connection.
//
// Every worker runs three stages:
//
//   - Init: creates the worker state. The pool only starts accepting tasks once every
//     worker has initialized; a failing Init aborts the pool.
//   - OnLoop: called for every task the worker receives, with its own state.
//   - OnExit: called once when the pool is closed or aborted.
//
// The first error returned by OnLoop cancels the pool, later Submit calls fail and
// Close returns that error.
package workpool
