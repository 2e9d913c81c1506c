// Package scheduler runs the recurring certificate reconciliation loop.
//
// Each cycle executes the pipeline strictly in order: evaluate the on-disk
// state, acquire material when the policy calls for it, store it atomically,
// render and validate the proxy configuration, and trigger a graceful proxy
// reload. The store write is the single serialization point; no later stage
// ever runs against stale certificate paths.
//
// The scheduler is the only writer of certificate state. Cycles for one
// domain are mutually exclusive; a forced, operator-triggered renewal goes
// through the exact same pipeline with the force flag set.
//
// Every cycle produces an Outcome appended to the domain's journal.
// Outcomes are observability-only: decisions are always re-derived from the
// current on-disk state, which makes the loop stateless across restarts.
// Non-configuration errors never escape a cycle; the loop survives failed
// cycles and tries again on the next tick. The one exception is self-signed
// issuance failing for local reasons: without the ability to write key
// material the subsystem cannot safely continue, so that error stops the
// loop.
//
// Cancellation is honored between stages up to the store write, which is the
// point of no return: once the atomic replace begins the cycle completes it
// to avoid half-written certificate material.
package scheduler
