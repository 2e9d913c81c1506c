// Package certstate classifies a domain's certificate into a lifecycle state
// and maps states to renewal actions.
//
// States are derived purely from the stored certificate record and the
// current time; nothing is persisted. Every evaluation cycle recomputes the
// state from disk, which keeps retry and restart behavior deterministic.
//
// The renewal policy is an explicit decision table rather than nested
// conditionals, so every state and flag combination has exactly one
// documented outcome:
//
//	state := certstate.Evaluate(rec, loadErr, cfg.Domain, cfg.Threshold(), time.Now())
//	action := certstate.Decide(state, force, cfg.Public())
package certstate
