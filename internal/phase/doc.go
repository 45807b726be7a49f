// Package phase defines the per-file classification state machine, the retry
// policies that govern each phase, and error classification.
//
// The canonical per-file sequence is analyzing -> building -> metadata ->
// tagging, terminating in completed or error, with idle as the baseline and
// paused reachable from anywhere. CanTransition exposes the closed transition
// table so callers can detect out-of-order updates early.
//
// WithRetry wraps a phase operation with the phase's policy: recoverable
// failures sleep BaseDelay * Multiplier^(attempt-1) between attempts, fatal
// failures abort immediately. Classification prefers structured markers from
// the services package and falls back to a message-substring heuristic whose
// exact substring set is part of the retry contract.
package phase
