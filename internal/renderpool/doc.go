// Package renderpool runs render jobs on a fixed set of worker slots, each
// wrapping one lazily constructed engine instance. A single controller
// goroutine owns the job queue and every slot's state; workers communicate
// with it only through messages. A crashed worker fails just its own job and
// is replaced in place, so the pool always holds its configured size.
package renderpool
