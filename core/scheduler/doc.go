// Package scheduler triggers sync cycles on a fixed interval and on demand.
//
// Cycles run on a single goroutine, so they never overlap within a process.
// An on-demand trigger that arrives while a cycle runs is logged and dropped
// rather than queued.
package scheduler
