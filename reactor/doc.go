// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor hosts engines on poller tasks: one goroutine per task
// that waits on a poll set, drains a bounded control queue when woken by
// another goroutine, and fires deadline timers, all behind a single
// blocking wait.
//
// Readiness handlers, message processing and timer callbacks all run on the
// task goroutine and must return promptly; a blocking callback stalls the
// whole task.
package reactor
