// Package scheduler drives a bounded pool of fetch operations over a list
// of catalog targets.
//
// A single goroutine owns the queue and the active set. Each pass admits
// targets in catalog order up to the concurrency ceiling, skipping those
// the oracle reports as already present, then polls every active handle
// without blocking and finally waits for the poll interval or for the
// executor to signal a completion, whichever comes first. A failed target is
// reported and dropped; running the scheduler again is the retry.
//
// Recurring passes are driven by a cron expression with a 60-second
// max-sleep-cap so NTP steps, DST transitions and system sleep cannot delay
// a tick for long.
package scheduler
