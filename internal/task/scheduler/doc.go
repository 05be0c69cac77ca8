// Package scheduler registers named schedules and computes trigger times.
//
// It is trigger-only: each tick enqueues a task into the engine, which owns
// execution, timeouts, retries and overlap policy. Supported schedules are
// cron expressions, fixed intervals and daily HH:MM times, evaluated in the
// configured timezone (UTC by default).
package scheduler
