// Package lifecycle advances orders through their time-driven transitions and
// sends reminders to assigned staff.
//
// Two jobs are exposed:
//   - the daily status check: auto-start, auto-expire, then the tomorrow,
//     hourly and overdue reminders, in that order
//   - the hourly reminder, on its own cadence
//
// Each order transition runs in its own store transaction together with its
// audit notes. Per-order failures are collected and returned after the whole
// sequence; a failed query aborts the remaining checks. Notification fan-out
// never fails the caller: errors are logged and the loop moves on.
//
// Every job is single-flight within the process and, when configured, holds a
// store-backed lease so that only one instance runs it at a time.
package lifecycle
