// Package storage is the relational order store consumed by the lifecycle
// scheduler.
//
// It persists orders, assignments, audit notes, notifications and their
// recipients in SQLite (pure-Go modernc driver), plus two operational tables:
//   - reminder_log: reminder-sent markers used for de-duplication
//   - job_leases:   store-held leases that keep instances from running the
//     same job concurrently
package storage
