// Package storage persists the outcome journal: one record per finished
// scheduler task, so a run can be inspected after the process exits.
//
// Drivers:
//   - "file": JSON Lines, dependency-free
//   - "sqlite": modernc.org/sqlite with embedded migrations
package storage
