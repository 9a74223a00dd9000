package storage

import (
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "file": JSON Lines file at Path
//   - "sqlite": SQLite database file at Path
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Outcome records one finished task. Keep it compact and schema-stable.
type Outcome struct {
	At            time.Time `json:"at"`
	Run           string    `json:"run"`
	Entry         string    `json:"entry"`
	Scope         string    `json:"scope"`
	Entity        string    `json:"entity,omitempty"`
	Task          string    `json:"task"`
	Tag           string    `json:"tag,omitempty"`
	Priority      int       `json:"priority"`
	Status        string    `json:"status"`
	CreatedAtTick uint64    `json:"created_at_tick"`
	EndedAtTick   uint64    `json:"ended_at_tick"`
}
