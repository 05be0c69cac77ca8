package storage

import (
	"time"

	"github.com/cockroachdb/errors"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// Driver values:
//   - "sqlite" / "sqlite3": SQLite database file (":memory:" for tests)
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // 0 means default
}

// Customer, Employee and Order fixtures are written by the host application;
// the scheduler itself only reads them. The write helpers exist for
// bootstrapping and tests.
type Customer struct {
	ID   string
	Name string
}

type Employee struct {
	ID     string
	UserID string
}
