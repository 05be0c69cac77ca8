package storage

import (
	"strings"

	"orderpulse/pkg/logx"

	"github.com/cockroachdb/errors"
)

// Open initializes the configured store.
func Open(cfg Config, log logx.Logger) (*SQLStore, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}

	switch driver {
	case "", "none":
		return nil, ErrDisabled
	case "sqlite", "sqlite3":
		return openSQLite(cfg, log)
	default:
		return nil, errors.Newf("unknown storage driver: %s", driver)
	}
}
