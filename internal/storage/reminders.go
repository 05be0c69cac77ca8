package storage

import (
	"context"
	"time"

	"orderpulse/internal/domain"

	"github.com/cockroachdb/errors"
)

// ClaimReminder inserts the marker for key. It returns false when the marker
// already exists, so concurrent jobs never deliver the same reminder twice.
func (s *SQLStore) ClaimReminder(ctx context.Context, key domain.ReminderKey, at time.Time) (bool, error) {
	if s == nil || s.db == nil {
		return false, ErrDisabled
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO reminder_log(order_id, user_id, reminder_type, window_key, sent_at)
		 VALUES(?,?,?,?,?)
		 ON CONFLICT(order_id, user_id, reminder_type, window_key) DO NOTHING`,
		key.OrderID, key.UserID, string(key.Type), key.Window, at.UTC().UnixMilli(),
	)
	if err != nil {
		return false, errors.Wrapf(err, "claim reminder %s", key)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrapf(err, "claim reminder %s", key)
	}
	s.maybePrune()
	return n == 1, nil
}

func (s *SQLStore) ReleaseReminder(ctx context.Context, key domain.ReminderKey) error {
	if s == nil || s.db == nil {
		return ErrDisabled
	}
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM reminder_log WHERE order_id = ? AND user_id = ? AND reminder_type = ? AND window_key = ?`,
		key.OrderID, key.UserID, string(key.Type), key.Window,
	)
	return errors.Wrapf(err, "release reminder %s", key)
}
