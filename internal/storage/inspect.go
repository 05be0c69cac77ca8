package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"orderpulse/internal/domain"

	"github.com/cockroachdb/errors"
)

// ListOrderNotes returns the audit trail of one order, oldest first.
func (s *SQLStore) ListOrderNotes(ctx context.Context, orderID string) ([]domain.OrderNote, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, order_id, author_id, content, category, is_internal, COALESCE(triggers_status, ''), created_at
		 FROM order_notes WHERE order_id = ? ORDER BY created_at, rowid`, orderID)
	if err != nil {
		return nil, errors.Wrap(err, "query notes")
	}
	defer rows.Close()
	var out []domain.OrderNote
	for rows.Next() {
		var (
			n        domain.OrderNote
			cat      string
			internal int
			triggers string
			at       int64
		)
		if err := rows.Scan(&n.ID, &n.OrderID, &n.AuthorID, &n.Content, &cat, &internal, &triggers, &at); err != nil {
			return nil, errors.Wrap(err, "scan note")
		}
		n.Category = domain.NoteCategory(cat)
		n.IsInternal = internal != 0
		n.TriggersStatus = domain.OrderStatus(triggers)
		n.CreatedAt = time.UnixMilli(at).UTC()
		out = append(out, n)
	}
	return out, errors.Wrap(rows.Err(), "iterate notes")
}

// Delivery is a recipient row joined with its notification.
type Delivery struct {
	Notification domain.Notification
	Recipient    domain.NotificationRecipient
}

// ListDeliveries returns recipient rows created at or after since, oldest first.
func (s *SQLStore) ListDeliveries(ctx context.Context, since time.Time) ([]Delivery, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT n.id, n.title, n.body, n.category, n.payload, n.created_at,
		        r.id, r.user_id, r.channels, r.status, r.created_at
		 FROM notification_recipients r JOIN notifications n ON n.id = r.notification_id
		 WHERE r.created_at >= ?
		 ORDER BY r.created_at, r.rowid`, since.UTC().UnixMilli())
	if err != nil {
		return nil, errors.Wrap(err, "query deliveries")
	}
	defer rows.Close()
	var out []Delivery
	for rows.Next() {
		var (
			d                 Delivery
			payload, channels string
			status            string
			nAt, rAt          int64
		)
		if err := rows.Scan(&d.Notification.ID, &d.Notification.Title, &d.Notification.Body,
			&d.Notification.Category, &payload, &nAt,
			&d.Recipient.ID, &d.Recipient.UserID, &channels, &status, &rAt); err != nil {
			return nil, errors.Wrap(err, "scan delivery")
		}
		if err := json.Unmarshal([]byte(payload), &d.Notification.Payload); err != nil {
			return nil, errors.Wrap(err, "decode payload")
		}
		if err := json.Unmarshal([]byte(channels), &d.Recipient.Channels); err != nil {
			return nil, errors.Wrap(err, "decode channels")
		}
		d.Notification.CreatedAt = time.UnixMilli(nAt).UTC()
		d.Recipient.NotificationID = d.Notification.ID
		d.Recipient.Status = domain.DeliveryStatus(status)
		d.Recipient.CreatedAt = time.UnixMilli(rAt).UTC()
		out = append(out, d)
	}
	return out, errors.Wrap(rows.Err(), "iterate deliveries")
}

// CountPendingDeliveries is the number of recipient rows still PENDING.
func (s *SQLStore) CountPendingDeliveries(ctx context.Context) (int, error) {
	if s == nil || s.db == nil {
		return 0, ErrDisabled
	}
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM notification_recipients WHERE status = ?`, string(domain.DeliveryPending),
	).Scan(&n)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return n, errors.Wrap(err, "count pending")
}
