package storage

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"orderpulse/internal/domain"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type sqlTx struct {
	tx querier
}

// UpdateOrder applies the non-nil fields of u. A missing order is ErrNotFound.
func (t *sqlTx) UpdateOrder(ctx context.Context, id string, u domain.OrderUpdate) error {
	var (
		sets []string
		args []any
	)
	if u.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, string(*u.Status))
	}
	if u.StartTime != nil {
		sets = append(sets, "start_time = ?")
		args = append(args, msOrNil(u.StartTime))
	}
	if len(sets) == 0 {
		return nil
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, time.Now().UTC().UnixMilli(), id)

	res, err := t.tx.ExecContext(ctx, `UPDATE orders SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return errors.Wrapf(err, "update order %s", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "rows affected")
	}
	if n == 0 {
		return errors.Wrapf(domain.ErrNotFound, "order %s", id)
	}
	return nil
}

func (t *sqlTx) CreateOrderNote(ctx context.Context, n domain.OrderNote) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO order_notes(id, order_id, author_id, content, category, is_internal, triggers_status, created_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		n.ID, n.OrderID, n.AuthorID, n.Content, string(n.Category), boolInt(n.IsInternal), nullStr(string(n.TriggersStatus)),
		n.CreatedAt.UTC().UnixMilli(),
	)
	return errors.Wrapf(err, "insert note for order %s", n.OrderID)
}

func (t *sqlTx) FindFirstUserByRole(ctx context.Context, role string) (domain.User, error) {
	return findFirstUserByRole(ctx, t.tx, role)
}

func (t *sqlTx) CreateNotification(ctx context.Context, n domain.Notification) error {
	if n.ID == "" {
		return errors.New("notification id is required")
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	payload := []byte("{}")
	if len(n.Payload) > 0 {
		b, err := json.Marshal(n.Payload)
		if err != nil {
			return errors.Wrap(err, "encode notification payload")
		}
		payload = b
	}
	_, err := t.tx.ExecContext(ctx,
		`INSERT INTO notifications(id, title, body, category, payload, created_at) VALUES(?,?,?,?,?,?)`,
		n.ID, n.Title, n.Body, n.Category, string(payload), n.CreatedAt.UTC().UnixMilli(),
	)
	return errors.Wrap(err, "insert notification")
}

func (t *sqlTx) CreateNotificationRecipient(ctx context.Context, r domain.NotificationRecipient) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = domain.DeliveryPending
	}
	channels, err := json.Marshal(r.Channels)
	if err != nil {
		return errors.Wrap(err, "encode channels")
	}
	_, err = t.tx.ExecContext(ctx,
		`INSERT INTO notification_recipients(id, notification_id, user_id, channels, status, created_at)
		 VALUES(?,?,?,?,?,?)`,
		r.ID, r.NotificationID, r.UserID, string(channels), string(r.Status), r.CreatedAt.UTC().UnixMilli(),
	)
	return errors.Wrapf(err, "insert recipient %s", r.UserID)
}
