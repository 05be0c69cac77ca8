package lifecycle

import (
	"context"
	"time"

	"orderpulse/internal/domain"
	"orderpulse/internal/eventbus"
	"orderpulse/pkg/logx"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type notice struct {
	order       domain.Order
	userID      string
	typ         domain.ReminderType
	message     string
	daysOverdue *int
}

// NotificationEvent is the payload of notification.created.
type NotificationEvent struct {
	NotificationID string              `json:"notification_id"`
	OrderID        string              `json:"order_id"`
	UserID         string              `json:"user_id"`
	Type           domain.ReminderType `json:"type"`
}

// notify writes one notification and its single recipient. It never returns
// an error: failures are logged and reported as false so the caller moves on
// to the next recipient.
func (s *Service) notify(ctx context.Context, n notice, now time.Time) bool {
	log := s.log.With(
		logx.String("order", n.order.Number),
		logx.String("user_id", n.userID),
		logx.String("type", string(n.typ)),
	)
	if err := s.writeNotification(ctx, n, now); err != nil {
		log.Warn("notification failed", logx.Err(err))
		return false
	}
	log.Debug("notification created")
	return true
}

func (s *Service) writeNotification(ctx context.Context, n notice, now time.Time) error {
	if n.userID == "" {
		return errors.New("assignment has no user")
	}
	if err := s.limiter().Wait(ctx); err != nil {
		return errors.Wrap(err, "rate limit")
	}

	payload := map[string]any{
		"orderId":      n.order.ID,
		"orderNumber":  n.order.Number,
		"customerName": n.order.CustomerName,
		"reminderType": string(n.typ),
	}
	if n.order.ScheduledDate != nil {
		payload["scheduledDate"] = n.order.ScheduledDate.UTC().Format(time.RFC3339)
	} else {
		payload["scheduledDate"] = nil
	}
	if n.daysOverdue != nil {
		payload["daysOverdue"] = *n.daysOverdue
	}

	note := domain.Notification{
		ID:        uuid.NewString(),
		Title:     reminderTitle(n.typ, n.order),
		Body:      n.message,
		Category:  domain.CategoryOrderReminder,
		Payload:   payload,
		CreatedAt: now,
	}
	err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
		if err := tx.CreateNotification(ctx, note); err != nil {
			return err
		}
		return tx.CreateNotificationRecipient(ctx, domain.NotificationRecipient{
			ID:             uuid.NewString(),
			NotificationID: note.ID,
			UserID:         n.userID,
			Channels:       []domain.Channel{domain.ChannelInApp, domain.ChannelEmail},
			Status:         domain.DeliveryPending,
			CreatedAt:      now,
		})
	})
	if err != nil {
		return err
	}
	s.publish(eventbus.TopicNotificationCreated, now, NotificationEvent{
		NotificationID: note.ID,
		OrderID:        n.order.ID,
		UserID:         n.userID,
		Type:           n.typ,
	})
	return nil
}

// notifyAssignees fans one notice out to every assignment of the order.
func (s *Service) notifyAssignees(ctx context.Context, o domain.Order, typ domain.ReminderType, msg string, days *int, now time.Time, rep *Report) {
	for _, a := range o.Assignments {
		if s.notify(ctx, notice{order: o, userID: a.UserID, typ: typ, message: msg, daysOverdue: days}, now) {
			rep.NotificationsSent++
		} else {
			rep.NotificationsFailed++
		}
	}
}
