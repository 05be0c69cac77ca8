package lifecycle

import (
	"context"
	"time"

	"orderpulse/internal/domain"
	"orderpulse/internal/eventbus"
	"orderpulse/pkg/logx"

	"github.com/cockroachdb/errors"
)

const (
	CheckAutoStart  = "auto_start"
	CheckAutoExpire = "auto_expire"
)

// OrderEvent is the payload of order.started and order.expired.
type OrderEvent struct {
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	From        domain.OrderStatus `json:"from"`
	To          domain.OrderStatus `json:"to"`
	At          time.Time          `json:"at"`
	DaysOverdue int                `json:"days_overdue,omitempty"`
}

// autoStart moves every due ACTIVE order to IN_PROGRESS.
func (s *Service) autoStart(ctx context.Context, now time.Time, cfg Config, rep *Report) (CheckResult, error) {
	orders, err := s.store.FindOrders(ctx, autoStartQuery(now))
	if err != nil {
		return CheckResult{Name: CheckAutoStart, Aborted: true}, errors.Wrap(err, "query auto-start candidates")
	}
	b := newBatch(CheckAutoStart, len(orders))
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			res := b.result()
			res.Aborted = true
			return res, err
		}
		err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
			return s.startOrder(ctx, tx, o, now)
		})
		b.record(o.Number, err)
		if err != nil {
			s.log.Warn("auto-start failed", logx.String("order", o.Number), logx.Err(err))
			continue
		}
		s.log.Info("order auto-started", logx.String("order", o.Number), logx.String("scheduled", fmtTime(o.ScheduledDate)))
		s.publish(eventbus.TopicOrderStarted, now, OrderEvent{
			OrderID: o.ID, OrderNumber: o.Number, From: domain.StatusActive, To: domain.StatusInProgress, At: now,
		})
		s.notifyAssignees(ctx, o, domain.ReminderStarted, startedMessage(o), nil, now, rep)
	}
	return b.result(), nil
}

func (s *Service) startOrder(ctx context.Context, tx domain.Tx, o domain.Order, now time.Time) error {
	status := domain.StatusInProgress
	start := now
	if err := tx.UpdateOrder(ctx, o.ID, domain.OrderUpdate{Status: &status, StartTime: &start}); err != nil {
		return errors.Wrap(err, "update status")
	}
	actor, ok, err := s.actorFor(ctx, tx)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("no system actor; skipping auto-start notes", logx.String("order", o.Number))
		return nil
	}
	if err := tx.CreateOrderNote(ctx, domain.OrderNote{
		OrderID:        o.ID,
		AuthorID:       actor,
		Content:        autoStartNote(o),
		Category:       domain.NoteGeneralUpdate,
		TriggersStatus: domain.StatusInProgress,
		CreatedAt:      now,
	}); err != nil {
		return errors.Wrap(err, "public note")
	}
	if err := tx.CreateOrderNote(ctx, domain.OrderNote{
		OrderID:    o.ID,
		AuthorID:   actor,
		Content:    autoStartInternalNote(o, now),
		Category:   domain.NoteSystem,
		IsInternal: true,
		CreatedAt:  now,
	}); err != nil {
		return errors.Wrap(err, "internal note")
	}
	return nil
}

// autoExpire moves stale OPEN and ACTIVE orders to EXPIRED.
func (s *Service) autoExpire(ctx context.Context, now time.Time, cfg Config, rep *Report) (CheckResult, error) {
	orders, err := s.store.FindOrders(ctx, autoExpireQuery(now, cfg))
	if err != nil {
		return CheckResult{Name: CheckAutoExpire, Aborted: true}, errors.Wrap(err, "query auto-expire candidates")
	}
	b := newBatch(CheckAutoExpire, len(orders))
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			res := b.result()
			res.Aborted = true
			return res, err
		}
		days := daysBetween(*o.ScheduledDate, now)
		err := s.store.RunInTx(ctx, func(tx domain.Tx) error {
			return s.expireOrder(ctx, tx, o, days, now)
		})
		b.record(o.Number, err)
		if err != nil {
			s.log.Warn("auto-expire failed", logx.String("order", o.Number), logx.Err(err))
			continue
		}
		s.log.Info("order auto-expired", logx.String("order", o.Number), logx.String("from", string(o.Status)), logx.Int("days_overdue", days))
		s.publish(eventbus.TopicOrderExpired, now, OrderEvent{
			OrderID: o.ID, OrderNumber: o.Number, From: o.Status, To: domain.StatusExpired, At: now, DaysOverdue: days,
		})
		s.notifyAssignees(ctx, o, domain.ReminderExpired, expiredMessage(o, days), &days, now, rep)
	}
	return b.result(), nil
}

func (s *Service) expireOrder(ctx context.Context, tx domain.Tx, o domain.Order, days int, now time.Time) error {
	status := domain.StatusExpired
	if err := tx.UpdateOrder(ctx, o.ID, domain.OrderUpdate{Status: &status}); err != nil {
		return errors.Wrap(err, "update status")
	}
	actor, ok, err := s.actorFor(ctx, tx)
	if err != nil {
		return err
	}
	if !ok {
		s.log.Debug("no system actor; skipping auto-expire note", logx.String("order", o.Number))
		return nil
	}
	return errors.Wrap(tx.CreateOrderNote(ctx, domain.OrderNote{
		OrderID:        o.ID,
		AuthorID:       actor,
		Content:        autoExpireNote(o, days),
		Category:       domain.NoteGeneralUpdate,
		TriggersStatus: domain.StatusExpired,
		CreatedAt:      now,
	}), "expiry note")
}
