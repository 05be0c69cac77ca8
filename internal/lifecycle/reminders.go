package lifecycle

import (
	"context"
	"time"

	"orderpulse/internal/domain"
	"orderpulse/pkg/logx"

	"github.com/cockroachdb/errors"
)

const (
	CheckTomorrowReminders = "tomorrow_reminders"
	CheckHourlyReminders   = "hourly_reminders"
	CheckOverdueReminders  = "overdue_reminders"
)

// reminderKind describes one reminder check.
type reminderKind struct {
	check string
	typ   domain.ReminderType
	query func(now time.Time, cfg Config) domain.Query
	// window names the occurrence a marker covers.
	window  func(o domain.Order, now time.Time) string
	message func(o domain.Order, now time.Time) (string, *int)
}

var (
	tomorrowReminder = reminderKind{
		check: CheckTomorrowReminders,
		typ:   domain.ReminderTomorrow,
		query: func(now time.Time, _ Config) domain.Query { return tomorrowQuery(now) },
		window: func(o domain.Order, _ time.Time) string {
			return o.ScheduledDate.UTC().Format(time.DateOnly)
		},
		message: func(o domain.Order, _ time.Time) (string, *int) { return tomorrowMessage(o), nil },
	}
	hourlyReminder = reminderKind{
		check: CheckHourlyReminders,
		typ:   domain.ReminderHourly,
		query: hourlyQuery,
		window: func(o domain.Order, _ time.Time) string {
			return o.StartTime.UTC().Format(time.RFC3339)
		},
		message: func(o domain.Order, _ time.Time) (string, *int) { return hourlyMessage(o), nil },
	}
	overdueReminder = reminderKind{
		check: CheckOverdueReminders,
		typ:   domain.ReminderOverdue,
		query: overdueQuery,
		window: func(_ domain.Order, now time.Time) string {
			return now.UTC().Format(time.DateOnly)
		},
		message: func(o domain.Order, now time.Time) (string, *int) {
			days := daysBetween(*o.StartTime, now)
			return overdueMessage(o, days), &days
		},
	}
)

// remind sends one reminder per assignment of every order matching k. A
// failed query is fatal for the check; send failures are only counted.
func (s *Service) remind(ctx context.Context, k reminderKind, now time.Time, cfg Config, rep *Report) (CheckResult, error) {
	orders, err := s.store.FindOrders(ctx, k.query(now, cfg))
	if err != nil {
		return CheckResult{Name: k.check, Aborted: true}, errors.Wrapf(err, "query %s candidates", k.check)
	}
	b := newBatch(k.check, len(orders))
	for _, o := range orders {
		if err := ctx.Err(); err != nil {
			res := b.result()
			res.Aborted = true
			return res, err
		}
		msg, days := k.message(o, now)
		window := k.window(o, now)
		for _, a := range o.Assignments {
			key := domain.ReminderKey{OrderID: o.ID, UserID: a.UserID, Type: k.typ, Window: window}
			claimed := false
			if cfg.DedupReminders {
				var dup bool
				if claimed, dup = s.claim(ctx, key, now); dup {
					b.res.Deduped++
					continue
				}
			}
			ok := s.notify(ctx, notice{order: o, userID: a.UserID, typ: k.typ, message: msg, daysOverdue: days}, now)
			b.sent(ok)
			if !ok {
				rep.NotificationsFailed++
				if claimed {
					s.release(ctx, key)
				}
				continue
			}
			rep.NotificationsSent++
		}
		b.record(o.Number, nil)
	}
	res := b.result()
	if res.Matched > 0 {
		s.log.Info("reminders processed",
			logx.String("check", k.check),
			logx.Int("orders", res.Matched),
			logx.Int("sent", res.Sent),
			logx.Int("deduped", res.Deduped),
		)
	}
	return res, nil
}

// claim takes the reminder marker before sending. dup is set when another
// run already holds it. A store failure sends without a claim: a duplicate
// reminder is preferable to a missing one.
func (s *Service) claim(ctx context.Context, key domain.ReminderKey, now time.Time) (claimed, dup bool) {
	ok, err := s.store.ClaimReminder(ctx, key, now)
	if err != nil {
		s.log.Warn("reminder claim failed; sending unguarded", logx.String("key", key.String()), logx.Err(err))
		return false, false
	}
	return ok, !ok
}

// release frees the marker of a failed delivery so the next run retries it.
func (s *Service) release(ctx context.Context, key domain.ReminderKey) {
	if err := s.store.ReleaseReminder(context.WithoutCancel(ctx), key); err != nil {
		s.log.Warn("reminder claim not released", logx.String("key", key.String()), logx.Err(err))
	}
}
