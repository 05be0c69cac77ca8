package lifecycle

import (
	"fmt"
	"time"

	"orderpulse/internal/domain"
)

const (
	autoStartTag = "AUTO_START"
	dateLayout   = "2006-01-02 15:04 UTC"
)

func fmtTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(dateLayout)
}

func customerOf(o domain.Order) string {
	if o.CustomerName == "" {
		return "unknown customer"
	}
	return o.CustomerName
}

func autoStartNote(o domain.Order) string {
	return fmt.Sprintf("Order %s was started automatically: its scheduled date %s has been reached.",
		o.Number, fmtTime(o.ScheduledDate))
}

func autoStartInternalNote(o domain.Order, now time.Time) string {
	return fmt.Sprintf("[%s] status %s -> %s at %s (scheduled %s)",
		autoStartTag, domain.StatusActive, domain.StatusInProgress, now.UTC().Format(time.RFC3339), fmtTime(o.ScheduledDate))
}

func autoExpireNote(o domain.Order, days int) string {
	return fmt.Sprintf("Order %s expired automatically: it is %s past its scheduled date %s and was still %s.",
		o.Number, plural(days, "day"), fmtTime(o.ScheduledDate), o.Status)
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s", unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

func reminderTitle(t domain.ReminderType, o domain.Order) string {
	switch t {
	case domain.ReminderTomorrow:
		return fmt.Sprintf("Order %s starts tomorrow", o.Number)
	case domain.ReminderHourly:
		return fmt.Sprintf("Order %s starts soon", o.Number)
	case domain.ReminderOverdue:
		return fmt.Sprintf("Order %s is overdue", o.Number)
	case domain.ReminderStarted:
		return fmt.Sprintf("Order %s has started", o.Number)
	case domain.ReminderExpired:
		return fmt.Sprintf("Order %s has expired", o.Number)
	default:
		return fmt.Sprintf("Order %s", o.Number)
	}
}

func tomorrowMessage(o domain.Order) string {
	return fmt.Sprintf("Reminder: order %s for %s is scheduled for tomorrow (%s).",
		o.Number, customerOf(o), fmtTime(o.ScheduledDate))
}

func hourlyMessage(o domain.Order) string {
	return fmt.Sprintf("Reminder: order %s for %s starts at %s.",
		o.Number, customerOf(o), fmtTime(o.StartTime))
}

func overdueMessage(o domain.Order, days int) string {
	return fmt.Sprintf("Order %s for %s has been in progress for %s since %s. Please complete it or update its status.",
		o.Number, customerOf(o), plural(days, "day"), fmtTime(o.StartTime))
}

func startedMessage(o domain.Order) string {
	return fmt.Sprintf("Order %s for %s has started automatically.", o.Number, customerOf(o))
}

func expiredMessage(o domain.Order, days int) string {
	return fmt.Sprintf("Order %s for %s expired after being %s past its scheduled date.",
		o.Number, customerOf(o), plural(days, "day"))
}
