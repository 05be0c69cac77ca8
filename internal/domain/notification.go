package domain

import (
	"strings"
	"time"
)

type ReminderType string

const (
	ReminderTomorrow ReminderType = "TOMORROW_REMINDER"
	ReminderHourly   ReminderType = "HOURLY_REMINDER"
	ReminderOverdue  ReminderType = "OVERDUE_REMINDER"
	ReminderStarted  ReminderType = "ORDER_STARTED"
	ReminderExpired  ReminderType = "ORDER_EXPIRED"
)

type Channel string

const (
	ChannelInApp Channel = "in_app"
	ChannelEmail Channel = "email"
)

type DeliveryStatus string

const DeliveryPending DeliveryStatus = "PENDING"

// CategoryOrderReminder tags every notification created by the scheduler.
const CategoryOrderReminder = "order_reminder"

// Notification is one logical event; it fans out to NotificationRecipients.
type Notification struct {
	ID        string
	Title     string
	Body      string
	Category  string
	Payload   map[string]any
	CreatedAt time.Time
}

type NotificationRecipient struct {
	ID             string
	NotificationID string
	UserID         string
	Channels       []Channel
	Status         DeliveryStatus
	CreatedAt      time.Time
}

// ReminderKey identifies one delivered reminder for de-duplication.
// Window distinguishes separate occurrences of the same reminder type.
type ReminderKey struct {
	OrderID string
	UserID  string
	Type    ReminderType
	Window  string
}

func (k ReminderKey) String() string {
	return strings.Join([]string{k.OrderID, k.UserID, string(k.Type), k.Window}, "|")
}
