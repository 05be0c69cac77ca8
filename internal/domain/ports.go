package domain

import (
	"context"
	"time"
)

// Tx is the unit of work available inside Store.RunInTx.
// All writes commit or roll back together.
type Tx interface {
	UpdateOrder(ctx context.Context, id string, u OrderUpdate) error
	CreateOrderNote(ctx context.Context, n OrderNote) error
	FindFirstUserByRole(ctx context.Context, role string) (User, error)
	CreateNotification(ctx context.Context, n Notification) error
	CreateNotificationRecipient(ctx context.Context, r NotificationRecipient) error
}

// Store is the persistence contract consumed by the lifecycle scheduler.
type Store interface {
	FindOrders(ctx context.Context, q Query) ([]Order, error)
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
	FindUser(ctx context.Context, id string) (User, error)
	FindFirstUserByRole(ctx context.Context, role string) (User, error)

	// ClaimReminder records key and reports whether this call created it.
	// Exactly one of several concurrent claims for the same key wins.
	ClaimReminder(ctx context.Context, key ReminderKey, at time.Time) (bool, error)
	// ReleaseReminder drops a claim whose delivery failed.
	ReleaseReminder(ctx context.Context, key ReminderKey) error
}

// Leaser provides a store-held job lease so several instances never run the
// same job concurrently. Acquire fails with an error wrapping ErrLeaseHeld
// while another owner's lease has not expired.
type Leaser interface {
	AcquireJobLease(ctx context.Context, job, owner string, ttl time.Duration, now time.Time) error
	ReleaseJobLease(ctx context.Context, job, owner string) error
}
