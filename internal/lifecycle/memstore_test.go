package lifecycle

import (
	"context"
	"sync"
	"time"

	"orderpulse/internal/domain"

	"github.com/cockroachdb/errors"
)

// memStore is an in-memory domain.Store with failure hooks. RunInTx holds
// the lock for the whole unit and restores a snapshot on error.
type memStore struct {
	mu sync.Mutex

	orders        []domain.Order
	users         []domain.User
	notes         []domain.OrderNote
	notifications []domain.Notification
	recipients    []domain.NotificationRecipient
	markers       map[string]time.Time

	findErr      func(q domain.Query) error
	findHook     func(ctx context.Context, q domain.Query)
	noteErr      func(n domain.OrderNote) error
	recipientErr func(r domain.NotificationRecipient) error
}

func newMemStore() *memStore {
	return &memStore{markers: map[string]time.Time{}}
}

func (m *memStore) addUser(u domain.User) domain.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users = append(m.users, u)
	return u
}

func (m *memStore) addOrder(o domain.Order) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range o.Assignments {
		o.Assignments[i].OrderID = o.ID
	}
	m.orders = append(m.orders, o)
	return o
}

func (m *memStore) order(id string) domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.ID == id {
			return o
		}
	}
	return domain.Order{}
}

func (m *memStore) notesFor(orderID string) []domain.OrderNote {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.OrderNote
	for _, n := range m.notes {
		if n.OrderID == orderID {
			out = append(out, n)
		}
	}
	return out
}

// sent lists notifications of type typ as (notification, recipient) pairs.
func (m *memStore) sent(typ domain.ReminderType) []domain.NotificationRecipient {
	m.mu.Lock()
	defer m.mu.Unlock()
	byID := map[string]domain.Notification{}
	for _, n := range m.notifications {
		byID[n.ID] = n
	}
	var out []domain.NotificationRecipient
	for _, r := range m.recipients {
		if n, ok := byID[r.NotificationID]; ok && n.Payload["reminderType"] == string(typ) {
			out = append(out, r)
		}
	}
	return out
}

func (m *memStore) notificationCount() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications), len(m.recipients)
}

func cloneOrder(o domain.Order) domain.Order {
	o.Assignments = append([]domain.EmployeeAssignment(nil), o.Assignments...)
	return o
}

func (m *memStore) FindOrders(ctx context.Context, q domain.Query) ([]domain.Order, error) {
	if m.findHook != nil {
		m.findHook(ctx, q)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.findErr != nil {
		if err := m.findErr(q); err != nil {
			return nil, err
		}
	}
	var out []domain.Order
	for _, o := range m.orders {
		if q.Match(o) {
			out = append(out, cloneOrder(o))
		}
	}
	return out, nil
}

func (m *memStore) RunInTx(ctx context.Context, fn func(tx domain.Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	orders := make([]domain.Order, len(m.orders))
	for i, o := range m.orders {
		orders[i] = cloneOrder(o)
	}
	notes := append([]domain.OrderNote(nil), m.notes...)
	notifications := append([]domain.Notification(nil), m.notifications...)
	recipients := append([]domain.NotificationRecipient(nil), m.recipients...)

	if err := fn(memTx{m}); err != nil {
		m.orders, m.notes, m.notifications, m.recipients = orders, notes, notifications, recipients
		return err
	}
	return nil
}

func (m *memStore) FindUser(ctx context.Context, id string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memStore) FindFirstUserByRole(ctx context.Context, role string) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.firstByRoleLocked(role)
}

func (m *memStore) firstByRoleLocked(role string) (domain.User, error) {
	for _, u := range m.users {
		if u.Role == role {
			return u, nil
		}
	}
	return domain.User{}, domain.ErrNotFound
}

func (m *memStore) ClaimReminder(ctx context.Context, key domain.ReminderKey, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markers[key.String()]; ok {
		return false, nil
	}
	m.markers[key.String()] = at
	return true, nil
}

func (m *memStore) ReleaseReminder(ctx context.Context, key domain.ReminderKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.markers, key.String())
	return nil
}


// memTx runs with memStore.mu held.
type memTx struct{ m *memStore }

func (t memTx) UpdateOrder(ctx context.Context, id string, u domain.OrderUpdate) error {
	for i := range t.m.orders {
		if t.m.orders[i].ID != id {
			continue
		}
		if u.Status != nil {
			t.m.orders[i].Status = *u.Status
		}
		if u.StartTime != nil {
			st := *u.StartTime
			t.m.orders[i].StartTime = &st
		}
		return nil
	}
	return errors.Wrapf(domain.ErrNotFound, "order %s", id)
}

func (t memTx) CreateOrderNote(ctx context.Context, n domain.OrderNote) error {
	if t.m.noteErr != nil {
		if err := t.m.noteErr(n); err != nil {
			return err
		}
	}
	t.m.notes = append(t.m.notes, n)
	return nil
}

func (t memTx) FindFirstUserByRole(ctx context.Context, role string) (domain.User, error) {
	return t.m.firstByRoleLocked(role)
}

func (t memTx) CreateNotification(ctx context.Context, n domain.Notification) error {
	t.m.notifications = append(t.m.notifications, n)
	return nil
}

func (t memTx) CreateNotificationRecipient(ctx context.Context, r domain.NotificationRecipient) error {
	if t.m.recipientErr != nil {
		if err := t.m.recipientErr(r); err != nil {
			return err
		}
	}
	t.m.recipients = append(t.m.recipients, r)
	return nil
}

type fakeLeaser struct {
	mu       sync.Mutex
	held     bool
	acquired int
	released int
}

func (f *fakeLeaser) AcquireJobLease(ctx context.Context, job, owner string, ttl time.Duration, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.held {
		return errors.Wrapf(domain.ErrLeaseHeld, "job %s", job)
	}
	f.acquired++
	return nil
}

func (f *fakeLeaser) ReleaseJobLease(ctx context.Context, job, owner string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released++
	return nil
}
