package storage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"orderpulse/internal/domain"
	"orderpulse/pkg/logx"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLStore {
	t.Helper()
	st, err := Open(Config{Driver: "sqlite", Path: ":memory:"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestOpen_Disabled(t *testing.T) {
	_, err := Open(Config{Driver: "none"}, logx.Nop())
	assert.ErrorIs(t, err, ErrDisabled)

	_, err = Open(Config{Driver: "postgres"}, logx.Nop())
	assert.Error(t, err)

	_, err = Open(Config{Driver: "sqlite"}, logx.Nop())
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	st := openTestStore(t)
	require.NoError(t, st.Migrate(context.Background()))
	require.NoError(t, st.Ping(context.Background()))
}

func TestFindOrders_RangesAndNulls(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	mk := func(num string, status domain.OrderStatus, sched *time.Time, archived bool) {
		_, err := st.CreateOrder(ctx, domain.Order{Number: num, Status: status, ScheduledDate: sched, IsArchived: archived})
		require.NoError(t, err)
	}
	mk("A-1", domain.StatusActive, at("2026-03-01T09:00:00Z"), false)
	mk("A-2", domain.StatusActive, at("2026-03-01T10:00:00Z"), false)
	mk("A-3", domain.StatusActive, nil, false)
	mk("A-4", domain.StatusActive, at("2026-03-01T08:00:00Z"), true)
	mk("O-1", domain.StatusOpen, at("2026-03-01T08:00:00Z"), false)

	now := at("2026-03-01T10:00:00Z")
	got, err := st.FindOrders(ctx, domain.Where(domain.Predicate{
		Status:        domain.StatusActive,
		ScheduledDate: domain.Range{Until: now},
	}))
	require.NoError(t, err)
	var nums []string
	for _, o := range got {
		nums = append(nums, o.Number)
	}
	assert.Equal(t, []string{"A-1", "A-2"}, nums)

	got, err = st.FindOrders(ctx, domain.Where(domain.Predicate{
		Status:        domain.StatusActive,
		ScheduledDate: domain.Range{Before: now},
	}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "A-1", got[0].Number)

	got, err = st.FindOrders(ctx, domain.Where(
		domain.Predicate{Status: domain.StatusOpen, ScheduledDate: domain.Range{Until: now}},
		domain.Predicate{Status: domain.StatusActive, IncludeArchived: true, ScheduledDate: domain.Range{Until: at("2026-03-01T08:30:00Z")}},
	))
	require.NoError(t, err)
	nums = nums[:0]
	for _, o := range got {
		nums = append(nums, o.Number)
	}
	assert.ElementsMatch(t, []string{"O-1", "A-4"}, nums)

	got, err = st.FindOrders(ctx, domain.Query{})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFindOrders_LoadsAssignmentsAndCustomer(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	u1, err := st.CreateUser(ctx, domain.User{Name: "Ana", Role: "WORKER"})
	require.NoError(t, err)
	u2, err := st.CreateUser(ctx, domain.User{Name: "Ben", Role: "WORKER"})
	require.NoError(t, err)
	e1, err := st.CreateEmployee(ctx, Employee{UserID: u1.ID})
	require.NoError(t, err)
	e2, err := st.CreateEmployee(ctx, Employee{UserID: u2.ID})
	require.NoError(t, err)
	c, err := st.CreateCustomer(ctx, Customer{Name: "Acme"})
	require.NoError(t, err)

	o, err := st.CreateOrder(ctx, domain.Order{
		Number:      "ORD-7",
		Status:      domain.StatusInProgress,
		StartTime:   at("2026-03-01T12:00:00Z"),
		CustomerID:  c.ID,
		Assignments: []domain.EmployeeAssignment{{EmployeeID: e1.ID}, {EmployeeID: e2.ID}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Acme", o.CustomerName)
	require.Len(t, o.Assignments, 2)

	users := []string{o.Assignments[0].UserID, o.Assignments[1].UserID}
	assert.ElementsMatch(t, []string{u1.ID, u2.ID}, users)
	assert.True(t, o.StartTime.Equal(*at("2026-03-01T12:00:00Z")))
	assert.Nil(t, o.ScheduledDate)
}

func TestRunInTx_CommitAndRollback(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	admin, err := st.CreateUser(ctx, domain.User{Name: "root", Role: domain.RoleAdmin})
	require.NoError(t, err)
	o, err := st.CreateOrder(ctx, domain.Order{Number: "ORD-1", Status: domain.StatusActive, ScheduledDate: at("2026-03-01T09:00:00Z")})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = st.RunInTx(ctx, func(tx domain.Tx) error {
		status := domain.StatusInProgress
		if err := tx.UpdateOrder(ctx, o.ID, domain.OrderUpdate{Status: &status}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	got, err := st.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusActive, got.Status)

	start := *at("2026-03-01T10:00:00Z")
	err = st.RunInTx(ctx, func(tx domain.Tx) error {
		status := domain.StatusInProgress
		if err := tx.UpdateOrder(ctx, o.ID, domain.OrderUpdate{Status: &status, StartTime: &start}); err != nil {
			return err
		}
		actor, err := tx.FindFirstUserByRole(ctx, domain.RoleAdmin)
		if err != nil {
			return err
		}
		return tx.CreateOrderNote(ctx, domain.OrderNote{
			OrderID:        o.ID,
			AuthorID:       actor.ID,
			Content:        "started",
			Category:       domain.NoteGeneralUpdate,
			TriggersStatus: domain.StatusInProgress,
		})
	})
	require.NoError(t, err)

	got, err = st.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInProgress, got.Status)
	assert.True(t, got.StartTime.Equal(start))

	notes, err := st.ListOrderNotes(ctx, o.ID)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, admin.ID, notes[0].AuthorID)
	assert.Equal(t, domain.StatusInProgress, notes[0].TriggersStatus)
	assert.False(t, notes[0].IsInternal)
}

func TestRunInTx_ForeignKeyFailureRollsBack(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	o, err := st.CreateOrder(ctx, domain.Order{Number: "ORD-1", Status: domain.StatusOpen})
	require.NoError(t, err)

	err = st.RunInTx(ctx, func(tx domain.Tx) error {
		status := domain.StatusExpired
		if err := tx.UpdateOrder(ctx, o.ID, domain.OrderUpdate{Status: &status}); err != nil {
			return err
		}
		return tx.CreateOrderNote(ctx, domain.OrderNote{OrderID: o.ID, AuthorID: "missing-user", Content: "x", Category: domain.NoteSystem})
	})
	require.Error(t, err)

	got, err := st.GetOrder(ctx, o.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, got.Status)
}

func TestUpdateOrder_NotFound(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	err := st.RunInTx(ctx, func(tx domain.Tx) error {
		status := domain.StatusExpired
		return tx.UpdateOrder(ctx, "nope", domain.OrderUpdate{Status: &status})
	})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestNotifications_RoundTrip(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	err := st.RunInTx(ctx, func(tx domain.Tx) error {
		if err := tx.CreateNotification(ctx, domain.Notification{
			ID:       "n-1",
			Title:    "Order starts tomorrow",
			Body:     "ORD-1 starts tomorrow",
			Category: domain.CategoryOrderReminder,
			Payload:  map[string]any{"orderId": "o-1", "type": string(domain.ReminderTomorrow)},
		}); err != nil {
			return err
		}
		return tx.CreateNotificationRecipient(ctx, domain.NotificationRecipient{
			NotificationID: "n-1",
			UserID:         "u-1",
			Channels:       []domain.Channel{domain.ChannelInApp, domain.ChannelEmail},
		})
	})
	require.NoError(t, err)

	ds, err := st.ListDeliveries(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, domain.CategoryOrderReminder, ds[0].Notification.Category)
	assert.Equal(t, "o-1", ds[0].Notification.Payload["orderId"])
	assert.Equal(t, []domain.Channel{domain.ChannelInApp, domain.ChannelEmail}, ds[0].Recipient.Channels)
	assert.Equal(t, domain.DeliveryPending, ds[0].Recipient.Status)

	n, err := st.CountPendingDeliveries(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestReminderClaims(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	key := domain.ReminderKey{OrderID: "o-1", UserID: "u-1", Type: domain.ReminderHourly, Window: "2026-03-01T12:00:00Z"}

	ok, err := st.ClaimReminder(ctx, key, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = st.ClaimReminder(ctx, key, time.Now())
	require.NoError(t, err)
	assert.False(t, ok)

	other := key
	other.Window = "2026-03-01T13:00:00Z"
	ok, err = st.ClaimReminder(ctx, other, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, st.ReleaseReminder(ctx, key))
	ok, err = st.ClaimReminder(ctx, key, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestReminderClaims_ConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	key := domain.ReminderKey{OrderID: "o-1", UserID: "u-1", Type: domain.ReminderHourly, Window: "2026-03-01T12:00:00Z"}

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := st.ClaimReminder(ctx, key, time.Now())
			assert.NoError(t, err)
			if ok {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), wins.Load())
}

func TestJobLeases(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	now := time.Date(2026, 3, 1, 0, 15, 0, 0, time.UTC)

	require.NoError(t, st.AcquireJobLease(ctx, "daily", "a", time.Minute, now))
	// Same owner renews.
	require.NoError(t, st.AcquireJobLease(ctx, "daily", "a", time.Minute, now.Add(10*time.Second)))

	err := st.AcquireJobLease(ctx, "daily", "b", time.Minute, now.Add(20*time.Second))
	assert.ErrorIs(t, err, domain.ErrLeaseHeld)

	// Expired lease can be taken over.
	require.NoError(t, st.AcquireJobLease(ctx, "daily", "b", time.Minute, now.Add(2*time.Minute)))

	// Release by a non-owner is a no-op.
	require.NoError(t, st.ReleaseJobLease(ctx, "daily", "a"))
	err = st.AcquireJobLease(ctx, "daily", "a", time.Minute, now.Add(2*time.Minute))
	assert.ErrorIs(t, err, domain.ErrLeaseHeld)

	require.NoError(t, st.ReleaseJobLease(ctx, "daily", "b"))
	require.NoError(t, st.AcquireJobLease(ctx, "daily", "a", time.Minute, now.Add(2*time.Minute)))
}

func TestFindFirstUserByRole(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	_, err := st.FindFirstUserByRole(ctx, domain.RoleAdmin)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	first, err := st.CreateUser(ctx, domain.User{Name: "first", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = st.CreateUser(ctx, domain.User{Name: "second", Role: domain.RoleAdmin})
	require.NoError(t, err)

	got, err := st.FindFirstUserByRole(ctx, domain.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)

	got, err = st.FindUser(ctx, first.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Name)
}

func TestFindOrders_SubMillisecondBounds(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	mk := func(num string, start *time.Time) {
		_, err := st.CreateOrder(ctx, domain.Order{Number: num, Status: domain.StatusActive, StartTime: start})
		require.NoError(t, err)
	}
	early, late := at("2026-03-01T11:00:00Z"), at("2026-03-01T12:00:00Z")
	mk("EARLY", early)
	mk("LATE", late)

	now := at("2026-03-01T10:00:00Z").Add(500 * time.Microsecond)
	p := domain.Predicate{
		Status:    domain.StatusActive,
		StartTime: domain.Range{From: ptrTime(now.Add(time.Hour)), Before: ptrTime(now.Add(2 * time.Hour))},
	}
	got, err := st.FindOrders(ctx, domain.Where(p))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "LATE", got[0].Number)
	assert.True(t, p.Match(got[0]))
	assert.False(t, p.Match(domain.Order{Status: domain.StatusActive, StartTime: early}))

	until := domain.Predicate{Status: domain.StatusActive, StartTime: domain.Range{Until: ptrTime(late.Add(500 * time.Microsecond))}}
	got, err = st.FindOrders(ctx, domain.Where(until))
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func ptrTime(t time.Time) *time.Time { return &t }

func TestIsMemoryPath(t *testing.T) {
	tests := []struct {
		dsn    string
		memory bool
		file   string
	}{
		{":memory:", true, ":memory:"},
		{"file::memory:?cache=shared", true, ":memory:"},
		{"file:orders?mode=memory&cache=shared", true, "orders"},
		{"file:/var/lib/orderpulse/orders.db", false, "/var/lib/orderpulse/orders.db"},
		{"file:./data/orders.db?_pragma=busy_timeout(5000)", false, "./data/orders.db"},
		{"./data/orders.db", false, "./data/orders.db"},
	}
	for _, tt := range tests {
		t.Run(tt.dsn, func(t *testing.T) {
			assert.Equal(t, tt.memory, isMemoryPath(tt.dsn))
			assert.Equal(t, tt.file, sqliteFilePath(tt.dsn))
		})
	}
}

func TestOpen_FileDSNCreatesDirAndUsesWAL(t *testing.T) {
	dir := t.TempDir()
	st, err := Open(Config{Driver: "sqlite", Path: "file:" + dir + "/nested/orders.db"}, logx.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	var mode string
	require.NoError(t, st.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
	assert.DirExists(t, dir+"/nested")
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	data := SeedData{
		Users:     []SeedUser{{ID: "u-admin", Name: "Ops", Role: domain.RoleAdmin}, {ID: "u-1", Name: "Ana", Role: "WORKER"}},
		Customers: []SeedCustomer{{ID: "c-1", Name: "Acme"}},
		Employees: []SeedEmployee{{ID: "e-1", UserID: "u-1"}},
		Orders: []SeedOrder{{
			ID: "o-1", Number: "ORD-1", Status: string(domain.StatusActive),
			ScheduledDate: at("2026-03-02T09:00:00Z"), CustomerID: "c-1", Employees: []string{"e-1"},
		}},
	}
	res, err := st.Seed(ctx, data)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Users: 2, Customers: 1, Employees: 1, Orders: 1}, res)

	o, err := st.GetOrder(ctx, "o-1")
	require.NoError(t, err)
	assert.Equal(t, "Acme", o.CustomerName)
	require.Len(t, o.Assignments, 1)
	assert.Equal(t, "u-1", o.Assignments[0].UserID)

	// A bad order rolls back the whole dataset.
	bad := SeedData{
		Users:  []SeedUser{{ID: "u-2", Name: "Ben", Role: "WORKER"}},
		Orders: []SeedOrder{{ID: "o-2", Status: "SOMEDAY"}},
	}
	_, err = st.Seed(ctx, bad)
	require.Error(t, err)
	_, err = st.FindUser(ctx, "u-2")
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}
