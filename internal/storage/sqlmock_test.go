package storage

import (
	"context"
	"testing"
	"time"

	"orderpulse/internal/domain"
	"orderpulse/pkg/logx"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunInTx_Sqlmock_RollbackOnNoteFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := NewWithDB(db, logx.Nop())

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE orders SET status = \?, start_time = \?, updated_at = \? WHERE id = \?`).
		WithArgs("IN_PROGRESS", sqlmock.AnyArg(), sqlmock.AnyArg(), "o-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO order_notes`).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err = st.RunInTx(context.Background(), func(tx domain.Tx) error {
		status := domain.StatusInProgress
		now := *at("2026-03-01T10:00:00Z")
		if err := tx.UpdateOrder(context.Background(), "o-1", domain.OrderUpdate{Status: &status, StartTime: &now}); err != nil {
			return err
		}
		return tx.CreateOrderNote(context.Background(), domain.OrderNote{OrderID: "o-1", AuthorID: "u-1", Content: "x"})
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOrders_Sqlmock_QueryShape(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	st := NewWithDB(db, logx.Nop())
	from := at("2026-03-02T00:00:00Z")
	before := at("2026-03-03T00:00:00Z")

	mock.ExpectQuery(`WHERE \(o.status = \? AND o.is_archived = 0 AND o.scheduled_date IS NOT NULL AND o.scheduled_date >= \? AND o.scheduled_date < \?\)`).
		WithArgs("ACTIVE", from.UnixMilli(), before.UnixMilli()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "number", "status", "scheduled_date", "start_time", "is_archived", "customer_id", "name"}).
			AddRow("o-1", "ORD-1", "ACTIVE", from.Add(9*time.Hour).UnixMilli(), nil, 0, "", ""))
	mock.ExpectQuery(`FROM employee_assignments a JOIN employees e`).
		WithArgs("o-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "employee_id", "user_id"}).
			AddRow("a-1", "o-1", "e-1", "u-1"))

	got, err := st.FindOrders(context.Background(), domain.Where(domain.Predicate{
		Status:        domain.StatusActive,
		ScheduledDate: domain.Range{From: from, Before: before},
	}))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "u-1", got[0].Assignments[0].UserID)
	assert.Nil(t, got[0].StartTime)
	assert.NoError(t, mock.ExpectationsWereMet())
}
