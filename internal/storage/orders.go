package storage

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"orderpulse/internal/domain"

	"github.com/cockroachdb/errors"
)

const orderColumns = `o.id, o.number, o.status, o.scheduled_date, o.start_time, o.is_archived,
	COALESCE(o.customer_id, ''), COALESCE(c.name, '')`

// FindOrders returns the orders matching q with their assignments loaded.
// A query without predicates matches nothing.
func (s *SQLStore) FindOrders(ctx context.Context, q domain.Query) ([]domain.Order, error) {
	if s == nil || s.db == nil {
		return nil, ErrDisabled
	}
	if len(q.AnyOf) == 0 {
		return nil, nil
	}
	where, args := buildWhere(q)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o LEFT JOIN customers c ON c.id = o.customer_id
		 WHERE `+where+`
		 ORDER BY o.scheduled_date, o.id`, args...)
	if err != nil {
		return nil, errors.Wrap(err, "query orders")
	}
	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, errors.Wrap(err, "iterate orders")
	}
	_ = rows.Close()

	if err := s.loadAssignments(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetOrder loads one order by id.
func (s *SQLStore) GetOrder(ctx context.Context, id string) (domain.Order, error) {
	if s == nil || s.db == nil {
		return domain.Order{}, ErrDisabled
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+`
		 FROM orders o LEFT JOIN customers c ON c.id = o.customer_id
		 WHERE o.id = ?`, id)
	o, err := scanOrder(row)
	if err != nil {
		return domain.Order{}, err
	}
	list := []domain.Order{o}
	if err := s.loadAssignments(ctx, list); err != nil {
		return domain.Order{}, err
	}
	return list[0], nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(r rowScanner) (domain.Order, error) {
	var (
		o        domain.Order
		status   string
		sched    sql.NullInt64
		start    sql.NullInt64
		archived int
	)
	err := r.Scan(&o.ID, &o.Number, &status, &sched, &start, &archived, &o.CustomerID, &o.CustomerName)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Order{}, errors.WithStack(domain.ErrNotFound)
	}
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "scan order")
	}
	o.Status = domain.OrderStatus(status)
	o.ScheduledDate = timePtr(sched)
	o.StartTime = timePtr(start)
	o.IsArchived = archived != 0
	return o, nil
}

func (s *SQLStore) loadAssignments(ctx context.Context, orders []domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	idx := make(map[string]int, len(orders))
	args := make([]any, 0, len(orders))
	for i, o := range orders {
		idx[o.ID] = i
		args = append(args, o.ID)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT a.id, a.order_id, a.employee_id, e.user_id
		 FROM employee_assignments a JOIN employees e ON e.id = a.employee_id
		 WHERE a.order_id IN (`+placeholders(len(args))+`)
		 ORDER BY a.order_id, a.id`, args...)
	if err != nil {
		return errors.Wrap(err, "query assignments")
	}
	defer rows.Close()
	for rows.Next() {
		var a domain.EmployeeAssignment
		if err := rows.Scan(&a.ID, &a.OrderID, &a.EmployeeID, &a.UserID); err != nil {
			return errors.Wrap(err, "scan assignment")
		}
		if i, ok := idx[a.OrderID]; ok {
			orders[i].Assignments = append(orders[i].Assignments, a)
		}
	}
	return errors.Wrap(rows.Err(), "iterate assignments")
}

// buildWhere renders the OR of AND groups. Bounded columns are also required
// to be non-NULL so SQL matches Predicate.Match.
func buildWhere(q domain.Query) (string, []any) {
	var (
		groups []string
		args   []any
	)
	for _, p := range q.AnyOf {
		var conds []string
		if p.Status != "" {
			conds = append(conds, "o.status = ?")
			args = append(args, string(p.Status))
		}
		if !p.IncludeArchived {
			conds = append(conds, "o.is_archived = 0")
		}
		conds, args = appendRange(conds, args, "o.scheduled_date", p.ScheduledDate)
		conds, args = appendRange(conds, args, "o.start_time", p.StartTime)
		if len(conds) == 0 {
			conds = append(conds, "1 = 1")
		}
		groups = append(groups, "("+strings.Join(conds, " AND ")+")")
	}
	return strings.Join(groups, " OR "), args
}

func appendRange(conds []string, args []any, col string, r domain.Range) ([]string, []any) {
	if r.IsZero() {
		return conds, args
	}
	conds = append(conds, col+" IS NOT NULL")
	// Columns hold whole milliseconds: lower and exclusive upper bounds round
	// up, inclusive upper bounds round down.
	if r.From != nil {
		conds = append(conds, col+" >= ?")
		args = append(args, ceilMilli(*r.From))
	}
	if r.Before != nil {
		conds = append(conds, col+" < ?")
		args = append(args, ceilMilli(*r.Before))
	}
	if r.Until != nil {
		conds = append(conds, col+" <= ?")
		args = append(args, r.Until.UTC().UnixMilli())
	}
	return conds, args
}

func ceilMilli(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.Sub(time.UnixMilli(ms)) > 0 {
		ms++
	}
	return ms
}

func placeholders(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
