package storage

import (
	"context"
	"time"

	"orderpulse/internal/domain"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// SeedData is a dataset loaded by Seed. References between sections use the
// IDs given in the file.
type SeedData struct {
	Users     []SeedUser     `json:"users,omitempty"`
	Customers []SeedCustomer `json:"customers,omitempty"`
	Employees []SeedEmployee `json:"employees,omitempty"`
	Orders    []SeedOrder    `json:"orders,omitempty"`
}

type SeedUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

type SeedCustomer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type SeedEmployee struct {
	ID     string `json:"id"`
	UserID string `json:"user_id"`
}

type SeedOrder struct {
	ID            string     `json:"id"`
	Number        string     `json:"number"`
	Status        string     `json:"status"`
	ScheduledDate *time.Time `json:"scheduled_date,omitempty"`
	StartTime     *time.Time `json:"start_time,omitempty"`
	Archived      bool       `json:"archived,omitempty"`
	CustomerID    string     `json:"customer_id,omitempty"`
	Employees     []string   `json:"employees,omitempty"`
}

type SeedResult struct {
	Users, Customers, Employees, Orders int
}

// Seed inserts d in one transaction: users, customers, employees, then
// orders with their assignments. Any failure leaves the store unchanged.
func (s *SQLStore) Seed(ctx context.Context, d SeedData) (SeedResult, error) {
	var res SeedResult
	if s == nil || s.db == nil {
		return res, ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return res, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	for _, u := range d.Users {
		if _, err := insertUser(ctx, tx, domain.User{ID: u.ID, Name: u.Name, Role: u.Role}); err != nil {
			return SeedResult{}, err
		}
		res.Users++
	}
	for _, c := range d.Customers {
		if _, err := insertCustomer(ctx, tx, Customer{ID: c.ID, Name: c.Name}); err != nil {
			return SeedResult{}, err
		}
		res.Customers++
	}
	for _, e := range d.Employees {
		if _, err := insertEmployee(ctx, tx, Employee{ID: e.ID, UserID: e.UserID}); err != nil {
			return SeedResult{}, err
		}
		res.Employees++
	}
	for _, so := range d.Orders {
		o := domain.Order{
			ID:            so.ID,
			Number:        so.Number,
			Status:        domain.OrderStatus(so.Status),
			ScheduledDate: so.ScheduledDate,
			StartTime:     so.StartTime,
			IsArchived:    so.Archived,
			CustomerID:    so.CustomerID,
		}
		for _, emp := range so.Employees {
			o.Assignments = append(o.Assignments, domain.EmployeeAssignment{EmployeeID: emp})
		}
		if _, err := insertOrder(ctx, tx, o); err != nil {
			return SeedResult{}, err
		}
		res.Orders++
	}
	if err := tx.Commit(); err != nil {
		return SeedResult{}, errors.Wrap(err, "commit tx")
	}
	return res, nil
}

// CreateUser inserts u. An empty ID gets a fresh UUID.
func (s *SQLStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	if s == nil || s.db == nil {
		return domain.User{}, ErrDisabled
	}
	return insertUser(ctx, s.db, u)
}

func (s *SQLStore) CreateCustomer(ctx context.Context, c Customer) (Customer, error) {
	if s == nil || s.db == nil {
		return Customer{}, ErrDisabled
	}
	return insertCustomer(ctx, s.db, c)
}

func (s *SQLStore) CreateEmployee(ctx context.Context, e Employee) (Employee, error) {
	if s == nil || s.db == nil {
		return Employee{}, ErrDisabled
	}
	return insertEmployee(ctx, s.db, e)
}

// CreateOrder inserts o and its assignments in one transaction. Assignment
// employees must already exist; their UserID field is ignored.
func (s *SQLStore) CreateOrder(ctx context.Context, o domain.Order) (domain.Order, error) {
	if s == nil || s.db == nil {
		return domain.Order{}, ErrDisabled
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback() }()

	if o, err = insertOrder(ctx, tx, o); err != nil {
		return domain.Order{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Order{}, errors.Wrap(err, "commit tx")
	}
	return s.GetOrder(ctx, o.ID)
}

func insertUser(ctx context.Context, q querier, u domain.User) (domain.User, error) {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO users(id, name, role, created_at) VALUES(?,?,?,?)`,
		u.ID, u.Name, u.Role, time.Now().UTC().UnixMilli(),
	)
	return u, errors.Wrapf(err, "insert user %s", u.ID)
}

func insertCustomer(ctx context.Context, q querier, c Customer) (Customer, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	_, err := q.ExecContext(ctx, `INSERT INTO customers(id, name) VALUES(?,?)`, c.ID, c.Name)
	return c, errors.Wrapf(err, "insert customer %s", c.ID)
}

func insertEmployee(ctx context.Context, q querier, e Employee) (Employee, error) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	_, err := q.ExecContext(ctx, `INSERT INTO employees(id, user_id) VALUES(?,?)`, e.ID, e.UserID)
	return e, errors.Wrapf(err, "insert employee %s", e.ID)
}

func insertOrder(ctx context.Context, q querier, o domain.Order) (domain.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.Number == "" {
		o.Number = o.ID
	}
	if !o.Status.Valid() {
		return domain.Order{}, errors.Newf("invalid order status %q", o.Status)
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO orders(id, number, status, scheduled_date, start_time, is_archived, customer_id, updated_at)
		 VALUES(?,?,?,?,?,?,?,?)`,
		o.ID, o.Number, string(o.Status), msOrNil(o.ScheduledDate), msOrNil(o.StartTime),
		boolInt(o.IsArchived), nullStr(o.CustomerID), time.Now().UTC().UnixMilli(),
	)
	if err != nil {
		return domain.Order{}, errors.Wrapf(err, "insert order %s", o.Number)
	}
	for i := range o.Assignments {
		a := &o.Assignments[i]
		if a.ID == "" {
			a.ID = uuid.NewString()
		}
		a.OrderID = o.ID
		if _, err := q.ExecContext(ctx,
			`INSERT INTO employee_assignments(id, order_id, employee_id) VALUES(?,?,?)`,
			a.ID, a.OrderID, a.EmployeeID,
		); err != nil {
			return domain.Order{}, errors.Wrapf(err, "insert assignment for order %s", o.Number)
		}
	}
	return o, nil
}
