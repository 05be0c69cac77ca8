// Package domain holds the order-lifecycle entities shared by the store and
// the scheduler, plus the narrow store contract the scheduler consumes.
package domain

import (
	"time"

	"github.com/cockroachdb/errors"
)

var (
	// ErrNotFound is returned by store lookups that match no row.
	ErrNotFound = errors.New("not found")
	// ErrLeaseHeld is returned when another owner holds an unexpired job lease.
	ErrLeaseHeld = errors.New("job lease held by another owner")
)

type OrderStatus string

const (
	StatusDraft      OrderStatus = "DRAFT"
	StatusOpen       OrderStatus = "OPEN"
	StatusActive     OrderStatus = "ACTIVE"
	StatusInProgress OrderStatus = "IN_PROGRESS"
	StatusInReview   OrderStatus = "IN_REVIEW"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusCancelled  OrderStatus = "CANCELLED"
	StatusExpired    OrderStatus = "EXPIRED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusDraft, StatusOpen, StatusActive, StatusInProgress,
		StatusInReview, StatusCompleted, StatusCancelled, StatusExpired:
		return true
	}
	return false
}

// Terminal reports whether no further transition leaves s.
func (s OrderStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled || s == StatusExpired
}

// Order is the scheduler's view of an order row.
// StartTime is set iff the order has reached IN_PROGRESS at least once.
type Order struct {
	ID            string
	Number        string
	Status        OrderStatus
	ScheduledDate *time.Time
	StartTime     *time.Time
	IsArchived    bool
	CustomerID    string
	CustomerName  string
	Assignments   []EmployeeAssignment
}

// EmployeeAssignment links an order to an employee and the employee's user account.
type EmployeeAssignment struct {
	ID         string
	OrderID    string
	EmployeeID string
	UserID     string
}

// OrderUpdate carries the narrow set of order fields the scheduler may mutate.
// Nil fields are left untouched.
type OrderUpdate struct {
	Status    *OrderStatus
	StartTime *time.Time
}

type User struct {
	ID   string
	Name string
	Role string
}

const RoleAdmin = "ADMIN"
