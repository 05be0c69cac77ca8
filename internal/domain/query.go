package domain

import "time"

// Range bounds a timestamp column. A nil bound is open. A predicate with any
// bound set never matches a row whose column is NULL.
type Range struct {
	From   *time.Time // inclusive
	Before *time.Time // exclusive
	Until  *time.Time // inclusive
}

func (r Range) IsZero() bool { return r.From == nil && r.Before == nil && r.Until == nil }

func (r Range) Contains(t *time.Time) bool {
	if r.IsZero() {
		return true
	}
	if t == nil {
		return false
	}
	if r.From != nil && t.Before(*r.From) {
		return false
	}
	if r.Before != nil && !t.Before(*r.Before) {
		return false
	}
	if r.Until != nil && t.After(*r.Until) {
		return false
	}
	return true
}

// Predicate is an AND of its set conditions. Archived orders are excluded
// unless IncludeArchived is set.
type Predicate struct {
	Status          OrderStatus
	IncludeArchived bool
	ScheduledDate   Range
	StartTime       Range
}

func (p Predicate) Match(o Order) bool {
	if p.Status != "" && o.Status != p.Status {
		return false
	}
	if !p.IncludeArchived && o.IsArchived {
		return false
	}
	return p.ScheduledDate.Contains(o.ScheduledDate) && p.StartTime.Contains(o.StartTime)
}

// Query is an OR of predicate groups.
type Query struct {
	AnyOf []Predicate
}

func Where(p ...Predicate) Query { return Query{AnyOf: p} }

func (q Query) Match(o Order) bool {
	for _, p := range q.AnyOf {
		if p.Match(o) {
			return true
		}
	}
	return false
}
