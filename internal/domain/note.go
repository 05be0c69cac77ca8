package domain

import "time"

type NoteCategory string

const (
	NoteGeneralUpdate NoteCategory = "GENERAL_UPDATE"
	NoteSystem        NoteCategory = "SYSTEM"
)

// OrderNote is an append-only audit entry. TriggersStatus is empty when the
// note does not document a status change.
type OrderNote struct {
	ID             string
	OrderID        string
	AuthorID       string
	Content        string
	Category       NoteCategory
	IsInternal     bool
	TriggersStatus OrderStatus
	CreatedAt      time.Time
}
