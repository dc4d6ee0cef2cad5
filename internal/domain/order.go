package domain

import "time"

// Order is one completed grocery order. Immutable once persisted: a reorder
// creates a new Order, it never mutates an old one.
type Order struct {
	ID        OrderID       `json:"id"`
	CreatedAt time.Time     `json:"created_at"`
	Items     []ItemRequest `json:"items"`
	Total     *float64      `json:"total,omitempty"`
}
