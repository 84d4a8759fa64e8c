package models

import "fmt"

// OrderStatus is the lifecycle state of an order.
//
//	pending -> in_progress -> done
//	pending -> cancelled
type OrderStatus string

const (
	StatusPending    OrderStatus = "pending"
	StatusInProgress OrderStatus = "in_progress"
	StatusDone       OrderStatus = "done"
	StatusCancelled  OrderStatus = "cancelled"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:    {StatusInProgress, StatusCancelled},
	StatusInProgress: {StatusDone},
	StatusDone:       nil,
	StatusCancelled:  nil,
}

func ParseOrderStatus(s string) (OrderStatus, error) {
	st := OrderStatus(s)
	if _, ok := transitions[st]; !ok {
		return "", fmt.Errorf("unknown order status %q", s)
	}
	return st, nil
}

// Next lists the statuses an order in s may move to; these are the actions a
// view should offer.
func (s OrderStatus) Next() []OrderStatus {
	next := transitions[s]
	out := make([]OrderStatus, len(next))
	copy(out, next)
	return out
}

func (s OrderStatus) CanTransitionTo(to OrderStatus) bool {
	for _, n := range transitions[s] {
		if n == to {
			return true
		}
	}
	return false
}

func (s OrderStatus) Terminal() bool {
	_, known := transitions[s]
	return known && len(transitions[s]) == 0
}
