package orders

import "github.com/angelmondragon/warehouse-flow/pkg/enums"

var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusApproved, enums.OrderStatusRejected, enums.OrderStatusCancelled},
	enums.OrderStatusApproved:   {enums.OrderStatusProcessing, enums.OrderStatusRejected, enums.OrderStatusCancelled},
	enums.OrderStatusProcessing: {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:    {enums.OrderStatusDelivered, enums.OrderStatusCancelled},
}

// CanTransition reports whether an order may move from one status to another.
// Terminal statuses have no outgoing edges and a status never moves to itself.
func CanTransition(from, to enums.OrderStatus) bool {
	for _, candidate := range transitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// holdsReservation reports whether an order in this status has stock reserved
// in the inventory ledger.
func holdsReservation(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusApproved, enums.OrderStatusProcessing, enums.OrderStatusShipped:
		return true
	}
	return false
}

// releasesReservation reports whether entering this status retires the hold.
func releasesReservation(status enums.OrderStatus) bool {
	switch status {
	case enums.OrderStatusDelivered, enums.OrderStatusCancelled, enums.OrderStatusRejected:
		return true
	}
	return false
}
