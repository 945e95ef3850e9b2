package entity

// Status enumerates the order lifecycle states.
type Status string

const (
	StatusPendingRestaurant Status = "pending_restaurant"
	StatusPreparing         Status = "preparing"
	StatusReadyForPickup    Status = "ready_for_pickup"
	StatusRiderAssigned     Status = "rider_assigned"
	StatusPickedUp          Status = "picked_up"
	StatusOutForDelivery    Status = "out_for_delivery"
	StatusDelivered         Status = "delivered"
	StatusRejected          Status = "rejected"
	StatusCancelled         Status = "cancelled"
)

// Transitions lists, per state, the states an order may legally move to.
// Delivered, rejected and cancelled have no outgoing edges: once an order
// reaches one of them it is frozen.
var Transitions = map[Status][]Status{
	StatusPendingRestaurant: {StatusPreparing, StatusRejected, StatusCancelled},
	StatusPreparing:         {StatusReadyForPickup, StatusCancelled},
	StatusReadyForPickup:    {StatusRiderAssigned, StatusCancelled},
	StatusRiderAssigned:     {StatusPickedUp, StatusCancelled},
	StatusPickedUp:          {StatusOutForDelivery, StatusCancelled},
	StatusOutForDelivery:    {StatusDelivered, StatusCancelled},
	StatusDelivered:         {},
	StatusRejected:          {},
	StatusCancelled:         {},
}

// successPath is the happy-path ordering used to render tracking timelines.
var successPath = []Status{
	StatusPendingRestaurant,
	StatusPreparing,
	StatusReadyForPickup,
	StatusRiderAssigned,
	StatusPickedUp,
	StatusOutForDelivery,
	StatusDelivered,
}

// Known reports whether s is one of the recognized order statuses.
func Known(s Status) bool {
	_, ok := Transitions[s]
	return ok
}

// Terminal reports whether s permits no further transitions.
func Terminal(s Status) bool {
	next, ok := Transitions[s]
	return ok && len(next) == 0
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, next := range Transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// SuccessRank returns the position of s on the happy path, or ok=false for
// rejected and cancelled which sit outside it. Timeline rendering marks a
// milestone reached when the order's rank is at or past it.
func SuccessRank(s Status) (int, bool) {
	for i, step := range successPath {
		if step == s {
			return i, true
		}
	}
	return 0, false
}

// SuccessPath returns the happy-path statuses in order.
func SuccessPath() []Status {
	out := make([]Status, len(successPath))
	copy(out, successPath)
	return out
}
