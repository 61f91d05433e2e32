package models

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusCancelled BookingStatus = "cancelled"
)

// cancelled is terminal: nothing leaves it.
var validNext = map[BookingStatus]map[BookingStatus]bool{
	StatusPending:   {StatusPending: true, StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed: {StatusConfirmed: true, StatusCancelled: true},
	StatusCancelled: {StatusCancelled: true},
}

func (s BookingStatus) Valid() bool {
	_, ok := validNext[s]
	return ok
}

// IsActive reports whether a booking in this status occupies its table.
func (s BookingStatus) IsActive() bool {
	return s == StatusPending || s == StatusConfirmed
}

// CanTransition reports whether a booking may move from one status to another.
// Staying in the same status is allowed.
func CanTransition(from, to BookingStatus) bool {
	return validNext[from][to]
}

// ActiveStatuses are the statuses counted by conflict checks.
var ActiveStatuses = []BookingStatus{StatusPending, StatusConfirmed}
