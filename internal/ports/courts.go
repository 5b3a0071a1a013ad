package ports

import (
	"context"

	"github.com/royalclubcanada/dropin/internal/domain"
)

// AvailabilityClient reports how many courts are free for a window.
type AvailabilityClient interface {
	Check(ctx context.Context, window domain.Window) (int, error)
}

// Reservation is the answer of a reserve attempt. Refs is empty unless Committed.
type Reservation struct {
	Committed bool
	Refs      []string
}

// ReservationClient atomically reserves a number of courts for a window.
// key identifies the request; repeating a key returns the first answer
// instead of booking again.
type ReservationClient interface {
	Reserve(ctx context.Context, key string, window domain.Window, units int) (Reservation, error)
}

// ReservationCanceller is implemented by reservation clients that can release
// refs handed out by a partial reservation.
type ReservationCanceller interface {
	Cancel(ctx context.Context, refs []string) error
}

// ReservationReleaser is implemented by reservation clients that can release
// whatever a reserve under key booked, including a booking whose answer was lost.
// Releasing an unknown key is not an error.
type ReservationReleaser interface {
	Release(ctx context.Context, key string) error
}
