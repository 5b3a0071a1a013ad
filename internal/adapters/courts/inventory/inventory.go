// Package inventory is an in-memory court book for one location.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/ports"
)

var ErrUnknownReservation = errors.New("unknown reservation")

type booking struct {
	window domain.Window
	court  int
	key    string
}

// Inventory tracks which of a fixed number of courts are booked per window.
// Overlapping windows compete for the same courts.
type Inventory struct {
	mu       sync.Mutex
	courts   int
	bookings map[string]booking
	keys     map[string][]string
}

var (
	_ ports.AvailabilityClient   = (*Inventory)(nil)
	_ ports.ReservationClient    = (*Inventory)(nil)
	_ ports.ReservationCanceller = (*Inventory)(nil)
	_ ports.ReservationReleaser  = (*Inventory)(nil)
)

func New(courts int) *Inventory {
	if courts < 0 {
		courts = 0
	}
	return &Inventory{courts: courts, bookings: map[string]booking{}, keys: map[string][]string{}}
}

func (i *Inventory) Check(ctx context.Context, window domain.Window) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	return len(i.freeCourts(window)), nil
}

// Reserve books units courts or none. A key that already holds bookings gets
// them back unchanged.
func (i *Inventory) Reserve(ctx context.Context, key string, window domain.Window, units int) (ports.Reservation, error) {
	if err := ctx.Err(); err != nil {
		return ports.Reservation{}, err
	}
	if units <= 0 {
		return ports.Reservation{}, fmt.Errorf("reserve %d courts: units must be positive", units)
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if refs, ok := i.keys[key]; ok {
		return ports.Reservation{Committed: true, Refs: append([]string(nil), refs...)}, nil
	}

	free := i.freeCourts(window)
	if len(free) < units {
		return ports.Reservation{Committed: false}, nil
	}

	refs := make([]string, 0, units)
	for _, court := range free[:units] {
		ref := uuid.NewString()
		i.bookings[ref] = booking{window: window, court: court, key: key}
		refs = append(refs, ref)
	}
	if key != "" {
		i.keys[key] = append([]string(nil), refs...)
	}

	return ports.Reservation{Committed: true, Refs: refs}, nil
}

// Cancel frees every known ref and reports unknown ones.
func (i *Inventory) Cancel(ctx context.Context, refs []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	var errs []error
	for _, ref := range refs {
		if _, ok := i.bookings[ref]; !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnknownReservation, ref))
			continue
		}
		i.unbook(ref)
	}

	return errors.Join(errs...)
}

// Release frees every court booked under key.
func (i *Inventory) Release(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, ref := range i.keys[key] {
		delete(i.bookings, ref)
	}
	delete(i.keys, key)
	return nil
}

func (i *Inventory) unbook(ref string) {
	b := i.bookings[ref]
	delete(i.bookings, ref)
	if b.key == "" {
		return
	}

	remaining := i.keys[b.key][:0]
	for _, other := range i.keys[b.key] {
		if other != ref {
			remaining = append(remaining, other)
		}
	}
	if len(remaining) == 0 {
		delete(i.keys, b.key)
		return
	}
	i.keys[b.key] = remaining
}

// Book marks courts busy outside the drop-in flow, e.g. regular bookings.
func (i *Inventory) Book(window domain.Window, courts int) []string {
	i.mu.Lock()
	defer i.mu.Unlock()

	free := i.freeCourts(window)
	if courts > len(free) {
		courts = len(free)
	}

	refs := make([]string, 0, courts)
	for _, court := range free[:courts] {
		ref := uuid.NewString()
		i.bookings[ref] = booking{window: window, court: court}
		refs = append(refs, ref)
	}
	return refs
}

func (i *Inventory) freeCourts(window domain.Window) []int {
	busy := make(map[int]bool, len(i.bookings))
	for _, b := range i.bookings {
		if b.window.Overlaps(window) {
			busy[b.court] = true
		}
	}

	free := make([]int, 0, i.courts)
	for court := 1; court <= i.courts; court++ {
		if !busy[court] {
			free = append(free, court)
		}
	}
	return free
}
