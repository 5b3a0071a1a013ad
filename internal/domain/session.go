package domain

import (
	"fmt"
	"strings"
	"time"
)

type SessionID string
type MemberID string

const (
	DefaultCapacity        = 6
	DefaultRequiredUnits   = 2
	DefaultHoldAmountCents = 1500
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusFilled    Status = "filled"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

func (s Status) Terminal() bool {
	return s == StatusConfirmed || s == StatusFailed
}

// HoldStatus is the member hold implied by the session status.
func (s Status) HoldStatus() HoldStatus {
	switch s {
	case StatusConfirmed:
		return HoldCharged
	case StatusFailed:
		return HoldReleased
	default:
		return HoldHeld
	}
}

func (s Status) Label() string {
	switch s {
	case StatusOpen:
		return "Open"
	case StatusFilled:
		return "Filled"
	case StatusConfirmed:
		return "Confirmed"
	case StatusFailed:
		return "Failed"
	default:
		return string(s)
	}
}

func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	switch status {
	case StatusOpen, StatusFilled, StatusConfirmed, StatusFailed:
		return status, nil
	default:
		return "", fmt.Errorf("unknown session status %q", raw)
	}
}

type HoldStatus string

const (
	HoldHeld     HoldStatus = "held"
	HoldCharged  HoldStatus = "charged"
	HoldReleased HoldStatus = "released"
)

type Member struct {
	ID          MemberID
	DisplayName string
	HoldStatus  HoldStatus
	JoinedAt    time.Time
}

func (m Member) Validate() error {
	if strings.TrimSpace(string(m.ID)) == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidMember)
	}
	if strings.TrimSpace(m.DisplayName) == "" {
		return fmt.Errorf("%w: display name is required", ErrInvalidMember)
	}

	return nil
}

// Session is one capacity-limited drop-in group for a single window.
// Members are kept in join order.
type Session struct {
	ID              SessionID
	Window          Window
	Location        string
	Capacity        int
	RequiredUnits   int
	HoldAmountCents int64
	Members         []Member
	Status          Status
	ReservationRefs []string
	FailureReason   string
	Revision        uint64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SettledAt       time.Time
}

// NewSession builds an open, empty session. Zero capacity or units fall back to the defaults.
func NewSession(id SessionID, window Window, capacity, requiredUnits int, now time.Time) (Session, error) {
	if capacity == 0 {
		capacity = DefaultCapacity
	}
	if requiredUnits == 0 {
		requiredUnits = DefaultRequiredUnits
	}

	session := Session{
		ID:              id,
		Window:          window,
		Capacity:        capacity,
		RequiredUnits:   requiredUnits,
		HoldAmountCents: DefaultHoldAmountCents,
		Status:          StatusOpen,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := session.Validate(); err != nil {
		return Session{}, err
	}

	return session, nil
}

func (s Session) Validate() error {
	if strings.TrimSpace(string(s.ID)) == "" {
		return fmt.Errorf("session id is required")
	}
	if err := s.Window.Validate(); err != nil {
		return err
	}
	if s.Capacity <= 0 {
		return fmt.Errorf("%w: capacity must be positive, got %d", ErrInvalidCapacity, s.Capacity)
	}
	if s.RequiredUnits <= 0 {
		return fmt.Errorf("%w: required units must be positive, got %d", ErrInvalidCapacity, s.RequiredUnits)
	}
	if len(s.Members) > s.Capacity {
		return fmt.Errorf("%w: %d members exceed capacity %d", ErrInvalidCapacity, len(s.Members), s.Capacity)
	}
	if _, err := ParseStatus(string(s.Status)); err != nil {
		return err
	}

	return nil
}

func (s Session) IsFull() bool {
	return len(s.Members) >= s.Capacity
}

// Join appends m with a held hold. It reports justFilled when this append
// brought the session to capacity and moved it to Filled.
func (s *Session) Join(m Member, now time.Time) (bool, error) {
	if s.Status != StatusOpen {
		return false, fmt.Errorf("%w: status is %s", ErrSessionClosed, s.Status)
	}
	if s.IsFull() {
		return false, ErrSessionFull
	}
	if err := m.Validate(); err != nil {
		return false, err
	}

	m.HoldStatus = HoldHeld
	if m.JoinedAt.IsZero() {
		m.JoinedAt = now
	}
	s.Members = append(s.Members, m)

	if len(s.Members) == s.Capacity {
		s.setStatus(StatusFilled)
		return true, nil
	}

	return false, nil
}

// Leave removes the member while the session is open. Removing an absent member is a no-op.
func (s *Session) Leave(id MemberID) (bool, error) {
	if s.Status != StatusOpen {
		return false, fmt.Errorf("%w: status is %s", ErrSessionNotOpen, s.Status)
	}

	for i, member := range s.Members {
		if member.ID != id {
			continue
		}
		s.Members = append(s.Members[:i:i], s.Members[i+1:]...)
		return true, nil
	}

	return false, nil
}

// Confirm is the Filled -> Confirmed transition; every member becomes charged.
func (s *Session) Confirm(refs []string, now time.Time) error {
	if s.Status != StatusFilled {
		return fmt.Errorf("%w: status is %s", ErrSessionNotFilled, s.Status)
	}

	s.setStatus(StatusConfirmed)
	s.ReservationRefs = append([]string(nil), refs...)
	s.FailureReason = ""
	s.SettledAt = now
	return nil
}

// Fail is the Filled -> Failed transition; every member hold is released.
func (s *Session) Fail(reason string, now time.Time) error {
	if s.Status != StatusFilled {
		return fmt.Errorf("%w: status is %s", ErrSessionNotFilled, s.Status)
	}

	s.setStatus(StatusFailed)
	s.ReservationRefs = nil
	s.FailureReason = reason
	s.SettledAt = now
	return nil
}

// Apply records a settlement outcome.
func (s *Session) Apply(outcome Outcome, now time.Time) error {
	if outcome.Committed {
		return s.Confirm(outcome.ReservationRefs, now)
	}
	return s.Fail(outcome.Reason, now)
}

func (s *Session) setStatus(status Status) {
	s.Status = status
	hold := status.HoldStatus()
	for i := range s.Members {
		s.Members[i].HoldStatus = hold
	}
}

// Clone returns a deep copy that shares no slices with s.
func (s Session) Clone() Session {
	clone := s
	if s.Members != nil {
		clone.Members = make([]Member, len(s.Members))
		copy(clone.Members, s.Members)
	}
	if s.ReservationRefs != nil {
		clone.ReservationRefs = make([]string, len(s.ReservationRefs))
		copy(clone.ReservationRefs, s.ReservationRefs)
	}

	return clone
}

func (s Session) View() SessionView {
	clone := s.Clone()
	spots := clone.Capacity - len(clone.Members)
	if spots < 0 {
		spots = 0
	}

	return SessionView{
		ID:              clone.ID,
		Window:          clone.Window,
		Location:        clone.Location,
		Capacity:        clone.Capacity,
		RequiredUnits:   clone.RequiredUnits,
		HoldAmountCents: clone.HoldAmountCents,
		Members:         clone.Members,
		Status:          clone.Status,
		ReservationRefs: clone.ReservationRefs,
		FailureReason:   clone.FailureReason,
		Revision:        clone.Revision,
		PlayerCount:     len(clone.Members),
		SpotsLeft:       spots,
		CreatedAt:       clone.CreatedAt,
		UpdatedAt:       clone.UpdatedAt,
		SettledAt:       clone.SettledAt,
	}
}

// SessionView is a read-only snapshot handed to observers.
type SessionView struct {
	ID              SessionID
	Window          Window
	Location        string
	Capacity        int
	RequiredUnits   int
	HoldAmountCents int64
	Members         []Member
	Status          Status
	ReservationRefs []string
	FailureReason   string
	Revision        uint64
	PlayerCount     int
	SpotsLeft       int
	CreatedAt       time.Time
	UpdatedAt       time.Time
	SettledAt       time.Time
}

func (v SessionView) Label() string {
	return v.Window.Label()
}

// Session rebuilds a mutable session from the snapshot.
func (v SessionView) Session() Session {
	return Session{
		ID:              v.ID,
		Window:          v.Window,
		Location:        v.Location,
		Capacity:        v.Capacity,
		RequiredUnits:   v.RequiredUnits,
		HoldAmountCents: v.HoldAmountCents,
		Members:         append([]Member(nil), v.Members...),
		Status:          v.Status,
		ReservationRefs: append([]string(nil), v.ReservationRefs...),
		FailureReason:   v.FailureReason,
		Revision:        v.Revision,
		CreatedAt:       v.CreatedAt,
		UpdatedAt:       v.UpdatedAt,
		SettledAt:       v.SettledAt,
	}
}
