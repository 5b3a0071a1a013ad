package redis

import (
	"fmt"
	"time"

	"github.com/royalclubcanada/dropin/internal/domain"
)

type record struct {
	ID              string         `json:"id"`
	Location        string         `json:"location,omitempty"`
	WindowStart     time.Time      `json:"window_start"`
	WindowEnd       time.Time      `json:"window_end"`
	Capacity        int            `json:"capacity"`
	RequiredUnits   int            `json:"required_units"`
	HoldAmountCents int64          `json:"hold_amount_cents"`
	Status          string         `json:"status"`
	Members         []memberRecord `json:"members,omitempty"`
	ReservationRefs []string       `json:"reservation_refs,omitempty"`
	FailureReason   string         `json:"failure_reason,omitempty"`
	Revision        uint64         `json:"revision"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	SettledAt       time.Time      `json:"settled_at"`
}

type memberRecord struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"display_name"`
	HoldStatus  string    `json:"hold_status"`
	JoinedAt    time.Time `json:"joined_at"`
}

func toRecord(session domain.Session) record {
	members := make([]memberRecord, 0, len(session.Members))
	for _, member := range session.Members {
		members = append(members, memberRecord{
			ID:          string(member.ID),
			DisplayName: member.DisplayName,
			HoldStatus:  string(member.HoldStatus),
			JoinedAt:    member.JoinedAt,
		})
	}

	return record{
		ID:              string(session.ID),
		Location:        session.Location,
		WindowStart:     session.Window.Start,
		WindowEnd:       session.Window.End,
		Capacity:        session.Capacity,
		RequiredUnits:   session.RequiredUnits,
		HoldAmountCents: session.HoldAmountCents,
		Status:          string(session.Status),
		Members:         members,
		ReservationRefs: session.ReservationRefs,
		FailureReason:   session.FailureReason,
		Revision:        session.Revision,
		CreatedAt:       session.CreatedAt,
		UpdatedAt:       session.UpdatedAt,
		SettledAt:       session.SettledAt,
	}
}

func (r record) session() (domain.Session, error) {
	status, err := domain.ParseStatus(r.Status)
	if err != nil {
		return domain.Session{}, fmt.Errorf("decode session %s: %w", r.ID, err)
	}

	var members []domain.Member
	for _, member := range r.Members {
		members = append(members, domain.Member{
			ID:          domain.MemberID(member.ID),
			DisplayName: member.DisplayName,
			HoldStatus:  domain.HoldStatus(member.HoldStatus),
			JoinedAt:    member.JoinedAt,
		})
	}

	return domain.Session{
		ID:              domain.SessionID(r.ID),
		Window:          domain.Window{Start: r.WindowStart, End: r.WindowEnd},
		Location:        r.Location,
		Capacity:        r.Capacity,
		RequiredUnits:   r.RequiredUnits,
		HoldAmountCents: r.HoldAmountCents,
		Members:         members,
		Status:          status,
		ReservationRefs: r.ReservationRefs,
		FailureReason:   r.FailureReason,
		Revision:        r.Revision,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		SettledAt:       r.SettledAt,
	}, nil
}
