package httpapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/royalclubcanada/dropin/internal/domain"
)

type createSessionRequest struct {
	Start    *time.Time `json:"start,omitempty"`
	End      *time.Time `json:"end,omitempty"`
	Date     string     `json:"date,omitempty"`
	Slot     string     `json:"slot,omitempty"`
	Capacity int        `json:"capacity,omitempty"`
}

// window accepts either explicit start/end or a date plus "HH:MM-HH:MM" slot.
func (r createSessionRequest) window(loc *time.Location) (domain.Window, error) {
	if r.Start != nil || r.End != nil {
		if r.Start == nil || r.End == nil {
			return domain.Window{}, fmt.Errorf("%w: start and end go together", domain.ErrInvalidWindow)
		}
		return domain.NewWindow(*r.Start, *r.End)
	}

	if strings.TrimSpace(r.Date) == "" || strings.TrimSpace(r.Slot) == "" {
		return domain.Window{}, fmt.Errorf("%w: give start and end, or date and slot", domain.ErrInvalidWindow)
	}
	day, err := time.ParseInLocation(domain.DateLayout, strings.TrimSpace(r.Date), loc)
	if err != nil {
		return domain.Window{}, fmt.Errorf("%w: date: %v", domain.ErrInvalidWindow, err)
	}
	slot, err := domain.ParseSlot(r.Slot)
	if err != nil {
		return domain.Window{}, fmt.Errorf("%w: slot: %v", domain.ErrInvalidWindow, err)
	}

	return slot.WindowOn(day, loc), nil
}

type joinRequest struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName"`
}

type memberResponse struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	HoldStatus  string    `json:"holdStatus"`
	JoinedAt    time.Time `json:"joinedAt"`
}

type sessionResponse struct {
	ID              string           `json:"id"`
	Label           string           `json:"label"`
	Date            string           `json:"date"`
	SlotTime        string           `json:"slotTime"`
	EndTime         string           `json:"endTime"`
	Start           time.Time        `json:"start"`
	End             time.Time        `json:"end"`
	Location        string           `json:"location,omitempty"`
	Capacity        int              `json:"capacity"`
	RequiredUnits   int              `json:"requiredUnits"`
	HoldAmountCents int64            `json:"holdAmountCents"`
	Status          string           `json:"status"`
	PlayerCount     int              `json:"playerCount"`
	SpotsLeft       int              `json:"spotsLeft"`
	Members         []memberResponse `json:"members"`
	ReservationRefs []string         `json:"reservationRefs,omitempty"`
	FailureReason   string           `json:"failureReason,omitempty"`
	Revision        uint64           `json:"revision"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
	SettledAt       *time.Time       `json:"settledAt,omitempty"`
}

type joinResponse struct {
	Session    sessionResponse `json:"session"`
	Member     memberResponse  `json:"member"`
	JustFilled bool            `json:"justFilled"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toMemberResponse(member domain.Member) memberResponse {
	return memberResponse{
		ID:          string(member.ID),
		DisplayName: member.DisplayName,
		HoldStatus:  string(member.HoldStatus),
		JoinedAt:    member.JoinedAt,
	}
}

func toSessionResponse(view domain.SessionView) sessionResponse {
	members := make([]memberResponse, 0, len(view.Members))
	for _, member := range view.Members {
		members = append(members, toMemberResponse(member))
	}

	resp := sessionResponse{
		ID:              string(view.ID),
		Label:           view.Label(),
		Date:            view.Window.Date(),
		SlotTime:        view.Window.SlotTime(),
		EndTime:         view.Window.EndTime(),
		Start:           view.Window.Start,
		End:             view.Window.End,
		Location:        view.Location,
		Capacity:        view.Capacity,
		RequiredUnits:   view.RequiredUnits,
		HoldAmountCents: view.HoldAmountCents,
		Status:          string(view.Status),
		PlayerCount:     view.PlayerCount,
		SpotsLeft:       view.SpotsLeft,
		Members:         members,
		ReservationRefs: view.ReservationRefs,
		FailureReason:   view.FailureReason,
		Revision:        view.Revision,
		CreatedAt:       view.CreatedAt,
		UpdatedAt:       view.UpdatedAt,
	}
	if !view.SettledAt.IsZero() {
		settled := view.SettledAt
		resp.SettledAt = &settled
	}

	return resp
}
