package toml

import "fmt"

const currentSchemaVersion = 1

type fileSchema struct {
	Version  int             `toml:"version"`
	Sessions []sessionSchema `toml:"sessions"`
}

func (s *fileSchema) applyDefaults() {
	if s.Version == 0 {
		s.Version = currentSchemaVersion
	}
}

func (s fileSchema) validateVersion() error {
	if s.Version > currentSchemaVersion {
		return fmt.Errorf("unsupported sessions schema version %d (current %d)", s.Version, currentSchemaVersion)
	}

	return nil
}

type sessionSchema struct {
	ID              string         `toml:"id"`
	Location        string         `toml:"location,omitempty"`
	Window          windowSchema   `toml:"window"`
	Capacity        int            `toml:"capacity"`
	RequiredUnits   int            `toml:"required_units"`
	HoldAmountCents int64          `toml:"hold_amount_cents"`
	Status          string         `toml:"status"`
	ReservationRefs []string       `toml:"reservation_refs,omitempty"`
	FailureReason   string         `toml:"failure_reason,omitempty"`
	Revision        uint64         `toml:"revision"`
	CreatedAt       string         `toml:"created_at"`
	UpdatedAt       string         `toml:"updated_at"`
	SettledAt       string         `toml:"settled_at,omitempty"`
	Members         []memberSchema `toml:"members,omitempty"`
}

type windowSchema struct {
	Start string `toml:"start"`
	End   string `toml:"end"`
}

type memberSchema struct {
	ID          string `toml:"id"`
	DisplayName string `toml:"display_name"`
	HoldStatus  string `toml:"hold_status"`
	JoinedAt    string `toml:"joined_at"`
}
