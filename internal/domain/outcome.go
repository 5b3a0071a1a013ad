package domain

// Outcome is the result of one settlement attempt. It is not persisted on its own.
type Outcome struct {
	UnitsAvailable  int
	Committed       bool
	ReservationRefs []string
	Reason          string
}

func (o Outcome) Status() Status {
	if o.Committed {
		return StatusConfirmed
	}
	return StatusFailed
}
