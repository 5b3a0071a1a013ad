package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/ports"
	"github.com/royalclubcanada/dropin/internal/ports/mocks"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func testWindow() domain.Window {
	return domain.Window{
		Start: time.Date(2026, 10, 18, 17, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 10, 18, 19, 0, 0, 0, time.UTC),
	}
}

func mockAnyContext() interface{} {
	return mock.MatchedBy(func(context.Context) bool { return true })
}

func newTestClock(t *testing.T) *mocks.MockClock {
	t.Helper()

	clock := mocks.NewMockClock(t)
	clock.EXPECT().Now().Return(testNow).Maybe()
	return clock
}

type engineFixture struct {
	engine       *Engine
	availability *mocks.MockAvailabilityClient
	reservations *mocks.MockReservationClient
}

func newEngineFixture(t *testing.T, inline bool, store ports.SessionStore) engineFixture {
	t.Helper()

	availability := mocks.NewMockAvailabilityClient(t)
	reservations := mocks.NewMockReservationClient(t)
	engine := NewEngine(EngineConfig{
		Sessions: SessionDefaults{Capacity: 6, RequiredUnits: 2, Location: "Royal Club"},
		Settlement: SettlementConfig{
			AvailabilityTimeout: time.Second,
			ReservationTimeout:  time.Second,
		},
		SettleInline: inline,
	}, EngineDeps{
		Availability: availability,
		Reservations: reservations,
		Store:        store,
		Clock:        newTestClock(t),
	})

	return engineFixture{engine: engine, availability: availability, reservations: reservations}
}

func (f engineFixture) createSession(t *testing.T, capacity int) domain.SessionView {
	t.Helper()

	view, err := f.engine.CreateSession(context.Background(), testWindow(), capacity)
	require.NoError(t, err)
	return view
}

func player(n int) domain.Member {
	return domain.Member{ID: domain.MemberID(fmt.Sprintf("p%d", n)), DisplayName: fmt.Sprintf("P%d", n)}
}

// courtMocks satisfies ReservationClient, ReservationCanceller and ReservationReleaser.
type courtMocks struct {
	*mocks.MockReservationClient
	*mocks.MockReservationCanceller
	*mocks.MockReservationReleaser
}
