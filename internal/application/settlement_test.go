package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/ports"
	"github.com/royalclubcanada/dropin/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type settlementFixture struct {
	registry     *SessionRegistry
	availability *mocks.MockAvailabilityClient
	reservations *mocks.MockReservationClient
	canceller    *mocks.MockReservationCanceller
	releaser     *mocks.MockReservationReleaser
	engine       *SettlementEngine
}

func newSettlementFixture(t *testing.T, config SettlementConfig) settlementFixture {
	t.Helper()

	clock := newTestClock(t)
	registry := NewSessionRegistry(nil, clock, nil, nil)
	availability := mocks.NewMockAvailabilityClient(t)
	reservations := mocks.NewMockReservationClient(t)
	canceller := mocks.NewMockReservationCanceller(t)
	releaser := mocks.NewMockReservationReleaser(t)
	engine := NewSettlementEngine(registry, availability, courtMocks{reservations, canceller, releaser}, config, clock, nil, nil)

	return settlementFixture{
		registry:     registry,
		availability: availability,
		reservations: reservations,
		canceller:    canceller,
		releaser:     releaser,
		engine:       engine,
	}
}

func (f settlementFixture) filledSession(t *testing.T) domain.SessionID {
	t.Helper()

	view, err := f.registry.Create(context.Background(), NewSessionSpec{ID: "s-1", Window: testWindow(), Capacity: 2})
	require.NoError(t, err)
	for i := 1; i <= 2; i++ {
		_, err := f.registry.WithSession(context.Background(), view.ID, func(session *domain.Session) error {
			_, err := session.Join(player(i), testNow)
			return err
		})
		require.NoError(t, err)
	}
	return view.ID
}

func TestSettleOutcomes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		setup      func(f settlementFixture)
		wantStatus domain.Status
		wantRefs   []string
		wantUnits  int
		wantReason string
	}{
		{
			name: "reserved",
			setup: func(f settlementFixture) {
				f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(4, nil).Once()
				f.reservations.EXPECT().Reserve(mockAnyContext(), "s-1", testWindow(), 2).
					Return(ports.Reservation{Committed: true, Refs: []string{"r1", "r2"}}, nil).Once()
			},
			wantStatus: domain.StatusConfirmed,
			wantRefs:   []string{"r1", "r2"},
			wantUnits:  4,
		},
		{
			name: "availability error counts as zero",
			setup: func(f settlementFixture) {
				f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(0, errors.New("503")).Once()
			},
			wantStatus: domain.StatusFailed,
			wantReason: "availability check failed",
		},
		{
			name: "not enough courts",
			setup: func(f settlementFixture) {
				f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(1, nil).Once()
			},
			wantStatus: domain.StatusFailed,
			wantUnits:  1,
			wantReason: "only 1 of 2 courts available",
		},
		{
			name: "reserve error",
			setup: func(f settlementFixture) {
				f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(2, nil).Once()
				f.reservations.EXPECT().Reserve(mockAnyContext(), "s-1", testWindow(), 2).
					Return(ports.Reservation{}, errors.New("conflict")).Once()
				f.releaser.EXPECT().Release(mockAnyContext(), "s-1").Return(nil).Once()
			},
			wantStatus: domain.StatusFailed,
			wantUnits:  2,
			wantReason: "reservation failed: conflict",
		},
		{
			name: "not committed",
			setup: func(f settlementFixture) {
				f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(2, nil).Once()
				f.reservations.EXPECT().Reserve(mockAnyContext(), "s-1", testWindow(), 2).
					Return(ports.Reservation{Committed: false}, nil).Once()
			},
			wantStatus: domain.StatusFailed,
			wantUnits:  2,
			wantReason: "not committed",
		},
		{
			name: "partial reservation is cancelled",
			setup: func(f settlementFixture) {
				f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(2, nil).Once()
				f.reservations.EXPECT().Reserve(mockAnyContext(), "s-1", testWindow(), 2).
					Return(ports.Reservation{Committed: true, Refs: []string{"r1"}}, nil).Once()
				f.canceller.EXPECT().Cancel(mockAnyContext(), []string{"r1"}).Return(nil).Once()
			},
			wantStatus: domain.StatusFailed,
			wantUnits:  2,
			wantReason: "partial reservation: 1 of 2 courts",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newSettlementFixture(t, SettlementConfig{AvailabilityTimeout: time.Second, ReservationTimeout: time.Second})
			id := f.filledSession(t)
			tc.setup(f)

			outcome, err := f.engine.Settle(context.Background(), id)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, outcome.Status())
			assert.Equal(t, tc.wantUnits, outcome.UnitsAvailable)
			assert.Contains(t, outcome.Reason, tc.wantReason)

			view, err := f.registry.Get(id)
			require.NoError(t, err)
			assert.Equal(t, tc.wantStatus, view.Status)
			assert.Equal(t, tc.wantRefs, view.ReservationRefs)
			for _, member := range view.Members {
				assert.Equal(t, tc.wantStatus.HoldStatus(), member.HoldStatus)
			}
		})
	}
}

func TestSettleTimesOutSlowClients(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(t, SettlementConfig{AvailabilityTimeout: 20 * time.Millisecond, ReservationTimeout: time.Second})
	id := f.filledSession(t)

	release := make(chan struct{})
	t.Cleanup(func() { close(release) })
	f.availability.EXPECT().Check(mockAnyContext(), testWindow()).
		RunAndReturn(func(context.Context, domain.Window) (int, error) {
			<-release
			return 6, nil
		}).Once()

	started := time.Now()
	outcome, err := f.engine.Settle(context.Background(), id)
	require.NoError(t, err)

	assert.Less(t, time.Since(started), time.Second)
	assert.False(t, outcome.Committed)
	assert.Contains(t, outcome.Reason, context.DeadlineExceeded.Error())
}

func TestSettleRequiresFilledSession(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(t, SettlementConfig{})
	_, err := f.registry.Create(context.Background(), NewSessionSpec{ID: "open", Window: testWindow()})
	require.NoError(t, err)

	_, err = f.engine.Settle(context.Background(), "open")
	require.ErrorIs(t, err, domain.ErrSessionNotFilled)

	_, err = f.engine.Settle(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestSettleRunsOnce(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(t, SettlementConfig{})
	id := f.filledSession(t)
	f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(0, nil).Once()

	_, err := f.engine.Settle(context.Background(), id)
	require.NoError(t, err)

	_, err = f.engine.Settle(context.Background(), id)
	require.ErrorIs(t, err, domain.ErrSessionNotFilled)
}

func TestSettleReleasesByKeyWhenReserveTimesOut(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(t, SettlementConfig{AvailabilityTimeout: time.Second, ReservationTimeout: 20 * time.Millisecond})
	id := f.filledSession(t)

	unblock := make(chan struct{})
	t.Cleanup(func() { close(unblock) })
	f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(4, nil).Once()
	f.reservations.EXPECT().Reserve(mockAnyContext(), "s-1", testWindow(), 2).
		RunAndReturn(func(context.Context, string, domain.Window, int) (ports.Reservation, error) {
			<-unblock
			return ports.Reservation{Committed: true, Refs: []string{"late-1", "late-2"}}, nil
		}).Once()
	f.releaser.EXPECT().Release(mockAnyContext(), "s-1").Return(nil).Once()

	outcome, err := f.engine.Settle(context.Background(), id)
	require.NoError(t, err)
	assert.False(t, outcome.Committed)
	assert.Contains(t, outcome.Reason, context.DeadlineExceeded.Error())

	view, err := f.registry.Get(id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, view.Status)
	assert.Empty(t, view.ReservationRefs)
}

func TestSettleReleaseFailureStillFailsSession(t *testing.T) {
	t.Parallel()

	f := newSettlementFixture(t, SettlementConfig{AvailabilityTimeout: time.Second, ReservationTimeout: time.Second})
	id := f.filledSession(t)

	f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(4, nil).Once()
	f.reservations.EXPECT().Reserve(mockAnyContext(), "s-1", testWindow(), 2).
		Return(ports.Reservation{}, errors.New("connection reset")).Once()
	f.releaser.EXPECT().Release(mockAnyContext(), "s-1").Return(errors.New("backend down")).Once()

	outcome, err := f.engine.Settle(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, outcome.Status())
	assert.Equal(t, "reservation failed: connection reset", outcome.Reason)
}
