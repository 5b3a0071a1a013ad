package application

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestConcurrentJoinsNeverExceedCapacity(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, false, nil)
	session := f.createSession(t, 6)

	f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(3, nil).Once()
	f.reservations.EXPECT().Reserve(mockAnyContext(), string(session.ID), testWindow(), 2).
		Return(ports.Reservation{Committed: true, Refs: []string{"r1", "r2"}}, nil).Once()

	const joiners = 50
	var (
		wg         sync.WaitGroup
		joined     atomic.Int32
		justFilled atomic.Int32
		rejected   atomic.Int32
	)
	start := make(chan struct{})
	for i := 0; i < joiners; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			result, err := f.engine.Join(context.Background(), session.ID, player(n))
			if err != nil {
				if errors.Is(err, domain.ErrSessionClosed) || errors.Is(err, domain.ErrSessionFull) {
					rejected.Add(1)
				}
				return
			}
			joined.Add(1)
			if result.JustFilled {
				justFilled.Add(1)
			}
			assert.LessOrEqual(t, result.Session.PlayerCount, 6)
		}(i)
	}
	close(start)
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.engine.Drain(ctx))

	assert.Equal(t, int32(6), joined.Load())
	assert.Equal(t, int32(1), justFilled.Load())
	assert.Equal(t, int32(joiners-6), rejected.Load())

	view, err := f.engine.GetSession(session.ID)
	require.NoError(t, err)
	assert.Len(t, view.Members, 6)
	assert.Equal(t, domain.StatusConfirmed, view.Status)
}

func TestConcurrentJoinsAndLeavesStayConsistent(t *testing.T) {
	t.Parallel()

	const capacity = 6
	f := newEngineFixture(t, false, nil)
	session := f.createSession(t, capacity)

	f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(3, nil).Once()
	f.reservations.EXPECT().Reserve(mockAnyContext(), string(session.ID), testWindow(), 2).
		Return(ports.Reservation{Committed: true, Refs: []string{"r1", "r2"}}, nil).Once()

	// Even players leave right after joining; odd players stay.
	const players = 40
	type attempt struct {
		joined   bool
		left     bool
		leaveErr error
	}
	var (
		wg         sync.WaitGroup
		justFilled atomic.Int32
		attempts   = make([]attempt, players)
	)
	checkView := func(view domain.SessionView) {
		assert.LessOrEqual(t, len(view.Members), capacity)
		assert.Equal(t, len(view.Members), view.PlayerCount)
	}

	start := make(chan struct{})
	for i := 0; i < players; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start

			result, err := f.engine.Join(context.Background(), session.ID, player(n))
			if err != nil {
				assert.True(t, errors.Is(err, domain.ErrSessionClosed) || errors.Is(err, domain.ErrSessionFull), "join: %v", err)
				return
			}
			attempts[n].joined = true
			checkView(result.Session)
			if result.JustFilled {
				justFilled.Add(1)
			}

			if n%2 != 0 {
				return
			}
			view, err := f.engine.Leave(context.Background(), session.ID, player(n).ID)
			if err != nil {
				attempts[n].leaveErr = err
				return
			}
			attempts[n].left = true
			checkView(view)
		}(i)
	}
	close(start)
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, f.engine.Drain(ctx))

	assert.Equal(t, int32(1), justFilled.Load(), "exactly one join fills the session")

	final, err := f.engine.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, final.Status)
	require.Len(t, final.Members, capacity)

	members := map[domain.MemberID]bool{}
	for _, member := range final.Members {
		members[member.ID] = true
	}
	for n, a := range attempts {
		id := player(n).ID
		switch {
		case !a.joined:
			assert.False(t, members[id], "%s never joined", id)
		case a.left:
			assert.False(t, members[id], "%s left before the fill", id)
		case a.leaveErr != nil:
			assert.ErrorIs(t, a.leaveErr, domain.ErrSessionNotOpen)
			assert.True(t, members[id], "%s could not leave after the fill", id)
		default:
			assert.True(t, members[id], "%s stayed", id)
		}
	}

	for id := range members {
		_, err := f.engine.Leave(context.Background(), session.ID, id)
		require.ErrorIs(t, err, domain.ErrSessionNotOpen)
	}
	after, err := f.engine.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, final, after, "failed leaves change nothing")
}

func TestJoinScenarioConfirmed(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, false, nil)
	session := f.createSession(t, 6)

	f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(3, nil).Once()
	f.reservations.EXPECT().Reserve(mockAnyContext(), string(session.ID), testWindow(), 2).
		Return(ports.Reservation{Committed: true, Refs: []string{"court-1", "court-2"}}, nil).Once()

	for i := 1; i <= 5; i++ {
		result, err := f.engine.Join(context.Background(), session.ID, player(i))
		require.NoError(t, err)
		assert.False(t, result.JustFilled)
		assert.Equal(t, domain.StatusOpen, result.Session.Status)
		assert.Equal(t, domain.HoldHeld, result.Member.HoldStatus)
	}

	result, err := f.engine.Join(context.Background(), session.ID, player(6))
	require.NoError(t, err)
	assert.True(t, result.JustFilled)

	require.NoError(t, f.engine.Drain(context.Background()))

	view, err := f.engine.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, view.Status)
	assert.Equal(t, []string{"court-1", "court-2"}, view.ReservationRefs)
	assert.Equal(t, testNow, view.SettledAt)
	for _, member := range view.Members {
		assert.Equal(t, domain.HoldCharged, member.HoldStatus)
	}
}

func TestJoinScenarioFailedWhenCourtsUnavailable(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, true, nil)
	session := f.createSession(t, 6)

	f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(1, nil).Once()

	for i := 1; i <= 5; i++ {
		_, err := f.engine.Join(context.Background(), session.ID, player(i))
		require.NoError(t, err)
	}

	result, err := f.engine.Join(context.Background(), session.ID, player(6))
	require.NoError(t, err)
	assert.True(t, result.JustFilled)
	assert.Equal(t, domain.StatusFailed, result.Session.Status, "inline settlement returns the settled view")

	view, err := f.engine.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, view.Status)
	assert.Empty(t, view.ReservationRefs)
	assert.Contains(t, view.FailureReason, "only 1 of 2 courts")
	for _, member := range view.Members {
		assert.Equal(t, domain.HoldReleased, member.HoldStatus)
	}
	f.reservations.AssertNotCalled(t, "Reserve", mock.Anything, mock.Anything, mock.Anything)
}

func TestTerminalSessionsRejectChanges(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, true, nil)
	session := f.createSession(t, 2)

	f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(2, nil).Once()
	f.reservations.EXPECT().Reserve(mockAnyContext(), string(session.ID), testWindow(), 2).
		Return(ports.Reservation{Committed: true, Refs: []string{"r1", "r2"}}, nil).Once()

	_, err := f.engine.Join(context.Background(), session.ID, player(1))
	require.NoError(t, err)
	_, err = f.engine.Join(context.Background(), session.ID, player(2))
	require.NoError(t, err)

	before, err := f.engine.GetSession(session.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusConfirmed, before.Status)

	_, err = f.engine.Join(context.Background(), session.ID, player(3))
	require.ErrorIs(t, err, domain.ErrSessionClosed)
	_, err = f.engine.Leave(context.Background(), session.ID, "p1")
	require.ErrorIs(t, err, domain.ErrSessionNotOpen)

	after, err := f.engine.GetSession(session.ID)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLeave(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, true, nil)
	session := f.createSession(t, 6)

	for i := 1; i <= 3; i++ {
		_, err := f.engine.Join(context.Background(), session.ID, player(i))
		require.NoError(t, err)
	}

	view, err := f.engine.Leave(context.Background(), session.ID, "p2")
	require.NoError(t, err)
	assert.Equal(t, 2, view.PlayerCount)
	assert.Equal(t, 4, view.SpotsLeft)

	unchanged, err := f.engine.Leave(context.Background(), session.ID, "nobody")
	require.NoError(t, err)
	assert.Equal(t, view.Revision, unchanged.Revision, "leaving when absent does not commit")

	_, err = f.engine.Leave(context.Background(), "missing", "p1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestJoinMemberValidation(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, true, nil)
	session := f.createSession(t, 6)

	result, err := f.engine.Join(context.Background(), session.ID, domain.Member{DisplayName: " Alice "})
	require.NoError(t, err)
	assert.NotEmpty(t, result.Member.ID, "missing ids are generated")
	assert.Equal(t, "Alice", result.Member.DisplayName)
	assert.Equal(t, testNow, result.Member.JoinedAt)

	_, err = f.engine.Join(context.Background(), session.ID, domain.Member{ID: "p2"})
	require.ErrorIs(t, err, domain.ErrInvalidMember)

	_, err = f.engine.Join(context.Background(), "missing", player(1))
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestCloseSettlesLateFillInline(t *testing.T) {
	t.Parallel()

	f := newEngineFixture(t, false, nil)
	session := f.createSession(t, 1)
	require.NoError(t, f.engine.Close(context.Background()))

	f.availability.EXPECT().Check(mockAnyContext(), testWindow()).Return(0, nil).Once()

	result, err := f.engine.Join(context.Background(), session.ID, player(1))
	require.NoError(t, err)
	assert.True(t, result.JustFilled)
	assert.Equal(t, domain.StatusFailed, result.Session.Status)
}
