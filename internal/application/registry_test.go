package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/ports/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestRegistryCreateGetList(t *testing.T) {
	t.Parallel()

	registry := NewSessionRegistry(nil, newTestClock(t), nil, nil)
	late := testWindow()
	late.Start = late.Start.Add(2 * time.Hour)
	late.End = late.End.Add(2 * time.Hour)

	second, err := registry.Create(context.Background(), NewSessionSpec{ID: "late", Window: late})
	require.NoError(t, err)
	first, err := registry.Create(context.Background(), NewSessionSpec{Window: testWindow(), Capacity: 4, Location: "Royal Club"})
	require.NoError(t, err)

	assert.NotEmpty(t, first.ID, "an id is generated")
	assert.Equal(t, 4, first.Capacity)
	assert.Equal(t, domain.DefaultRequiredUnits, first.RequiredUnits)
	assert.Equal(t, "Royal Club", first.Location)
	assert.Equal(t, domain.StatusOpen, first.Status)

	got, err := registry.Get(second.ID)
	require.NoError(t, err)
	assert.Equal(t, second, got)

	views := registry.List()
	require.Len(t, views, 2)
	assert.Equal(t, first.ID, views[0].ID, "ordered by window start")
	assert.Equal(t, second.ID, views[1].ID)

	found, ok := registry.FindByWindow(late)
	require.True(t, ok)
	assert.Equal(t, second.ID, found.ID)

	_, err = registry.Get("missing")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)

	_, err = registry.Create(context.Background(), NewSessionSpec{ID: "late", Window: late})
	require.ErrorIs(t, err, domain.ErrSessionExists)

	_, err = registry.Create(context.Background(), NewSessionSpec{Window: domain.Window{}})
	require.ErrorIs(t, err, domain.ErrInvalidWindow)
}

func TestRegistryWithSessionDiscardsFailedMutation(t *testing.T) {
	t.Parallel()

	registry := NewSessionRegistry(nil, newTestClock(t), nil, nil)
	created, err := registry.Create(context.Background(), NewSessionSpec{ID: "s-1", Window: testWindow()})
	require.NoError(t, err)

	boom := errors.New("boom")
	_, err = registry.WithSession(context.Background(), "s-1", func(session *domain.Session) error {
		session.Members = append(session.Members, player(1))
		session.Status = domain.StatusFilled
		return boom
	})
	require.ErrorIs(t, err, boom)

	got, err := registry.Get("s-1")
	require.NoError(t, err)
	assert.Equal(t, created, got)

	updated, err := registry.WithSession(context.Background(), "s-1", func(session *domain.Session) error {
		_, err := session.Join(player(1), testNow)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, created.Revision+1, updated.Revision)
	assert.Equal(t, 1, updated.PlayerCount)
}

func TestRegistryWithSessionPanicsOverCapacity(t *testing.T) {
	t.Parallel()

	registry := NewSessionRegistry(nil, newTestClock(t), nil, nil)
	_, err := registry.Create(context.Background(), NewSessionSpec{ID: "s-1", Window: testWindow(), Capacity: 1})
	require.NoError(t, err)

	assert.Panics(t, func() {
		_, _ = registry.WithSession(context.Background(), "s-1", func(session *domain.Session) error {
			session.Members = append(session.Members, player(1), player(2))
			return nil
		})
	})
}

func TestRegistryPersistsCommittedSnapshots(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockSessionStore(t)
	var revisions []uint64
	store.EXPECT().Save(mockAnyContext(), mock.AnythingOfType("domain.Session")).
		Run(func(_ context.Context, session domain.Session) {
			revisions = append(revisions, session.Revision)
		}).
		Return(nil).Times(2)

	registry := NewSessionRegistry(store, newTestClock(t), nil, nil)
	_, err := registry.Create(context.Background(), NewSessionSpec{ID: "s-1", Window: testWindow()})
	require.NoError(t, err)
	_, err = registry.WithSession(context.Background(), "s-1", func(session *domain.Session) error {
		_, err := session.Join(player(1), testNow)
		return err
	})
	require.NoError(t, err)

	assert.Equal(t, []uint64{1, 2}, revisions)
}

func TestRegistryStoreErrorRejectsMutation(t *testing.T) {
	t.Parallel()

	diskFull := errors.New("disk full")
	store := mocks.NewMockSessionStore(t)
	store.EXPECT().Save(mockAnyContext(), mock.MatchedBy(func(session domain.Session) bool {
		return session.Revision == 1
	})).Return(nil).Once()
	store.EXPECT().Save(mockAnyContext(), mock.MatchedBy(func(session domain.Session) bool {
		return session.Revision == 2
	})).Return(diskFull).Once()

	registry := NewSessionRegistry(store, newTestClock(t), nil, nil)
	created, err := registry.Create(context.Background(), NewSessionSpec{ID: "s-1", Window: testWindow()})
	require.NoError(t, err)

	_, err = registry.WithSession(context.Background(), "s-1", func(session *domain.Session) error {
		_, err := session.Join(player(1), testNow)
		return err
	})
	require.ErrorIs(t, err, diskFull)

	got, err := registry.Get("s-1")
	require.NoError(t, err)
	assert.Equal(t, created, got, "unsaved mutations are not published")
}

func TestRegistryCreateStoreFailureLeavesNoSession(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockSessionStore(t)
	store.EXPECT().Save(mockAnyContext(), mock.Anything).Return(errors.New("disk full")).Once()
	store.EXPECT().Save(mockAnyContext(), mock.Anything).Return(domain.ErrRevisionConflict).Once()

	registry := NewSessionRegistry(store, newTestClock(t), nil, nil)
	_, err := registry.Create(context.Background(), NewSessionSpec{ID: "s-1", Window: testWindow()})
	require.ErrorContains(t, err, "disk full")

	_, err = registry.Create(context.Background(), NewSessionSpec{ID: "s-1", Window: testWindow()})
	require.ErrorIs(t, err, domain.ErrSessionExists, "another writer stored the id first")

	_, err = registry.Get("s-1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRegistryConflictReplaysOnStoredSession(t *testing.T) {
	t.Parallel()

	registry, stored := conflictingRegistry(t, 6)

	updated, err := registry.WithSession(context.Background(), "s-1", func(session *domain.Session) error {
		_, err := session.Join(player(2), testNow)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, stored.Revision+1, updated.Revision)
	require.Len(t, updated.Members, 2, "the other writer's member is kept")
	assert.Equal(t, domain.MemberID("p1"), updated.Members[0].ID)
	assert.Equal(t, domain.MemberID("p2"), updated.Members[1].ID)
}

func TestRegistryConflictSurfacesFnErrorsOnReplay(t *testing.T) {
	t.Parallel()

	registry, _ := conflictingRegistry(t, 1)

	_, err := registry.WithSession(context.Background(), "s-1", func(session *domain.Session) error {
		_, err := session.Join(player(2), testNow)
		return err
	})
	require.ErrorIs(t, err, domain.ErrSessionClosed, "the other writer filled the session")

	got, err := registry.Get("s-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFilled, got.Status)
	require.Len(t, got.Members, 1)
	assert.Equal(t, domain.MemberID("p1"), got.Members[0].ID)
}

// conflictingRegistry caches s-1 at revision 1 while the store already holds
// revision 2 with p1 joined.
func conflictingRegistry(t *testing.T, capacity int) (*SessionRegistry, domain.Session) {
	t.Helper()

	stored, err := domain.NewSession("s-1", testWindow(), capacity, 1, testNow)
	require.NoError(t, err)
	_, err = stored.Join(player(1), testNow)
	require.NoError(t, err)
	stored.Revision = 2

	store := mocks.NewMockSessionStore(t)
	store.EXPECT().Save(mockAnyContext(), mock.MatchedBy(func(session domain.Session) bool {
		return session.Revision == 1
	})).Return(nil).Once()
	store.EXPECT().Save(mockAnyContext(), mock.MatchedBy(func(session domain.Session) bool {
		return session.Revision == 2
	})).Return(domain.ErrRevisionConflict).Maybe()
	store.EXPECT().Save(mockAnyContext(), mock.MatchedBy(func(session domain.Session) bool {
		return session.Revision == 3
	})).Return(nil).Maybe()
	store.EXPECT().GetByID(mockAnyContext(), domain.SessionID("s-1")).Return(stored, nil).Once()

	registry := NewSessionRegistry(store, newTestClock(t), nil, nil)
	_, err = registry.Create(context.Background(), NewSessionSpec{ID: "s-1", Window: testWindow(), Capacity: capacity, RequiredUnits: 1})
	require.NoError(t, err)
	return registry, stored
}

func TestRegistryGivesUpAfterRepeatedConflicts(t *testing.T) {
	t.Parallel()

	store := mocks.NewMockSessionStore(t)
	store.EXPECT().Save(mockAnyContext(), mock.MatchedBy(func(session domain.Session) bool {
		return session.Revision == 1
	})).Return(nil).Once()
	store.EXPECT().Save(mockAnyContext(), mock.MatchedBy(func(session domain.Session) bool {
		return session.Revision > 1
	})).Return(domain.ErrRevisionConflict).Times(maxConflictAttempts)

	registry := NewSessionRegistry(store, newTestClock(t), nil, nil)
	created, err := registry.Create(context.Background(), NewSessionSpec{ID: "s-1", Window: testWindow()})
	require.NoError(t, err)

	stale, err := domain.NewSession("s-1", testWindow(), 6, 2, testNow)
	require.NoError(t, err)
	stale.Revision = 1
	store.EXPECT().GetByID(mockAnyContext(), domain.SessionID("s-1")).Return(stale, nil).Times(maxConflictAttempts - 1)

	_, err = registry.WithSession(context.Background(), "s-1", func(session *domain.Session) error {
		_, err := session.Join(player(1), testNow)
		return err
	})
	require.ErrorIs(t, err, domain.ErrRevisionConflict)

	got, err := registry.Get("s-1")
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestRegistryRestoreFailsInterruptedSettlement(t *testing.T) {
	t.Parallel()

	filled, err := domain.NewSession("filled", testWindow(), 1, 1, testNow)
	require.NoError(t, err)
	_, err = filled.Join(player(1), testNow)
	require.NoError(t, err)
	filled.Revision = 3

	open, err := domain.NewSession("open", testWindow(), 6, 2, testNow)
	require.NoError(t, err)
	open.Revision = 1

	store := mocks.NewMockSessionStore(t)
	store.EXPECT().List(mockAnyContext()).Return([]domain.Session{filled, open}, nil)
	store.EXPECT().Save(mockAnyContext(), mock.MatchedBy(func(session domain.Session) bool {
		return session.ID == "filled" && session.Status == domain.StatusFailed && session.Revision == 4
	})).Return(nil).Once()

	registry := NewSessionRegistry(store, newTestClock(t), nil, nil)
	restored, err := registry.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, restored)

	view, err := registry.Get("filled")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, view.Status)
	assert.Equal(t, ReasonSettlementInterrupted, view.FailureReason)
	assert.Equal(t, domain.HoldReleased, view.Members[0].HoldStatus)

	view, err = registry.Get("open")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusOpen, view.Status)
}

func TestRegistryRestoreLeavesRecentlyFilledSessions(t *testing.T) {
	t.Parallel()

	filled, err := domain.NewSession("filled", testWindow(), 1, 1, testNow)
	require.NoError(t, err)
	_, err = filled.Join(player(1), testNow)
	require.NoError(t, err)
	filled.Revision = 2
	filled.UpdatedAt = testNow.Add(-5 * time.Second)

	store := mocks.NewMockSessionStore(t)
	store.EXPECT().List(mockAnyContext()).Return([]domain.Session{filled}, nil)

	registry := NewSessionRegistry(store, newTestClock(t), nil, nil)
	registry.settlingWindow = 30 * time.Second

	restored, err := registry.Restore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, restored)

	view, err := registry.Get("filled")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFilled, view.Status, "another process may still be settling it")
}
