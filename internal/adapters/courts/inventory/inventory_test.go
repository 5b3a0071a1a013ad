package inventory

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func window(startHour int) domain.Window {
	return domain.Window{
		Start: time.Date(2026, 10, 18, startHour, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 10, 18, startHour+2, 0, 0, 0, time.UTC),
	}
}

func TestReserveIsAllOrNothing(t *testing.T) {
	t.Parallel()

	inv := New(3)
	ctx := context.Background()

	free, err := inv.Check(ctx, window(17))
	require.NoError(t, err)
	assert.Equal(t, 3, free)

	first, err := inv.Reserve(ctx, "s-1", window(17), 2)
	require.NoError(t, err)
	assert.True(t, first.Committed)
	assert.Len(t, first.Refs, 2)

	second, err := inv.Reserve(ctx, "s-2", window(18), 2)
	require.NoError(t, err)
	assert.False(t, second.Committed, "overlapping window only has one court left")
	assert.Empty(t, second.Refs)

	free, err = inv.Check(ctx, window(18))
	require.NoError(t, err)
	assert.Equal(t, 1, free)

	free, err = inv.Check(ctx, window(19))
	require.NoError(t, err)
	assert.Equal(t, 3, free, "back-to-back windows do not compete")
}

func TestCancelFreesCourts(t *testing.T) {
	t.Parallel()

	inv := New(2)
	ctx := context.Background()

	reservation, err := inv.Reserve(ctx, "s-1", window(17), 2)
	require.NoError(t, err)

	require.NoError(t, inv.Cancel(ctx, reservation.Refs[:1]))
	free, err := inv.Check(ctx, window(17))
	require.NoError(t, err)
	assert.Equal(t, 1, free)

	err = inv.Cancel(ctx, []string{"unknown", reservation.Refs[1]})
	require.ErrorIs(t, err, ErrUnknownReservation)
	free, err = inv.Check(ctx, window(17))
	require.NoError(t, err)
	assert.Equal(t, 2, free)
}

func TestBookReducesAvailability(t *testing.T) {
	t.Parallel()

	inv := New(2)
	assert.Len(t, inv.Book(window(20), 5), 2)

	free, err := inv.Check(context.Background(), window(20))
	require.NoError(t, err)
	assert.Zero(t, free)
}

func TestConcurrentReservationsNeverOverbook(t *testing.T) {
	t.Parallel()

	inv := New(4)
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		committed int
	)
	for n := 0; n < 20; n++ {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			reservation, err := inv.Reserve(context.Background(), key, window(17), 2)
			if err != nil || !reservation.Committed {
				return
			}
			mu.Lock()
			committed++
			mu.Unlock()
		}("s-" + strconv.Itoa(n))
	}
	wg.Wait()

	assert.Equal(t, 2, committed)
}

func TestReserveRejectsNonPositiveUnits(t *testing.T) {
	t.Parallel()

	_, err := New(2).Reserve(context.Background(), "s-1", window(17), 0)
	require.Error(t, err)
}

func TestReserveRepeatsAnswerForSameKey(t *testing.T) {
	t.Parallel()

	inv := New(4)
	ctx := context.Background()

	first, err := inv.Reserve(ctx, "s-1", window(17), 2)
	require.NoError(t, err)
	again, err := inv.Reserve(ctx, "s-1", window(17), 2)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	free, err := inv.Check(ctx, window(17))
	require.NoError(t, err)
	assert.Equal(t, 2, free, "the retry books nothing new")

	require.NoError(t, inv.Cancel(ctx, first.Refs[:1]))
	partial, err := inv.Reserve(ctx, "s-1", window(17), 2)
	require.NoError(t, err)
	assert.Equal(t, first.Refs[1:], partial.Refs, "cancelled refs are gone from the key")
}

func TestReleaseFreesEverythingUnderKey(t *testing.T) {
	t.Parallel()

	inv := New(4)
	ctx := context.Background()

	_, err := inv.Reserve(ctx, "s-1", window(17), 2)
	require.NoError(t, err)
	kept, err := inv.Reserve(ctx, "s-2", window(17), 1)
	require.NoError(t, err)

	require.NoError(t, inv.Release(ctx, "s-1"))
	require.NoError(t, inv.Release(ctx, "unknown"), "unknown keys are ignored")

	free, err := inv.Check(ctx, window(17))
	require.NoError(t, err)
	assert.Equal(t, 3, free)

	require.NoError(t, inv.Cancel(ctx, kept.Refs), "other keys keep their bookings")

	fresh, err := inv.Reserve(ctx, "s-1", window(17), 2)
	require.NoError(t, err)
	assert.True(t, fresh.Committed, "a released key books again")
}
