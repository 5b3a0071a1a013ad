package toml

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestRepository(t *testing.T, path string) *Repository {
	t.Helper()

	config := viper.New()
	config.Set("store.path", path)
	repo, err := NewRepository(config)
	require.NoError(t, err)
	return repo
}

func testSession(t *testing.T, id domain.SessionID, startHour int) domain.Session {
	t.Helper()

	window := domain.Window{
		Start: time.Date(2026, 10, 18, startHour, 0, 0, 0, time.UTC),
		End:   time.Date(2026, 10, 18, startHour+2, 0, 0, 0, time.UTC),
	}
	session, err := domain.NewSession(id, window, 2, 2, testNow)
	require.NoError(t, err)
	session.Location = "Royal Club"
	session.Revision = 1
	return session
}

func TestRepositoryRoundTrip(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "sessions.toml"))

	late := testSession(t, "late", 20)
	confirmed := testSession(t, "confirmed", 17)
	_, err := confirmed.Join(domain.Member{ID: "p1", DisplayName: "Alice"}, testNow)
	require.NoError(t, err)
	_, err = confirmed.Join(domain.Member{ID: "p2", DisplayName: "Bob"}, testNow.Add(time.Minute))
	require.NoError(t, err)
	require.NoError(t, confirmed.Confirm([]string{"r1", "r2"}, testNow.Add(2*time.Minute)))

	require.NoError(t, repo.Save(context.Background(), late))
	require.NoError(t, repo.Save(context.Background(), confirmed))

	got, err := repo.GetByID(context.Background(), "confirmed")
	require.NoError(t, err)
	assert.Equal(t, confirmed, got)

	sessions, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, domain.SessionID("confirmed"), sessions[0].ID, "ordered by window start")
	assert.Equal(t, late, sessions[1])
}

func TestRepositorySaveRequiresPreviousRevision(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "sessions.toml"))

	first := testSession(t, "s-1", 17)
	require.NoError(t, repo.Save(context.Background(), first))

	err := repo.Save(context.Background(), first)
	require.ErrorIs(t, err, domain.ErrRevisionConflict, "same revision twice")

	skipped := testSession(t, "s-1", 17)
	skipped.Revision = 3
	require.ErrorIs(t, repo.Save(context.Background(), skipped), domain.ErrRevisionConflict)

	fresh := testSession(t, "s-2", 17)
	fresh.Revision = 2
	require.ErrorIs(t, repo.Save(context.Background(), fresh), domain.ErrRevisionConflict, "new sessions start at revision 1")

	next := testSession(t, "s-1", 17)
	_, err = next.Join(domain.Member{ID: "p1", DisplayName: "Alice"}, testNow)
	require.NoError(t, err)
	next.Revision = 2
	require.NoError(t, repo.Save(context.Background(), next))

	got, err := repo.GetByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Revision)
	assert.Len(t, got.Members, 1)

	_, err = repo.GetByID(context.Background(), "s-2")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRepositoryMissingFileBehaviors(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "missing", "sessions.toml"))

	sessions, err := repo.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = repo.GetByID(context.Background(), "s-1")
	require.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func TestRepositorySaveCreatesDefaultPathAndEnforcesPermissions(t *testing.T) {
	homeDir := t.TempDir()
	t.Setenv("HOME", homeDir)

	repo, err := NewRepository(viper.New())
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), testSession(t, "s-1", 17)))

	sessionsPath := filepath.Join(homeDir, ".dropin", "sessions.toml")
	assert.Equal(t, sessionsPath, repo.Path())
	info, err := os.Stat(sessionsPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	data, err := os.ReadFile(sessionsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "version = 1")
}

func TestRepositoryListMalformedTOMLReturnsError(t *testing.T) {
	t.Parallel()

	sessionsPath := filepath.Join(t.TempDir(), "sessions.toml")
	require.NoError(t, os.WriteFile(sessionsPath, []byte("sessions = ["), 0o600))

	_, err := newTestRepository(t, sessionsPath).List(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "decode sessions file")
}

func TestRepositoryUnknownStatusReturnsError(t *testing.T) {
	t.Parallel()

	sessionsPath := filepath.Join(t.TempDir(), "sessions.toml")
	require.NoError(t, os.WriteFile(sessionsPath, []byte(strings.Join([]string{
		"version = 1",
		"",
		"[[sessions]]",
		"id = \"s-1\"",
		"status = \"cancelled\"",
		"",
	}, "\n")), 0o600))

	_, err := newTestRepository(t, sessionsPath).List(context.Background())
	assert.ErrorContains(t, err, "unknown session status")
}

func TestRepositoryFutureSchemaVersionReturnsError(t *testing.T) {
	t.Parallel()

	sessionsPath := filepath.Join(t.TempDir(), "sessions.toml")
	require.NoError(t, os.WriteFile(sessionsPath, []byte("version = 999\n\nsessions = []\n"), 0o600))

	_, err := newTestRepository(t, sessionsPath).List(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "unsupported sessions schema version")
}

func TestRepositorySaveCanceledContextReturnsContextError(t *testing.T) {
	t.Parallel()

	repo := newTestRepository(t, filepath.Join(t.TempDir(), "sessions.toml"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Save(ctx, testSession(t, "s-1", 17))
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRepositoryConcurrentSavesAcrossInstancesPreserveAllSessions(t *testing.T) {
	t.Parallel()

	sessionsPath := filepath.Join(t.TempDir(), "sessions.toml")
	repoA := newTestRepository(t, sessionsPath)
	repoB := newTestRepository(t, sessionsPath)

	const perRepoWrites = 50
	start := make(chan struct{})
	errCh := make(chan error, perRepoWrites*2)
	var wg sync.WaitGroup
	wg.Add(2)

	write := func(repo *Repository, prefix string) {
		defer wg.Done()
		<-start
		for i := 0; i < perRepoWrites; i++ {
			errCh <- repo.Save(context.Background(), testSession(t, domain.SessionID(prefix+strconv.Itoa(i)), 17))
		}
	}
	go write(repoA, "a-")
	go write(repoB, "b-")

	close(start)
	wg.Wait()
	close(errCh)

	for err := range errCh {
		require.NoError(t, err)
	}

	sessions, err := repoA.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, sessions, perRepoWrites*2)
}

func TestRepositoryConcurrentWritersOfOneRevisionHaveOneWinner(t *testing.T) {
	t.Parallel()

	sessionsPath := filepath.Join(t.TempDir(), "sessions.toml")
	repos := []*Repository{newTestRepository(t, sessionsPath), newTestRepository(t, sessionsPath)}
	require.NoError(t, repos[0].Save(context.Background(), testSession(t, "s-1", 17)))

	const writers = 16
	candidates := make([]domain.Session, writers)
	for i := range candidates {
		candidates[i] = testSession(t, "s-1", 17)
		_, err := candidates[i].Join(domain.Member{ID: domain.MemberID("p" + strconv.Itoa(i)), DisplayName: "Player"}, testNow)
		require.NoError(t, err)
		candidates[i].Revision = 2
	}

	start := make(chan struct{})
	errCh := make(chan error, writers)
	var wg sync.WaitGroup
	for i := range candidates {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			errCh <- repos[i%len(repos)].Save(context.Background(), candidates[i])
		}(i)
	}

	close(start)
	wg.Wait()
	close(errCh)

	saved := 0
	for err := range errCh {
		if err == nil {
			saved++
			continue
		}
		require.ErrorIs(t, err, domain.ErrRevisionConflict)
	}
	assert.Equal(t, 1, saved)

	got, err := repos[1].GetByID(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), got.Revision)
	assert.Len(t, got.Members, 1)
}
