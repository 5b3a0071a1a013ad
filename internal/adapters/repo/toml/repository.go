package toml

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/ports"
	"github.com/spf13/viper"
)

const (
	sessionsPathKey    = "store.path"
	sessionsFileMode   = 0o600
	sessionsDirMode    = 0o700
	sessionsConfigDir  = ".dropin"
	sessionsConfigFile = "sessions.toml"
	tempFilePattern    = ".sessions-*.toml.tmp"
	lockFileSuffix     = ".lock"
)

// Repository keeps session snapshots in a single TOML file.
type Repository struct {
	sessionsPath string
	mu           *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.SessionStore = (*Repository)(nil)

func NewRepository(cfg *viper.Viper) (*Repository, error) {
	if cfg == nil {
		cfg = viper.New()
	}

	sessionsPath := cfg.GetString(sessionsPathKey)
	if sessionsPath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("resolve home directory: %w", err)
		}
		sessionsPath = filepath.Join(homeDir, sessionsConfigDir, sessionsConfigFile)
	}

	sessionsPath, err := normalizeSessionsPath(sessionsPath)
	if err != nil {
		return nil, err
	}

	return &Repository{sessionsPath: sessionsPath, mu: lockForPath(sessionsPath)}, nil
}

// Save writes the snapshot only over its previous revision. The read-modify-write
// runs under the path lock and an exclusive lock on the sidecar lock file, so
// processes sharing the file serialize too.
func (r *Repository) Save(ctx context.Context, session domain.Session) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	unlock, err := r.lockFile()
	if err != nil {
		return err
	}
	defer unlock()

	file, err := r.readSchema()
	if err != nil {
		return err
	}

	encoded := toSchema(session)
	index := -1
	var stored uint64
	for i := range file.Sessions {
		if file.Sessions[i].ID == encoded.ID {
			index = i
			stored = file.Sessions[i].Revision
			break
		}
	}

	if stored+1 != encoded.Revision {
		return fmt.Errorf("save session %s at revision %d over %d: %w", session.ID, encoded.Revision, stored, domain.ErrRevisionConflict)
	}

	if index >= 0 {
		file.Sessions[index] = encoded
	} else {
		file.Sessions = append(file.Sessions, encoded)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return r.writeSchema(file)
}

// lockFile takes the cross-process lock next to the sessions file.
func (r *Repository) lockFile() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(r.sessionsPath), sessionsDirMode); err != nil {
		return nil, fmt.Errorf("create sessions directory: %w", err)
	}

	unlock, err := lockExclusive(r.sessionsPath + lockFileSuffix)
	if err != nil {
		return nil, fmt.Errorf("lock sessions file: %w", err)
	}
	return unlock, nil
}

func (r *Repository) GetByID(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return domain.Session{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return domain.Session{}, err
	}

	for _, entry := range file.Sessions {
		if entry.ID == string(id) {
			return fromSchema(entry)
		}
	}

	return domain.Session{}, domain.ErrSessionNotFound
}

func (r *Repository) List(ctx context.Context) ([]domain.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	file, err := r.readSchema()
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.Session, 0, len(file.Sessions))
	for _, entry := range file.Sessions {
		session, err := fromSchema(entry)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].Window.Start.Before(sessions[j].Window.Start)
	})

	return sessions, nil
}

func (r *Repository) Path() string {
	return r.sessionsPath
}

func (r *Repository) readSchema() (fileSchema, error) {
	data, err := os.ReadFile(r.sessionsPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fileSchema{Version: currentSchemaVersion}, nil
		}
		return fileSchema{}, fmt.Errorf("read sessions file: %w", err)
	}

	var file fileSchema
	if err := toml.Unmarshal(data, &file); err != nil {
		return fileSchema{}, fmt.Errorf("decode sessions file: %w", err)
	}
	if err := file.validateVersion(); err != nil {
		return fileSchema{}, err
	}
	file.applyDefaults()

	return file, nil
}

func normalizeSessionsPath(path string) (string, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve sessions path: %w", err)
	}

	return filepath.Clean(absPath), nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}

func (r *Repository) writeSchema(file fileSchema) error {
	file.applyDefaults()

	if err := os.MkdirAll(filepath.Dir(r.sessionsPath), sessionsDirMode); err != nil {
		return fmt.Errorf("create sessions directory: %w", err)
	}

	data, err := toml.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode sessions file: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(r.sessionsPath), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp sessions file: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.Write(data); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp sessions file: %w", err)
	}

	if err := tempFile.Chmod(sessionsFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp sessions file: %w", err)
	}

	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp sessions file: %w", err)
	}

	if err := os.Rename(tempName, r.sessionsPath); err != nil {
		return fmt.Errorf("replace sessions file: %w", err)
	}

	cleanup = false
	return nil
}

func toSchema(session domain.Session) sessionSchema {
	members := make([]memberSchema, 0, len(session.Members))
	for _, member := range session.Members {
		members = append(members, memberSchema{
			ID:          string(member.ID),
			DisplayName: member.DisplayName,
			HoldStatus:  string(member.HoldStatus),
			JoinedAt:    formatTime(member.JoinedAt),
		})
	}

	return sessionSchema{
		ID:       string(session.ID),
		Location: session.Location,
		Window: windowSchema{
			Start: formatTime(session.Window.Start),
			End:   formatTime(session.Window.End),
		},
		Capacity:        session.Capacity,
		RequiredUnits:   session.RequiredUnits,
		HoldAmountCents: session.HoldAmountCents,
		Status:          string(session.Status),
		ReservationRefs: session.ReservationRefs,
		FailureReason:   session.FailureReason,
		Revision:        session.Revision,
		CreatedAt:       formatTime(session.CreatedAt),
		UpdatedAt:       formatTime(session.UpdatedAt),
		SettledAt:       formatTime(session.SettledAt),
		Members:         members,
	}
}

func fromSchema(entry sessionSchema) (domain.Session, error) {
	status, err := domain.ParseStatus(entry.Status)
	if err != nil {
		return domain.Session{}, fmt.Errorf("decode session %s: %w", entry.ID, err)
	}

	var members []domain.Member
	for _, member := range entry.Members {
		members = append(members, domain.Member{
			ID:          domain.MemberID(member.ID),
			DisplayName: member.DisplayName,
			HoldStatus:  domain.HoldStatus(member.HoldStatus),
			JoinedAt:    parseTime(member.JoinedAt),
		})
	}

	return domain.Session{
		ID:       domain.SessionID(entry.ID),
		Location: entry.Location,
		Window: domain.Window{
			Start: parseTime(entry.Window.Start),
			End:   parseTime(entry.Window.End),
		},
		Capacity:        entry.Capacity,
		RequiredUnits:   entry.RequiredUnits,
		HoldAmountCents: entry.HoldAmountCents,
		Members:         members,
		Status:          status,
		ReservationRefs: entry.ReservationRefs,
		FailureReason:   entry.FailureReason,
		Revision:        entry.Revision,
		CreatedAt:       parseTime(entry.CreatedAt),
		UpdatedAt:       parseTime(entry.UpdatedAt),
		SettledAt:       parseTime(entry.SettledAt),
	}, nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}

	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}

	return parsed
}

func formatTime(value time.Time) string {
	if value.IsZero() {
		return ""
	}

	return value.Format(time.RFC3339Nano)
}
