// Package redis stores session snapshots in Redis hashes guarded by revision.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/royalclubcanada/dropin/internal/domain"
	"github.com/royalclubcanada/dropin/internal/ports"
)

const (
	defaultPrefix = "dropin"
	fieldRevision = "revision"
	fieldData     = "data"
)

// saveScript writes the snapshot only over its previous revision and returns
// the stored revision on conflict.
var saveScript = goredis.NewScript(`
local current = tonumber(redis.call("HGET", KEYS[1], "revision") or "0")
local incoming = tonumber(ARGV[1])
if current ~= incoming - 1 then
  return {0, current}
end
redis.call("HSET", KEYS[1], "revision", ARGV[1], "data", ARGV[2])
redis.call("SADD", KEYS[2], ARGV[3])
return {1, incoming}
`)

type Store struct {
	client goredis.UniversalClient
	prefix string
}

var _ ports.SessionStore = (*Store)(nil)

func NewStore(client goredis.UniversalClient, prefix string) *Store {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = defaultPrefix
	}

	return &Store{client: client, prefix: prefix}
}

// Dial connects and pings, failing fast when Redis is unreachable.
func Dial(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis %s: %w", addr, err)
	}

	return client, nil
}

func (s *Store) sessionKey(id domain.SessionID) string {
	return s.prefix + ":session:" + string(id)
}

func (s *Store) indexKey() string {
	return s.prefix + ":sessions"
}

func (s *Store) Save(ctx context.Context, session domain.Session) error {
	data, err := json.Marshal(toRecord(session))
	if err != nil {
		return fmt.Errorf("encode session %s: %w", session.ID, err)
	}

	keys := []string{s.sessionKey(session.ID), s.indexKey()}
	result, err := saveScript.Run(ctx, s.client, keys, session.Revision, data, string(session.ID)).Int64Slice()
	if err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	if len(result) != 2 {
		return fmt.Errorf("save session %s: unexpected script reply %v", session.ID, result)
	}
	if result[0] == 0 {
		return fmt.Errorf("save session %s at revision %d over %d: %w", session.ID, session.Revision, result[1], domain.ErrRevisionConflict)
	}

	return nil
}

func (s *Store) GetByID(ctx context.Context, id domain.SessionID) (domain.Session, error) {
	raw, err := s.client.HGet(ctx, s.sessionKey(id), fieldData).Result()
	if errors.Is(err, goredis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, fmt.Errorf("get session %s: %w", id, err)
	}

	return decode(raw)
}

func (s *Store) List(ctx context.Context) ([]domain.Session, error) {
	ids, err := s.client.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list session ids: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*goredis.StringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGet(ctx, s.sessionKey(domain.SessionID(id)), fieldData))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, fmt.Errorf("load sessions: %w", err)
	}

	sessions := make([]domain.Session, 0, len(cmds))
	for _, cmd := range cmds {
		raw, err := cmd.Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		session, err := decode(raw)
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

func decode(raw string) (domain.Session, error) {
	var rec record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return domain.Session{}, fmt.Errorf("decode session: %w", err)
	}
	return rec.session()
}
