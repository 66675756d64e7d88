// Package store is the durable side of a lobby: settings, admin, phase and
// roster membership live in Redis hashes/lists with a bounded TTL, so a
// lobby survives a process restart while idle lobbies age out on their own.
// The in-memory session is a runtime view over these records; commands write
// here first and only mutate memory once the write succeeded.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/fwilhelm/connectk/internal/models"
)

// opTimeout bounds every Redis round trip so a dead store fails the command
// instead of hanging it.
const opTimeout = 5 * time.Second

// ErrNoSession is returned when a caller has no session record.
var ErrNoSession = errors.New("no session record")

// Store wraps the Redis client and the record TTL.
type Store struct {
	rdb *redis.Client
	ttl time.Duration
}

// Connect initializes the Redis client from environment variables:
//   - REDIS_ADDR (default "localhost:6379")
//   - REDIS_DB (optional, default 0)
//   - LOBBY_TTL (optional Go duration, default 72h)
func Connect() (*Store, error) {
	addr := getEnv("REDIS_ADDR", "localhost:6379")
	dbIdx := getEnvInt("REDIS_DB", 0)

	ttl := 72 * time.Hour
	if raw := os.Getenv("LOBBY_TTL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid LOBBY_TTL %q: %w", raw, err)
		}
		ttl = d
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   dbIdx,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return &Store{rdb: rdb, ttl: ttl}, nil
}

// New wraps an existing client, mainly for tests against miniredis-style
// fakes or a non-default TTL.
func New(rdb *redis.Client, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

// TTL reports the record lifetime; the registry sweeps in-memory sessions no
// later than this.
func (s *Store) TTL() time.Duration { return s.ttl }

func lobbyKey(id uuid.UUID) string    { return "lobby:" + id.String() }
func rosterKey(id uuid.UUID) string   { return "roster:" + id.String() }
func sessionKey(uid uuid.UUID) string { return "sess:" + uid.String() }

// SaveLobby writes the lobby record (settings, admin, phase) and refreshes
// its TTL. Used on create and on every settings/admin/phase change.
func (s *Store) SaveLobby(ctx context.Context, id uuid.UUID, settings models.Settings, admin uuid.UUID, state string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := lobbyKey(id)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"lobbyId", id.String(),
			"rows", settings.Rows,
			"cols", settings.Cols,
			"connect", settings.Connect,
			"maxPlayers", settings.MaxPlayers,
			"admin", admin.String(),
			"state", state,
		)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save lobby %s: %w", id, err)
	}
	return nil
}

// AppendPlayer appends p to the lobby's roster list, preserving join order.
func (s *Store) AppendPlayer(ctx context.Context, id uuid.UUID, p models.Player) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal roster entry: %w", err)
	}
	key := rosterKey(id)
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, data)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append player %s to lobby %s: %w", p.UID, id, err)
	}
	return nil
}

// RemovePlayer deletes p's roster entry.
func (s *Store) RemovePlayer(ctx context.Context, id uuid.UUID, p models.Player) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to marshal roster entry: %w", err)
	}
	if err := s.rdb.LRem(ctx, rosterKey(id), 1, data).Err(); err != nil {
		return fmt.Errorf("failed to remove player %s from lobby %s: %w", p.UID, id, err)
	}
	return nil
}

// Roster returns the lobby's durable roster in join order.
func (s *Store) Roster(ctx context.Context, id uuid.UUID) ([]models.Player, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	raw, err := s.rdb.LRange(ctx, rosterKey(id), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read roster for lobby %s: %w", id, err)
	}
	players := make([]models.Player, 0, len(raw))
	for _, entry := range raw {
		var p models.Player
		if err := json.Unmarshal([]byte(entry), &p); err != nil {
			return nil, fmt.Errorf("corrupt roster entry for lobby %s: %w", id, err)
		}
		players = append(players, p)
	}
	return players, nil
}

// LoadLobby reads the lobby record plus roster. The second return is false
// when the record does not exist (expired or never created).
func (s *Store) LoadLobby(ctx context.Context, id uuid.UUID) (*models.LobbyInfo, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fields, err := s.rdb.HGetAll(ctx, lobbyKey(id)).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to load lobby %s: %w", id, err)
	}
	if len(fields) == 0 {
		return nil, false, nil
	}

	admin, err := uuid.Parse(fields["admin"])
	if err != nil {
		admin = uuid.Nil // lobby persisted before anyone joined
	}
	info := &models.LobbyInfo{
		LobbyID:    id,
		Rows:       atoiField(fields, "rows"),
		Cols:       atoiField(fields, "cols"),
		Connect:    atoiField(fields, "connect"),
		MaxPlayers: atoiField(fields, "maxPlayers"),
		Admin:      admin,
		State:      fields["state"],
	}

	roster, err := s.Roster(ctx, id)
	if err != nil {
		return nil, false, err
	}
	info.Players = roster
	info.PlayerCount = len(roster)
	return info, true, nil
}

// DeleteLobby drops the lobby record and roster.
func (s *Store) DeleteLobby(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.rdb.Del(ctx, lobbyKey(id), rosterKey(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete lobby %s: %w", id, err)
	}
	return nil
}

// Exists reports whether the durable lobby record is still present.
func (s *Store) Exists(ctx context.Context, id uuid.UUID) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	n, err := s.rdb.Exists(ctx, lobbyKey(id)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check lobby %s: %w", id, err)
	}
	return n > 0, nil
}

// Touch refreshes the TTL on the lobby record and roster. Called on game
// activity so a lobby only expires after a real idle period.
func (s *Store) Touch(ctx context.Context, id uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Expire(ctx, lobbyKey(id), s.ttl)
		pipe.Expire(ctx, rosterKey(id), s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to refresh lobby %s: %w", id, err)
	}
	return nil
}

// SaveSession records the caller's nickname and current lobby association.
func (s *Store) SaveSession(ctx context.Context, uid uuid.UUID, nickname string, lobbyID uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	key := sessionKey(uid)
	lobbyField := ""
	if lobbyID != uuid.Nil {
		lobbyField = lobbyID.String()
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, "nickname", nickname, "lobbyId", lobbyField)
		pipe.Expire(ctx, key, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save session for %s: %w", uid, err)
	}
	return nil
}

// Session returns the caller's nickname and lobby association. Returns
// ErrNoSession if no record exists.
func (s *Store) Session(ctx context.Context, uid uuid.UUID) (nickname string, lobbyID uuid.UUID, err error) {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	fields, err := s.rdb.HGetAll(ctx, sessionKey(uid)).Result()
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("failed to read session for %s: %w", uid, err)
	}
	if len(fields) == 0 {
		return "", uuid.Nil, ErrNoSession
	}
	if raw := fields["lobbyId"]; raw != "" {
		if id, parseErr := uuid.Parse(raw); parseErr == nil {
			lobbyID = id
		}
	}
	return fields["nickname"], lobbyID, nil
}

// ClearSessionLobby drops the caller's lobby association but keeps the
// nickname for the next join.
func (s *Store) ClearSessionLobby(ctx context.Context, uid uuid.UUID) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := s.rdb.HSet(ctx, sessionKey(uid), "lobbyId", "").Err(); err != nil {
		return fmt.Errorf("failed to clear session lobby for %s: %w", uid, err)
	}
	return nil
}

func atoiField(fields map[string]string, key string) int {
	v, _ := strconv.Atoi(fields[key])
	return v
}

// getEnv reads an environment variable or returns a default value.
func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

// getEnvInt parses an environment variable as integer, else a default value.
func getEnvInt(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
