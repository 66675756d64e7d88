package handlers

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fwilhelm/connectk/internal/events"
	"github.com/fwilhelm/connectk/internal/lobby"
	"github.com/fwilhelm/connectk/internal/models"
	"github.com/fwilhelm/connectk/internal/store"
)

// memStore backs both the registry and the session table in memory, standing
// in for the real store like store.Store does in production.
type memStore struct {
	mu       sync.Mutex
	lobbies  map[uuid.UUID]*models.LobbyInfo
	rosters  map[uuid.UUID][]models.Player
	sessions map[uuid.UUID]sessionRecord
}

type sessionRecord struct {
	nickname string
	lobbyID  uuid.UUID
}

func newMemStore() *memStore {
	return &memStore{
		lobbies:  make(map[uuid.UUID]*models.LobbyInfo),
		rosters:  make(map[uuid.UUID][]models.Player),
		sessions: make(map[uuid.UUID]sessionRecord),
	}
}

func (s *memStore) SaveLobby(_ context.Context, id uuid.UUID, settings models.Settings, admin uuid.UUID, state string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lobbies[id] = &models.LobbyInfo{
		LobbyID:    id,
		Rows:       settings.Rows,
		Cols:       settings.Cols,
		Connect:    settings.Connect,
		MaxPlayers: settings.MaxPlayers,
		Admin:      admin,
		State:      state,
	}
	return nil
}

func (s *memStore) AppendPlayer(_ context.Context, id uuid.UUID, p models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rosters[id] = append(s.rosters[id], p)
	return nil
}

func (s *memStore) RemovePlayer(_ context.Context, id uuid.UUID, p models.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := s.rosters[id]
	for i, member := range roster {
		if member.UID == p.UID {
			s.rosters[id] = append(roster[:i:i], roster[i+1:]...)
			break
		}
	}
	return nil
}

func (s *memStore) DeleteLobby(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lobbies, id)
	delete(s.rosters, id)
	return nil
}

func (s *memStore) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.lobbies[id]
	return ok, nil
}

func (s *memStore) Touch(_ context.Context, _ uuid.UUID) error { return nil }

func (s *memStore) LoadLobby(_ context.Context, id uuid.UUID) (*models.LobbyInfo, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	info, ok := s.lobbies[id]
	if !ok {
		return nil, false, nil
	}
	out := *info
	out.Players = append([]models.Player(nil), s.rosters[id]...)
	out.PlayerCount = len(out.Players)
	return &out, true, nil
}

func (s *memStore) SaveSession(_ context.Context, uid uuid.UUID, nickname string, lobbyID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[uid] = sessionRecord{nickname: nickname, lobbyID: lobbyID}
	return nil
}

func (s *memStore) Session(_ context.Context, uid uuid.UUID) (string, uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[uid]
	if !ok {
		return "", uuid.Nil, store.ErrNoSession
	}
	return rec.nickname, rec.lobbyID, nil
}

func (s *memStore) ClearSessionLobby(_ context.Context, uid uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec, ok := s.sessions[uid]; ok {
		rec.lobbyID = uuid.Nil
		s.sessions[uid] = rec
	}
	return nil
}

func newTestFacade(t *testing.T) (*Facade, *memStore) {
	t.Helper()
	st := newMemStore()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	reg := lobby.NewRegistry(st, events.NewBroadcaster(logger), logger, quartz.NewMock(t))
	return NewFacade(reg, st, logger), st
}

func TestCommandsWithoutSessionFailNotFound(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	uid := uuid.New()

	assert.ErrorIs(t, f.LeaveLobby(ctx, uid), lobby.ErrNotFound)
	assert.ErrorIs(t, f.StartGame(ctx, uid), lobby.ErrNotFound)
	_, _, err := f.PlacePiece(ctx, uid, 0)
	assert.ErrorIs(t, err, lobby.ErrNotFound)
	_, err = f.LobbyInfo(ctx, uid)
	assert.ErrorIs(t, err, lobby.ErrNotFound)
}

func TestCreateJoinStartPlaceFlow(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	created, err := f.CreateLobby(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, created.PlayerCount, "creating does not seat the creator")

	info, err := f.JoinLobby(ctx, alice, created.LobbyID, "alice")
	require.NoError(t, err)
	assert.Equal(t, alice, info.Admin)

	_, err = f.JoinLobby(ctx, bob, created.LobbyID, "bob")
	require.NoError(t, err)

	assert.Equal(t, created.LobbyID, f.CurrentLobbyID(ctx, alice))
	assert.Equal(t, created.LobbyID, f.CurrentLobbyID(ctx, bob))

	require.NoError(t, f.StartGame(ctx, alice))

	// Bob acts before alice, who joined first and holds the opening turn.
	_, _, err = f.PlacePiece(ctx, bob, 0)
	assert.ErrorIs(t, err, lobby.ErrOutOfTurn)

	row, won, err := f.PlacePiece(ctx, alice, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, row)
	assert.False(t, won)

	row, won, err = f.PlacePiece(ctx, bob, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, row)
	assert.False(t, won)

	cells, err := f.Board(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, cells[0], 2)
}

func TestJoinUnknownLobby(t *testing.T) {
	f, _ := newTestFacade(t)

	_, err := f.JoinLobby(context.Background(), uuid.New(), uuid.New(), "alice")
	assert.ErrorIs(t, err, lobby.ErrNotFound)
}

func TestLeaveClearsSessionAssociation(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	created, err := f.CreateLobby(ctx)
	require.NoError(t, err)
	_, err = f.JoinLobby(ctx, alice, created.LobbyID, "alice")
	require.NoError(t, err)
	_, err = f.JoinLobby(ctx, bob, created.LobbyID, "bob")
	require.NoError(t, err)

	require.NoError(t, f.LeaveLobby(ctx, alice))
	assert.Equal(t, uuid.Nil, f.CurrentLobbyID(ctx, alice))

	// Follow-up commands resolve no lobby for the departed caller.
	assert.ErrorIs(t, f.StartGame(ctx, alice), lobby.ErrNotFound)

	// The remaining member inherits the lobby.
	info, err := f.LobbyInfo(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, bob, info.Admin)
}

func TestKickClearsTargetSession(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()

	created, err := f.CreateLobby(ctx)
	require.NoError(t, err)
	_, err = f.JoinLobby(ctx, alice, created.LobbyID, "alice")
	require.NoError(t, err)
	_, err = f.JoinLobby(ctx, bob, created.LobbyID, "bob")
	require.NoError(t, err)

	assert.ErrorIs(t, f.KickPlayer(ctx, bob, alice), lobby.ErrUnauthorized)

	require.NoError(t, f.KickPlayer(ctx, alice, bob))
	assert.Equal(t, uuid.Nil, f.CurrentLobbyID(ctx, bob))

	info, err := f.LobbyInfo(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, 1, info.PlayerCount)
}

func TestUpdateSettingsThroughFacade(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	alice := uuid.New()

	created, err := f.CreateLobby(ctx)
	require.NoError(t, err)
	_, err = f.JoinLobby(ctx, alice, created.LobbyID, "alice")
	require.NoError(t, err)

	info, err := f.UpdateSettings(ctx, alice, models.Settings{Rows: 8, Cols: 9, Connect: 3, MaxPlayers: 2})
	require.NoError(t, err)
	assert.Equal(t, 8, info.Rows)
	assert.Equal(t, 3, info.Connect)
}

func TestSelf(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	alice := uuid.New()

	// Before any join the session table has no record; identity is just the uid.
	p, err := f.Self(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, alice, p.UID)
	assert.Empty(t, p.Nickname)

	created, err := f.CreateLobby(ctx)
	require.NoError(t, err)
	_, err = f.JoinLobby(ctx, alice, created.LobbyID, "alice")
	require.NoError(t, err)

	p, err = f.Self(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, "alice", p.Nickname)
}

func TestNicknameTruncatedOnJoin(t *testing.T) {
	f, _ := newTestFacade(t)
	ctx := context.Background()
	alice := uuid.New()

	created, err := f.CreateLobby(ctx)
	require.NoError(t, err)

	long := "abcdefghijklmnopqrstuvwxyz"
	info, err := f.JoinLobby(ctx, alice, created.LobbyID, long)
	require.NoError(t, err)
	require.Len(t, info.Players, 1)
	assert.Equal(t, long[:models.MaxNicknameLen], info.Players[0].Nickname)
}
