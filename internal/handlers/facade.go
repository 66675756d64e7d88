// Package handlers is the transport layer: the command facade the websocket
// and HTTP endpoints call into, plus the endpoints themselves. The facade
// encodes the authorization and ordering rules of the command surface; all
// game semantics live in the lobby package.
package handlers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fwilhelm/connectk/internal/lobby"
	"github.com/fwilhelm/connectk/internal/models"
	"github.com/fwilhelm/connectk/internal/store"
)

// Sessions is the identity collaborator: who the caller is and which lobby
// they are currently associated with.
type Sessions interface {
	SaveSession(ctx context.Context, uid uuid.UUID, nickname string, lobbyID uuid.UUID) error
	Session(ctx context.Context, uid uuid.UUID) (nickname string, lobbyID uuid.UUID, err error)
	ClearSessionLobby(ctx context.Context, uid uuid.UUID) error
}

// Facade exposes the command surface to transports. Each command validates,
// resolves the caller's lobby, and delegates to the session.
type Facade struct {
	Registry *lobby.Registry
	Sessions Sessions
	Logger   *logrus.Logger
}

// NewFacade wires the command facade.
func NewFacade(reg *lobby.Registry, sessions Sessions, logger *logrus.Logger) *Facade {
	return &Facade{Registry: reg, Sessions: sessions, Logger: logger}
}

// currentLobby resolves the caller's lobby association to a live session.
func (f *Facade) currentLobby(ctx context.Context, uid uuid.UUID) (*lobby.Lobby, error) {
	_, lobbyID, err := f.Sessions.Session(ctx, uid)
	if err != nil {
		if errors.Is(err, store.ErrNoSession) {
			return nil, lobby.ErrNotFound
		}
		return nil, err
	}
	if lobbyID == uuid.Nil {
		return nil, lobby.ErrNotFound
	}
	return f.Registry.Get(ctx, lobbyID)
}

// CreateLobby makes a new lobby with default settings. The creator still has
// to join it to get a seat.
func (f *Facade) CreateLobby(ctx context.Context) (*models.LobbyInfo, error) {
	l, err := f.Registry.Create(ctx)
	if err != nil {
		return nil, err
	}
	return l.Info(), nil
}

// JoinLobby seats the caller in lobbyID and points their session at it.
func (f *Facade) JoinLobby(ctx context.Context, uid, lobbyID uuid.UUID, nickname string) (*models.LobbyInfo, error) {
	l, err := f.Registry.Get(ctx, lobbyID)
	if err != nil {
		return nil, err
	}
	p := models.NewPlayer(uid, nickname)
	info, err := l.Join(ctx, p)
	if err != nil {
		return nil, err
	}
	if err := f.Sessions.SaveSession(ctx, uid, p.Nickname, lobbyID); err != nil {
		return nil, err
	}
	return info, nil
}

// LeaveLobby removes the caller from their current lobby.
func (f *Facade) LeaveLobby(ctx context.Context, uid uuid.UUID) error {
	l, err := f.currentLobby(ctx, uid)
	if err != nil {
		return err
	}
	if err := l.Leave(ctx, uid); err != nil {
		return err
	}
	return f.Sessions.ClearSessionLobby(ctx, uid)
}

// KickPlayer removes target from the caller's lobby. Admin only.
func (f *Facade) KickPlayer(ctx context.Context, uid, target uuid.UUID) error {
	l, err := f.currentLobby(ctx, uid)
	if err != nil {
		return err
	}
	if err := l.Kick(ctx, uid, target); err != nil {
		return err
	}
	if err := f.Sessions.ClearSessionLobby(ctx, target); err != nil {
		// The kick already took effect; a stale association only costs the
		// target a NotFound on their next command.
		f.Logger.WithError(err).WithField("uid", target).Warn("failed to clear kicked player session")
	}
	return nil
}

// UpdateSettings replaces the lobby settings. Admin only, not mid-game.
func (f *Facade) UpdateSettings(ctx context.Context, uid uuid.UUID, s models.Settings) (*models.LobbyInfo, error) {
	l, err := f.currentLobby(ctx, uid)
	if err != nil {
		return nil, err
	}
	return l.UpdateSettings(ctx, uid, s)
}

// StartGame starts a game in the caller's lobby. Admin only.
func (f *Facade) StartGame(ctx context.Context, uid uuid.UUID) error {
	l, err := f.currentLobby(ctx, uid)
	if err != nil {
		return err
	}
	return l.Start(ctx, uid)
}

// StopGame discards the running game. Admin only, idempotent.
func (f *Facade) StopGame(ctx context.Context, uid uuid.UUID) error {
	l, err := f.currentLobby(ctx, uid)
	if err != nil {
		return err
	}
	return l.Stop(ctx, uid)
}

// PlacePiece drops a piece into col for the caller.
func (f *Facade) PlacePiece(ctx context.Context, uid uuid.UUID, col int) (row int, won bool, err error) {
	l, err := f.currentLobby(ctx, uid)
	if err != nil {
		return 0, false, err
	}
	return l.Place(ctx, uid, col)
}

// WriteChat relays a chat message to the caller's lobby.
func (f *Facade) WriteChat(ctx context.Context, uid uuid.UUID, msg string) error {
	l, err := f.currentLobby(ctx, uid)
	if err != nil {
		return err
	}
	return l.Chat(uid, msg)
}

// LobbyInfo returns a snapshot of the caller's lobby.
func (f *Facade) LobbyInfo(ctx context.Context, uid uuid.UUID) (*models.LobbyInfo, error) {
	l, err := f.currentLobby(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !l.IsMember(uid) {
		return nil, lobby.ErrNotMember
	}
	return l.Info(), nil
}

// Board returns the caller's lobby board contents.
func (f *Facade) Board(ctx context.Context, uid uuid.UUID) ([][]models.Player, error) {
	l, err := f.currentLobby(ctx, uid)
	if err != nil {
		return nil, err
	}
	if !l.IsMember(uid) {
		return nil, lobby.ErrNotMember
	}
	return l.BoardCells()
}

// Self returns the caller's identity as their session knows it.
func (f *Facade) Self(ctx context.Context, uid uuid.UUID) (models.Player, error) {
	nickname, _, err := f.Sessions.Session(ctx, uid)
	if err != nil {
		if errors.Is(err, store.ErrNoSession) {
			return models.Player{UID: uid}, nil
		}
		return models.Player{}, err
	}
	return models.Player{UID: uid, Nickname: nickname}, nil
}

// CurrentLobbyID reports which lobby the caller's session points at, the
// zero UUID if none. Used by the websocket layer to restore a subscription
// on reconnect.
func (f *Facade) CurrentLobbyID(ctx context.Context, uid uuid.UUID) uuid.UUID {
	_, lobbyID, err := f.Sessions.Session(ctx, uid)
	if err != nil {
		return uuid.Nil
	}
	return lobbyID
}
