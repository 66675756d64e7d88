// Package lobby holds the per-session game state machine and the registry of
// live sessions. A Lobby serializes all of its commands behind one mutex:
// validation, durable write, in-memory mutation and event publish run to
// completion before the next command on the same lobby begins. Different
// lobbies never contend with each other.
package lobby

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fwilhelm/connectk/internal/board"
	"github.com/fwilhelm/connectk/internal/events"
	"github.com/fwilhelm/connectk/internal/game"
	"github.com/fwilhelm/connectk/internal/models"
)

// Phase is the lobby state machine state. The values double as the wire
// strings stored durably and sent to clients.
type Phase string

const (
	PhaseOpen   Phase = "LOBBY"      // accepting joins, no board
	PhaseInGame Phase = "GAME_START" // board active, turns proceeding
	PhaseEnded  Phase = "GAME_END"   // board retained read-only until reset
)

// Store is the durable record behind a session. Commands write here first;
// in-memory state only changes after the write succeeded, so the cache never
// runs ahead of the record of truth.
type Store interface {
	SaveLobby(ctx context.Context, id uuid.UUID, settings models.Settings, admin uuid.UUID, state string) error
	AppendPlayer(ctx context.Context, id uuid.UUID, p models.Player) error
	RemovePlayer(ctx context.Context, id uuid.UUID, p models.Player) error
	DeleteLobby(ctx context.Context, id uuid.UUID) error
	Exists(ctx context.Context, id uuid.UUID) (bool, error)
	Touch(ctx context.Context, id uuid.UUID) error
	LoadLobby(ctx context.Context, id uuid.UUID) (*models.LobbyInfo, bool, error)
}

// Publisher fans an event out to the subscribers of its lobby. Publishing
// must not block command execution.
type Publisher interface {
	Publish(ev events.Event)
}

// Lobby is one independent game session: roster, admin, settings, phase and
// (while a game runs) the board. All mutation goes through its methods.
type Lobby struct {
	ID uuid.UUID

	mu         sync.Mutex
	settings   models.Settings
	adminUID   uuid.UUID
	roster     []models.Player
	phase      Phase
	currentUID uuid.UUID
	board      *board.Board
	lastActive time.Time

	store  Store
	pub    Publisher
	logger *logrus.Logger
	clock  quartz.Clock

	// OnEmpty fires after the last player leaves, so the registry can tear
	// the session down. Called outside the lobby lock.
	OnEmpty func(lobbyID uuid.UUID)
}

// New creates an open lobby with the given settings. The caller (registry)
// has already persisted the lobby record.
func New(id uuid.UUID, settings models.Settings, st Store, pub Publisher, logger *logrus.Logger, clock quartz.Clock) *Lobby {
	return &Lobby{
		ID:         id,
		settings:   settings,
		phase:      PhaseOpen,
		store:      st,
		pub:        pub,
		logger:     logger,
		clock:      clock,
		lastActive: clock.Now(),
	}
}

// Join adds p to the roster. The first joiner becomes admin. Allowed only
// while the lobby is open.
func (l *Lobby) Join(ctx context.Context, p models.Player) (*models.LobbyInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.phase != PhaseOpen {
		return nil, ErrInvalidState
	}
	if len(l.roster) >= l.settings.MaxPlayers {
		return nil, ErrLobbyFull
	}
	for _, member := range l.roster {
		if member.UID == p.UID {
			return nil, ErrAlreadyJoined
		}
	}

	admin := l.adminUID
	if len(l.roster) == 0 {
		admin = p.UID
	}

	// Durable writes first; a store failure leaves memory untouched.
	if admin != l.adminUID {
		if err := l.store.SaveLobby(ctx, l.ID, l.settings, admin, string(l.phase)); err != nil {
			return nil, err
		}
	}
	if err := l.store.AppendPlayer(ctx, l.ID, p); err != nil {
		return nil, err
	}

	l.adminUID = admin
	l.roster = append(l.roster, p)
	l.lastActive = l.clock.Now()

	info := l.snapshotLocked()
	l.pub.Publish(events.LobbyUpdate{
		LobbyID: l.ID,
		State:   events.StatePlayerJoin,
		Lobby:   info,
	})
	l.logger.WithFields(logrus.Fields{
		"lobby_id": l.ID,
		"uid":      p.UID,
		"nickname": p.Nickname,
	}).Info("player joined lobby")
	return info, nil
}

// Leave removes uid from the roster at their own request.
func (l *Lobby) Leave(ctx context.Context, uid uuid.UUID) error {
	l.mu.Lock()
	onEmpty, err := l.removeLocked(ctx, uid, events.StatePlayerLeave)
	l.mu.Unlock()
	if onEmpty != nil {
		onEmpty(l.ID)
	}
	return err
}

// Kick removes target from the roster. Admin only, and never against self.
func (l *Lobby) Kick(ctx context.Context, requester, target uuid.UUID) error {
	l.mu.Lock()
	if requester != l.adminUID || requester == target {
		l.mu.Unlock()
		return ErrUnauthorized
	}
	onEmpty, err := l.removeLocked(ctx, target, events.StatePlayerKick)
	l.mu.Unlock()
	if onEmpty != nil {
		onEmpty(l.ID)
	}
	return err
}

// removeLocked takes uid out of the roster, reassigning the admin role to the
// earliest-joined remaining member and, if the departing player was due to
// act, advancing the turn to their successor so the game never stalls.
// Assumes the lock is held. Returns the OnEmpty callback to run after unlock
// if the roster emptied.
func (l *Lobby) removeLocked(ctx context.Context, uid uuid.UUID, reason events.LobbyState) (func(uuid.UUID), error) {
	idx := -1
	for i, member := range l.roster {
		if member.UID == uid {
			idx = i
			break
		}
	}
	if idx == -1 {
		return nil, ErrNotMember
	}
	departing := l.roster[idx]

	// Successor must be computed against the pre-removal roster so the turn
	// passes to the player who would have acted next anyway.
	var successor *models.Player
	if l.phase == PhaseInGame && l.currentUID == uid && len(l.roster) > 1 {
		next := game.NextPlayer(l.roster, uid)
		successor = &next
	}

	admin := l.adminUID
	remaining := make([]models.Player, 0, len(l.roster)-1)
	remaining = append(remaining, l.roster[:idx]...)
	remaining = append(remaining, l.roster[idx+1:]...)
	if uid == l.adminUID {
		admin = uuid.Nil
		if len(remaining) > 0 {
			admin = remaining[0].UID
		}
	}

	if err := l.store.RemovePlayer(ctx, l.ID, departing); err != nil {
		return nil, err
	}
	if admin != l.adminUID && len(remaining) > 0 {
		if err := l.store.SaveLobby(ctx, l.ID, l.settings, admin, string(l.phase)); err != nil {
			return nil, err
		}
	}

	l.roster = remaining
	l.adminUID = admin
	l.lastActive = l.clock.Now()

	info := l.snapshotLocked()
	l.pub.Publish(events.LobbyUpdate{
		LobbyID: l.ID,
		State:   reason,
		Lobby:   info,
	})
	if successor != nil {
		l.currentUID = successor.UID
		l.pub.Publish(events.GameUpdate{
			LobbyID: l.ID,
			State:   events.StateTurn,
			Player:  successor,
		})
	}
	l.logger.WithFields(logrus.Fields{
		"lobby_id": l.ID,
		"uid":      uid,
		"reason":   reason,
	}).Info("player removed from lobby")

	if len(l.roster) == 0 {
		return l.OnEmpty, nil
	}
	return nil, nil
}

// UpdateSettings replaces the lobby settings. Admin only, and refused while
// a game is running so the live board's dimensions cannot desync.
func (l *Lobby) UpdateSettings(ctx context.Context, requester uuid.UUID, s models.Settings) (*models.LobbyInfo, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if requester != l.adminUID {
		return nil, ErrUnauthorized
	}
	if l.phase == PhaseInGame {
		return nil, ErrInvalidState
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSettings, err)
	}
	if s.MaxPlayers < len(l.roster) {
		return nil, fmt.Errorf("%w: maxPlayers below current roster size", ErrInvalidSettings)
	}

	if err := l.store.SaveLobby(ctx, l.ID, s, l.adminUID, string(l.phase)); err != nil {
		return nil, err
	}

	l.settings = s
	l.lastActive = l.clock.Now()

	info := l.snapshotLocked()
	l.pub.Publish(events.LobbyUpdate{
		LobbyID: l.ID,
		State:   events.StateSettingsUpdate,
		Lobby:   info,
	})
	return info, nil
}

// Start creates a fresh board from the current settings and hands the first
// turn to the earliest-joined player. Admin only.
func (l *Lobby) Start(ctx context.Context, requester uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if requester != l.adminUID {
		return ErrUnauthorized
	}
	if l.phase == PhaseInGame {
		return ErrAlreadyStarted
	}
	if len(l.roster) == 0 {
		return ErrInvalidState
	}

	if err := l.store.SaveLobby(ctx, l.ID, l.settings, l.adminUID, string(PhaseInGame)); err != nil {
		return err
	}

	l.board = board.New(l.settings.Rows, l.settings.Cols, l.settings.Connect)
	l.phase = PhaseInGame
	first := game.NextPlayer(l.roster, uuid.Nil)
	l.currentUID = first.UID
	l.lastActive = l.clock.Now()

	l.pub.Publish(events.LobbyUpdate{
		LobbyID: l.ID,
		State:   events.StateLobbyGameStart,
		Lobby:   l.snapshotLocked(),
	})
	l.pub.Publish(events.GameUpdate{
		LobbyID: l.ID,
		State:   events.StateTurn,
		Player:  &first,
	})
	l.logger.WithFields(logrus.Fields{
		"lobby_id": l.ID,
		"rows":     l.settings.Rows,
		"cols":     l.settings.Cols,
		"connect":  l.settings.Connect,
	}).Info("game started")
	return nil
}

// Place drops a piece for requester into col. Only the current player may
// act; a winning placement ends the game, otherwise the turn advances.
func (l *Lobby) Place(ctx context.Context, requester uuid.UUID, col int) (row int, won bool, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.phase != PhaseInGame {
		return 0, false, ErrInvalidState
	}
	if requester != l.currentUID {
		return 0, false, ErrOutOfTurn
	}

	var actor models.Player
	for _, member := range l.roster {
		if member.UID == requester {
			actor = member
			break
		}
	}

	// Refresh the durable record before mutating: placement counts as lobby
	// activity and must not outlive an unreachable store.
	if err := l.store.Touch(ctx, l.ID); err != nil {
		return 0, false, err
	}

	row, won, err = l.board.Place(actor, col)
	if err != nil {
		return 0, false, err
	}
	l.lastActive = l.clock.Now()

	l.pub.Publish(events.GameUpdate{
		LobbyID: l.ID,
		State:   events.StatePlace,
		Player:  &actor,
		Board:   l.board.Cells(),
	})

	if won {
		if err := l.store.SaveLobby(ctx, l.ID, l.settings, l.adminUID, string(PhaseEnded)); err != nil {
			l.logger.WithError(err).WithField("lobby_id", l.ID).Warn("failed to persist game end")
		}
		l.phase = PhaseEnded
		l.currentUID = uuid.Nil
		l.pub.Publish(events.GameUpdate{
			LobbyID: l.ID,
			State:   events.StateGameEnd,
			Player:  &actor,
		})
		l.logger.WithFields(logrus.Fields{
			"lobby_id": l.ID,
			"winner":   actor.UID,
		}).Info("game won")
		return row, true, nil
	}

	next := game.NextPlayer(l.roster, requester)
	l.currentUID = next.UID
	l.pub.Publish(events.GameUpdate{
		LobbyID: l.ID,
		State:   events.StateTurn,
		Player:  &next,
	})
	return row, false, nil
}

// Stop discards the board and returns the lobby to open. Admin only, allowed
// from any phase; stopping an already-open lobby is a no-op ack.
func (l *Lobby) Stop(ctx context.Context, requester uuid.UUID) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if requester != l.adminUID {
		return ErrUnauthorized
	}

	if err := l.store.SaveLobby(ctx, l.ID, l.settings, l.adminUID, string(PhaseOpen)); err != nil {
		return err
	}

	l.board = nil
	l.phase = PhaseOpen
	l.currentUID = uuid.Nil
	l.lastActive = l.clock.Now()

	l.pub.Publish(events.GameUpdate{
		LobbyID: l.ID,
		State:   events.StateLobby,
	})
	return nil
}

// Chat relays a sanitized free-text message from a roster member.
func (l *Lobby) Chat(requester uuid.UUID, msg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, member := range l.roster {
		if member.UID == requester {
			l.pub.Publish(events.ChatMessage{
				LobbyID: l.ID,
				Player:  member,
				Message: events.SanitizeChat(msg),
			})
			return nil
		}
	}
	return ErrNotMember
}

// Info returns a point-in-time snapshot of the lobby.
func (l *Lobby) Info() *models.LobbyInfo {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// BoardCells returns the current board contents. Fails while no board exists.
func (l *Lobby) BoardCells() ([][]models.Player, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.board == nil {
		return nil, ErrInvalidState
	}
	return l.board.Cells(), nil
}

// Phase reports the current state machine state.
func (l *Lobby) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// CurrentPlayer reports whose turn it is; the zero UUID outside a game.
func (l *Lobby) CurrentPlayer() uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentUID
}

// Admin reports the current admin uid.
func (l *Lobby) Admin() uuid.UUID {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.adminUID
}

// IsMember reports whether uid is on the roster.
func (l *Lobby) IsMember(uid uuid.UUID) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, member := range l.roster {
		if member.UID == uid {
			return true
		}
	}
	return false
}

// idleState reports roster emptiness and last command activity, for the
// registry sweeper.
func (l *Lobby) idleState() (empty bool, lastActive time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.roster) == 0, l.lastActive
}

// restoreRoster seeds the in-memory roster/admin from the durable record
// after a process restart. Board and turn state are ephemeral and start over.
func (l *Lobby) restoreRoster(players []models.Player, admin uuid.UUID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.roster = append([]models.Player(nil), players...)
	l.adminUID = admin
}

// snapshotLocked assembles a LobbyInfo. Assumes the lock is held.
func (l *Lobby) snapshotLocked() *models.LobbyInfo {
	players := make([]models.Player, len(l.roster))
	copy(players, l.roster)
	return &models.LobbyInfo{
		LobbyID:     l.ID,
		Rows:        l.settings.Rows,
		Cols:        l.settings.Cols,
		Connect:     l.settings.Connect,
		MaxPlayers:  l.settings.MaxPlayers,
		Admin:       l.adminUID,
		State:       string(l.phase),
		PlayerCount: len(players),
		Players:     players,
	}
}
