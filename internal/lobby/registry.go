package lobby

import (
	"context"
	"sync"
	"time"

	"github.com/coder/quartz"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/fwilhelm/connectk/internal/models"
)

// emptyLobbyGrace is how long a lobby with no players may linger in memory
// (e.g. created but never joined) before the sweeper destroys it.
const emptyLobbyGrace = 10 * time.Minute

// Registry is the process-wide table of live sessions, constructed once at
// startup and torn down at shutdown. It is the serialization point that
// guarantees exactly one Lobby instance per lobby id.
type Registry struct {
	mu      sync.Mutex
	lobbies map[uuid.UUID]*Lobby

	store  Store
	pub    Publisher
	logger *logrus.Logger
	clock  quartz.Clock
}

// NewRegistry creates an empty registry.
func NewRegistry(st Store, pub Publisher, logger *logrus.Logger, clock quartz.Clock) *Registry {
	return &Registry{
		lobbies: make(map[uuid.UUID]*Lobby),
		store:   st,
		pub:     pub,
		logger:  logger,
		clock:   clock,
	}
}

// Create persists a fresh lobby record with default settings and registers
// its in-memory session.
func (r *Registry) Create(ctx context.Context) (*Lobby, error) {
	id := uuid.New()
	settings := models.DefaultSettings()

	if err := r.store.SaveLobby(ctx, id, settings, uuid.Nil, string(PhaseOpen)); err != nil {
		return nil, err
	}

	l := New(id, settings, r.store, r.pub, r.logger, r.clock)
	l.OnEmpty = func(lobbyID uuid.UUID) {
		r.Destroy(context.Background(), lobbyID)
	}

	r.mu.Lock()
	r.lobbies[id] = l
	r.mu.Unlock()

	r.logger.WithField("lobby_id", id).Info("lobby created")
	return l, nil
}

// Get returns the live session for id. On a miss it consults the durable
// record: if the lobby still exists there (process restart), the session is
// rebuilt from it; otherwise ErrNotFound. Board and turn state do not
// survive a restart, so a recovered session always comes back open.
func (r *Registry) Get(ctx context.Context, id uuid.UUID) (*Lobby, error) {
	r.mu.Lock()
	if l, ok := r.lobbies[id]; ok {
		r.mu.Unlock()
		return l, nil
	}
	r.mu.Unlock()

	info, found, err := r.store.LoadLobby(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrNotFound
	}

	settings := models.Settings{
		Rows:       info.Rows,
		Cols:       info.Cols,
		Connect:    info.Connect,
		MaxPlayers: info.MaxPlayers,
	}
	l := New(id, settings, r.store, r.pub, r.logger, r.clock)
	l.restoreRoster(info.Players, info.Admin)
	l.OnEmpty = func(lobbyID uuid.UUID) {
		r.Destroy(context.Background(), lobbyID)
	}
	if info.State != string(PhaseOpen) {
		// The record says a game was running; that board is gone.
		if err := r.store.SaveLobby(ctx, id, settings, info.Admin, string(PhaseOpen)); err != nil {
			return nil, err
		}
	}

	r.mu.Lock()
	// Another command may have recovered the same lobby concurrently; the
	// registry map is the single source of truth for the live instance.
	if existing, ok := r.lobbies[id]; ok {
		r.mu.Unlock()
		return existing, nil
	}
	r.lobbies[id] = l
	r.mu.Unlock()

	r.logger.WithField("lobby_id", id).Info("lobby session restored from store")
	return l, nil
}

// Destroy removes the session from memory and deletes its durable record.
// Safe to call for ids that are already gone. Commands holding a session
// reference run to completion against that instance; later Gets fail with
// ErrNotFound.
func (r *Registry) Destroy(ctx context.Context, id uuid.UUID) {
	r.mu.Lock()
	_, existed := r.lobbies[id]
	delete(r.lobbies, id)
	r.mu.Unlock()

	if err := r.store.DeleteLobby(ctx, id); err != nil {
		r.logger.WithError(err).WithField("lobby_id", id).Warn("failed to delete lobby record")
	}
	if existed {
		r.logger.WithField("lobby_id", id).Info("lobby destroyed")
	}
}

// Lobbies returns a snapshot of the live sessions, for listing endpoints.
func (r *Registry) Lobbies() []*Lobby {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Lobby, 0, len(r.lobbies))
	for _, l := range r.lobbies {
		out = append(out, l)
	}
	return out
}

// Sweep tears down sessions whose durable record has expired, and empty
// sessions idle past the grace period. In-memory state never outlives the
// record TTL by more than one sweep interval.
func (r *Registry) Sweep(ctx context.Context) {
	r.mu.Lock()
	snapshot := make(map[uuid.UUID]*Lobby, len(r.lobbies))
	for id, l := range r.lobbies {
		snapshot[id] = l
	}
	r.mu.Unlock()

	now := r.clock.Now()
	for id, l := range snapshot {
		exists, err := r.store.Exists(ctx, id)
		if err != nil {
			r.logger.WithError(err).WithField("lobby_id", id).Warn("sweep: store check failed")
			continue
		}
		if !exists {
			r.mu.Lock()
			delete(r.lobbies, id)
			r.mu.Unlock()
			r.logger.WithField("lobby_id", id).Info("sweep: expired lobby removed")
			continue
		}
		if empty, lastActive := l.idleState(); empty && now.Sub(lastActive) > emptyLobbyGrace {
			r.Destroy(ctx, id)
		}
	}
}

// StartSweeper runs Sweep on the given interval until ctx is cancelled.
func (r *Registry) StartSweeper(ctx context.Context, interval time.Duration) {
	r.clock.TickerFunc(ctx, interval, func() error {
		r.Sweep(ctx)
		return nil
	}, "registry-sweep")
}
