package events

import (
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ErrNoLobby is returned when a connection tries to subscribe without being
// associated with any lobby.
var ErrNoLobby = errors.New("subscriber is not in a lobby")

// subscriberBuffer is the per-subscriber channel depth. A subscriber that
// falls this far behind starts losing events; the websocket layer resyncs
// slow clients with a snapshot query instead of blocking publishers.
const subscriberBuffer = 32

// Subscription is one connection's registration for a single lobby's events.
// Events arrive on C in publish order. Close the subscription when the
// connection goes away.
type Subscription struct {
	LobbyID uuid.UUID
	C       chan Event

	b    *Broadcaster
	once sync.Once
}

// Close deregisters the subscription and closes C.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.b.unsubscribe(s)
	})
}

// Broadcaster fans events out to the subscribers of the event's lobby, and
// only those. Publish never blocks on a slow subscriber: delivery into a full
// buffer is dropped and logged, mirroring how lobby connections write to
// their out-channels.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[uuid.UUID]map[*Subscription]struct{}
	logger *logrus.Logger
}

// NewBroadcaster creates an empty Broadcaster.
func NewBroadcaster(logger *logrus.Logger) *Broadcaster {
	return &Broadcaster{
		subs:   make(map[uuid.UUID]map[*Subscription]struct{}),
		logger: logger,
	}
}

// Subscribe registers for the given lobby's events. Subscribing without a
// lobby association is refused with ErrNoLobby.
func (b *Broadcaster) Subscribe(lobbyID uuid.UUID) (*Subscription, error) {
	if lobbyID == uuid.Nil {
		return nil, ErrNoLobby
	}
	sub := &Subscription{
		LobbyID: lobbyID,
		C:       make(chan Event, subscriberBuffer),
		b:       b,
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[lobbyID]; !ok {
		b.subs[lobbyID] = make(map[*Subscription]struct{})
	}
	b.subs[lobbyID][sub] = struct{}{}
	return sub, nil
}

func (b *Broadcaster) unsubscribe(sub *Subscription) {
	b.mu.Lock()
	if set, ok := b.subs[sub.LobbyID]; ok {
		delete(set, sub)
		if len(set) == 0 {
			delete(b.subs, sub.LobbyID)
		}
	}
	b.mu.Unlock()
	close(sub.C)
}

// Publish delivers ev to every subscriber of ev's lobby. Events published for
// the same lobby under that lobby's command lock arrive at each subscriber in
// publish order.
func (b *Broadcaster) Publish(ev Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub := range b.subs[ev.Scope()] {
		select {
		case sub.C <- ev:
		default:
			if b.logger != nil {
				b.logger.WithField("lobby_id", ev.Scope()).Warn("subscriber buffer full, dropping event")
			}
		}
	}
}

// SubscriberCount reports how many subscriptions a lobby currently has.
func (b *Broadcaster) SubscriberCount(lobbyID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[lobbyID])
}
