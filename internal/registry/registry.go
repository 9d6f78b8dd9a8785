package registry

import (
	"encoding/json"
	"sync"

	"github.com/pawmart/chatserver/internal/rpc"
	"go.uber.org/zap"
)

// PersonalRoom names the per-identity delivery channel every connection is
// subscribed to on admission, independent of any chat room.
func PersonalRoom(identityId string) string {
	return "user:" + identityId
}

// Registry tracks live connections and their room subscriptions and fans
// server events out to them.
type Registry interface {
	Admit(connection *Connection)
	Subscribe(roomId string, connectionId string)
	Unsubscribe(roomId string, connectionId string)
	IsSubscribed(roomId string, connectionId string) bool
	Disconnect(connectionId string)

	// Broadcast delivers a notification to every connection subscribed to
	// the room, best effort, at most once per connection. except skips one
	// connection id (typing events exclude the originating socket).
	Broadcast(roomId string, method string, params any, except string)

	// NotifyParticipants delivers a notification to the personal room of
	// every listed identity other than excludeIdentityId.
	NotifyParticipants(identityIds []string, excludeIdentityId string, method string, params any)

	// Deliver queues a pre-encoded frame for one connection. Sends race with
	// disconnect, so delivery goes through the registry lock; a frame for a
	// gone or backpressured connection is dropped.
	Deliver(connectionId string, frame []byte) bool
}

type InMemoryRegistry struct {
	logger *zap.Logger
	mu     sync.RWMutex

	connections       map[string]*Connection
	connectionsByRoom map[string]map[string]struct{}
	roomsByConnection map[string]map[string]struct{}
}

func NewInMemoryRegistry(
	logger *zap.Logger,
) *InMemoryRegistry {
	return &InMemoryRegistry{
		logger:            logger,
		connections:       make(map[string]*Connection),
		connectionsByRoom: make(map[string]map[string]struct{}),
		roomsByConnection: make(map[string]map[string]struct{}),
	}
}

func (r *InMemoryRegistry) Admit(connection *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.connections[connection.Id] = connection
	r.roomsByConnection[connection.Id] = make(map[string]struct{})

	r.subscribeLocked(PersonalRoom(connection.Identity.Id), connection.Id)
}

func (r *InMemoryRegistry) Subscribe(roomId string, connectionId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.connections[connectionId]; !ok {
		return
	}

	r.subscribeLocked(roomId, connectionId)
}

func (r *InMemoryRegistry) subscribeLocked(roomId string, connectionId string) {
	if _, ok := r.connectionsByRoom[roomId]; !ok {
		r.connectionsByRoom[roomId] = make(map[string]struct{})
	}

	r.connectionsByRoom[roomId][connectionId] = struct{}{}
	r.roomsByConnection[connectionId][roomId] = struct{}{}
}

// Unsubscribe is idempotent: removing a non-member is a no-op.
func (r *InMemoryRegistry) Unsubscribe(roomId string, connectionId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	connectionRooms, ok := r.roomsByConnection[connectionId]
	if ok {
		delete(connectionRooms, roomId)
	}

	roomConnections, ok := r.connectionsByRoom[roomId]
	if !ok {
		return
	}

	delete(roomConnections, connectionId)
	if len(roomConnections) == 0 {
		delete(r.connectionsByRoom, roomId)
	}
}

func (r *InMemoryRegistry) IsSubscribed(roomId string, connectionId string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectionRooms, ok := r.roomsByConnection[connectionId]
	if !ok {
		return false
	}

	_, ok = connectionRooms[roomId]

	return ok
}

func (r *InMemoryRegistry) Disconnect(connectionId string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.disconnectLocked(connectionId)
}

// IMPORTANT: It must be called only when a write lock is already held.
func (r *InMemoryRegistry) disconnectLocked(connectionId string) {
	connection, ok := r.connections[connectionId]
	if !ok {
		return
	}

	for roomId := range r.roomsByConnection[connectionId] {
		roomConnections, ok := r.connectionsByRoom[roomId]
		if !ok {
			continue
		}

		delete(roomConnections, connectionId)
		if len(roomConnections) == 0 {
			delete(r.connectionsByRoom, roomId)
		}
	}

	delete(r.roomsByConnection, connectionId)
	delete(r.connections, connectionId)
	close(connection.Send)
}

func (r *InMemoryRegistry) Broadcast(roomId string, method string, params any, except string) {
	frame, err := encodeNotification(method, params)
	if err != nil {
		r.logger.Error("failed to encode notification",
			zap.String("method", method),
			zap.Error(err))

		return
	}

	r.mu.RLock()

	connectionIds, ok := r.connectionsByRoom[roomId]
	if !ok {
		r.mu.RUnlock()

		return
	}

	connections := make([]*Connection, 0, len(connectionIds))
	for connectionId := range connectionIds {
		if connectionId == except {
			continue
		}
		if connection, ok := r.connections[connectionId]; ok {
			connections = append(connections, connection)
		}
	}

	var staleConnectionIds []string

	for _, connection := range connections {
		select {
		case connection.Send <- frame:
		default:
			r.logger.Warn("connection send buffer is full, closing connection",
				zap.String("connectionId", connection.Id))

			staleConnectionIds = append(staleConnectionIds, connection.Id)
		}
	}

	r.mu.RUnlock()

	if len(staleConnectionIds) == 0 {
		return
	}

	r.mu.Lock()

	for _, connectionId := range staleConnectionIds {
		r.disconnectLocked(connectionId)
	}

	r.mu.Unlock()
}

func (r *InMemoryRegistry) NotifyParticipants(identityIds []string, excludeIdentityId string, method string, params any) {
	for _, identityId := range identityIds {
		if identityId == excludeIdentityId {
			continue
		}

		r.Broadcast(PersonalRoom(identityId), method, params, "")
	}
}

func (r *InMemoryRegistry) Deliver(connectionId string, frame []byte) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connection, ok := r.connections[connectionId]
	if !ok {
		return false
	}

	select {
	case connection.Send <- frame:
		return true
	default:
		r.logger.Warn("connection send buffer is full, dropping frame",
			zap.String("connectionId", connectionId))

		return false
	}
}

func encodeNotification(method string, params any) ([]byte, error) {
	rawParams, err := json.Marshal(params)
	if err != nil {
		return nil, err
	}

	payload := json.RawMessage(rawParams)

	return json.Marshal(rpc.NewNotification(method, &payload))
}
