package handler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pawmart/chatserver/internal/chat"
	"github.com/pawmart/chatserver/internal/identity"
	"github.com/pawmart/chatserver/internal/registry"
	"github.com/pawmart/chatserver/internal/rpc"
	"github.com/pawmart/chatserver/internal/store"
	"github.com/pawmart/chatserver/internal/store/memory"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

var (
	testCustomer = identity.Identity{Id: "u1", DisplayName: "Ada", Role: identity.RoleCustomer}
	testShop     = identity.Identity{Id: "s1", DisplayName: "Paws & Co", Role: identity.RoleShop}
	testStranger = identity.Identity{Id: "x1", DisplayName: "Mallory", Role: identity.RoleCustomer}
)

func newTestSession(t *testing.T, engine store.Engine, a, b identity.Identity, kind chat.SessionKind) chat.Session {
	t.Helper()

	now := time.Now()
	session := chat.Session{
		Id:             gonanoid.Must(),
		Participants:   [2]string{a.Id, b.Id},
		Kind:           kind,
		LastActivityAt: now,
		IsActive:       true,
		CreatedAt:      now,
	}
	assert.NoError(t, engine.CreateSession(context.Background(), session))

	return session
}

func admit(reg registry.Registry, id identity.Identity) (*registry.Connection, context.Context) {
	connection := &registry.Connection{
		Id:       gonanoid.Must(),
		Identity: id,
		Send:     make(chan []byte, 16),
	}
	reg.Admit(connection)

	return connection, registry.WithConnection(context.Background(), connection)
}

func drainEvents(t *testing.T, conn *registry.Connection) []rpc.Request {
	t.Helper()

	var events []rpc.Request
	for {
		select {
		case frame := <-conn.Send:
			var request rpc.Request
			assert.NoError(t, json.Unmarshal(frame, &request))
			events = append(events, request)
		default:
			return events
		}
	}
}

func eventMethods(t *testing.T, conn *registry.Connection) []string {
	t.Helper()

	events := drainEvents(t, conn)
	methods := make([]string, len(events))
	for i, event := range events {
		methods[i] = event.Method
	}

	return methods
}

func decodeEvent[T any](t *testing.T, event rpc.Request) T {
	t.Helper()

	var payload T
	assert.NotNil(t, event.Params)
	assert.NoError(t, json.Unmarshal(*event.Params, &payload))

	return payload
}

// brokenStore simulates a durable-store outage on writes.
type brokenStore struct {
	store.Engine
}

func (s brokenStore) SaveMessage(ctx context.Context, request store.SaveMessageRequest) (chat.Message, error) {
	return chat.Message{}, errors.New("connection reset by peer")
}

// stalledReadStore parks MarkMessagesRead between entry and release so a test
// can interleave other traffic while receipt persistence is in flight.
type stalledReadStore struct {
	store.Engine
	entered chan struct{}
	release chan struct{}
}

func (s *stalledReadStore) MarkMessagesRead(ctx context.Context, chatId string, messageIds []string, readerId string, at time.Time) ([]string, error) {
	close(s.entered)
	<-s.release

	return s.Engine.MarkMessagesRead(ctx, chatId, messageIds, readerId, at)
}

func newTestRegistry() *registry.InMemoryRegistry {
	return registry.NewInMemoryRegistry(zap.NewNop())
}

func newMemoryEngine() *memory.Engine {
	return memory.NewEngine()
}
