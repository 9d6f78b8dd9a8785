package registry

import (
	"context"

	"github.com/pawmart/chatserver/internal/identity"
)

// Connection is the runtime record of one websocket. It lives exclusively in
// the registry between admission and disconnect. Send carries pre-encoded
// frames; the write pump is the only reader.
type Connection struct {
	Id       string
	Identity identity.Identity
	Send     chan []byte
}

type contextKey string

const connectionKey contextKey = "connection"

func WithConnection(ctx context.Context, conn *Connection) context.Context {
	return context.WithValue(ctx, connectionKey, conn)
}

func ConnectionFromContext(ctx context.Context) (*Connection, bool) {
	conn, ok := ctx.Value(connectionKey).(*Connection)

	return conn, ok
}
