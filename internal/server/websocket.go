package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pawmart/chatserver/internal/identity"
	"github.com/pawmart/chatserver/internal/registry"
	"github.com/pawmart/chatserver/internal/rpc"
	"go.uber.org/zap"
)

const maxFrameSize = 64 * 1024

type WebSocketServer struct {
	logger   *zap.Logger
	upgrader *websocket.Upgrader
	verifier identity.Verifier
	registry registry.Registry
	router   *Router

	sendBufferSize int
}

func NewWebSocketServer(
	logger *zap.Logger,
	upgrader *websocket.Upgrader,
	verifier identity.Verifier,
	registry registry.Registry,
	router *Router,
	sendBufferSize int,
) *WebSocketServer {
	return &WebSocketServer{
		logger:         logger,
		upgrader:       upgrader,
		verifier:       verifier,
		registry:       registry,
		router:         router,
		sendBufferSize: sendBufferSize,
	}
}

func (s *WebSocketServer) Register(router *mux.Router) {
	router.HandleFunc("/websocket", s.handle)
}

// handle admits a connection and runs its read loop. Admission happens
// before the upgrade: a bad credential is refused with 401 and no socket is
// ever established.
func (s *WebSocketServer) handle(w http.ResponseWriter, r *http.Request) {
	id, err := s.verifier.Verify(credentialToken(r))
	if err != nil {
		s.logger.Info("websocket admission refused", zap.Error(err))
		http.Error(w, "invalid credential", http.StatusUnauthorized)

		return
	}

	wsConn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", zap.Error(err))

		return
	}

	wsConn.SetReadLimit(maxFrameSize)

	connection := &registry.Connection{
		Id:       gonanoid.Must(),
		Identity: id,
		Send:     make(chan []byte, s.sendBufferSize),
	}

	logger := s.logger.With(
		zap.String("connectionId", connection.Id),
		zap.String("identityId", id.Id))

	s.registry.Admit(connection)
	logger.Info("websocket connection established")

	go s.writePump(wsConn, connection)
	s.readPump(wsConn, connection, logger)

	// Disconnect synchronously removes the connection from every room. An
	// in-flight send past the persistence step still completes and
	// broadcasts; only this socket stops receiving.
	s.registry.Disconnect(connection.Id)
	logger.Info("websocket connection closed")
}

func (s *WebSocketServer) readPump(wsConn *websocket.Conn, connection *registry.Connection, logger *zap.Logger) {
	// The context is detached from the HTTP request on purpose: a request
	// already dispatched keeps running to completion when the socket dies.
	ctx := registry.WithConnection(context.Background(), connection)

	for {
		var request rpc.Request
		err := wsConn.ReadJSON(&request)
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", zap.Error(err))
			}

			return
		}

		// Task per event: a handler blocked on the store does not stall
		// this connection's other requests or any other connection.
		go s.dispatch(ctx, connection, request, logger)
	}
}

func (s *WebSocketServer) dispatch(ctx context.Context, connection *registry.Connection, request rpc.Request, logger *zap.Logger) {
	response := s.router.RouteRequest(ctx, request)
	if response == nil {
		return
	}

	frame, err := json.Marshal(response)
	if err != nil {
		logger.Error("failed to encode response", zap.Error(err))

		return
	}

	s.registry.Deliver(connection.Id, frame)
}

func (s *WebSocketServer) writePump(wsConn *websocket.Conn, connection *registry.Connection) {
	defer wsConn.Close()

	for {
		frame, ok := <-connection.Send
		if !ok {
			wsConn.WriteMessage(websocket.CloseMessage, []byte{})

			return
		}

		err := wsConn.WriteMessage(websocket.TextMessage, frame)
		if err != nil {
			return
		}
	}
}

func credentialToken(r *http.Request) string {
	token := r.URL.Query().Get("token")
	if token != "" {
		return token
	}

	return strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
}
