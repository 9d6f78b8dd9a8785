package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/pawmart/chatserver/internal/chat"
	"github.com/pawmart/chatserver/internal/handler"
	"github.com/pawmart/chatserver/internal/identity"
	"github.com/pawmart/chatserver/internal/registry"
	"github.com/pawmart/chatserver/internal/server"
	"github.com/pawmart/chatserver/internal/store"
	"github.com/pawmart/chatserver/internal/store/memory"
	"github.com/pawmart/chatserver/internal/store/mongodb"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.uber.org/zap"
)

type App struct {
	logger          *zap.Logger
	settings        Settings
	engine          store.Engine
	websocketServer *server.WebSocketServer
	restServer      *server.RESTServer
}

func NewApp(logger *zap.Logger, settings Settings, engine store.Engine) *App {
	originChecker := server.NewOriginChecker(splitOrigins(settings.AllowedOrigins))
	websocketUpgrader := &websocket.Upgrader{
		ReadBufferSize:    1024,
		WriteBufferSize:   1024,
		CheckOrigin:       originChecker.Check,
		EnableCompression: true,
	}

	verifier := identity.NewJWTVerifier(settings.JWTSecret)
	connectionRegistry := registry.NewInMemoryRegistry(logger)
	sendValidator := chat.NewSendValidator()

	chatLocks := handler.NewChatLocker()

	heartbeatHandler := handler.NewHeartbeatHandler()
	joinChatHandler := handler.NewJoinChatHandler(engine, connectionRegistry)
	leaveChatHandler := handler.NewLeaveChatHandler(connectionRegistry)
	sendMessageHandler := handler.NewSendMessageHandler(sendValidator, engine, connectionRegistry, chatLocks)
	markAsReadHandler := handler.NewMarkAsReadHandler(engine, connectionRegistry, chatLocks)
	typingHandler := handler.NewTypingHandler(connectionRegistry)
	historyHandler := handler.NewHistoryHandler(engine, connectionRegistry)
	sessionHandler := handler.NewSessionHandler(logger, engine)

	router := server.NewRouter(
		logger,
		heartbeatHandler,
		joinChatHandler,
		leaveChatHandler,
		sendMessageHandler,
		markAsReadHandler,
		typingHandler,
		historyHandler,
	)

	websocketServer := server.NewWebSocketServer(
		logger,
		websocketUpgrader,
		verifier,
		connectionRegistry,
		router,
		settings.SendBufferSize,
	)
	restServer := server.NewRESTServer(
		logger,
		verifier,
		sessionHandler,
	)

	return &App{
		logger,
		settings,
		engine,
		websocketServer,
		restServer,
	}
}

func (a *App) setup(ctx context.Context) error {
	err := a.engine.Setup(ctx)
	if err != nil {
		return fmt.Errorf("store setup: %w", err)
	}

	a.startHttpServer(ctx)

	return nil
}

func (a *App) startHttpServer(ctx context.Context) {
	notifyCtx, notifyCtxCancel := signal.NotifyContext(ctx, syscall.SIGTERM, syscall.SIGINT)
	defer notifyCtxCancel()

	address := fmt.Sprintf("0.0.0.0:%d", a.settings.Port)

	router := mux.NewRouter().
		PathPrefix(a.settings.BasePath).
		Subrouter()

	a.websocketServer.Register(router)
	a.restServer.Register(router)

	httpServer := &http.Server{
		Addr:    address,
		Handler: router,
	}

	a.logger.Info("starting http server",
		zap.String("address", address))

	go func() {
		err := httpServer.ListenAndServe()

		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Fatal("failed to start http server",
				zap.Error(err))
		}
	}()

	<-notifyCtx.Done()

	a.logger.Info("stopping http server")

	shutdownCtx, shutdownCtxCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCtxCancel()

	err := httpServer.Shutdown(shutdownCtx)
	if err != nil {
		a.logger.Fatal("http server shutdown failed",
			zap.Error(err))
	}

	a.logger.Info("http server stopped")
}

func buildStoreEngine(logger *zap.Logger, settings Settings) (store.Engine, error) {
	if settings.MongoDBURI == "" {
		logger.Warn("MONGODB_URI not set, chat history will not survive restarts")

		return memory.NewEngine(), nil
	}

	client, err := mongo.Connect(options.Client().ApplyURI(settings.MongoDBURI))
	if err != nil {
		return nil, err
	}

	return mongodb.NewEngine(client), nil
}

func splitOrigins(origins string) []string {
	if origins == "" {
		return nil
	}

	return strings.Split(origins, ",")
}

func main() {
	ctx := context.Background()

	var settings Settings
	_, err := env.UnmarshalFromEnviron(&settings)
	if err != nil {
		panic(err)
	}

	logger, err := buildZapLogger(settings.LogEncoding)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	engine, err := buildStoreEngine(logger, settings)
	if err != nil {
		logger.Fatal("failed to build store engine", zap.Error(err))
	}

	app := NewApp(logger, settings, engine)

	err = app.setup(ctx)
	if err != nil {
		logger.Fatal("failed to setup", zap.Error(err))
	}
}
