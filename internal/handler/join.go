package handler

import (
	"context"
	"errors"
	"time"

	"github.com/pawmart/chatserver/internal/ierr"
	"github.com/pawmart/chatserver/internal/registry"
	"github.com/pawmart/chatserver/internal/store"
)

type JoinChatRequest struct {
	ChatId string `json:"chatId"`
}

type JoinChatResponse struct {
	ChatId       string    `json:"chatId"`
	Participants [2]string `json:"participants"`
	Timestamp    time.Time `json:"timestamp"`
}

type JoinChatHandlerInterface interface {
	Handle(ctx context.Context, req JoinChatRequest) (JoinChatResponse, error)
}

type JoinChatHandler struct {
	store    store.Engine
	registry registry.Registry
}

func NewJoinChatHandler(
	store store.Engine,
	registry registry.Registry,
) *JoinChatHandler {
	return &JoinChatHandler{
		store,
		registry,
	}
}

func (h *JoinChatHandler) Handle(ctx context.Context, req JoinChatRequest) (JoinChatResponse, error) {
	connection, ok := registry.ConnectionFromContext(ctx)
	if !ok {
		return JoinChatResponse{}, errors.New("connection not found in context")
	}

	session, err := h.store.GetSession(ctx, req.ChatId)
	if err != nil {
		return JoinChatResponse{}, mapStoreError(err)
	}

	if !session.IsActive {
		return JoinChatResponse{},
			ierr.New(ierr.ErrorCodeNotFound, errors.New("session is no longer active: "+req.ChatId))
	}

	if !session.HasParticipant(connection.Identity.Id) {
		return JoinChatResponse{},
			ierr.New(ierr.ErrorCodePermissionDenied, errors.New("identity is not a participant of this chat"))
	}

	h.registry.Subscribe(session.Id, connection.Id)

	return JoinChatResponse{
		ChatId:       session.Id,
		Participants: session.Participants,
		Timestamp:    time.Now(),
	}, nil
}
