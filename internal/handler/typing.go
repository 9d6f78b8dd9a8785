package handler

import (
	"context"
	"errors"

	"github.com/pawmart/chatserver/internal/ierr"
	"github.com/pawmart/chatserver/internal/registry"
)

type TypingRequest struct {
	ChatId   string `json:"chatId"`
	IsTyping bool   `json:"isTyping"`
}

type TypingResponse struct {
	Success bool `json:"success"`
}

type TypingHandlerInterface interface {
	Handle(ctx context.Context, req TypingRequest) (TypingResponse, error)
}

type TypingHandler struct {
	registry registry.Registry
}

func NewTypingHandler(
	registry registry.Registry,
) *TypingHandler {
	return &TypingHandler{
		registry,
	}
}

// Handle broadcasts a purely ephemeral typing indicator to the room,
// excluding the originating socket. Nothing is persisted.
func (h *TypingHandler) Handle(ctx context.Context, req TypingRequest) (TypingResponse, error) {
	connection, ok := registry.ConnectionFromContext(ctx)
	if !ok {
		return TypingResponse{}, errors.New("connection not found in context")
	}

	if !h.registry.IsSubscribed(req.ChatId, connection.Id) {
		return TypingResponse{},
			ierr.New(ierr.ErrorCodePermissionDenied, errors.New("join the chat before sending typing events"))
	}

	h.registry.Broadcast(req.ChatId, EventUserTyping, UserTypingEvent{
		ChatId:   req.ChatId,
		UserId:   connection.Identity.Id,
		UserName: connection.Identity.DisplayName,
		IsTyping: req.IsTyping,
	}, connection.Id)

	return TypingResponse{
		Success: true,
	}, nil
}
