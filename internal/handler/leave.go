package handler

import (
	"context"
	"errors"

	"github.com/pawmart/chatserver/internal/registry"
)

type LeaveChatRequest struct {
	ChatId string `json:"chatId"`
}

type LeaveChatResponse struct {
	Success bool `json:"success"`
}

type LeaveChatHandlerInterface interface {
	Handle(ctx context.Context, req LeaveChatRequest) (LeaveChatResponse, error)
}

type LeaveChatHandler struct {
	registry registry.Registry
}

func NewLeaveChatHandler(
	registry registry.Registry,
) *LeaveChatHandler {
	return &LeaveChatHandler{
		registry,
	}
}

// Handle is idempotent: leaving a room the connection never joined is a no-op.
func (h *LeaveChatHandler) Handle(ctx context.Context, req LeaveChatRequest) (LeaveChatResponse, error) {
	connection, ok := registry.ConnectionFromContext(ctx)
	if !ok {
		return LeaveChatResponse{}, errors.New("connection not found in context")
	}

	h.registry.Unsubscribe(req.ChatId, connection.Id)

	return LeaveChatResponse{
		Success: true,
	}, nil
}
