package handler

import (
	"context"
	"errors"

	"github.com/pawmart/chatserver/internal/chat"
	"github.com/pawmart/chatserver/internal/ierr"
	"github.com/pawmart/chatserver/internal/registry"
	"github.com/pawmart/chatserver/internal/store"
)

const (
	defaultHistoryPageSize = 50
	maxHistoryPageSize     = 100
)

type HistoryRequest struct {
	ChatId   string `json:"chatId"`
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"pageSize,omitempty"`
}

type HistoryResponse struct {
	ChatId   string         `json:"chatId"`
	Page     int            `json:"page"`
	PageSize int            `json:"pageSize"`
	Messages []chat.Message `json:"messages"`
}

type HistoryHandlerInterface interface {
	Handle(ctx context.Context, req HistoryRequest) (HistoryResponse, error)
}

type HistoryHandler struct {
	store    store.Engine
	registry registry.Registry
}

func NewHistoryHandler(
	store store.Engine,
	registry registry.Registry,
) *HistoryHandler {
	return &HistoryHandler{
		store,
		registry,
	}
}

// Handle replays one page of the chat's durable log, oldest first. Reading
// requires a live room membership, which in turn required the identity to be
// a participant.
func (h *HistoryHandler) Handle(ctx context.Context, req HistoryRequest) (HistoryResponse, error) {
	connection, ok := registry.ConnectionFromContext(ctx)
	if !ok {
		return HistoryResponse{}, errors.New("connection not found in context")
	}

	if !h.registry.IsSubscribed(req.ChatId, connection.Id) {
		return HistoryResponse{},
			ierr.New(ierr.ErrorCodePermissionDenied, errors.New("join the chat before reading history"))
	}

	page := req.Page
	if page < 1 {
		page = 1
	}

	pageSize := req.PageSize
	if pageSize < 1 {
		pageSize = defaultHistoryPageSize
	}
	if pageSize > maxHistoryPageSize {
		pageSize = maxHistoryPageSize
	}

	messages, err := h.store.ListMessages(ctx, req.ChatId, page, pageSize)
	if err != nil {
		return HistoryResponse{}, mapStoreError(err)
	}

	return HistoryResponse{
		ChatId:   req.ChatId,
		Page:     page,
		PageSize: pageSize,
		Messages: messages,
	}, nil
}
