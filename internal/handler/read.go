package handler

import (
	"context"
	"errors"
	"time"

	"github.com/pawmart/chatserver/internal/ierr"
	"github.com/pawmart/chatserver/internal/registry"
	"github.com/pawmart/chatserver/internal/store"
)

type MarkAsReadRequest struct {
	ChatId     string   `json:"chatId"`
	MessageIds []string `json:"messageIds"`
}

type MarkAsReadResponse struct {
	ChatId     string   `json:"chatId"`
	MessageIds []string `json:"messageIds"`
}

type MarkAsReadHandlerInterface interface {
	Handle(ctx context.Context, req MarkAsReadRequest) (MarkAsReadResponse, error)
}

type MarkAsReadHandler struct {
	store    store.Engine
	registry registry.Registry
	locks    *ChatLocker
}

func NewMarkAsReadHandler(
	store store.Engine,
	registry registry.Registry,
	locks *ChatLocker,
) *MarkAsReadHandler {
	return &MarkAsReadHandler{
		store,
		registry,
		locks,
	}
}

// Handle marks the other participant's messages as read. Repeated calls are
// no-ops: a message keeps the readAt of the call that first marked it.
func (h *MarkAsReadHandler) Handle(ctx context.Context, req MarkAsReadRequest) (MarkAsReadResponse, error) {
	connection, ok := registry.ConnectionFromContext(ctx)
	if !ok {
		return MarkAsReadResponse{}, errors.New("connection not found in context")
	}

	if len(req.MessageIds) == 0 {
		return MarkAsReadResponse{},
			ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("messageIds cannot be empty"))
	}

	session, err := h.store.GetSession(ctx, req.ChatId)
	if err != nil {
		return MarkAsReadResponse{}, mapStoreError(err)
	}

	if !session.HasParticipant(connection.Identity.Id) {
		return MarkAsReadResponse{},
			ierr.New(ierr.ErrorCodePermissionDenied, errors.New("identity is not a participant of this chat"))
	}

	// Same lock as the send path: a receipt and a message on this chat reach
	// the room in the order their persistence completed.
	h.locks.Lock(session.Id)
	defer h.locks.Unlock(session.Id)

	eligible, err := h.store.MarkMessagesRead(ctx, session.Id, req.MessageIds, connection.Identity.Id, time.Now())
	if err != nil {
		return MarkAsReadResponse{}, mapStoreError(err)
	}

	if len(eligible) > 0 {
		h.registry.Broadcast(session.Id, EventMessagesRead, MessagesReadEvent{
			ChatId:     session.Id,
			MessageIds: eligible,
			ReadBy:     connection.Identity.Id,
		}, "")
	}

	return MarkAsReadResponse{
		ChatId:     session.Id,
		MessageIds: eligible,
	}, nil
}
