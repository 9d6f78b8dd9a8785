package handler

import (
	"context"
	"errors"

	"github.com/pawmart/chatserver/internal/chat"
	"github.com/pawmart/chatserver/internal/ierr"
	"github.com/pawmart/chatserver/internal/registry"
	"github.com/pawmart/chatserver/internal/store"
)

type SendMessageRequest struct {
	ChatId      string `json:"chatId"`
	Content     string `json:"content"`
	MessageType string `json:"messageType,omitempty"`
	FileUrl     string `json:"fileUrl,omitempty"`
}

type SendMessageResponse struct {
	Message chat.Message `json:"message"`
}

type SendMessageHandlerInterface interface {
	Handle(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error)
}

type SendMessageHandler struct {
	validator *chat.SendValidator
	store     store.Engine
	registry  registry.Registry
	locks     *ChatLocker
}

func NewSendMessageHandler(
	validator *chat.SendValidator,
	store store.Engine,
	registry registry.Registry,
	locks *ChatLocker,
) *SendMessageHandler {
	return &SendMessageHandler{
		validator: validator,
		store:     store,
		registry:  registry,
		locks:     locks,
	}
}

func (h *SendMessageHandler) Handle(ctx context.Context, req SendMessageRequest) (SendMessageResponse, error) {
	connection, ok := registry.ConnectionFromContext(ctx)
	if !ok {
		return SendMessageResponse{}, errors.New("connection not found in context")
	}

	kind := chat.MessageKind(req.MessageType)
	if req.MessageType == "" {
		kind = chat.MessageKindText
	}

	err := h.validator.Validate(chat.SendInput{
		ChatId:  req.ChatId,
		Content: req.Content,
		Kind:    kind,
		FileRef: req.FileUrl,
	})
	if err != nil {
		return SendMessageResponse{}, err
	}

	session, err := h.store.GetSession(ctx, req.ChatId)
	if err != nil {
		return SendMessageResponse{}, mapStoreError(err)
	}

	if !session.IsActive {
		return SendMessageResponse{},
			ierr.New(ierr.ErrorCodeNotFound, errors.New("session is no longer active: "+req.ChatId))
	}

	if !session.HasParticipant(connection.Identity.Id) {
		return SendMessageResponse{},
			ierr.New(ierr.ErrorCodePermissionDenied, errors.New("identity is not a participant of this chat"))
	}

	// Persist and fan out under the chat's lock so the room sees events in
	// persistence order. A store failure aborts before any broadcast.
	h.locks.Lock(req.ChatId)
	defer h.locks.Unlock(req.ChatId)

	message, err := h.store.SaveMessage(ctx, store.SaveMessageRequest{
		ChatId:   req.ChatId,
		SenderId: connection.Identity.Id,
		Content:  req.Content,
		Kind:     kind,
		FileRef:  req.FileUrl,
	})
	if err != nil {
		return SendMessageResponse{}, mapStoreError(err)
	}

	err = h.store.AdvanceLastActivity(ctx, session.Id, message.Id, message.CreatedAt)
	if err != nil {
		return SendMessageResponse{}, mapStoreError(err)
	}

	h.registry.Broadcast(session.Id, EventNewMessage, NewMessageEvent{
		ChatId:  session.Id,
		Message: message,
	}, "")

	h.registry.NotifyParticipants(session.Participants[:], connection.Identity.Id,
		EventChatNotification, ChatNotificationEvent{
			ChatId: session.Id,
			Message: NotificationMessage{
				Id:      message.Id,
				Content: message.Content,
				Sender: NotificationSender{
					Id:   connection.Identity.Id,
					Name: connection.Identity.DisplayName,
				},
				CreatedAt: message.CreatedAt,
			},
		})

	return SendMessageResponse{
		Message: message,
	}, nil
}
