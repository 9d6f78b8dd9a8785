package handler

import (
	"time"

	"github.com/pawmart/chatserver/internal/chat"
)

// Server-pushed event methods. Room events carry full payloads; the personal
// channel carries a reduced notification, so a participant who is viewing the
// room receives both and clients deduplicate by message id.
const (
	EventNewMessage       = "new_message"
	EventMessagesRead     = "messages_read"
	EventUserTyping       = "user_typing"
	EventChatNotification = "chat_notification"
)

type NewMessageEvent struct {
	ChatId  string       `json:"chatId"`
	Message chat.Message `json:"message"`
}

type MessagesReadEvent struct {
	ChatId     string   `json:"chatId"`
	MessageIds []string `json:"messageIds"`
	ReadBy     string   `json:"readBy"`
}

type UserTypingEvent struct {
	ChatId   string `json:"chatId"`
	UserId   string `json:"userId"`
	UserName string `json:"userName"`
	IsTyping bool   `json:"isTyping"`
}

type NotificationSender struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type NotificationMessage struct {
	Id        string             `json:"id"`
	Content   string             `json:"content"`
	Sender    NotificationSender `json:"sender"`
	CreatedAt time.Time          `json:"createdAt"`
}

type ChatNotificationEvent struct {
	ChatId  string              `json:"chatId"`
	Message NotificationMessage `json:"message"`
}
