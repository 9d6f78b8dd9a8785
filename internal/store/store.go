package store

import (
	"context"
	"time"

	"github.com/pawmart/chatserver/internal/chat"
)

// Engine is the durable session-store contract consumed by the handlers.
//
// Implementations must enforce at most one active session per unordered
// participant pair per kind: CreateSession returns an AlreadyExists error
// when the constraint is violated, and callers retry the lookup.
type Engine interface {
	Setup(ctx context.Context) error

	CreateSession(ctx context.Context, session chat.Session) error
	FindActiveSession(ctx context.Context, pairKey string, kind chat.SessionKind) (chat.Session, error)
	GetSession(ctx context.Context, chatId string) (chat.Session, error)
	ListSessions(ctx context.Context, identityId string) ([]chat.Session, error)

	// SaveMessage persists a new message with a server-assigned creation time
	// and a per-chat monotonically increasing sequence number.
	SaveMessage(ctx context.Context, request SaveMessageRequest) (chat.Message, error)

	// AdvanceLastActivity moves the session's last-message pointer forward.
	// It never moves lastActivityAt backward; a stale timestamp is a no-op.
	AdvanceLastActivity(ctx context.Context, chatId string, messageId string, at time.Time) error

	// ListMessages returns one page of a chat's log, oldest first. Pages are
	// 1-based and pagination is stable across calls.
	ListMessages(ctx context.Context, chatId string, page int, pageSize int) ([]chat.Message, error)

	// MarkMessagesRead marks the given messages of the chat as read by
	// readerId, skipping the reader's own messages and leaving readAt
	// untouched on messages already read. It returns the ids eligible for a
	// read receipt (the requested ids that belong to the chat and were sent
	// by the other participant).
	MarkMessagesRead(ctx context.Context, chatId string, messageIds []string, readerId string, at time.Time) ([]string, error)
}

type SaveMessageRequest struct {
	ChatId   string
	SenderId string
	Content  string
	Kind     chat.MessageKind
	FileRef  string
}
