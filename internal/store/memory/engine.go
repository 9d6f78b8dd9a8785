package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pawmart/chatserver/internal/chat"
	"github.com/pawmart/chatserver/internal/ierr"
	"github.com/pawmart/chatserver/internal/store"
)

// Engine is an in-process store used in development mode and in tests. It
// enforces the same constraints as the mongodb engine: one active session
// per (pair, kind), per-chat monotone sequence numbers, and a last-activity
// pointer that never regresses.
type Engine struct {
	mu sync.Mutex

	sessions map[string]chat.Session
	active   map[string]string // pairKey+"/"+kind -> session id
	messages map[string][]chat.Message
	seqs     map[string]uint64
}

func NewEngine() *Engine {
	return &Engine{
		sessions: make(map[string]chat.Session),
		active:   make(map[string]string),
		messages: make(map[string][]chat.Message),
		seqs:     make(map[string]uint64),
	}
}

func (e *Engine) Setup(ctx context.Context) error {
	return nil
}

func activeKey(pairKey string, kind chat.SessionKind) string {
	return pairKey + "/" + string(kind)
}

func (e *Engine) CreateSession(ctx context.Context, session chat.Session) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key := activeKey(chat.PairKey(session.Participants[0], session.Participants[1]), session.Kind)
	if _, ok := e.active[key]; ok && session.IsActive {
		return ierr.New(ierr.ErrorCodeAlreadyExists, errors.New("active session already exists for pair"))
	}

	e.sessions[session.Id] = session
	if session.IsActive {
		e.active[key] = session.Id
	}

	return nil
}

func (e *Engine) FindActiveSession(ctx context.Context, pairKey string, kind chat.SessionKind) (chat.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	id, ok := e.active[activeKey(pairKey, kind)]
	if !ok {
		return chat.Session{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("no active session for pair"))
	}

	return e.sessions[id], nil
}

func (e *Engine) GetSession(ctx context.Context, chatId string) (chat.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions[chatId]
	if !ok {
		return chat.Session{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("session not found: "+chatId))
	}

	return session, nil
}

func (e *Engine) ListSessions(ctx context.Context, identityId string) ([]chat.Session, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	var sessions []chat.Session
	for _, session := range e.sessions {
		if session.IsActive && session.HasParticipant(identityId) {
			sessions = append(sessions, session)
		}
	}

	return sessions, nil
}

func (e *Engine) SaveMessage(ctx context.Context, request store.SaveMessageRequest) (chat.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.sessions[request.ChatId]; !ok {
		return chat.Message{}, ierr.New(ierr.ErrorCodeNotFound, errors.New("session not found: "+request.ChatId))
	}

	e.seqs[request.ChatId]++

	message := chat.Message{
		Id:        gonanoid.Must(),
		ChatId:    request.ChatId,
		SenderId:  request.SenderId,
		Content:   request.Content,
		Kind:      request.Kind,
		FileRef:   request.FileRef,
		Seq:       e.seqs[request.ChatId],
		CreatedAt: time.Now(),
	}

	e.messages[request.ChatId] = append(e.messages[request.ChatId], message)

	return message, nil
}

func (e *Engine) AdvanceLastActivity(ctx context.Context, chatId string, messageId string, at time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, ok := e.sessions[chatId]
	if !ok {
		return ierr.New(ierr.ErrorCodeNotFound, errors.New("session not found: "+chatId))
	}

	if session.LastActivityAt.After(at) {
		return nil
	}

	session.LastMessageId = messageId
	session.LastActivityAt = at
	e.sessions[chatId] = session

	return nil
}

func (e *Engine) ListMessages(ctx context.Context, chatId string, page int, pageSize int) ([]chat.Message, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	log := e.messages[chatId]

	start := (page - 1) * pageSize
	if start >= len(log) {
		return nil, nil
	}

	end := start + pageSize
	if end > len(log) {
		end = len(log)
	}

	messages := make([]chat.Message, end-start)
	copy(messages, log[start:end])

	return messages, nil
}

func (e *Engine) MarkMessagesRead(ctx context.Context, chatId string, messageIds []string, readerId string, at time.Time) ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	requested := make(map[string]struct{}, len(messageIds))
	for _, id := range messageIds {
		requested[id] = struct{}{}
	}

	var eligible []string

	log := e.messages[chatId]
	for i := range log {
		if _, ok := requested[log[i].Id]; !ok {
			continue
		}
		if log[i].SenderId == readerId {
			continue
		}

		eligible = append(eligible, log[i].Id)

		if !log[i].IsRead {
			readAt := at
			log[i].IsRead = true
			log[i].ReadAt = &readAt
		}
	}

	return eligible, nil
}
