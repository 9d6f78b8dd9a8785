package handler

import (
	"context"
	"sync"
	"testing"

	"github.com/pawmart/chatserver/internal/chat"
	"github.com/pawmart/chatserver/internal/ierr"
	"github.com/stretchr/testify/assert"
)

func TestSendMessageDeliversFullAndReducedEvents(t *testing.T) {
	engine := newMemoryEngine()
	reg := newTestRegistry()
	handler := NewSendMessageHandler(chat.NewSendValidator(), engine, reg, NewChatLocker())

	session := newTestSession(t, engine, testCustomer, testShop, chat.SessionKindUserShop)

	sender, senderCtx := admit(reg, testCustomer)
	viewing, _ := admit(reg, testShop)
	elsewhere, _ := admit(reg, testShop)

	reg.Subscribe(session.Id, sender.Id)
	reg.Subscribe(session.Id, viewing.Id)
	// elsewhere is connected but not viewing this room.

	response, err := handler.Handle(senderCtx, SendMessageRequest{
		ChatId:  session.Id,
		Content: "hello",
	})
	assert.NoError(t, err)
	assert.Equal(t, chat.MessageKindText, response.Message.Kind)
	assert.Equal(t, testCustomer.Id, response.Message.SenderId)
	assert.False(t, response.Message.IsRead)

	// The sender gets the room event but never a notification for their own
	// message.
	assert.Equal(t, []string{EventNewMessage}, eventMethods(t, sender))

	// A participant viewing the room gets both paths; clients deduplicate by
	// message id.
	viewingEvents := drainEvents(t, viewing)
	assert.Len(t, viewingEvents, 2)
	assert.Equal(t, EventNewMessage, viewingEvents[0].Method)
	assert.Equal(t, EventChatNotification, viewingEvents[1].Method)

	roomEvent := decodeEvent[NewMessageEvent](t, viewingEvents[0])
	assert.Equal(t, response.Message.Id, roomEvent.Message.Id)

	notification := decodeEvent[ChatNotificationEvent](t, viewingEvents[1])
	assert.Equal(t, response.Message.Id, notification.Message.Id)
	assert.Equal(t, testCustomer.Id, notification.Message.Sender.Id)
	assert.Equal(t, testCustomer.DisplayName, notification.Message.Sender.Name)

	// A participant elsewhere still hears about it on the personal channel.
	assert.Equal(t, []string{EventChatNotification}, eventMethods(t, elsewhere))

	// The denormalized pointer tracks the new message.
	updated, err := engine.GetSession(context.Background(), session.Id)
	assert.NoError(t, err)
	assert.Equal(t, response.Message.Id, updated.LastMessageId)
	assert.Equal(t, response.Message.CreatedAt, updated.LastActivityAt)
}

func TestSendMessageRejectsNonParticipant(t *testing.T) {
	engine := newMemoryEngine()
	reg := newTestRegistry()
	handler := NewSendMessageHandler(chat.NewSendValidator(), engine, reg, NewChatLocker())

	session := newTestSession(t, engine, testCustomer, testShop, chat.SessionKindUserShop)

	member, _ := admit(reg, testShop)
	reg.Subscribe(session.Id, member.Id)

	_, strangerCtx := admit(reg, testStranger)

	_, err := handler.Handle(strangerCtx, SendMessageRequest{
		ChatId:  session.Id,
		Content: "let me in",
	})
	assert.Equal(t, ierr.ErrorCodePermissionDenied, ierr.CodeOf(err))

	// No stored message, no broadcast.
	messages, listErr := engine.ListMessages(context.Background(), session.Id, 1, 10)
	assert.NoError(t, listErr)
	assert.Empty(t, messages)
	assert.Empty(t, eventMethods(t, member))
}

func TestSendMessageValidation(t *testing.T) {
	engine := newMemoryEngine()
	reg := newTestRegistry()
	handler := NewSendMessageHandler(chat.NewSendValidator(), engine, reg, NewChatLocker())

	session := newTestSession(t, engine, testCustomer, testShop, chat.SessionKindUserShop)
	_, senderCtx := admit(reg, testCustomer)

	t.Run("empty content", func(t *testing.T) {
		_, err := handler.Handle(senderCtx, SendMessageRequest{ChatId: session.Id})
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, ierr.CodeOf(err))
	})

	t.Run("file without fileUrl", func(t *testing.T) {
		_, err := handler.Handle(senderCtx, SendMessageRequest{
			ChatId:      session.Id,
			Content:     "contract",
			MessageType: "file",
		})
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, ierr.CodeOf(err))
	})

	t.Run("unknown chat", func(t *testing.T) {
		_, err := handler.Handle(senderCtx, SendMessageRequest{ChatId: "missing", Content: "hi"})
		assert.Equal(t, ierr.ErrorCodeNotFound, ierr.CodeOf(err))
	})
}

func TestSendMessageStoreFailureBroadcastsNothing(t *testing.T) {
	engine := newMemoryEngine()
	reg := newTestRegistry()
	handler := NewSendMessageHandler(chat.NewSendValidator(), brokenStore{engine}, reg, NewChatLocker())

	session := newTestSession(t, engine, testCustomer, testShop, chat.SessionKindUserShop)

	sender, senderCtx := admit(reg, testCustomer)
	recipient, _ := admit(reg, testShop)
	reg.Subscribe(session.Id, sender.Id)
	reg.Subscribe(session.Id, recipient.Id)

	_, err := handler.Handle(senderCtx, SendMessageRequest{
		ChatId:  session.Id,
		Content: "hello",
	})
	assert.Equal(t, ierr.ErrorCodeUnavailable, ierr.CodeOf(err))

	assert.Empty(t, eventMethods(t, sender))
	assert.Empty(t, eventMethods(t, recipient))
}

func TestConcurrentSendsKeepLastActivityMonotonic(t *testing.T) {
	engine := newMemoryEngine()
	reg := newTestRegistry()
	handler := NewSendMessageHandler(chat.NewSendValidator(), engine, reg, NewChatLocker())

	session := newTestSession(t, engine, testCustomer, testShop, chat.SessionKindUserShop)

	_, customerCtx := admit(reg, testCustomer)
	_, shopCtx := admit(reg, testShop)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(ctx context.Context) {
			defer wg.Done()

			_, err := handler.Handle(ctx, SendMessageRequest{ChatId: session.Id, Content: "ping"})
			assert.NoError(t, err)
		}([]context.Context{customerCtx, shopCtx}[i%2])
	}
	wg.Wait()

	messages, err := engine.ListMessages(context.Background(), session.Id, 1, 100)
	assert.NoError(t, err)
	assert.Len(t, messages, 20)

	updated, err := engine.GetSession(context.Background(), session.Id)
	assert.NoError(t, err)

	last := messages[len(messages)-1]
	assert.Equal(t, last.Seq, uint64(20))
	assert.False(t, updated.LastActivityAt.Before(last.CreatedAt))
}
