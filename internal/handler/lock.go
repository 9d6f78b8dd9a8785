package handler

import "sync"

// ChatLocker serializes the persist-then-broadcast step per chat so events
// for one room go out in persistence-completion order while unrelated chats
// proceed concurrently. One instance is shared by every handler that both
// persists and broadcasts; a receipt and a send on the same chat take turns.
// Entries are reference counted and removed when idle.
type ChatLocker struct {
	mu    sync.Mutex
	locks map[string]*chatLock
}

type chatLock struct {
	mu   sync.Mutex
	refs int
}

func NewChatLocker() *ChatLocker {
	return &ChatLocker{
		locks: make(map[string]*chatLock),
	}
}

func (l *ChatLocker) Lock(chatId string) {
	l.mu.Lock()

	lock, ok := l.locks[chatId]
	if !ok {
		lock = &chatLock{}
		l.locks[chatId] = lock
	}
	lock.refs++

	l.mu.Unlock()

	lock.mu.Lock()
}

func (l *ChatLocker) Unlock(chatId string) {
	l.mu.Lock()

	lock, ok := l.locks[chatId]
	if !ok {
		l.mu.Unlock()

		panic("unlock of unknown chat lock: " + chatId)
	}

	lock.refs--
	if lock.refs == 0 {
		delete(l.locks, chatId)
	}

	l.mu.Unlock()

	lock.mu.Unlock()
}
