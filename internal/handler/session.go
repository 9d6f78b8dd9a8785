package handler

import (
	"context"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pawmart/chatserver/internal/chat"
	"github.com/pawmart/chatserver/internal/identity"
	"github.com/pawmart/chatserver/internal/ierr"
	"github.com/pawmart/chatserver/internal/store"
	"go.uber.org/zap"
)

type CreateSessionRequest struct {
	Counterpart identity.Identity   `json:"counterpart"`
	Kind        chat.SessionKind    `json:"kind"`
	Related     *chat.RelatedEntity `json:"relatedEntity,omitempty"`
}

type CreateSessionResponse struct {
	Session chat.Session `json:"session"`
	Created bool         `json:"created"`
}

type ListSessionsResponse struct {
	Sessions []chat.Session `json:"sessions"`
}

type SessionHandlerInterface interface {
	FindOrCreate(ctx context.Context, initiator identity.Identity, req CreateSessionRequest) (CreateSessionResponse, error)
	List(ctx context.Context, identityId string) (ListSessionsResponse, error)
}

type SessionHandler struct {
	logger *zap.Logger
	store  store.Engine
}

func NewSessionHandler(
	logger *zap.Logger,
	store store.Engine,
) *SessionHandler {
	return &SessionHandler{
		logger,
		store,
	}
}

// FindOrCreate returns the one active session for the unordered pair and
// kind, creating it on first contact. The store's uniqueness constraint
// resolves creation races: a loser gets AlreadyExists and re-reads the
// winner's session.
func (h *SessionHandler) FindOrCreate(ctx context.Context, initiator identity.Identity, req CreateSessionRequest) (CreateSessionResponse, error) {
	err := chat.ValidateNewSession(initiator, req.Counterpart, req.Kind)
	if err != nil {
		return CreateSessionResponse{}, err
	}

	pairKey := chat.PairKey(initiator.Id, req.Counterpart.Id)

	existing, err := h.store.FindActiveSession(ctx, pairKey, req.Kind)
	if err == nil {
		return CreateSessionResponse{Session: existing, Created: false}, nil
	}
	if ierr.CodeOf(err) != ierr.ErrorCodeNotFound {
		return CreateSessionResponse{}, mapStoreError(err)
	}

	now := time.Now()
	session := chat.Session{
		Id:             gonanoid.Must(),
		Participants:   [2]string{initiator.Id, req.Counterpart.Id},
		Kind:           req.Kind,
		LastActivityAt: now,
		IsActive:       true,
		Related:        req.Related,
		CreatedAt:      now,
	}

	err = h.store.CreateSession(ctx, session)
	if err == nil {
		return CreateSessionResponse{Session: session, Created: true}, nil
	}

	if ierr.CodeOf(err) != ierr.ErrorCodeAlreadyExists {
		return CreateSessionResponse{}, mapStoreError(err)
	}

	// Lost the creation race; the winner's session is the session.
	h.logger.Debug("session creation raced, re-reading winner",
		zap.String("pairKey", pairKey),
		zap.String("kind", string(req.Kind)))

	existing, err = h.store.FindActiveSession(ctx, pairKey, req.Kind)
	if err != nil {
		return CreateSessionResponse{}, mapStoreError(err)
	}

	return CreateSessionResponse{Session: existing, Created: false}, nil
}

func (h *SessionHandler) List(ctx context.Context, identityId string) (ListSessionsResponse, error) {
	sessions, err := h.store.ListSessions(ctx, identityId)
	if err != nil {
		return ListSessionsResponse{}, mapStoreError(err)
	}

	return ListSessionsResponse{
		Sessions: sessions,
	}, nil
}
