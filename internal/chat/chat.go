package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/pawmart/chatserver/internal/identity"
	"github.com/pawmart/chatserver/internal/ierr"
)

type SessionKind string

const (
	SessionKindUserShop   SessionKind = "user_shop"
	SessionKindUserRescue SessionKind = "user_rescue"
)

// CounterpartRole is the role the non-initiating participant must hold for a
// session of this kind.
func (k SessionKind) CounterpartRole() (identity.Role, bool) {
	switch k {
	case SessionKindUserShop:
		return identity.RoleShop, true
	case SessionKindUserRescue:
		return identity.RoleRescue, true
	}

	return "", false
}

type MessageKind string

const (
	MessageKindText  MessageKind = "text"
	MessageKindImage MessageKind = "image"
	MessageKindFile  MessageKind = "file"
)

func (k MessageKind) Valid() bool {
	switch k {
	case MessageKindText, MessageKindImage, MessageKindFile:
		return true
	}

	return false
}

type RelatedEntityKind string

const (
	RelatedEntityKindPet     RelatedEntityKind = "pet"
	RelatedEntityKindProduct RelatedEntityKind = "product"
)

type RelatedEntity struct {
	Kind RelatedEntityKind `json:"kind" bson:"kind"`
	Id   string            `json:"id" bson:"id"`
}

// Session is the durable two-party conversation record. Participants are
// fixed at creation; only the last-message pointer and isActive ever change.
type Session struct {
	Id             string         `json:"id" bson:"_id"`
	Participants   [2]string      `json:"participants" bson:"participants"`
	Kind           SessionKind    `json:"kind" bson:"kind"`
	LastMessageId  string         `json:"lastMessageId,omitempty" bson:"lastMessageId,omitempty"`
	LastActivityAt time.Time      `json:"lastActivityAt" bson:"lastActivityAt"`
	IsActive       bool           `json:"isActive" bson:"isActive"`
	Related        *RelatedEntity `json:"relatedEntity,omitempty" bson:"relatedEntity,omitempty"`
	CreatedAt      time.Time      `json:"createdAt" bson:"createdAt"`
}

func (s Session) HasParticipant(identityId string) bool {
	return s.Participants[0] == identityId || s.Participants[1] == identityId
}

// Counterpart returns the other participant of the session.
func (s Session) Counterpart(identityId string) string {
	if s.Participants[0] == identityId {
		return s.Participants[1]
	}

	return s.Participants[0]
}

// PairKey builds the unordered-pair lookup key used by the store's
// uniqueness constraint: at most one active session per pair per kind.
func PairKey(a, b string) string {
	if a > b {
		a, b = b, a
	}

	return a + "|" + b
}

type Message struct {
	Id        string      `json:"id" bson:"_id"`
	ChatId    string      `json:"chatId" bson:"chatId"`
	SenderId  string      `json:"senderId" bson:"senderId"`
	Content   string      `json:"content" bson:"content"`
	Kind      MessageKind `json:"kind" bson:"kind"`
	FileRef   string      `json:"fileRef,omitempty" bson:"fileRef,omitempty"`
	IsRead    bool        `json:"isRead" bson:"isRead"`
	ReadAt    *time.Time  `json:"readAt,omitempty" bson:"readAt,omitempty"`
	Seq       uint64      `json:"seq" bson:"seq"`
	CreatedAt time.Time   `json:"createdAt" bson:"createdAt"`
}

// ValidateNewSession checks the immutable invariants of a session about to be
// created: two distinct participants and a kind consistent with the role of
// the non-initiating participant.
func ValidateNewSession(initiator, counterpart identity.Identity, kind SessionKind) error {
	if initiator.Id == counterpart.Id {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("cannot open a chat with yourself"))
	}

	requiredRole, ok := kind.CounterpartRole()
	if !ok {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("unknown session kind: "+string(kind)))
	}

	if counterpart.Role != requiredRole {
		return ierr.New(ierr.ErrorCodeInvalidArgument,
			errors.New("session kind "+string(kind)+" requires counterpart role "+string(requiredRole)))
	}

	if strings.TrimSpace(initiator.Id) == "" || strings.TrimSpace(counterpart.Id) == "" {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("participant ids cannot be empty"))
	}

	return nil
}
