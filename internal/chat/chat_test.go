package chat

import (
	"testing"

	"github.com/pawmart/chatserver/internal/identity"
	"github.com/pawmart/chatserver/internal/ierr"
	"github.com/stretchr/testify/assert"
)

func TestPairKey(t *testing.T) {
	assert.Equal(t, PairKey("a", "b"), PairKey("b", "a"))
	assert.Equal(t, "a|b", PairKey("b", "a"))
}

func TestValidateNewSession(t *testing.T) {
	customer := identity.Identity{Id: "u1", Role: identity.RoleCustomer}
	shop := identity.Identity{Id: "s1", Role: identity.RoleShop}
	rescue := identity.Identity{Id: "r1", Role: identity.RoleRescue}

	t.Run("customer to shop", func(t *testing.T) {
		assert.NoError(t, ValidateNewSession(customer, shop, SessionKindUserShop))
	})

	t.Run("customer to rescue", func(t *testing.T) {
		assert.NoError(t, ValidateNewSession(customer, rescue, SessionKindUserRescue))
	})

	t.Run("kind inconsistent with counterpart role", func(t *testing.T) {
		err := ValidateNewSession(customer, rescue, SessionKindUserShop)
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, ierr.CodeOf(err))
	})

	t.Run("self chat", func(t *testing.T) {
		err := ValidateNewSession(customer, customer, SessionKindUserShop)
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, ierr.CodeOf(err))
	})

	t.Run("unknown kind", func(t *testing.T) {
		err := ValidateNewSession(customer, shop, SessionKind("group"))
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, ierr.CodeOf(err))
	})
}

func TestSendValidator(t *testing.T) {
	validator := NewSendValidator()

	t.Run("text message", func(t *testing.T) {
		assert.NoError(t, validator.Validate(SendInput{
			ChatId:  "chat-1",
			Content: "hello",
			Kind:    MessageKindText,
		}))
	})

	t.Run("empty content", func(t *testing.T) {
		err := validator.Validate(SendInput{ChatId: "chat-1", Kind: MessageKindText})
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, ierr.CodeOf(err))
	})

	t.Run("oversized content", func(t *testing.T) {
		content := make([]byte, MaxContentLength+1)
		for i := range content {
			content[i] = 'x'
		}

		err := validator.Validate(SendInput{ChatId: "chat-1", Content: string(content), Kind: MessageKindText})
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, ierr.CodeOf(err))
	})

	t.Run("image without fileRef", func(t *testing.T) {
		err := validator.Validate(SendInput{ChatId: "chat-1", Content: "photo", Kind: MessageKindImage})
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, ierr.CodeOf(err))
	})

	t.Run("image with fileRef", func(t *testing.T) {
		assert.NoError(t, validator.Validate(SendInput{
			ChatId:  "chat-1",
			Content: "photo",
			Kind:    MessageKindImage,
			FileRef: "https://cdn.example.com/p.jpg",
		}))
	})

	t.Run("unknown kind", func(t *testing.T) {
		err := validator.Validate(SendInput{ChatId: "chat-1", Content: "x", Kind: MessageKind("audio")})
		assert.Equal(t, ierr.ErrorCodeInvalidArgument, ierr.CodeOf(err))
	})
}
