package chat

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/pawmart/chatserver/internal/ierr"
)

// MaxContentLength bounds a single message body. Matches the limit the
// marketplace frontend enforces.
const MaxContentLength = 4000

type SendInput struct {
	ChatId  string      `validate:"required"`
	Content string      `validate:"required,max=4000"`
	Kind    MessageKind `validate:"required,oneof=text image file"`
	FileRef string      `validate:"omitempty,max=2048"`
}

type SendValidator struct {
	validate *validator.Validate
}

func NewSendValidator() *SendValidator {
	return &SendValidator{
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (v *SendValidator) Validate(input SendInput) error {
	err := v.validate.Struct(input)
	if err != nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, err)
	}

	// Non-text messages carry their payload by reference.
	if input.Kind != MessageKindText && input.FileRef == "" {
		return ierr.New(ierr.ErrorCodeInvalidArgument,
			errors.New("fileRef is required for "+string(input.Kind)+" messages"))
	}

	return nil
}
