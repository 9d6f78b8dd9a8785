package rpc

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/pawmart/chatserver/internal/ierr"
	"github.com/stretchr/testify/assert"
)

func TestReplyExpected(t *testing.T) {
	assert.True(t, Request{Id: 1, Method: "send_message"}.ReplyExpected())

	// Id 0 is the reserved notification id, whether sent or omitted.
	assert.False(t, Request{Id: 0, Method: "typing"}.ReplyExpected())

	var decoded Request
	assert.NoError(t, json.Unmarshal([]byte(`{"method":"typing"}`), &decoded))
	assert.False(t, decoded.ReplyExpected())

	assert.False(t, NewNotification("new_message", nil).ReplyExpected())
}

func TestReplyWithErrorKeepsRequestId(t *testing.T) {
	request := Request{Id: 7, Method: "send_message"}

	response := request.ReplyWithError(ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("missing params")))
	assert.Equal(t, 7, response.RequestId)
	assert.True(t, response.IsFailure())
}
