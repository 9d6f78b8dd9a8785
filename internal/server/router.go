package server

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/pawmart/chatserver/internal/handler"
	"github.com/pawmart/chatserver/internal/ierr"
	"github.com/pawmart/chatserver/internal/rpc"
	"go.uber.org/zap"
)

type Router struct {
	logger *zap.Logger

	heartbeatHandler  handler.HeartbeatHandlerInterface
	joinChatHandler   handler.JoinChatHandlerInterface
	leaveChatHandler  handler.LeaveChatHandlerInterface
	sendHandler       handler.SendMessageHandlerInterface
	markAsReadHandler handler.MarkAsReadHandlerInterface
	typingHandler     handler.TypingHandlerInterface
	historyHandler    handler.HistoryHandlerInterface
}

func NewRouter(
	logger *zap.Logger,
	heartbeatHandler handler.HeartbeatHandlerInterface,
	joinChatHandler handler.JoinChatHandlerInterface,
	leaveChatHandler handler.LeaveChatHandlerInterface,
	sendHandler handler.SendMessageHandlerInterface,
	markAsReadHandler handler.MarkAsReadHandlerInterface,
	typingHandler handler.TypingHandlerInterface,
	historyHandler handler.HistoryHandlerInterface,
) *Router {
	return &Router{
		logger,
		heartbeatHandler,
		joinChatHandler,
		leaveChatHandler,
		sendHandler,
		markAsReadHandler,
		typingHandler,
		historyHandler,
	}
}

// RouteRequest dispatches one inbound request and builds its reply. Errors
// are always replied, even for id-less notifications, so a failed operation
// never disappears silently; successful notifications get no reply.
func (r *Router) RouteRequest(ctx context.Context, request rpc.Request) *rpc.Response {
	result, err := r.handle(ctx, request)
	if err != nil {
		response := request.ReplyWithError(r.mapError(err))

		return &response
	}

	if !request.ReplyExpected() {
		return nil
	}

	rawJson, err := json.Marshal(result)
	if err != nil {
		response := request.ReplyWithError(r.mapError(err))

		return &response
	}

	payload := json.RawMessage(rawJson)
	response := request.Reply(&payload)

	return &response
}

func (r *Router) handle(ctx context.Context, request rpc.Request) (any, error) {
	switch request.Method {
	case "heartbeat":
		return r.heartbeatHandler.Handle(), nil
	case "join_chat":
		var req handler.JoinChatRequest
		if err := decodeParams(request.Params, &req); err != nil {
			return nil, err
		}

		return r.joinChatHandler.Handle(ctx, req)
	case "leave_chat":
		var req handler.LeaveChatRequest
		if err := decodeParams(request.Params, &req); err != nil {
			return nil, err
		}

		return r.leaveChatHandler.Handle(ctx, req)
	case "send_message":
		var req handler.SendMessageRequest
		if err := decodeParams(request.Params, &req); err != nil {
			return nil, err
		}

		return r.sendHandler.Handle(ctx, req)
	case "mark_as_read":
		var req handler.MarkAsReadRequest
		if err := decodeParams(request.Params, &req); err != nil {
			return nil, err
		}

		return r.markAsReadHandler.Handle(ctx, req)
	case "typing":
		var req handler.TypingRequest
		if err := decodeParams(request.Params, &req); err != nil {
			return nil, err
		}

		return r.typingHandler.Handle(ctx, req)
	case "history":
		var req handler.HistoryRequest
		if err := decodeParams(request.Params, &req); err != nil {
			return nil, err
		}

		return r.historyHandler.Handle(ctx, req)
	default:
		return nil, ierr.New(ierr.ErrorCodeNotFound, errors.New("method not found: "+request.Method))
	}
}

func (r *Router) mapError(err error) ierr.Error {
	var handlerErr ierr.Error
	if errors.As(err, &handlerErr) {
		return handlerErr
	}

	r.logger.Error("error in rpc handler", zap.Error(err))

	return ierr.New(ierr.ErrorCodeInternal, errors.New("internal error"))
}

func decodeParams(params *json.RawMessage, v any) error {
	if params == nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("missing params"))
	}

	if err := json.Unmarshal(*params, v); err != nil {
		return ierr.New(ierr.ErrorCodeInvalidArgument, errors.New("invalid params: "+err.Error()))
	}

	return nil
}
