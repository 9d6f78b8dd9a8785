package server

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/pawmart/chatserver/internal/handler"
	"github.com/pawmart/chatserver/internal/identity"
	"github.com/pawmart/chatserver/internal/ierr"
	"go.uber.org/zap"
)

// RESTServer carries the operations that precede a socket: opening (or
// finding) a session with a counterpart and listing one's sessions.
type RESTServer struct {
	logger *zap.Logger

	verifier       identity.Verifier
	sessionHandler handler.SessionHandlerInterface
}

func NewRESTServer(
	logger *zap.Logger,
	verifier identity.Verifier,
	sessionHandler handler.SessionHandlerInterface,
) *RESTServer {
	return &RESTServer{
		logger,
		verifier,
		sessionHandler,
	}
}

func (s *RESTServer) Register(router *mux.Router) {
	router.HandleFunc("/chats", s.createChat).Methods(http.MethodPost)
	router.HandleFunc("/chats", s.listChats).Methods(http.MethodGet)
}

func (s *RESTServer) createChat(w http.ResponseWriter, r *http.Request) {
	initiator, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, err)

		return
	}

	var req handler.CreateSessionRequest
	err = json.NewDecoder(r.Body).Decode(&req)
	if err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)

		return
	}

	response, err := s.sessionHandler.FindOrCreate(r.Context(), initiator, req)
	if err != nil {
		s.writeError(w, err)

		return
	}

	status := http.StatusOK
	if response.Created {
		status = http.StatusCreated
	}

	s.writeJSON(w, status, response)
}

func (s *RESTServer) listChats(w http.ResponseWriter, r *http.Request) {
	id, err := s.authenticate(r)
	if err != nil {
		s.writeError(w, err)

		return
	}

	response, err := s.sessionHandler.List(r.Context(), id.Id)
	if err != nil {
		s.writeError(w, err)

		return
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *RESTServer) authenticate(r *http.Request) (identity.Identity, error) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")

	return s.verifier.Verify(token)
}

func (s *RESTServer) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	err := json.NewEncoder(w).Encode(v)
	if err != nil {
		s.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (s *RESTServer) writeError(w http.ResponseWriter, err error) {
	code := ierr.CodeOf(err)
	if code == "" {
		s.logger.Error("error in rest handler", zap.Error(err))
		code = ierr.ErrorCodeInternal
	}

	s.writeJSON(w, httpStatus(code), map[string]any{
		"code":    code,
		"message": err.Error(),
	})
}

func httpStatus(code ierr.ErrorCode) int {
	switch code {
	case ierr.ErrorCodeInvalidArgument:
		return http.StatusBadRequest
	case ierr.ErrorCodeUnauthenticated:
		return http.StatusUnauthorized
	case ierr.ErrorCodePermissionDenied:
		return http.StatusForbidden
	case ierr.ErrorCodeNotFound:
		return http.StatusNotFound
	case ierr.ErrorCodeAlreadyExists:
		return http.StatusConflict
	case ierr.ErrorCodeFailedPrecondition:
		return http.StatusPreconditionFailed
	case ierr.ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
