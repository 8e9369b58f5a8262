package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/duochat/duochat/internal/delivery/ws"
	"github.com/duochat/duochat/internal/domain"
	"github.com/duochat/duochat/internal/middleware"
	"github.com/duochat/duochat/internal/store"
	"github.com/duochat/duochat/internal/usecase"
)

// Handler serves the REST surface and the websocket upgrade. Everything
// that creates a message funnels through the same ChatService the
// socket gateway uses.
type Handler struct {
	store          store.Store
	chat           *usecase.ChatService
	gateway        *ws.Gateway
	allowedOrigins []string
	upgrader       websocket.Upgrader
	log            *zap.Logger
}

func NewHandler(st store.Store, chat *usecase.ChatService, gateway *ws.Gateway, allowedOrigins []string, log *zap.Logger) *Handler {
	h := &Handler{
		store:          st,
		chat:           chat,
		gateway:        gateway,
		allowedOrigins: allowedOrigins,
		log:            log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return h.isOriginAllowed(r.Header.Get("Origin"))
		},
	}
	return h
}

// isOriginAllowed checks the origin against the configured list. An
// empty origin is a same-origin request and always passes.
func (h *Handler) isOriginAllowed(origin string) bool {
	if origin == "" {
		return true
	}
	for _, allowed := range h.allowedOrigins {
		if allowed == "*" || origin == allowed {
			return true
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// HandleHealth reports process and store health.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HandleListUsers returns every user except the requester, for the
// contact picker.
func (h *Handler) HandleListUsers(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	users, err := h.store.ListUsers(r.Context(), userID)
	if err != nil {
		h.log.Error("list users failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list users")
		return
	}
	writeJSON(w, http.StatusOK, users)
}

// HandleCreateConversation finds or creates the one conversation between
// the requester and the named participant. 201 when it was created, 200
// when it already existed.
func (h *Handler) HandleCreateConversation(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	var req struct {
		ParticipantID string `json:"participantId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ParticipantID == "" {
		writeError(w, http.StatusBadRequest, "participantId is required")
		return
	}
	if req.ParticipantID == userID {
		writeError(w, http.StatusBadRequest, "cannot start a conversation with yourself")
		return
	}

	if _, err := h.store.GetUser(r.Context(), req.ParticipantID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "participant not found")
			return
		}
		h.log.Error("look up participant failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	conv, created, err := h.store.GetOrCreateConversation(r.Context(), userID, req.ParticipantID)
	if err != nil {
		h.log.Error("create conversation failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create conversation")
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, conv)
}

// HandleListConversations returns the requester's conversations with
// their last message.
func (h *Handler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	convs, err := h.store.ListConversations(r.Context(), userID)
	if err != nil {
		h.log.Error("list conversations failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list conversations")
		return
	}
	writeJSON(w, http.StatusOK, convs)
}

// HandleListMessages returns a conversation's messages in creation
// order.
func (h *Handler) HandleListMessages(w http.ResponseWriter, r *http.Request) {
	convID := r.PathValue("id")
	if convID == "" {
		writeError(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	msgs, err := h.store.ListMessages(r.Context(), convID)
	if err != nil {
		h.log.Error("list messages failed", zap.String("conversation", convID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// HandleSendMessage is the REST fallback into the message pipeline.
// Persist-then-broadcast semantics are identical to the socket path;
// joined connections receive the new-message event either way.
func (h *Handler) HandleSendMessage(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())

	convID := r.PathValue("id")
	if convID == "" {
		writeError(w, http.StatusBadRequest, "conversation id is required")
		return
	}

	var req struct {
		Content      string `json:"content"`
		FileURL      string `json:"fileUrl"`
		FileName     string `json:"fileName"`
		FileType     string `json:"fileType"`
		FileMimeType string `json:"fileMimeType"`
		FileSize     int64  `json:"fileSize"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	var file *domain.FileRef
	if req.FileURL != "" {
		file = &domain.FileRef{
			URL:      req.FileURL,
			Name:     req.FileName,
			Kind:     req.FileType,
			MimeType: req.FileMimeType,
			Size:     req.FileSize,
		}
	}

	msg, err := h.chat.SendMessage(r.Context(), userID, convID, req.Content, file)
	if err != nil {
		if errors.Is(err, domain.ErrEmptyMessage) {
			writeError(w, http.StatusBadRequest, "message must have content or a file")
			return
		}
		h.log.Error("send message failed", zap.String("conversation", convID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to send message")
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// HandleWebSocket upgrades the connection and hands it to the gateway.
// The connection starts unauthenticated; identity arrives over the
// socket via the authenticate event.
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		h.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}

	client := h.gateway.Attach(conn)
	go client.WritePump()
	go client.ReadPump()
}

// Register mounts the REST routes on the mux. The authed wrapper guards
// the API; health stays open. The caller mounts the websocket route so
// it can pick its own rate limit.
func (h *Handler) Register(mux *http.ServeMux, authed func(http.Handler) http.Handler) {
	mux.HandleFunc("GET /healthz", h.HandleHealth)

	mux.Handle("GET /api/users", authed(http.HandlerFunc(h.HandleListUsers)))
	mux.Handle("POST /api/conversations", authed(http.HandlerFunc(h.HandleCreateConversation)))
	mux.Handle("GET /api/conversations", authed(http.HandlerFunc(h.HandleListConversations)))
	mux.Handle("GET /api/conversations/{id}/messages", authed(http.HandlerFunc(h.HandleListMessages)))
	mux.Handle("POST /api/conversations/{id}/messages", authed(http.HandlerFunc(h.HandleSendMessage)))
}
