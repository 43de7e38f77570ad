package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"tdgate/internal/adapter"
	"tdgate/internal/constants"
	"tdgate/internal/middleware"
	"tdgate/internal/models"
	"tdgate/internal/privacy"
	"tdgate/internal/security"
	"tdgate/internal/validation"
)

type Server struct {
	router   *mux.Router
	logger   *logrus.Logger
	registry *adapter.Registry
	cfg      *models.Config
	server   *http.Server
}

func NewServer(cfg *models.Config, registry *adapter.Registry, logger *logrus.Logger) *Server {
	s := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		registry: registry,
		cfg:      cfg,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.Observability(s.logger))

	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)

	s.router.HandleFunc("/check_session", s.handleCheckSession()).Methods(http.MethodPost)
	s.router.HandleFunc("/authenticate", s.handleAuthenticate()).Methods(http.MethodPost)
	s.router.HandleFunc("/destroy_session", s.handleDestroySession()).Methods(http.MethodPost)

	s.router.HandleFunc("/get_chats", s.handleGetChats()).Methods(http.MethodPost)
	s.router.HandleFunc("/get_messages", s.handleGetMessages()).Methods(http.MethodPost)
	s.router.HandleFunc("/send_message", s.handleSendMessage()).Methods(http.MethodPost)
	s.router.HandleFunc("/send_voice_message", s.handleSendVoiceMessage()).Methods(http.MethodPost)

	s.router.HandleFunc("/files/{session_id}/{kind}/{file_name}", s.handleFileDownload()).
		Methods(http.MethodGet, http.MethodHead)

	s.router.HandleFunc("/ws/{phone}", s.handleEventStream()).Methods(http.MethodGet)
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Server.Port),
		Handler:      s.router,
		ReadTimeout:  constants.DefaultServerReadTimeoutSec * time.Second,
		WriteTimeout: constants.DefaultServerWriteTimeout * time.Second,
		IdleTimeout:  constants.DefaultServerIdleTimeoutSec * time.Second,
	}

	s.logger.WithField("port", s.cfg.Server.Port).Info("Starting server")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

type accountRequest struct {
	Phone string `json:"phone"`
}

type authenticateRequest struct {
	Phone     string `json:"phone"`
	Code      string `json:"code,omitempty"`
	Password  string `json:"password,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	EmailCode string `json:"emailCode,omitempty"`
}

type chatsRequest struct {
	Phone  string `json:"phone"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

type messagesRequest struct {
	Phone         string `json:"phone"`
	ChatID        int64  `json:"chatId"`
	Limit         int    `json:"limit,omitempty"`
	FromMessageID int64  `json:"fromMessageId,omitempty"`
}

type sendRequest struct {
	Phone  string `json:"phone"`
	ChatID int64  `json:"chatId"`
	Text   string `json:"text"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.WithError(err).Error("Failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func decodeBody(r *http.Request, dst interface{}) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(dst)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func (s *Server) handleCheckSession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req accountRequest
		if err := decodeBody(r, &req); err != nil || validation.ValidateAccountID(req.Phone) != nil {
			s.writeError(w, http.StatusBadRequest, "a valid phone is required")
			return
		}

		// An account that never authenticated here gets a cheap answer
		// without spinning up an engine client.
		if !s.registry.HasSession(req.Phone) {
			s.writeJSON(w, http.StatusOK, models.SessionState{
				IsAuthenticated: false,
				AuthState:       string(models.StatusNoSession),
			})
			return
		}

		a, err := s.registry.GetOrCreate(r.Context(), req.Phone)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to open session")
			return
		}

		state := a.CheckSession(r.Context())
		s.registry.RecordAuthState(r.Context(), req.Phone, state.AuthState)
		s.writeJSON(w, http.StatusOK, state)
	}
}

func (s *Server) handleAuthenticate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req authenticateRequest
		if err := decodeBody(r, &req); err != nil || validation.ValidateAccountID(req.Phone) != nil {
			s.writeError(w, http.StatusBadRequest, "a valid phone is required")
			return
		}

		a, err := s.registry.GetOrCreate(r.Context(), req.Phone)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to open session")
			return
		}

		creds := models.Credentials{
			PhoneNumber: phoneCredential(req),
			Code:        req.Code,
			Password:    req.Password,
			FirstName:   req.FirstName,
			LastName:    req.LastName,
			Email:       req.Email,
			EmailCode:   req.EmailCode,
		}
		result := a.Authenticate(r.Context(), creds)
		s.registry.RecordAuthState(r.Context(), req.Phone, string(result.Status))
		s.writeJSON(w, http.StatusOK, result)
	}
}

// phoneCredential decides whether the phone field is a login command or
// just the account selector. A request carrying any later-stage
// credential uses the phone for routing only.
func phoneCredential(req authenticateRequest) string {
	if req.Code != "" || req.Password != "" || req.Email != "" || req.EmailCode != "" ||
		(req.FirstName != "" && req.LastName != "") {
		return ""
	}
	return req.Phone
}

func (s *Server) handleDestroySession() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req accountRequest
		if err := decodeBody(r, &req); err != nil || validation.ValidateAccountID(req.Phone) != nil {
			s.writeError(w, http.StatusBadRequest, "a valid phone is required")
			return
		}

		s.registry.Destroy(r.Context(), req.Phone)
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "destroyed"})
	}
}

func (s *Server) handleGetChats() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req chatsRequest
		if err := decodeBody(r, &req); err != nil || validation.ValidateAccountID(req.Phone) != nil {
			s.writeError(w, http.StatusBadRequest, "a valid phone is required")
			return
		}
		if req.Limit <= 0 {
			req.Limit = constants.DefaultChatListLimit
		}
		if req.Limit > constants.MaxChatListLimit {
			req.Limit = constants.MaxChatListLimit
		}
		if req.Offset < 0 {
			req.Offset = 0
		}

		a, err := s.registry.GetOrCreate(r.Context(), req.Phone)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to open session")
			return
		}

		chats, err := a.ListChats(r.Context(), req.Limit, req.Offset)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to list chats")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"chats": chats})
	}
}

func (s *Server) handleGetMessages() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messagesRequest
		if err := decodeBody(r, &req); err != nil ||
			validation.ValidateAccountID(req.Phone) != nil ||
			validation.ValidateChatID(req.ChatID) != nil {
			s.writeError(w, http.StatusBadRequest, "a valid phone and chatId are required")
			return
		}
		if req.Limit <= 0 {
			req.Limit = constants.DefaultMessageLimit
		}
		if req.Limit > constants.MaxMessageLimit {
			req.Limit = constants.MaxMessageLimit
		}

		a, err := s.registry.GetOrCreate(r.Context(), req.Phone)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to open session")
			return
		}

		msgs, err := a.ListMessages(r.Context(), req.ChatID, req.Limit, req.FromMessageID)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to list messages")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
	}
}

func (s *Server) handleSendMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendRequest
		if err := decodeBody(r, &req); err != nil ||
			validation.ValidateAccountID(req.Phone) != nil ||
			validation.ValidateChatID(req.ChatID) != nil ||
			validation.ValidateMessageText(req.Text) != nil {
			s.writeError(w, http.StatusBadRequest, "a valid phone, chatId, and text are required")
			return
		}

		a, err := s.registry.GetOrCreate(r.Context(), req.Phone)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to open session")
			return
		}

		result := a.SendMessage(r.Context(), req.ChatID, req.Text)
		if result.Status == "error" {
			s.writeJSON(w, http.StatusBadGateway, result)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

func (s *Server) handleSendVoiceMessage() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, constants.MaxVoiceUploadSizeBytes)
		if err := r.ParseMultipartForm(constants.MaxVoiceUploadSizeBytes); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid multipart request")
			return
		}

		phone := r.FormValue("phone")
		chatID := parseInt64(r.FormValue("chatId"))
		duration := int(parseInt64(r.FormValue("duration")))
		if validation.ValidateAccountID(phone) != nil ||
			validation.ValidateChatID(chatID) != nil ||
			validation.ValidateVoiceDuration(duration) != nil {
			s.writeError(w, http.StatusBadRequest, "a valid phone and chatId are required")
			return
		}

		file, header, err := r.FormFile("file")
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "voice file is required")
			return
		}
		defer file.Close()

		upload, err := s.stageUpload(file, header.Filename)
		if err != nil {
			s.logger.WithError(err).
				WithField("account", privacy.MaskAccountID(phone)).
				Error("Failed to stage voice upload")
			s.writeError(w, http.StatusInternalServerError, "failed to store upload")
			return
		}
		defer os.Remove(upload)

		a, err := s.registry.GetOrCreate(r.Context(), phone)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to open session")
			return
		}

		result := a.SendVoiceMessage(r.Context(), chatID, upload, duration)
		if result.Status == "error" {
			s.writeJSON(w, http.StatusBadRequest, result)
			return
		}
		s.writeJSON(w, http.StatusOK, result)
	}
}

// stageUpload copies a multipart part to a temp file so the audio
// pipeline can reread it by path.
func (s *Server) stageUpload(file io.Reader, name string) (string, error) {
	ext := filepath.Ext(name)
	if ext == "" {
		ext = ".wav"
	}
	tmp, err := os.CreateTemp("", "tdgate-upload-*"+ext)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, file); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (s *Server) handleFileDownload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		sessionID := vars["session_id"]
		kind := vars["kind"]
		fileName := vars["file_name"]
		accountID := r.URL.Query().Get("account_id")

		if kind != constants.VoiceDirName && kind != constants.PhotoDirName {
			s.writeError(w, http.StatusNotFound, "unknown artifact kind")
			return
		}
		// Path segments must stay inside the session directory.
		if security.ValidateArtifactName(sessionID) != nil || security.ValidateArtifactName(fileName) != nil {
			s.writeError(w, http.StatusBadRequest, "invalid file name")
			return
		}
		// The account must own the session it is reading from.
		if accountID == "" || adapter.SessionKey(accountID) != sessionID {
			s.writeError(w, http.StatusForbidden, "account does not own this session")
			return
		}

		path := filepath.Join(s.cfg.Engine.SessionsDir, sessionID, kind, fileName)
		info, err := os.Stat(path)
		if err != nil || info.IsDir() {
			s.writeError(w, http.StatusNotFound, "file not found")
			return
		}

		http.ServeFile(w, r, path)
	}
}

// handleEventStream upgrades to a websocket and forwards the session's
// engine events as JSON until the client goes away.
func (s *Server) handleEventStream() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phone := mux.Vars(r)["phone"]
		if validation.ValidateAccountID(phone) != nil {
			s.writeError(w, http.StatusBadRequest, "a valid phone is required")
			return
		}

		a, err := s.registry.GetOrCreate(r.Context(), phone)
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, "failed to open session")
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			s.logger.WithError(err).Warn("Websocket upgrade failed")
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")

		events := a.Subscribe()
		defer a.Unsubscribe(events)

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				payload, err := json.Marshal(map[string]interface{}{
					"type":  ev.EventType(),
					"event": ev,
				})
				if err != nil {
					continue
				}
				writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
				err = conn.Write(writeCtx, websocket.MessageText, payload)
				cancel()
				if err != nil {
					return
				}
			}
		}
	}
}

func parseInt64(s string) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return v
}
