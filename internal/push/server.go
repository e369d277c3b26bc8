package push

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/spec-kit/sla-escalation-service/internal/auth"
)

const writeTimeout = 10 * time.Second

// Authenticator resolves the token presented by a websocket client.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

// Server is the websocket gateway streaming hub channels to clients.
type Server struct {
	hub      *Hub
	auth     Authenticator
	debounce time.Duration
	logger   *zap.Logger
}

// NewServer builds the gateway.
func NewServer(hub *Hub, authenticator Authenticator, debounce time.Duration, logger *zap.Logger) *Server {
	return &Server{hub: hub, auth: authenticator, debounce: debounce, logger: logger}
}

// Routes returns the gateway router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Heartbeat("/health"))

	r.Get("/ws/notifications", s.serveNotifications)
	r.Get("/ws/conversations/{conversationID}", s.serveConversation)
	return r
}

func (s *Server) serveNotifications(w http.ResponseWriter, r *http.Request) {
	principal, ok := s.authenticate(w, r)
	if !ok {
		return
	}
	s.stream(w, r, UserChannel(principal.StaffID()))
}

func (s *Server) serveConversation(w http.ResponseWriter, r *http.Request) {
	if _, ok := s.authenticate(w, r); !ok {
		return
	}
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		http.Error(w, "conversation id required", http.StatusBadRequest)
		return
	}
	s.stream(w, r, ConversationChannel(conversationID))
}

func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Principal, bool) {
	token := r.URL.Query().Get("token")
	if token == "" {
		http.Error(w, "missing token", http.StatusUnauthorized)
		return nil, false
	}
	principal, err := s.auth.Authenticate(r.Context(), token)
	if err != nil || principal.StaffID() == "" {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return nil, false
	}
	return principal, true
}

func (s *Server) stream(w http.ResponseWriter, r *http.Request, channel string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		s.logger.Warn("websocket accept failed", zap.String("channel", channel), zap.Error(err))
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	sub := s.hub.Subscribe(channel)
	defer sub.Close()

	// Clients never send; CloseRead handles control frames and cancels ctx on disconnect.
	ctx := conn.CloseRead(r.Context())
	messages := Debounce(ctx, sub.C(), s.debounce)

	s.logger.Debug("push stream opened", zap.String("channel", channel))
	for msg := range messages {
		if err := s.write(ctx, conn, msg); err != nil {
			if !errors.Is(err, context.Canceled) && websocket.CloseStatus(err) == -1 {
				s.logger.Debug("push write failed", zap.String("channel", channel), zap.Error(err))
			}
			return
		}
	}
	s.logger.Debug("push stream closed", zap.String("channel", channel))
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, data)
}
