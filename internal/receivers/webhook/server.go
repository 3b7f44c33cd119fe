// Package webhook receives provider SMS callbacks over HTTP. Unlike the
// polling receivers it is push-based: each callback is stored
// immediately and offered to the active listen session, if any.
package webhook

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"otpgate/internal"
	"otpgate/internal/receivers"
	"otpgate/internal/session"
)

type Server struct {
	store    *receivers.MessageStore
	sessions *session.Manager
	token    string
	limiter  *RateLimiter
}

// NewServer wires the inbound HTTP surface. sessions may be nil when no
// live listen window is served (fetch-and-process only deployments).
func NewServer(store *receivers.MessageStore, sessions *session.Manager, token string, rps int) *Server {
	return &Server{
		store:    store,
		sessions: sessions,
		token:    strings.TrimSpace(token),
		limiter:  NewRateLimiter(rps),
	}
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/inbound/{provider}", s.handleInbound).Methods(http.MethodPost)
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type inboundPayload struct {
	From      string `json:"from"`
	Body      string `json:"body"`
	MessageID string `json:"messageId"`
}

func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	s.limiter.WaitTurn()

	if s.token != "" && r.Header.Get("X-Webhook-Token") != s.token {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	provider := mux.Vars(r)["provider"]
	payload, err := parseInbound(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	if payload.MessageID == "" {
		payload.MessageID = uuid.NewString()
	}

	row, err := s.store.Store(internal.InboundMessage{
		Provider:   provider,
		MessageID:  payload.MessageID,
		Sender:     payload.From,
		ReceivedAt: receivedNow(),
		Body:       []byte(payload.Body),
	})
	if err != nil {
		http.Error(w, "store failed", http.StatusInternalServerError)
		return
	}

	delivered := false
	if s.sessions != nil {
		delivered = s.sessions.Deliver(fmt.Sprintf("%s/%s", provider, payload.MessageID), payload.Body)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"id":        row.ID,
		"delivered": delivered,
	})
}

func parseInbound(r *http.Request) (inboundPayload, error) {
	mediaType := r.Header.Get("Content-Type")
	if mediaType != "" {
		if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
			mediaType = parsed
		}
	}

	var payload inboundPayload
	switch mediaType {
	case "application/json":
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			return inboundPayload{}, fmt.Errorf("invalid json payload")
		}
	default:
		// Provider callbacks default to form encoding (Twilio-style
		// From/Body/MessageSid keys).
		if err := r.ParseForm(); err != nil {
			return inboundPayload{}, fmt.Errorf("invalid form payload")
		}
		payload.From = r.PostFormValue("From")
		payload.Body = r.PostFormValue("Body")
		payload.MessageID = r.PostFormValue("MessageSid")
	}

	if strings.TrimSpace(payload.Body) == "" {
		return inboundPayload{}, fmt.Errorf("empty message body")
	}
	return payload, nil
}

func receivedNow() string {
	return time.Now().UTC().Format(time.RFC3339)
}
