package webhook

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"mailcal/internal/extractor"
	"mailcal/internal/models"
)

// maxBodyBytes bounds the inbound payload; attachments are inlined as base64.
const maxBodyBytes = 50 << 20

type eventReconciler interface {
	Reconcile(ctx context.Context, event *models.ExtractedEvent, recipients string) error
}

type forwarder interface {
	Forward(ctx context.Context, event *models.ExtractedEvent) error
}

type mirror interface {
	SyncEvent(ctx context.Context, event *models.ExtractedEvent) error
}

// Server receives inbound email webhooks and feeds calendar attachments through
// extraction, forwarding and reconciliation.
type Server struct {
	logger     *slog.Logger
	reconciler eventReconciler
	forwarder  forwarder
	mirror     mirror
	mux        *http.ServeMux
}

type Option func(*Server)

// WithForwarder sends every extracted event to f before reconciling it.
func WithForwarder(f forwarder) Option {
	return func(s *Server) { s.forwarder = f }
}

// WithMirror copies every extracted event into a calendar.
func WithMirror(m mirror) Option {
	return func(s *Server) { s.mirror = m }
}

// NewServer creates a new webhook Server.
func NewServer(logger *slog.Logger, rec eventReconciler, opts ...Option) *Server {
	s := &Server{
		logger:     logger,
		reconciler: rec,
		mux:        http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/inbound", s.handleInbound)
	s.mux.HandleFunc("/api/postmark-inbound", s.handleInbound)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}

// handleInbound acknowledges every POST once its body has been read so the
// email provider does not redeliver. Processing failures only reach the log.
func (s *Server) handleInbound(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"ok": false, "error": "Method Not Allowed"})
		return
	}

	logger := s.logger.With("requestID", uuid.NewString())

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		logger.Warn("Failed to read inbound body", "error", err)
		writeJSON(w, http.StatusBadRequest, map[string]any{"ok": false, "error": "unreadable body"})
		return
	}

	var msg models.InboundMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		logger.Warn("Inbound body is not valid JSON, acknowledging anyway", "error", err, "bytes", len(body))
	} else {
		s.process(r.Context(), logger, &msg)
	}

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) process(ctx context.Context, logger *slog.Logger, msg *models.InboundMessage) {
	logger = logger.With("messageID", msg.MessageID, "to", msg.To)
	logger.Info("Inbound email received", "from", msg.From, "subject", msg.Subject, "attachments", len(msg.Attachments))

	event := extractor.Extract(msg)
	if event == nil {
		logger.Info("No calendar attachment found")
		return
	}
	logger.Info("Extracted calendar event",
		"uid", event.UID,
		"start", event.StartTime,
		"platform", event.PlatformType,
		"attendees", len(event.Attendees))

	if s.forwarder != nil {
		if err := s.forwarder.Forward(ctx, event); err != nil {
			logger.Warn("Failed to forward calendar event", "error", err)
		}
	}

	if s.mirror != nil {
		if err := s.mirror.SyncEvent(ctx, event); err != nil {
			logger.Warn("Failed to mirror calendar event", "error", err)
		}
	}

	if err := s.reconciler.Reconcile(ctx, event, msg.To); err != nil {
		logger.Error("Failed to reconcile calendar event", "uid", event.UID, "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
