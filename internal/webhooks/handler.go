package webhooks

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/despachantemarcelino/hookd/internal/events"
	"github.com/despachantemarcelino/hookd/internal/metrics"
	"github.com/despachantemarcelino/hookd/internal/requestctx"
)

// Handler is the webhook ingestion endpoint.
type Handler struct {
	auth        *Authenticator
	dispatcher  *Dispatcher
	cors        *CORSPolicy
	maxBodySize int64

	now   func() time.Time
	newID func() string
}

// NewHandler creates a webhook handler. A maxBodySize of zero or less leaves
// the body unbounded.
func NewHandler(auth *Authenticator, dispatcher *Dispatcher, cors *CORSPolicy, maxBodySize int64) *Handler {
	return &Handler{
		auth:        auth,
		dispatcher:  dispatcher,
		cors:        cors,
		maxBodySize: maxBodySize,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// ServeHTTP handles one webhook call.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.cors != nil {
		h.cors.Apply(w, r)
	}

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		log.Debug().Str("method", r.Method).Msg("Method not allowed for webhook")
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: ErrorMethodDenied})
		return
	}

	ctx := r.Context()
	requestID := requestctx.RequestID(ctx)

	if !h.auth.Authenticate(r) {
		log.Warn().
			Str("request_id", requestID).
			Str("remote_addr", clientAddr(r)).
			Bool("secret_configured", h.auth.Configured()).
			Msg("Webhook secret rejected")
		metrics.RecordWebhook("", metrics.OutcomeUnauthorized)
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: ErrorUnauthorized})
		return
	}

	// Read request body
	body, err := h.readBody(w, r)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	env, err := events.ParseEnvelope(body)
	if err != nil {
		h.fail(w, r, "", err)
		return
	}

	ev, err := env.Resolve()
	if err != nil {
		h.fail(w, r, env.Event, err)
		return
	}

	delivery := &events.Delivery{
		ID:         h.newID(),
		Event:      ev,
		Data:       env.Data,
		RequestID:  requestID,
		RemoteAddr: clientAddr(r),
		ReceivedAt: h.now().UTC(),
	}

	if err := h.dispatcher.Dispatch(ctx, delivery); err != nil {
		h.fail(w, r, ev.Name(), err)
		return
	}

	log.Info().
		Str("request_id", requestID).
		Str("delivery_id", delivery.ID).
		Str("event", ev.Name()).
		Bool("known", ev.Kind().Known()).
		Msg("Webhook processed")
	metrics.RecordWebhook(ev.Name(), metrics.OutcomeAccepted)

	writeJSON(w, http.StatusOK, Ack{
		Success:   true,
		Message:   MessageProcessed,
		Timestamp: delivery.ReceivedAt.Format(timestampISOLayout),
		Event:     ev.Name(),
	})
}

func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	reader := r.Body
	if h.maxBodySize > 0 {
		reader = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	return body, nil
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, event string, err error) {
	logEvent := log.Error()
	var payloadErr *events.PayloadError
	if errors.As(err, &payloadErr) {
		logEvent = log.Warn().Str("field", payloadErr.Field)
	}
	logEvent.
		Err(err).
		Str("request_id", requestctx.RequestID(r.Context())).
		Str("event", event).
		Msg("Webhook processing failed")

	metrics.RecordWebhook(event, metrics.OutcomeFailed)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   ErrorInternal,
		Message: err.Error(),
	})
}

func clientAddr(r *http.Request) string {
	if ip := requestctx.ClientIP(r.Context()); ip != "" {
		return ip
	}
	return requestctx.ResolveClientIP(r, nil)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().Err(err).Msg("Failed to encode webhook response")
	}
}
