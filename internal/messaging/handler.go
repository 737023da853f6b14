// Package messaging connects the SMS provider to the booking dialogue.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/wolfman30/lesson-booking-agent/internal/conversation"
	"github.com/wolfman30/lesson-booking-agent/pkg/logging"
)

var twilioTracer = otel.Tracer("lessons.internal.messaging.twilio")

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

type inboundPublisher interface {
	EnqueueInbound(ctx context.Context, msg conversation.InboundMessage) (string, error)
}

// WebhookObserver records the outcome and latency of each webhook.
type WebhookObserver interface {
	ObserveInbound(status string, seconds float64)
}

// Handler handles messaging webhook requests.
type Handler struct {
	webhookSecret string
	publicBaseURL string
	publisher     inboundPublisher
	observer      WebhookObserver
	logger        *logging.Logger
}

// NewHandler creates a new messaging handler. An empty webhookSecret disables
// signature checks; publicBaseURL, when set, is the externally visible origin
// Twilio signs against.
func NewHandler(webhookSecret, publicBaseURL string, publisher inboundPublisher, logger *logging.Logger) *Handler {
	if publisher == nil {
		panic("messaging: publisher cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		webhookSecret: webhookSecret,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		publisher:     publisher,
		logger:        logger,
	}
}

// SetObserver enables webhook metrics.
func (h *Handler) SetObserver(observer WebhookObserver) {
	h.observer = observer
}

// TwilioWebhook handles POST /messaging/twilio/webhook requests. The dialogue
// replies asynchronously, so the TwiML response is empty.
func (h *Handler) TwilioWebhook(w http.ResponseWriter, r *http.Request) {
	ctx, span := twilioTracer.Start(r.Context(), "messaging.twilio.webhook")
	defer span.End()

	started := time.Now()
	status := "rejected"
	defer func() {
		if h.observer != nil {
			h.observer.ObserveInbound(status, time.Since(started).Seconds())
		}
	}()

	if h.webhookSecret != "" {
		if !ValidateTwilioSignature(r, h.webhookSecret, h.webhookURL(r)) {
			status = "unauthorized"
			h.logger.Warn("invalid twilio signature")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			span.RecordError(errors.New("invalid twilio signature"))
			return
		}
	}

	webhook, err := ParseTwilioWebhook(r)
	if err != nil {
		h.logger.Error("failed to parse twilio webhook", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}
	from := NormalizeE164(webhook.From)
	to := NormalizeE164(webhook.To)
	span.SetAttributes(
		attribute.String("lessons.twilio.message_sid", webhook.MessageSid),
		attribute.String("lessons.twilio.from", from),
	)

	if webhook.MessageSid == "" || from == "" || strings.TrimSpace(webhook.Body) == "" {
		err := errors.New("missing required twilio fields")
		h.logger.Error("invalid twilio payload", "error", err)
		http.Error(w, "Bad Request", http.StatusBadRequest)
		span.RecordError(err)
		return
	}

	publishCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	jobID, err := h.publisher.EnqueueInbound(publishCtx, conversation.InboundMessage{
		MessageID: webhook.MessageSid,
		From:      from,
		To:        to,
		Body:      webhook.Body,
	})
	if err != nil {
		status = "enqueue_failed"
		h.logger.Error("failed to enqueue inbound message", "error", err, "message_sid", webhook.MessageSid)
		http.Error(w, "Failed to schedule reply", http.StatusInternalServerError)
		span.RecordError(err)
		return
	}

	status = "accepted"
	h.logger.Info("twilio webhook accepted", "job_id", jobID, "from", from)
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(emptyTwiML))
}

// HealthCheck returns a simple health check response.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (h *Handler) webhookURL(r *http.Request) string {
	if h.publicBaseURL != "" {
		return h.publicBaseURL + r.URL.RequestURI()
	}
	return buildAbsoluteURL(r)
}

func buildAbsoluteURL(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	if r.URL.Scheme != "" {
		return r.URL.String()
	}
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		scheme = "https"
		if r.TLS == nil {
			scheme = "http"
		}
	}
	host := r.Header.Get("X-Forwarded-Host")
	if host == "" {
		host = r.Host
	}
	return fmt.Sprintf("%s://%s%s", scheme, host, r.URL.RequestURI())
}
