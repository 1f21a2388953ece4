package webhook

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"taskbridge/internal/broker"
	"taskbridge/internal/constants"
	"taskbridge/internal/logger"
	apperrors "taskbridge/pkg/errors"
	"taskbridge/pkg/logging"
	"taskbridge/pkg/metrics"
	"taskbridge/pkg/models"
)

// Handler receives webhook deliveries from the task API, authenticates
// them, and forwards routable task events to the broker.
//
// When secret is empty, signature verification is skipped (not
// recommended outside local development). When publisher is nil the
// receiver still accepts and logs deliveries as a degraded fallback;
// the orchestrator normally attaches one before serving.
type Handler struct {
	secret    string
	publisher broker.Publisher
	logger    logger.Logger
}

func NewHandler(secret string, publisher broker.Publisher, log logger.Logger) *Handler {
	return &Handler{
		secret:    secret,
		publisher: publisher,
		logger:    log,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)
	router.POST("/webhook", h.Receive)
}

// Health is the unauthenticated liveness probe used by orchestration
// layers. Always OK while the process is serving.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Receive handles one webhook delivery: verify, parse, log, route.
// A forwarding failure still answers 200: the sender only needs the
// timely acknowledgment, and retrying the HTTP delivery would not fix
// a broker outage on our side.
func (h *Handler) Receive(c *gin.Context) {
	ctx := c.Request.Context()

	rawBody, err := c.GetRawData()
	if err != nil {
		h.logger.WarnwCtx(ctx, "Failed to read webhook body", "error", err)
		c.JSON(http.StatusBadRequest, apperrors.ToErrorResponse(apperrors.ErrValidation.WithCause(err)))
		return
	}

	if h.secret != "" {
		signature := c.GetHeader(constants.HeaderSignature)
		if signature == "" {
			metrics.WebhooksRejectedTotal.WithLabelValues("missing_signature").Inc()
			h.logger.WarnwCtx(ctx, "Rejected webhook: missing signature header")
			c.JSON(http.StatusUnauthorized, apperrors.ToErrorResponse(
				apperrors.ErrUnauthorized.WithDetail("message", "missing signature header")))
			return
		}
		if !VerifySignature(rawBody, h.secret, signature) {
			metrics.WebhooksRejectedTotal.WithLabelValues("invalid_signature").Inc()
			h.logger.WarnwCtx(ctx, "Rejected webhook: invalid signature")
			c.JSON(http.StatusUnauthorized, apperrors.ToErrorResponse(
				apperrors.ErrUnauthorized.WithDetail("message", "invalid signature")))
			return
		}
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		metrics.WebhooksRejectedTotal.WithLabelValues("malformed").Inc()
		h.logger.WarnwCtx(ctx, "Rejected webhook: invalid JSON body", "error", err)
		c.JSON(http.StatusBadRequest, apperrors.ToErrorResponse(
			apperrors.ErrValidation.WithDetail("message", "invalid JSON body")))
		return
	}

	event, _ := payload["event"].(string)
	if event == "" {
		event = c.GetHeader(constants.HeaderEvent)
	}
	if event == "" {
		event = models.EventUnknown
	}

	data, _ := payload["data"].(map[string]interface{})
	if data == nil {
		data = map[string]interface{}{}
	}

	ctx = logging.WithEvent(ctx, event)
	metrics.WebhooksReceivedTotal.WithLabelValues(event).Inc()
	h.logger.InfowCtx(ctx, "Webhook event received", "payload", data)

	if h.publisher != nil && models.IsTaskEvent(event) {
		// The full original envelope crosses the broker, not just the
		// data object: the worker re-extracts {event, data} on its side.
		if err := h.publisher.Publish(ctx, event, payload); err != nil {
			h.logger.ErrorwCtx(ctx, "Failed to forward event to broker, delivery acknowledged anyway",
				"error", err,
			)
		}
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
