package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/VaradSinghal/EchoV3/internal/webhook"
)

// WebhookHandler receives GitHub webhook deliveries.  The endpoint is
// public (no session); authenticity comes from the HMAC signature the
// dispatcher verifies against the repository's registered secrets.
type WebhookHandler struct {
	Dispatcher *webhook.Dispatcher
}

func NewWebhookHandler(d *webhook.Dispatcher) *WebhookHandler {
	return &WebhookHandler{Dispatcher: d}
}

// Handle: POST /api/webhooks/github
func (h *WebhookHandler) Handle(c echo.Context) error {
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "failed to read body"})
	}

	event := c.Request().Header.Get("X-GitHub-Event")
	if event == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "missing X-GitHub-Event header"})
	}

	out, err := h.Dispatcher.Process(c.Request().Context(), webhook.Delivery{
		Event:      event,
		Signature:  c.Request().Header.Get("X-Hub-Signature-256"),
		DeliveryID: c.Request().Header.Get("X-GitHub-Delivery"),
		Body:       body,
	})
	if err != nil {
		switch {
		case errors.Is(err, webhook.ErrMalformedPayload):
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed payload"})
		case errors.Is(err, webhook.ErrInvalidSignature), errors.Is(err, webhook.ErrNoSecrets):
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "signature verification failed"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "webhook processing failed"})
		}
	}
	return c.JSON(http.StatusOK, out)
}
