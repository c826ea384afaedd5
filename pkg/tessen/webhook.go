package tessen

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"tessen/pkg/botapi"
)

// UpdateFunc consumes one decoded update and reports the boundary outcome.
type UpdateFunc func(ctx context.Context, update *botapi.Update) error

// WebhookHandler adapts an update consumer to the webhook response
// contract: acknowledged dispatch answers 200, a failure answers the status
// carried on the error, defaulting to a generic client error.
type WebhookHandler struct {
	handle UpdateFunc
	logger *slog.Logger
}

// NewWebhookHandler wraps one update consumer as an http.Handler.
func NewWebhookHandler(handle UpdateFunc, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &WebhookHandler{handle: handle, logger: logger}
}

// ServeHTTP decodes the update payload and answers per the response contract.
func (h *WebhookHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	var update botapi.Update
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		h.logger.WarnContext(r.Context(), "webhook decode failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	if err := h.handle(r.Context(), &update); err != nil {
		h.logger.WarnContext(r.Context(), "webhook dispatch rejected",
			"update_id", update.UpdateID,
			"error", err,
		)
		w.WriteHeader(HTTPStatus(err))
		return
	}

	w.WriteHeader(http.StatusOK)
}
