package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/upb/mailchimp-gateway/models"
	"github.com/upb/mailchimp-gateway/services/subscription"
	"github.com/upb/mailchimp-gateway/utils"
	"go.uber.org/zap"
)

const (
	// HelloMessage is returned by the liveness endpoint of the mailchimp routes
	HelloMessage = "The backend is working as expected!"

	maxSubscribeBodyBytes = 1 << 20
)

// SubscriptionService defines the interface for subscription operations
type SubscriptionService interface {
	Subscribe(ctx context.Context, req *models.SubscriptionRequest) (subscription.Result, error)
}

// MailchimpHandler handles the /mailchimp routes
type MailchimpHandler struct {
	service SubscriptionService
	logger  *zap.Logger
}

// NewMailchimpHandler creates a new MailchimpHandler
func NewMailchimpHandler(service SubscriptionService, logger *zap.Logger) *MailchimpHandler {
	return &MailchimpHandler{
		service: service,
		logger:  logger,
	}
}

// HandleHello handles GET /mailchimp
func (h *MailchimpHandler) HandleHello(w http.ResponseWriter, r *http.Request) {
	if err := utils.WriteOK(w, utils.MessageResponse{Message: HelloMessage}); err != nil {
		h.logger.Error("failed to write hello response", zap.Error(err))
	}
}

// HandleSubscribe handles POST /mailchimp/subscribe
func (h *MailchimpHandler) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSubscribeBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			_ = utils.WriteError(w, http.StatusRequestEntityTooLarge, "request body too large", nil)
			return
		}
		_ = utils.WriteBadRequest(w, "failed to read request body", nil)
		return
	}

	req, err := models.ParseSubscriptionRequest(body)
	if err != nil {
		HandleValidationError(w, err, h.logger)
		return
	}

	result, err := h.service.Subscribe(r.Context(), req)
	if err != nil {
		HandleServiceError(w, err, h.logger)
		return
	}

	if err := utils.WriteCreated(w, result.Envelope()); err != nil {
		h.logger.Error("failed to write subscription response", zap.Error(err))
	}
}
