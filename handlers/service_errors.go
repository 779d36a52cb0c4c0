package handlers

import (
	"net/http"

	"github.com/upb/mailchimp-gateway/middleware"
	"github.com/upb/mailchimp-gateway/services"
	"github.com/upb/mailchimp-gateway/utils"
	"go.uber.org/zap"
)

// HandleServiceError maps domain errors to HTTP responses. Every error the
// subscription service returns is a server-side fault, so the body never
// carries the underlying message.
func HandleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if err == nil {
		return
	}

	switch {
	case services.IsContractError(err):
		// The caller skipped validation; not the client's fault
		logger.Error("contract violation", zap.Error(err))

	case services.IsInternalError(err):
		logger.Error("internal server error", zap.Error(err))

	default:
		logger.Error("unhandled error type",
			zap.Error(err),
			zap.String("error_type", string(services.GetErrorType(err))))
	}

	if err := utils.WriteInternalServerError(w, ""); err != nil {
		logger.Error("failed to write internal error response", zap.Error(err))
	}
}

// HandleValidationError writes a 400 listing every violation
func HandleValidationError(w http.ResponseWriter, err error, logger *zap.Logger) {
	if utils.IsValidationError(err) {
		violations := utils.GetViolations(err)
		messages := make([]string, 0, len(violations))
		for _, v := range violations {
			messages = append(messages, v.Message)
		}
		if err := utils.WriteBadRequest(w, messages, violations); err != nil {
			logger.Error("failed to write validation error response", zap.Error(err))
		}
		return
	}

	if err := utils.WriteBadRequest(w, err.Error(), nil); err != nil {
		logger.Error("failed to write validation error response", zap.Error(err))
	}
}

// WriteThrottled returns the rejection writer used by the rate limiter
func WriteThrottled(logger *zap.Logger) middleware.RejectFunc {
	return func(w http.ResponseWriter, r *http.Request, dec middleware.Decision) {
		if err := utils.WriteTooManyRequests(w, middleware.RetryAfterSeconds(dec.RetryAfter)); err != nil {
			logger.Error("failed to write throttled response", zap.Error(err))
		}
	}
}
