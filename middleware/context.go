package middleware

import (
	"context"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// GetRequestIDFromContext retrieves the request ID set by chi's RequestID
// middleware
func GetRequestIDFromContext(ctx context.Context) string {
	return chimw.GetReqID(ctx)
}
