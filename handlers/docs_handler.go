package handlers

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

//go:embed openapi.json
var openAPIDocument []byte

// DocsHandler serves the OpenAPI document of the API
type DocsHandler struct {
	document []byte
	logger   *zap.Logger
}

// NewDocsHandler creates a DocsHandler whose server URL is apiPrefix
func NewDocsHandler(apiPrefix string, logger *zap.Logger) (*DocsHandler, error) {
	var doc map[string]interface{}
	if err := json.Unmarshal(openAPIDocument, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse openapi document: %w", err)
	}
	if apiPrefix != "" {
		doc["servers"] = []map[string]string{{"url": apiPrefix}}
	}

	rendered, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to render openapi document: %w", err)
	}
	return &DocsHandler{document: rendered, logger: logger}, nil
}

// HandleDocs handles GET /api
func (h *DocsHandler) HandleDocs(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(h.document); err != nil {
		h.logger.Error("failed to write openapi document", zap.Error(err))
	}
}
