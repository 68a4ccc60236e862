package handlers

import (
	_ "embed"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"gopkg.in/yaml.v3"
)

//go:embed openapi.yaml
var openAPIDocument []byte

// OpenAPIHandler serves the API description. The JSON rendering is converted
// once on first use.
type OpenAPIHandler struct {
	document []byte

	jsonOnce sync.Once
	jsonDoc  []byte
	jsonErr  error
}

// NewOpenAPIHandler creates a handler for the embedded document.
func NewOpenAPIHandler() *OpenAPIHandler {
	return &OpenAPIHandler{document: openAPIDocument}
}

// RegisterRoutes registers the document routes on the root router.
func (h *OpenAPIHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/v1/openapi.yaml", h.ServeYAML).Methods("GET")
	r.HandleFunc("/api/v1/openapi.json", h.ServeJSON).Methods("GET")
}

// ServeYAML serves the document as written.
func (h *OpenAPIHandler) ServeYAML(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(h.document)
}

// ServeJSON serves the document converted to JSON.
func (h *OpenAPIHandler) ServeJSON(w http.ResponseWriter, r *http.Request) {
	h.jsonOnce.Do(func() {
		var doc map[string]any
		if err := yaml.Unmarshal(h.document, &doc); err != nil {
			h.jsonErr = err
			return
		}
		h.jsonDoc, h.jsonErr = json.Marshal(doc)
	})
	if h.jsonErr != nil {
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", "OpenAPI document is invalid")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(h.jsonDoc)
}
