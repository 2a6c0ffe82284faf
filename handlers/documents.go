package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/CrowderSoup/flow-board/database"
	"github.com/gorilla/mux"
)

// maxDocumentSize bounds request bodies on the document API
const maxDocumentSize = 1 << 20

// DocumentHandler serves the path-addressed document API under /api/docs/
type DocumentHandler struct {
	documentService *database.DocumentService
}

func NewDocumentHandler(documentService *database.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
	}
}

// Get returns every document in a collection, or a single document when the
// path addresses one.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]

	if database.IsDocumentPath(path) {
		doc, err := h.documentService.Get(path)
		if err != nil {
			h.fail(w, "get", path, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status": "success",
			"data":   doc,
		})
		return
	}

	docs, err := h.documentService.GetCollection(path)
	if err != nil {
		h.fail(w, "get", path, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   docs,
	})
}

// Set creates or replaces the document at path
func (h *DocumentHandler) Set(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]

	var doc json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentSize)).Decode(&doc); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	if err := h.documentService.Set(path, doc); err != nil {
		h.fail(w, "set", path, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Update shallow-merges the request fields into the document at path
func (h *DocumentHandler) Update(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]

	var fields map[string]json.RawMessage
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDocumentSize)).Decode(&fields); err != nil {
		http.Error(w, "Invalid request format", http.StatusBadRequest)
		return
	}

	if err := h.documentService.Update(path, fields); err != nil {
		h.fail(w, "update", path, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

// Delete removes the document at path
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	path := mux.Vars(r)["path"]

	if err := h.documentService.Delete(path); err != nil {
		h.fail(w, "delete", path, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *DocumentHandler) fail(w http.ResponseWriter, op, path string, err error) {
	switch {
	case errors.Is(err, database.ErrInvalidPath), errors.Is(err, database.ErrInvalidDocument):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, database.ErrDocumentNotFound):
		http.Error(w, "Document not found", http.StatusNotFound)
	default:
		log.Printf("Error in document %s %s: %v", op, path, err)
		http.Error(w, "Server error", http.StatusInternalServerError)
	}
}

// Health reports that the server is reachable
func Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
