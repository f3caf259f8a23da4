// routes.go - HTTP handlers for the archive API.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"fanren-sync/internal/archive"
)

// maxBodyBytes caps save payloads. Archives are sync documents, not blobs.
const maxBodyBytes = 8 << 20

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/{secret}/api/list", s.withAuth(s.handleList))
	mux.HandleFunc("/{secret}/api/load", s.withAuth(s.handleLoad))
	mux.HandleFunc("/{secret}/api/save", s.withAuth(s.handleSave))
	mux.HandleFunc("/{secret}/api/delete", s.withAuth(s.handleDelete))
	mux.HandleFunc("/{secret}/api/stats", s.withAuth(s.handleStats))
	mux.HandleFunc("/", s.handleRoot)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]any{"success": false, "detail": detail})
}

// writeStoreError maps store sentinels onto HTTP statuses. Internal
// details are logged by the caller, never echoed to the client.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, archive.ErrInvalidName):
		writeError(w, http.StatusBadRequest, "invalid archive name")
	case errors.Is(err, archive.ErrNotFound):
		writeError(w, http.StatusNotFound, "archive not found")
	case errors.Is(err, archive.ErrCorruptData):
		writeError(w, http.StatusInternalServerError, "archive data is corrupted")
	default:
		writeError(w, http.StatusInternalServerError, "storage error")
	}
}

// handleRoot answers anything that matched no API route.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusForbidden, "access denied")
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	names, err := s.store.List()
	if err != nil {
		Error("list archives failed", logFields(r), err)
		s.metrics.RecordOpError("list")
		writeStoreError(w, err)
		return
	}
	s.metrics.RecordOp("list")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "archives": names})
}

func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := r.URL.Query().Get("archiveName")
	doc, err := s.store.Load(name)
	if err != nil {
		if !errors.Is(err, archive.ErrNotFound) && !errors.Is(err, archive.ErrInvalidName) {
			Error("load archive failed", logFields(r), err)
		}
		s.metrics.RecordOpError("load")
		writeStoreError(w, err)
		return
	}
	s.metrics.RecordOp("load")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": doc})
}

// saveRequest is the POST /save payload. ArchiveName is optional; when
// absent the store derives the name from a field inside Data.
type saveRequest struct {
	ArchiveName string          `json:"archiveName"`
	Data        json.RawMessage `json:"data"`
}

func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req saveRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "request body is not valid JSON")
		return
	}
	if len(req.Data) == 0 || string(req.Data) == "null" {
		writeError(w, http.StatusBadRequest, "missing data")
		return
	}

	name, err := s.store.Save(req.ArchiveName, req.Data)
	if err != nil {
		if errors.Is(err, archive.ErrInvalidName) || errors.Is(err, archive.ErrCorruptData) {
			s.metrics.RecordOpError("save")
			writeError(w, http.StatusBadRequest, "invalid archive name or payload")
			return
		}
		Error("save archive failed", logFields(r), err)
		s.metrics.RecordOpError("save")
		writeError(w, http.StatusInternalServerError, "unable to save archive")
		return
	}
	s.metrics.RecordOp("save")
	Debug("archive saved", map[string]any{"archive": name})
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "saved"})
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	name := r.URL.Query().Get("archiveName")
	if err := s.store.Delete(name); err != nil {
		if !errors.Is(err, archive.ErrNotFound) && !errors.Is(err, archive.ErrInvalidName) {
			Error("delete archive failed", logFields(r), err)
		}
		s.metrics.RecordOpError("delete")
		writeStoreError(w, err)
		return
	}
	s.metrics.RecordOp("delete")
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "deleted"})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// logFields attaches the request id to handler error logs.
func logFields(r *http.Request) map[string]any {
	return map[string]any{"request_id": RequestIDFromContext(r.Context())}
}
