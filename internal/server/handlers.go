package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-kit/log/level"

	"gihan9a/filerelay/pkg/relayproto"
)

// handleGetFile returns the decoded file content and its sha
func (s *RelayServer) handleGetFile(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.store.Fetch(r.Context(), s.ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, snapshot)
}

// handleUpdateFile commits new content and relays the upstream response as is
func (s *RelayServer) handleUpdateFile(w http.ResponseWriter, r *http.Request) {
	req, err := decodeUpdateRequest(r.Body)
	if err != nil {
		s.writeError(w, r, fmt.Errorf("invalid request body: %w", err))
		return
	}

	result, err := s.store.Update(r.Context(), s.ref, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(result)
}

// decodeUpdateRequest reads a POST /file body. content must be present and
// a string; an empty string is a valid update.
func decodeUpdateRequest(body io.Reader) (relayproto.UpdateRequest, error) {
	var payload struct {
		Content *string `json:"content"`
		SHA     string  `json:"sha"`
	}
	if err := json.NewDecoder(body).Decode(&payload); err != nil {
		return relayproto.UpdateRequest{}, err
	}
	if payload.Content == nil {
		return relayproto.UpdateRequest{}, errors.New("content is required")
	}
	return relayproto.UpdateRequest{Content: *payload.Content, SHA: payload.SHA}, nil
}

// handleHealth reports that the process is serving
func (s *RelayServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, relayproto.HealthResponse{Status: "ok"})
}

// writeError logs err and answers with a 500 carrying its message.
// Upstream and local failures are not distinguished.
func (s *RelayServer) writeError(w http.ResponseWriter, r *http.Request, err error) {
	level.Error(s.logger).Log(
		"msg", "request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestIDFrom(r.Context()),
		"err", err,
	)
	writeJSON(w, http.StatusInternalServerError, relayproto.ErrorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
