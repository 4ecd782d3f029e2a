package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-kit/log/level"
	"github.com/wI2L/jsondiff"

	"gihan9a/filerelay/pkg/relayproto"
)

// handleDiffFile previews an update: it returns the JSON patch that turns
// the current remote document into the proposed one. Nothing is written.
func (s *RelayServer) handleDiffFile(w http.ResponseWriter, r *http.Request) {
	var req relayproto.DiffRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, fmt.Errorf("invalid request body: %w", err))
		return
	}

	snapshot, err := s.store.Fetch(r.Context(), s.ref)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	patch, err := jsondiff.CompareJSON([]byte(snapshot.Content), []byte(req.Content))
	if err != nil {
		s.writeError(w, r, fmt.Errorf("error comparing JSON documents: %w", err))
		return
	}
	if patch == nil {
		patch = jsondiff.Patch{}
	}

	level.Debug(s.logger).Log("msg", "computed diff", "sha", snapshot.SHA, "operations", len(patch))
	writeJSON(w, http.StatusOK, patch)
}
