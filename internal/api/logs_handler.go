package api

import (
	"net/http"

	"github.com/davitacols/recall-sub001/internal/common"
)

// handleLogs returns the most recent captured log entries, newest last.
func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	entries := common.LogEntries()
	if limit := queryInt(r, "limit", 0); limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	if entries == nil {
		entries = []common.LogEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": entries})
}
