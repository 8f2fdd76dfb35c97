package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"media-vfs/internal/category"
	"media-vfs/internal/logging"

	"github.com/gorilla/mux"
)

// maxSettingBody limits PUT bodies; rule patterns are short.
const maxSettingBody = 64 << 10

// SettingResponse is returned by the settings endpoints.
type SettingResponse struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type setSettingRequest struct {
	Value *string `json:"value"`
}

// GetSetting returns the value stored under {key}.
func (h *Handlers) GetSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]

	value, found, err := h.settings.LoadByKey(r.Context(), key)
	if err != nil {
		logging.Error("Failed to load setting %s: %v", key, err)
		writeJSONError(w, "failed to load setting", http.StatusInternalServerError)
		return
	}
	if !found {
		writeJSONError(w, "setting not found", http.StatusNotFound)
		return
	}

	writeJSONStatus(w, http.StatusOK, SettingResponse{Key: key, Value: value})
}

// PutSetting stores {"value": ...} under {key}. Rule keys are validated
// before they are written.
func (h *Handlers) PutSetting(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["key"]
	if strings.TrimSpace(key) == "" {
		writeJSONError(w, "key is required", http.StatusBadRequest)
		return
	}

	var req setSettingRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSettingBody)).Decode(&req); err != nil {
		writeJSONError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Value == nil {
		writeJSONError(w, "value is required", http.StatusBadRequest)
		return
	}

	if err := category.ValidateRule(key, *req.Value); err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.settings.Set(r.Context(), key, *req.Value); err != nil {
		logging.Error("Failed to save setting %s: %v", key, err)
		writeJSONError(w, "failed to save setting", http.StatusInternalServerError)
		return
	}
	logging.Info("Setting %s updated", key)

	writeJSONStatus(w, http.StatusOK, SettingResponse{Key: key, Value: *req.Value})
}
