package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
)

// SuggestRequest asks for repairs of an unparseable raw address
type SuggestRequest struct {
	Raw string `json:"raw"`
}

func (r *Router) suggestAddress(w http.ResponseWriter, req *http.Request) {
	if r.suggester == nil {
		respondError(w, http.StatusServiceUnavailable, "Address suggestions are not configured")
		return
	}

	var body SuggestRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if strings.TrimSpace(body.Raw) == "" {
		respondError(w, http.StatusBadRequest, "raw address is required")
		return
	}

	suggestions, err := r.suggester.Repair(req.Context(), body.Raw)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"suggestions": suggestions,
	})
}
