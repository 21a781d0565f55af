package handlers

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/scoutdesk/scoutdesk/internal/services/sheets"
)

// masterSheet renders a printable PDF one-sheet for a master location
func (r *Router) masterSheet(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	_, masters, err := r.pipe.Snapshot().Get(req.Context(), false)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}

	for i := range masters {
		if masters[i].PageID != id {
			continue
		}
		pdf, err := sheets.GenerateLocationSheet(&masters[i])
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.Header().Set("Content-Type", "application/pdf")
		w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=location-%d.pdf", masters[i].MasterID))
		w.Write(pdf)
		return
	}

	respondError(w, http.StatusNotFound, "Master location not found")
}
