package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/scoutdesk/scoutdesk/internal/pipeline"
)

// NormalizeRequest selects the scope of a normalization sweep
type NormalizeRequest struct {
	Table  string `json:"table,omitempty"` // empty sweeps every production; "masters" sweeps the master list
	Strict bool   `json:"strict"`          // also resolve raw addresses upstream
	Apply  bool   `json:"apply"`           // false previews without writing
}

func (r *Router) runNormalize(w http.ResponseWriter, req *http.Request) {
	var body NormalizeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	report, err := r.pipe.Normalize(req.Context(), body.Table, operatorFrom(req), body.Strict, body.Apply)
	if err != nil {
		if report != nil {
			// Partial progress is still worth returning
			respondJSON(w, http.StatusOK, report)
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// MatchRequest selects the behavior of a match run. A match run writes by
// default; dry_run previews the staged links without writing.
type MatchRequest struct {
	Force   bool `json:"force"`   // recompute existing links
	Refresh bool `json:"refresh"` // bypass the snapshot cache
	DryRun  bool `json:"dry_run"` // stage without writing
}

func (r *Router) runMatch(w http.ResponseWriter, req *http.Request) {
	var body MatchRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	report, err := r.pipe.Match(req.Context(), operatorFrom(req), body.Force, body.Refresh, !body.DryRun)
	if err != nil {
		if report != nil {
			respondJSON(w, http.StatusOK, report)
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (r *Router) listDuplicates(w http.ResponseWriter, req *http.Request) {
	refresh := req.URL.Query().Get("refresh") == "true"

	clusters, err := r.pipe.FindDuplicates(req.Context(), operatorFrom(req), refresh)
	if err != nil {
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count":    len(clusters),
		"clusters": clusters,
	})
}

func (r *Router) previewMerge(w http.ResponseWriter, req *http.Request) {
	clusterID := mux.Vars(req)["cluster_id"]
	primaryID := req.URL.Query().Get("primary")

	preview, err := r.pipe.PreviewMerge(req.Context(), clusterID, primaryID)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownCluster) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, preview)
}

// MergeRequest is an operator-confirmed merge
type MergeRequest struct {
	ClusterID    string   `json:"clusterId"`
	PrimaryID    string   `json:"primaryId"`
	DuplicateIDs []string `json:"duplicateIds,omitempty"`
}

func (r *Router) runMerge(w http.ResponseWriter, req *http.Request) {
	var body MergeRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if body.ClusterID == "" || body.PrimaryID == "" {
		respondError(w, http.StatusBadRequest, "clusterId and primaryId are required")
		return
	}

	report, err := r.pipe.ApplyMerge(req.Context(), operatorFrom(req), body.ClusterID, body.PrimaryID, body.DuplicateIDs)
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownCluster) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		if report != nil {
			respondJSON(w, http.StatusOK, report)
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

// BackfillRequest controls master creation for unlinked records
type BackfillRequest struct {
	Apply bool `json:"apply"`
}

func (r *Router) runBackfill(w http.ResponseWriter, req *http.Request) {
	var body BackfillRequest
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	report, err := r.pipe.Backfill(req.Context(), operatorFrom(req), body.Apply)
	if err != nil {
		if report != nil {
			respondJSON(w, http.StatusOK, report)
			return
		}
		respondError(w, http.StatusBadGateway, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, report)
}

func (r *Router) listJobs(w http.ResponseWriter, req *http.Request) {
	limit, _ := strconv.Atoi(req.URL.Query().Get("limit"))

	jobs, err := r.pipe.Jobs(limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

func (r *Router) getJob(w http.ResponseWriter, req *http.Request) {
	job, err := r.pipe.Job(mux.Vars(req)["id"])
	if err != nil {
		if errors.Is(err, pipeline.ErrUnknownJob) {
			respondError(w, http.StatusNotFound, err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, job)
}
