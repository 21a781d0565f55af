package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/mux"

	"github.com/scoutdesk/scoutdesk/internal/buildinfo"
	"github.com/scoutdesk/scoutdesk/internal/config"
	"github.com/scoutdesk/scoutdesk/internal/database"
	"github.com/scoutdesk/scoutdesk/internal/middleware"
	"github.com/scoutdesk/scoutdesk/internal/pipeline"
	"github.com/scoutdesk/scoutdesk/internal/services/suggest"
	"github.com/scoutdesk/scoutdesk/internal/ws"
	"github.com/scoutdesk/scoutdesk/web"
)

// Router wraps the mux router and the console's collaborators
type Router struct {
	*mux.Router
	db        *database.DB
	cfg       *config.Config
	pipe      *pipeline.Service
	hub       *ws.Hub
	suggester *suggest.Suggester // nil when no Gemini key is configured
}

// NewRouter creates the HTTP router with all routes
func NewRouter(db *database.DB, cfg *config.Config, pipe *pipeline.Service, hub *ws.Hub, suggester *suggest.Suggester) *Router {
	r := &Router{
		Router:    mux.NewRouter(),
		db:        db,
		cfg:       cfg,
		pipe:      pipe,
		hub:       hub,
		suggester: suggester,
	}

	// Health check endpoint
	r.HandleFunc("/health", r.healthCheck).Methods("GET")

	// Auth routes
	auth := r.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/login", r.login).Methods("POST")
	auth.HandleFunc("/register", r.register).Methods("POST")
	auth.HandleFunc("/logout", r.logout).Methods("POST")

	// Progress stream; the token is checked during the ws handshake by
	// the browser session, not here
	r.HandleFunc("/ws/progress", func(w http.ResponseWriter, req *http.Request) {
		ws.ServeWs(hub, w, req)
	})

	// API routes (protected)
	api := r.PathPrefix("/api").Subrouter()
	api.Use(middleware.Auth(cfg.JWTSecret))

	api.HandleFunc("/status", r.getStatus).Methods("GET")

	pipe2 := api.PathPrefix("/pipeline").Subrouter()
	pipe2.HandleFunc("/normalize", r.runNormalize).Methods("POST")
	pipe2.HandleFunc("/match", r.runMatch).Methods("POST")
	pipe2.HandleFunc("/duplicates", r.listDuplicates).Methods("GET")
	pipe2.HandleFunc("/duplicates/{cluster_id}/preview", r.previewMerge).Methods("GET")
	pipe2.HandleFunc("/merge", r.runMerge).Methods("POST")
	pipe2.HandleFunc("/backfill", r.runBackfill).Methods("POST")

	api.HandleFunc("/jobs", r.listJobs).Methods("GET")
	api.HandleFunc("/jobs/{id}", r.getJob).Methods("GET")
	api.HandleFunc("/masters/{id}/sheet", r.masterSheet).Methods("GET")
	api.HandleFunc("/suggest/address", r.suggestAddress).Methods("POST")

	// Static console assets (embedded SvelteKit build)
	fsys, err := web.GetFileSystem()
	if err != nil {
		log.Printf("⚠️ Frontend assets unavailable: %v", err)
	} else {
		r.PathPrefix("/").Handler(http.FileServer(http.FS(fsys)))
	}

	return r
}

// healthCheck returns the health status of the API
func (r *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// getStatus reports cache freshness so the console can show data age
func (r *Router) getStatus(w http.ResponseWriter, req *http.Request) {
	snap := r.pipe.Snapshot()
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "running",
		"fetchedAt": snap.FetchedAt(),
		"stale":     snap.Stale(),
		"build": map[string]string{
			"commit":    buildinfo.CommitHash,
			"builtAt":   buildinfo.BuildTime,
			"startedAt": buildinfo.StartTime,
		},
	})
}

// envelope is the uniform shape of every JSON response. The console
// checks ok before touching data.
type envelope struct {
	OK      bool        `json:"ok"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// respondJSON sends a success envelope carrying data
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{OK: true, Data: data})
}

// respondError sends a failure envelope carrying the message
func respondError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, envelope{OK: false, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// operatorFrom pulls the authenticated user's email off the request
// context for job attribution
func operatorFrom(req *http.Request) string {
	claims, ok := req.Context().Value(middleware.UserContextKey).(jwt.MapClaims)
	if !ok {
		return ""
	}
	if email, ok := claims["email"].(string); ok {
		return email
	}
	return ""
}
