package rest

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/fortuna/concordia/internal/cache"
	"github.com/fortuna/concordia/internal/store"
	"github.com/fortuna/concordia/internal/store/repository"
)

// Handler contains dependencies for HTTP handlers
type Handler struct {
	db         *store.Database
	cache      *cache.RedisCache
	runs       *repository.RunRepository
	games      *repository.GameRepository
	teams      *repository.TeamRepository
	aliases    *repository.AliasRepository
	quarantine *repository.QuarantineRepository
}

// NewHandler creates a new handler
func NewHandler(db *store.Database, redisCache *cache.RedisCache) *Handler {
	return &Handler{
		db:         db,
		cache:      redisCache,
		runs:       repository.NewRunRepository(db),
		games:      repository.NewGameRepository(db),
		teams:      repository.NewTeamRepository(db),
		aliases:    repository.NewAliasRepository(db),
		quarantine: repository.NewQuarantineRepository(db),
	}
}

// HealthCheck handles health check requests
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "concordia",
		"version": "1.0.0",
	})
}

// GetRecentRuns returns the most recent import runs across all providers
func (h *Handler) GetRecentRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 20)

	runs, err := h.runs.ListRecent(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch import runs", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetLatestRun returns the cached latest run for a provider
func (h *Handler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("provider")
	if providerID == "" {
		respondError(w, http.StatusBadRequest, "Missing provider query parameter", nil)
		return
	}

	run, err := h.cache.GetLatestRun(r.Context(), providerID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch latest run", err)
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "No completed runs for provider", nil)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// GetRun returns a specific import run by build ID
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	buildID := vars["buildID"]

	run, err := h.runs.GetByBuildID(r.Context(), buildID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch run", err)
		return
	}
	if run == nil {
		respondError(w, http.StatusNotFound, "Run not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// GetGames returns recently imported games for a provider
func (h *Handler) GetGames(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("provider")
	if providerID == "" {
		respondError(w, http.StatusBadRequest, "Missing provider query parameter", nil)
		return
	}
	limit := parseLimit(r, 50)

	games, err := h.games.ListByProvider(r.Context(), providerID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch games", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"games": games,
		"count": len(games),
	})
}

// GetTeams returns all master teams
func (h *Handler) GetTeams(w http.ResponseWriter, r *http.Request) {
	var (
		teams []*store.MasterTeam
		err   error
	)

	if state := r.URL.Query().Get("state"); state != "" {
		teams, err = h.teams.GetByState(r.Context(), state)
	} else {
		teams, err = h.teams.GetAll(r.Context())
	}
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch teams", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"teams": teams,
		"count": len(teams),
	})
}

// GetTeam returns a specific master team by ID
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	teamID, err := strconv.ParseInt(vars["teamID"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid team ID", err)
		return
	}

	team, err := h.teams.GetByID(r.Context(), teamID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch team", err)
		return
	}
	if team == nil {
		respondError(w, http.StatusNotFound, "Team not found", nil)
		return
	}

	respondJSON(w, http.StatusOK, team)
}

// GetPendingAliases returns aliases awaiting human review
func (h *Handler) GetPendingAliases(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 50)

	aliases, err := h.aliases.ListPending(r.Context(), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch pending aliases", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"aliases": aliases,
		"count":   len(aliases),
	})
}

type reviewRequest struct {
	Status string `json:"status"`
}

// ReviewAlias approves or rejects a pending alias
func (h *Handler) ReviewAlias(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	aliasID, err := strconv.ParseInt(vars["aliasID"], 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid alias ID", err)
		return
	}

	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status := store.ReviewStatus(req.Status)
	if status != store.ReviewApproved && status != store.ReviewRejected {
		respondError(w, http.StatusBadRequest, "Status must be 'approved' or 'rejected'", nil)
		return
	}

	if err := h.aliases.UpdateReview(r.Context(), aliasID, status); err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to update alias review", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"alias_id": aliasID,
		"status":   status,
	})
}

// GetQuarantine returns quarantined records for a provider
func (h *Handler) GetQuarantine(w http.ResponseWriter, r *http.Request) {
	providerID := r.URL.Query().Get("provider")
	if providerID == "" {
		respondError(w, http.StatusBadRequest, "Missing provider query parameter", nil)
		return
	}
	limit := parseLimit(r, 50)

	entries, err := h.quarantine.ListByProvider(r.Context(), providerID, limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch quarantine entries", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"entries": entries,
		"count":   len(entries),
	})
}

func parseLimit(r *http.Request, def int) int {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return def
	}
	if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 500 {
		return l
	}
	return def
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response
func respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]interface{}{
		"error":  message,
		"status": status,
	}

	if err != nil {
		response["details"] = err.Error()
	}

	json.NewEncoder(w).Encode(response)
}
