package rest

import (
	"encoding/json"
	"net/http"

	"github.com/fortuna/concordia/internal/importjob"
)

// ImportHandler proxies API calls to the import job service.
type ImportHandler struct {
	service *importjob.Service
}

// NewImportHandler wires the REST layer to the import job service.
func NewImportHandler(service *importjob.Service) *ImportHandler {
	return &ImportHandler{service: service}
}

type apiImportRequest struct {
	ProviderID string `json:"provider_id"`
	FeedPath   string `json:"feed_path"`
}

// HandleImportRequest handles POST /api/v1/imports
func (h *ImportHandler) HandleImportRequest(w http.ResponseWriter, r *http.Request) {
	var req apiImportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if req.ProviderID == "" || req.FeedPath == "" {
		respondError(w, http.StatusBadRequest, "provider_id and feed_path are required", nil)
		return
	}

	job, err := h.service.Enqueue(r.Context(), req.ProviderID, req.FeedPath)
	if err != nil {
		respondError(w, http.StatusBadRequest, "Failed to enqueue import job", err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]interface{}{
		"job": jobPayload(job),
	})
}

// HandleImportStatus handles GET /api/v1/imports/status
func (h *ImportHandler) HandleImportStatus(w http.ResponseWriter, r *http.Request) {
	summary, err := h.service.GetStatus(r.Context())
	if err != nil {
		respondError(w, http.StatusInternalServerError, "Failed to fetch status", err)
		return
	}

	payload := buildStatusPayload(summary)
	respondJSON(w, http.StatusOK, payload)
}

func buildStatusPayload(summary *importjob.StatusSummary) map[string]interface{} {
	response := map[string]interface{}{
		"status":  "idle",
		"message": "No active jobs",
		"history": []map[string]interface{}{},
	}

	if summary.ActiveJob != nil {
		response["status"] = summary.ActiveJob.Status
		if summary.ActiveJob.StatusMessage.Valid {
			response["message"] = summary.ActiveJob.StatusMessage.String
		}
		response["active_job"] = jobPayload(summary.ActiveJob)
	}

	history := make([]map[string]interface{}, 0, len(summary.History))
	for _, job := range summary.History {
		history = append(history, jobPayload(job))
	}

	response["history"] = history
	return response
}

func jobPayload(job *importjob.Job) map[string]interface{} {
	if job == nil {
		return nil
	}

	payload := map[string]interface{}{
		"job_id":           job.JobID,
		"provider_id":      job.ProviderID,
		"feed_path":        job.FeedPath,
		"status":           job.Status,
		"progress_current": job.ProgressCurrent,
		"progress_total":   job.ProgressTotal,
		"created_at":       job.CreatedAt,
		"updated_at":       job.UpdatedAt,
	}

	if job.StatusMessage.Valid {
		payload["status_message"] = job.StatusMessage.String
	}
	if job.StartedAt.Valid {
		payload["started_at"] = job.StartedAt.Time
	}
	if job.CompletedAt.Valid {
		payload["completed_at"] = job.CompletedAt.Time
	}
	if job.LastError.Valid {
		payload["last_error"] = job.LastError.String
	}

	return payload
}
