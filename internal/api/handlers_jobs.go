package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/repo-ingest/internal/types"
)

// submitWorkRequest is the POST /api/jobs payload
type submitWorkRequest struct {
	SourceEvent         string `json:"sourceEvent"`
	JobType             string `json:"jobType"`
	TargetID            string `json:"targetId"`
	AffectedTargetCount int    `json:"affectedTargetCount"`
	TotalEstimate       int64  `json:"totalEstimate"`
}

// handleSubmitWork routes one work item. Fast-lane work returns its inline
// result; slow-lane work returns the job id to poll.
func (s *Server) handleSubmitWork(w http.ResponseWriter, r *http.Request) {
	var req submitWorkRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}

	if req.SourceEvent == "" || req.JobType == "" || req.TargetID == "" {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "sourceEvent, jobType and targetId are required", nil)
		return
	}
	if !types.JobType(req.JobType).Valid() {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Unknown jobType: "+req.JobType, nil)
		return
	}

	result, err := s.workRouter.Route(r.Context(), types.WorkItem{
		SourceEvent:         types.SourceEvent(req.SourceEvent),
		JobType:             types.JobType(req.JobType),
		TargetID:            req.TargetID,
		AffectedTargetCount: req.AffectedTargetCount,
		TotalEstimate:       req.TotalEstimate,
	})
	if err != nil {
		respondMappedError(w, err)
		return
	}

	status := http.StatusOK
	if result.Lane == types.LaneSlow {
		status = http.StatusAccepted
	}
	respondJSON(w, status, result)
}

// handleGetJob returns the current job record snapshot
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := s.jobs.GetByID(r.Context(), jobID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}

type pauseRequest struct {
	Reason string `json:"reason"`
}

// handlePauseJob administratively pauses a job
func (s *Server) handlePauseJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	var req pauseRequest
	if r.ContentLength > 0 {
		if err := parseJSONBody(r, &req); err != nil {
			respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body: "+err.Error(), nil)
			return
		}
	}

	job, err := s.tracker.Pause(r.Context(), jobID, req.Reason)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// handleResumeJob resumes a paused job
func (s *Server) handleResumeJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := s.tracker.Resume(r.Context(), jobID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}

// handleResetJob administratively returns a job to queued
func (s *Server) handleResetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	job, err := s.tracker.Reset(r.Context(), jobID)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}

type chunkSizeRequest struct {
	ChunkSize int `json:"chunkSize"`
}

// handleUpdateChunkSize tunes the page size for subsequent chunks
func (s *Server) handleUpdateChunkSize(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["id"]

	var req chunkSizeRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body: "+err.Error(), nil)
		return
	}
	if req.ChunkSize <= 0 {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "chunkSize must be positive", nil)
		return
	}

	job, err := s.tracker.UpdateChunkSize(r.Context(), jobID, req.ChunkSize)
	if err != nil {
		respondMappedError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, job)
}
