// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	submissionqueue "github.com/okian/ascent/internal/adapters/mq/queue"
	"github.com/okian/ascent/internal/domain/types"
)

// SubmissionDependencies defines the interface for submission ingestion.
type SubmissionDependencies interface {
	// SubmitWeek queues a submission; the flag reports an idempotent drop.
	SubmitWeek(ctx context.Context, sub types.WeeklySubmission) (bool, error)
}

// SubmissionsHandler handles weekly value submissions.
type SubmissionsHandler struct {
	deps SubmissionDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

// submissionRequest mirrors the wire schema for POST /submissions.
type submissionRequest struct {
	SubmissionID string             `json:"submission_id"`
	UserID       string             `json:"user_id"`
	Week         string             `json:"week"`
	Values       map[string]float64 `json:"values"`
	TS           string             `json:"ts"`
}

func (s submissionRequest) validate() error {
	switch {
	case strings.TrimSpace(s.UserID) == "":
		return errors.New("missing user_id")
	case strings.TrimSpace(s.Week) == "":
		return errors.New("missing week")
	case len(s.Values) == 0:
		return errors.New("missing values")
	}
	if s.TS != "" {
		if _, err := time.Parse(time.RFC3339, s.TS); err != nil {
			return errors.New("invalid ts; must be RFC3339")
		}
	}
	return nil
}

// HandlePostSubmission handles POST /submissions requests.
func (h *SubmissionsHandler) HandlePostSubmission(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_submission"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req submissionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	week, err := types.ParseWeekKey(req.Week)
	if err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	sub := types.WeeklySubmission{
		SubmissionID: req.SubmissionID,
		UserID:       req.UserID,
		WeekKey:      week,
		Values:       req.Values,
	}
	if req.TS != "" {
		sub.TS, _ = time.Parse(time.RFC3339, req.TS)
	}

	duplicate, err := h.deps.SubmitWeek(r.Context(), sub)
	if err != nil {
		if errors.Is(err, submissionqueue.ErrQueueFull) {
			writeError(w, http.StatusTooManyRequests, "backpressure", NewKind(op, ErrBackpressure))
			return
		}
		writeDomainError(w, err)
		return
	}
	if duplicate {
		writeJSON(w, http.StatusOK, ackResponse{Status: "duplicate", Duplicate: true})
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", Duplicate: false})
}
