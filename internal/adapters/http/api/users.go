// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/okian/ascent/internal/domain/types"
)

// UsersHandler routes the per-user resources under /users/{id}/...
type UsersHandler struct {
	deps UserDependencies
}

// NewUsersHandler creates a new users handler.
func NewUsersHandler(deps UserDependencies) *UsersHandler {
	return &UsersHandler{deps: deps}
}

// metricRequest mirrors the wire schema for metric definition writes.
type metricRequest struct {
	ID        string   `json:"id,omitempty"`
	Name      string   `json:"name"`
	Target    float64  `json:"target"`
	MinTarget *float64 `json:"min_target,omitempty"`
	Category  string   `json:"category,omitempty"`
	Mode      string   `json:"mode"`
	Weight    float64  `json:"weight,omitempty"`
	Active    bool     `json:"active"`
}

// regenerateResponse summarizes a completed history regeneration.
type regenerateResponse struct {
	Points         int    `json:"points"`
	Tier           string `json:"tier"`
	WeeksProcessed int    `json:"weeks_processed"`
	WeeksSkipped   int    `json:"weeks_skipped"`
	TierChanges    int    `json:"tier_changes"`
}

// HandleUsers dispatches /users/{id}/{resource} requests.
func (h *UsersHandler) HandleUsers(w http.ResponseWriter, r *http.Request) {
	const op = "api.users"

	rest := strings.TrimPrefix(r.URL.Path, "/users/")
	parts := strings.SplitN(rest, "/", 3)
	if len(parts) < 2 || parts[0] == "" {
		writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
		return
	}
	userID, resource := parts[0], parts[1]
	var metricID string
	if len(parts) == 3 {
		metricID = parts[2]
	}

	switch resource {
	case "metrics":
		h.handleMetrics(w, r, userID, metricID)
	case "rank":
		h.handleGet(w, r, func() (any, error) { return h.deps.GetState(r.Context(), userID) })
	case "events":
		h.handleGet(w, r, func() (any, error) { return h.deps.ListEvents(r.Context(), userID) })
	case "summary":
		h.handleGet(w, r, func() (any, error) { return h.deps.Summary(r.Context(), userID) })
	case "insights":
		h.handleGet(w, r, func() (any, error) { return h.deps.Insights(r.Context(), userID) })
	case "regenerate":
		h.handleRegenerate(w, r, userID)
	default:
		http.NotFound(w, r)
	}
}

func (h *UsersHandler) handleGet(w http.ResponseWriter, r *http.Request, load func() (any, error)) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	out, err := load()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *UsersHandler) handleMetrics(w http.ResponseWriter, r *http.Request, userID, metricID string) {
	const op = "api.user_metrics"

	switch r.Method {
	case http.MethodGet:
		if metricID != "" {
			def, err := h.deps.GetMetric(r.Context(), userID, metricID)
			if err != nil {
				writeDomainError(w, err)
				return
			}
			writeJSON(w, http.StatusOK, def)
			return
		}
		defs, err := h.deps.ListMetrics(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, defs)

	case http.MethodPost, http.MethodPut:
		var req metricRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
			return
		}
		mode := types.ScoringMode(req.Mode)
		if req.Mode == "" {
			mode = types.ModeNormal
		}
		if !mode.Valid() {
			writeError(w, http.StatusBadRequest, "bad_request", NewKind(op, ErrBadRequest))
			return
		}
		if req.ID == "" {
			req.ID = metricID
		}
		def, err := h.deps.UpsertMetric(r.Context(), userID, types.MetricDefinition{
			ID:        req.ID,
			Name:      req.Name,
			Target:    req.Target,
			MinTarget: req.MinTarget,
			Category:  req.Category,
			Mode:      mode,
			Weight:    req.Weight,
			Active:    req.Active,
		})
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, def)

	default:
		http.NotFound(w, r)
	}
}

func (h *UsersHandler) handleRegenerate(w http.ResponseWriter, r *http.Request, userID string) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	res, err := h.deps.Regenerate(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regenerateResponse{
		Points:         res.State.Points,
		Tier:           res.State.Tier.String(),
		WeeksProcessed: res.WeeksProcessed,
		WeeksSkipped:   res.WeeksEmpty + res.WeeksZero,
		TierChanges:    len(res.Events),
	})
}
