package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/ascent/internal/adapters/http/api"
	submissionqueue "github.com/okian/ascent/internal/adapters/mq/queue"
	repository "github.com/okian/ascent/internal/adapters/repository"
	service "github.com/okian/ascent/internal/app"
	"github.com/okian/ascent/internal/domain/analytics"
	"github.com/okian/ascent/internal/domain/rank"
	"github.com/okian/ascent/internal/domain/replay"
	"github.com/okian/ascent/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

// Mock implementations for testing
type mockDependencies struct {
	seen map[string]bool

	submitErr error
	submitted []types.WeeklySubmission

	metrics  map[string]types.MetricDefinition
	state    types.RankState
	stateErr error
	events   []types.RankChangeEvent
	summary  service.Summary
	insights analytics.Insights
	regenRes replay.Result
	regenErr error

	topN    []api.Entry
	topNErr error
	rank    api.Entry
	rankErr error
}

func (m *mockDependencies) SubmitWeek(ctx context.Context, sub types.WeeklySubmission) (bool, error) {
	if m.submitErr != nil {
		return false, m.submitErr
	}
	if m.seen == nil {
		m.seen = make(map[string]bool)
	}
	id := sub.SubmissionID
	if id == "" {
		id = sub.UserID + "/" + sub.WeekKey.String()
	}
	if m.seen[id] {
		return true, nil
	}
	m.seen[id] = true
	m.submitted = append(m.submitted, sub)
	return false, nil
}

func (m *mockDependencies) UpsertMetric(ctx context.Context, userID string, def types.MetricDefinition) (types.MetricDefinition, error) {
	if m.metrics == nil {
		m.metrics = make(map[string]types.MetricDefinition)
	}
	if def.ID == "" {
		def.ID = fmt.Sprintf("metric-%d", len(m.metrics)+1)
	}
	m.metrics[def.ID] = def
	return def, nil
}

func (m *mockDependencies) GetMetric(ctx context.Context, userID, metricID string) (types.MetricDefinition, error) {
	def, ok := m.metrics[metricID]
	if !ok {
		return types.MetricDefinition{}, repository.ErrNotFound
	}
	return def, nil
}

func (m *mockDependencies) ListMetrics(ctx context.Context, userID string) ([]types.MetricDefinition, error) {
	out := make([]types.MetricDefinition, 0, len(m.metrics))
	for _, def := range m.metrics {
		out = append(out, def)
	}
	return out, nil
}

func (m *mockDependencies) GetState(ctx context.Context, userID string) (types.RankState, error) {
	if m.stateErr != nil {
		return types.RankState{}, m.stateErr
	}
	return m.state, nil
}

func (m *mockDependencies) ListEvents(ctx context.Context, userID string) ([]types.RankChangeEvent, error) {
	return m.events, nil
}

func (m *mockDependencies) Summary(ctx context.Context, userID string) (service.Summary, error) {
	return m.summary, nil
}

func (m *mockDependencies) Insights(ctx context.Context, userID string) (analytics.Insights, error) {
	return m.insights, nil
}

func (m *mockDependencies) Regenerate(ctx context.Context, userID string) (replay.Result, error) {
	if m.regenErr != nil {
		return replay.Result{}, m.regenErr
	}
	return m.regenRes, nil
}

func (m *mockDependencies) TopN(ctx context.Context, n int) ([]api.Entry, error) {
	if m.topNErr != nil {
		return nil, m.topNErr
	}
	if n > len(m.topN) {
		return m.topN, nil
	}
	return m.topN[:n], nil
}

func (m *mockDependencies) Rank(ctx context.Context, userID string) (api.Entry, error) {
	if m.rankErr != nil {
		return api.Entry{}, m.rankErr
	}
	return m.rank, nil
}

type mockStatsProvider struct {
	stats map[string]interface{}
}

func (m *mockStatsProvider) GetStats() map[string]interface{} {
	return m.stats
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func TestServer_Register(t *testing.T) {
	Convey("Given a new API server", t, func() {
		deps := &mockDependencies{}
		statsProvider := &mockStatsProvider{stats: map[string]interface{}{}}
		server := api.NewServer(deps, statsProvider, 100)
		mux := http.NewServeMux()

		Convey("When registering routes", func() {
			server.Register(context.Background(), mux)

			Convey("And health endpoint should be accessible", func() {
				req := httptest.NewRequest("GET", "/healthz", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			})

			Convey("And stats endpoint should be accessible", func() {
				req := httptest.NewRequest("GET", "/stats", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			})

			Convey("And submissions endpoint should reject an empty body", func() {
				req := httptest.NewRequest("POST", "/submissions", strings.NewReader(`{}`))
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})

			Convey("And leaderboard endpoint should be accessible", func() {
				req := httptest.NewRequest("GET", "/leaderboard?limit=10", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			})

			Convey("And rank endpoint should be accessible", func() {
				req := httptest.NewRequest("GET", "/rank/user-1", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			})

			Convey("And unknown paths should return not found", func() {
				req := httptest.NewRequest("GET", "/unknown", nil)
				w := httptest.NewRecorder()
				mux.ServeHTTP(w, req)
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestSubmissionsHandler_HandlePostSubmission(t *testing.T) {
	Convey("Given a submissions handler", t, func() {
		deps := &mockDependencies{}
		handler := api.NewSubmissionsHandler(deps)

		validBody := `{
			"submission_id": "sub-123",
			"user_id": "user-456",
			"week": "2025-W30",
			"values": {"hours": 8.5},
			"ts": "2025-07-21T12:00:00Z"
		}`

		Convey("When handling a valid POST request", func() {
			req := httptest.NewRequest("POST", "/submissions", strings.NewReader(validBody))
			w := httptest.NewRecorder()

			Convey("Then it should return accepted status", func() {
				handler.HandlePostSubmission(w, req)
				So(w.Code, ShouldEqual, http.StatusAccepted)

				var response ackResponse
				err := json.NewDecoder(w.Body).Decode(&response)
				So(err, ShouldBeNil)
				So(response.Status, ShouldEqual, "accepted")
				So(response.Duplicate, ShouldBeFalse)
				So(len(deps.submitted), ShouldEqual, 1)
				So(deps.submitted[0].WeekKey.String(), ShouldEqual, "2025-W30")
			})
		})

		Convey("When handling a duplicate submission", func() {
			req1 := httptest.NewRequest("POST", "/submissions", strings.NewReader(validBody))
			w1 := httptest.NewRecorder()
			handler.HandlePostSubmission(w1, req1)

			req2 := httptest.NewRequest("POST", "/submissions", strings.NewReader(validBody))
			w2 := httptest.NewRecorder()

			Convey("Then it should return duplicate status", func() {
				handler.HandlePostSubmission(w2, req2)
				So(w2.Code, ShouldEqual, http.StatusOK)

				var response ackResponse
				err := json.NewDecoder(w2.Body).Decode(&response)
				So(err, ShouldBeNil)
				So(response.Status, ShouldEqual, "duplicate")
				So(response.Duplicate, ShouldBeTrue)
				So(len(deps.submitted), ShouldEqual, 1)
			})
		})

		Convey("When handling an invalid JSON request", func() {
			req := httptest.NewRequest("POST", "/submissions", strings.NewReader(`{invalid json`))
			w := httptest.NewRecorder()

			Convey("Then it should return bad request status", func() {
				handler.HandlePostSubmission(w, req)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When handling a request with missing required fields", func() {
			body := `{"user_id": "user-456", "values": {"hours": 8.5}}`
			req := httptest.NewRequest("POST", "/submissions", strings.NewReader(body))
			w := httptest.NewRecorder()

			Convey("Then it should return bad request status", func() {
				handler.HandlePostSubmission(w, req)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When handling a malformed week key", func() {
			body := `{"user_id": "user-456", "week": "2025-30", "values": {"hours": 8.5}}`
			req := httptest.NewRequest("POST", "/submissions", strings.NewReader(body))
			w := httptest.NewRecorder()

			Convey("Then it should return bad request status", func() {
				handler.HandlePostSubmission(w, req)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When handling a non-POST request", func() {
			req := httptest.NewRequest("GET", "/submissions", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return not found status", func() {
				handler.HandlePostSubmission(w, req)
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the queue is saturated", func() {
			deps.submitErr = submissionqueue.ErrQueueFull
			req := httptest.NewRequest("POST", "/submissions", strings.NewReader(validBody))
			w := httptest.NewRecorder()

			Convey("Then it should return too many requests status", func() {
				handler.HandlePostSubmission(w, req)
				So(w.Code, ShouldEqual, http.StatusTooManyRequests)

				var response errorResponse
				err := json.NewDecoder(w.Body).Decode(&response)
				So(err, ShouldBeNil)
				So(response.Code, ShouldEqual, "backpressure")
			})
		})
	})
}

func TestUsersHandler_Metrics(t *testing.T) {
	Convey("Given a users handler", t, func() {
		deps := &mockDependencies{}
		handler := api.NewUsersHandler(deps)

		Convey("When creating a metric definition", func() {
			body := `{"name": "deep work hours", "target": 10, "mode": "normal", "active": true}`
			req := httptest.NewRequest("POST", "/users/user-1/metrics", strings.NewReader(body))
			w := httptest.NewRecorder()

			Convey("Then it should return the stored definition with an ID", func() {
				handler.HandleUsers(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)

				var def types.MetricDefinition
				err := json.NewDecoder(w.Body).Decode(&def)
				So(err, ShouldBeNil)
				So(def.ID, ShouldNotBeEmpty)
				So(def.Name, ShouldEqual, "deep work hours")
				So(def.Mode, ShouldEqual, types.ModeNormal)
			})
		})

		Convey("When creating a metric with an unknown mode", func() {
			body := `{"name": "sleep", "target": 8, "mode": "sideways", "active": true}`
			req := httptest.NewRequest("POST", "/users/user-1/metrics", strings.NewReader(body))
			w := httptest.NewRecorder()

			Convey("Then it should return bad request status", func() {
				handler.HandleUsers(w, req)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When requesting an unknown metric", func() {
			req := httptest.NewRequest("GET", "/users/user-1/metrics/missing", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return not found status", func() {
				handler.HandleUsers(w, req)
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When listing metrics", func() {
			deps.metrics = map[string]types.MetricDefinition{
				"m-1": {ID: "m-1", Name: "hours", Target: 10, Mode: types.ModeNormal, Active: true},
			}
			req := httptest.NewRequest("GET", "/users/user-1/metrics", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return the definitions", func() {
				handler.HandleUsers(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)

				var defs []types.MetricDefinition
				err := json.NewDecoder(w.Body).Decode(&defs)
				So(err, ShouldBeNil)
				So(len(defs), ShouldEqual, 1)
				So(defs[0].ID, ShouldEqual, "m-1")
			})
		})

		Convey("When the path has no resource", func() {
			req := httptest.NewRequest("GET", "/users/user-1", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return bad request status", func() {
				handler.HandleUsers(w, req)
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestUsersHandler_RankAndRegenerate(t *testing.T) {
	Convey("Given a users handler", t, func() {
		deps := &mockDependencies{
			state: types.RankState{
				UserID: "user-1",
				Tier:   types.TierSilver,
				Points: 640,
			},
		}
		handler := api.NewUsersHandler(deps)

		Convey("When requesting rank state", func() {
			req := httptest.NewRequest("GET", "/users/user-1/rank", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return the state", func() {
				handler.HandleUsers(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)

				var state types.RankState
				err := json.NewDecoder(w.Body).Decode(&state)
				So(err, ShouldBeNil)
				So(state.Points, ShouldEqual, 640)
			})
		})

		Convey("When rank state does not exist", func() {
			deps.stateErr = repository.ErrNotFound
			req := httptest.NewRequest("GET", "/users/ghost/rank", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return not found status", func() {
				handler.HandleUsers(w, req)
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When triggering regeneration", func() {
			deps.regenRes = replay.Result{
				State:          types.RankState{UserID: "user-1", Tier: types.TierGold, Points: 1200},
				WeeksProcessed: 26,
				WeeksEmpty:     3,
			}
			req := httptest.NewRequest("POST", "/users/user-1/regenerate", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return the regeneration outcome", func() {
				handler.HandleUsers(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)

				var res map[string]interface{}
				err := json.NewDecoder(w.Body).Decode(&res)
				So(err, ShouldBeNil)
				So(res["points"], ShouldEqual, 1200)
				So(res["tier"], ShouldEqual, "gold")
				So(res["weeks_processed"], ShouldEqual, 26)
				So(res["weeks_skipped"], ShouldEqual, 3)
			})
		})

		Convey("When regeneration is already running", func() {
			deps.regenErr = replay.ErrRegenerationInProgress
			req := httptest.NewRequest("POST", "/users/user-1/regenerate", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return conflict status", func() {
				handler.HandleUsers(w, req)
				So(w.Code, ShouldEqual, http.StatusConflict)

				var response errorResponse
				err := json.NewDecoder(w.Body).Decode(&response)
				So(err, ShouldBeNil)
				So(response.Code, ShouldEqual, "regeneration_in_progress")
			})
		})

		Convey("When regeneration finds no active metrics", func() {
			deps.regenErr = rank.ErrNoActiveMetrics
			req := httptest.NewRequest("POST", "/users/user-1/regenerate", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return unprocessable entity status", func() {
				handler.HandleUsers(w, req)
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
			})
		})

		Convey("When regenerating with GET", func() {
			req := httptest.NewRequest("GET", "/users/user-1/regenerate", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return not found status", func() {
				handler.HandleUsers(w, req)
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestLeaderboardHandler_HandleGetLeaderboard(t *testing.T) {
	Convey("Given a leaderboard handler", t, func() {
		deps := &mockDependencies{
			topN: []api.Entry{
				{Rank: 1, UserID: "user-1", Tier: "diamond", Points: 2400},
				{Rank: 2, UserID: "user-2", Tier: "gold", Points: 1100},
				{Rank: 3, UserID: "user-3", Tier: "bronze", Points: 300},
			},
		}
		handler := api.NewLeaderboardHandler(deps, 100)

		Convey("When requesting top N entries", func() {
			req := httptest.NewRequest("GET", "/leaderboard?limit=2", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return the top N entries", func() {
				handler.HandleGetLeaderboard(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)

				var response []api.Entry
				err := json.NewDecoder(w.Body).Decode(&response)
				So(err, ShouldBeNil)
				So(len(response), ShouldEqual, 2)
				So(response[0].UserID, ShouldEqual, "user-1")
				So(response[1].UserID, ShouldEqual, "user-2")
			})
		})

		Convey("When no limit is specified", func() {
			req := httptest.NewRequest("GET", "/leaderboard", nil)
			w := httptest.NewRecorder()

			handler.HandleGetLeaderboard(w, req)

			Convey("Then it should return 400 Bad Request", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When the limit exceeds the maximum", func() {
			req := httptest.NewRequest("GET", "/leaderboard?limit=500", nil)
			w := httptest.NewRecorder()

			handler.HandleGetLeaderboard(w, req)

			Convey("Then it should return 400 with limit_exceeded", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)

				var response errorResponse
				err := json.NewDecoder(w.Body).Decode(&response)
				So(err, ShouldBeNil)
				So(response.Code, ShouldEqual, "limit_exceeded")
			})
		})

		Convey("When the leaderboard returns an error", func() {
			deps.topNErr = fmt.Errorf("database error")
			req := httptest.NewRequest("GET", "/leaderboard?limit=10", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return internal server error", func() {
				handler.HandleGetLeaderboard(w, req)
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestRankHandler_HandleGetRank(t *testing.T) {
	Convey("Given a rank handler", t, func() {
		deps := &mockDependencies{
			rank: api.Entry{Rank: 5, UserID: "user-123", Tier: "silver", Points: 850},
		}
		handler := api.NewRankHandler(deps)

		Convey("When requesting rank for an existing user", func() {
			req := httptest.NewRequest("GET", "/rank/user-123", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return the rank information", func() {
				handler.HandleGetRank(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldContainSubstring, "application/json")

				var response api.Entry
				err := json.NewDecoder(w.Body).Decode(&response)
				So(err, ShouldBeNil)
				So(response.UserID, ShouldEqual, "user-123")
				So(response.Rank, ShouldEqual, 5)
				So(response.Points, ShouldEqual, 850)
			})
		})

		Convey("When requesting rank for a non-existent user", func() {
			deps.rankErr = repository.ErrNotFound
			req := httptest.NewRequest("GET", "/rank/ghost", nil)
			w := httptest.NewRecorder()

			handler.HandleGetRank(w, req)

			Convey("Then it should return not found status", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})

		Convey("When the board returns another error", func() {
			deps.rankErr = fmt.Errorf("database error")
			req := httptest.NewRequest("GET", "/rank/user-123", nil)
			w := httptest.NewRecorder()

			handler.HandleGetRank(w, req)

			Convey("Then it should return internal server error", func() {
				So(w.Code, ShouldEqual, http.StatusInternalServerError)
			})
		})
	})
}

func TestHealthHandler_HandleHealth(t *testing.T) {
	Convey("Given a health handler", t, func() {
		handler := api.NewHealthHandler()

		Convey("When handling health check request", func() {
			req := httptest.NewRequest("GET", "/healthz", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return OK status", func() {
				handler.HandleHealth(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)
			})
		})
	})
}

func TestStatsHandler_HandleStats(t *testing.T) {
	Convey("Given a stats handler", t, func() {
		mockStats := &mockStatsProvider{
			stats: map[string]interface{}{
				"total_users":  150,
				"queue_length": 12,
			},
		}
		handler := api.NewStatsHandler(mockStats)

		Convey("When handling stats request", func() {
			req := httptest.NewRequest("GET", "/stats", nil)
			w := httptest.NewRecorder()

			Convey("Then it should return stats", func() {
				handler.HandleStats(w, req)
				So(w.Code, ShouldEqual, http.StatusOK)

				var response map[string]interface{}
				err := json.NewDecoder(w.Body).Decode(&response)
				So(err, ShouldBeNil)
				So(response["total_users"], ShouldEqual, 150)
				So(response["queue_length"], ShouldEqual, 12)
			})
		})
	})
}
