package simulate

import "time"

// Config holds configuration for a simulation run.
type Config struct {
	BaseURL    string        // Base URL of the service
	NumUsers   int           // Number of simulated users
	NumWeeks   int           // Weeks of history per user
	Seed       int64         // Seed for reproducible histories
	TopN       int           // Number of top entries to fetch
	Workers    int           // Number of concurrent workers
	Timeout    time.Duration // HTTP request timeout
	OutputFile string        // Output file for generated submissions
	LogFile    string        // Log file for simulation output
	Verbose    bool          // Enable verbose logging
}

// Submission is the wire shape accepted by POST /submissions.
type Submission struct {
	SubmissionID string             `json:"submission_id"`
	UserID       string             `json:"user_id"`
	Week         string             `json:"week"`
	Values       map[string]float64 `json:"values"`
	TS           string             `json:"ts"`
}

// Metric is the wire shape accepted by POST /users/{id}/metrics.
type Metric struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Target float64 `json:"target"`
	Mode   string  `json:"mode"`
	Weight float64 `json:"weight"`
	Active bool    `json:"active"`
}

// Entry is a leaderboard row as served by GET /leaderboard.
type Entry struct {
	Rank   int    `json:"rank"`
	UserID string `json:"user_id"`
	Tier   string `json:"tier"`
	Points int    `json:"points"`
}

// RankState mirrors the per-user state served by GET /users/{id}/rank.
type RankState struct {
	UserID        string `json:"UserID"`
	Points        int    `json:"Points"`
	WeeksAssessed int    `json:"WeeksAssessed"`
}

// RegenerateResult mirrors the response of POST /users/{id}/regenerate.
type RegenerateResult struct {
	Points         int    `json:"points"`
	Tier           string `json:"tier"`
	WeeksProcessed int    `json:"weeks_processed"`
	WeeksSkipped   int    `json:"weeks_skipped"`
	TierChanges    int    `json:"tier_changes"`
}

// AckResponse represents the response from submission ingestion.
type AckResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

// Stats holds simulation statistics.
type Stats struct {
	UsersSimulated       int
	SubmissionsGenerated int
	SubmissionsSubmitted int
	SubmissionsAccepted  int
	SubmissionsDuplicate int
	SubmissionsFailed    int
	StatesRetrieved      int
	LeaderboardEntries   int
	RegenerationsChecked int
	StartTime            time.Time
	EndTime              time.Time
	Duration             time.Duration
}
