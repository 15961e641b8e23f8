package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"
)

// verifyResults checks leaderboard consistency against retrieved rank states
// and confirms that history regeneration is deterministic.
func verifyResults(ctx context.Context, config *Config, states map[string]RankState, leaderboard []Entry, stats *Stats) error {
	log.Println("Verifying results...")

	if len(states) == 0 {
		return fmt.Errorf("no rank states to verify")
	}

	sorted := make([]RankState, 0, len(states))
	for _, state := range states {
		sorted = append(sorted, state)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Points > sorted[j].Points
	})

	if len(leaderboard) > 0 {
		if err := verifyLeaderboardConsistency(sorted, leaderboard); err != nil {
			log.Printf("Leaderboard consistency warning: %v", err)
		} else {
			log.Println("Leaderboard consistency verified")
		}
	}

	if err := verifyRegenerationDeterminism(ctx, config, sorted, stats); err != nil {
		return fmt.Errorf("regeneration determinism check failed: %w", err)
	}

	displayTopPerformers(sorted, leaderboard)

	log.Println("Result verification completed")
	return nil
}

// verifyLeaderboardConsistency checks the leaderboard against sorted states.
func verifyLeaderboardConsistency(sorted []RankState, leaderboard []Entry) error {
	if len(leaderboard) == 0 {
		return fmt.Errorf("empty leaderboard")
	}

	topState := sorted[0]
	topEntry := leaderboard[0]

	if topEntry.Points != topState.Points {
		return fmt.Errorf("top leaderboard points (%d) do not match top ranked points (%d)",
			topEntry.Points, topState.Points)
	}

	for i := 1; i < len(leaderboard); i++ {
		if leaderboard[i].Points > leaderboard[i-1].Points {
			return fmt.Errorf("leaderboard not properly sorted: entry %d has more points than entry %d",
				i, i-1)
		}
	}

	return nil
}

// verifyRegenerationDeterminism regenerates each user's history twice and
// confirms both runs land on identical points and tier.
func verifyRegenerationDeterminism(ctx context.Context, config *Config, states []RankState, stats *Stats) error {
	log.Printf("Checking regeneration determinism for %d users...", len(states))

	client := newHTTPClient(config.Timeout)

	var checked, mismatched, failed int64
	userChan := make(chan string, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for userID := range userChan {
				select {
				case <-ctx.Done():
					return
				default:
					first, err := regenerate(client, config.BaseURL, userID)
					if err != nil {
						atomic.AddInt64(&failed, 1)
						continue
					}
					second, err := regenerate(client, config.BaseURL, userID)
					if err != nil {
						atomic.AddInt64(&failed, 1)
						continue
					}
					if first != second {
						atomic.AddInt64(&mismatched, 1)
						log.Printf("regeneration mismatch for %s: %+v vs %+v", userID, first, second)
						continue
					}
					atomic.AddInt64(&checked, 1)
				}
			}
		}()
	}

	go func() {
		defer close(userChan)
		for _, state := range states {
			select {
			case <-ctx.Done():
				return
			case userChan <- state.UserID:
			}
		}
	}()

	wg.Wait()

	stats.RegenerationsChecked = int(atomic.LoadInt64(&checked))

	if n := atomic.LoadInt64(&mismatched); n > 0 {
		return fmt.Errorf("%d users produced diverging regeneration results", n)
	}
	log.Printf(`Regeneration determinism verified:
   Checked: %d
   Failed requests: %d
`, stats.RegenerationsChecked, int(atomic.LoadInt64(&failed)))
	return nil
}

// regenerate triggers a history regeneration and returns its outcome.
func regenerate(client *HTTPClient, baseURL, userID string) (RegenerateResult, error) {
	url := fmt.Sprintf("%s/users/%s/regenerate", baseURL, userID)

	resp, err := client.Post(url, nil)
	if err != nil {
		return RegenerateResult{}, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return RegenerateResult{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return RegenerateResult{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var result RegenerateResult
	if err := json.Unmarshal(body, &result); err != nil {
		return RegenerateResult{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return result, nil
}

// displayTopPerformers shows the top performers from states and leaderboard.
func displayTopPerformers(sorted []RankState, leaderboard []Entry) {
	topN := 10
	if len(sorted) < topN {
		topN = len(sorted)
	}

	log.Printf("Top %d performers from rank states:", topN)
	for i := 0; i < topN; i++ {
		state := sorted[i]
		log.Printf("   %d. %s - Points: %d (weeks: %d)", i+1, state.UserID, state.Points, state.WeeksAssessed)
	}

	if len(leaderboard) > 0 {
		leaderboardTopN := topN
		if len(leaderboard) < leaderboardTopN {
			leaderboardTopN = len(leaderboard)
		}

		log.Printf("Top %d performers from leaderboard:", leaderboardTopN)
		for i := 0; i < leaderboardTopN; i++ {
			entry := leaderboard[i]
			log.Printf("   %d. %s - %s, %d points", entry.Rank, entry.UserID, entry.Tier, entry.Points)
		}
	}
}
