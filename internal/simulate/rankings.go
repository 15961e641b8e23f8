package simulate

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
)

// retrieveStates fetches the rank state for every simulated user concurrently.
func retrieveStates(ctx context.Context, config *Config, userIDs []string, stats *Stats) (map[string]RankState, error) {
	log.Printf("Retrieving rank states for %d users with %d workers...", len(userIDs), config.Workers)

	client := newHTTPClient(config.Timeout)

	var mu sync.Mutex
	states := make(map[string]RankState, len(userIDs))
	var failed int64

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
					state, err := retrieveSingleState(client, config.BaseURL, userID)
					if err != nil {
						atomic.AddInt64(&failed, 1)
						if config.Verbose {
							log.Printf("failed to get state for %s: %v", userID, err)
						}
						continue
					}
					mu.Lock()
					states[userID] = state
					mu.Unlock()
				}
			}
		}()
	}

	go func() {
		defer close(userChan)
		for _, userID := range userIDs {
			select {
			case <-ctx.Done():
				return
			case userChan <- userID:
			}
		}
	}()

	wg.Wait()

	stats.StatesRetrieved = len(states)
	log.Printf(`Rank state retrieval completed:
   Retrieved: %d
   Failed: %d
`, len(states), int(atomic.LoadInt64(&failed)))

	return states, nil
}

// retrieveSingleState fetches the rank state for one user.
func retrieveSingleState(client *HTTPClient, baseURL, userID string) (RankState, error) {
	url := fmt.Sprintf("%s/users/%s/rank", baseURL, userID)

	resp, err := client.Get(url)
	if err != nil {
		return RankState{}, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return RankState{}, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return RankState{}, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var state RankState
	if err := json.Unmarshal(body, &state); err != nil {
		return RankState{}, fmt.Errorf("failed to parse response: %w", err)
	}

	return state, nil
}

// getLeaderboard retrieves the top N leaderboard entries.
func getLeaderboard(ctx context.Context, config *Config, stats *Stats) ([]Entry, error) {
	log.Printf("Getting top %d leaderboard entries...", config.TopN)

	client := newHTTPClient(config.Timeout)
	url := fmt.Sprintf("%s/leaderboard?limit=%d", config.BaseURL, config.TopN)

	resp, err := client.Get(url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}

	var leaderboard []Entry
	if err := json.Unmarshal(body, &leaderboard); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	stats.LeaderboardEntries = len(leaderboard)
	log.Printf("Retrieved %d leaderboard entries", len(leaderboard))

	return leaderboard, nil
}
