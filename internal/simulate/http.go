package simulate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(url string) (*http.Response, error) {
	return c.client.Get(url)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(url string, body interface{}) (*http.Response, error) {
	var buf *bytes.Buffer
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		buf = bytes.NewBuffer(jsonData)
	} else {
		buf = bytes.NewBuffer(nil)
	}

	req, err := http.NewRequest("POST", url, buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// readResponseBody reads and closes the response body
func readResponseBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

// defineMetrics registers the fixed metric set for every simulated user.
func defineMetrics(ctx context.Context, config *Config, userIDs []string) error {
	log.Printf("Defining %d metrics for %d users...", len(metricSpecs), len(userIDs))

	client := newHTTPClient(config.Timeout)

	userChan := make(chan string, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup
	var failed int64

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for userID := range userChan {
				select {
				case <-ctx.Done():
					return
				default:
				}
				for _, spec := range metricSpecs {
					url := fmt.Sprintf("%s/users/%s/metrics", config.BaseURL, userID)
					resp, err := client.Post(url, spec)
					if err != nil {
						atomic.AddInt64(&failed, 1)
						continue
					}
					if _, err := readResponseBody(resp); err != nil {
						atomic.AddInt64(&failed, 1)
						continue
					}
					if resp.StatusCode != StatusOK {
						atomic.AddInt64(&failed, 1)
					}
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

	if n := atomic.LoadInt64(&failed); n > 0 {
		return fmt.Errorf("%d metric definitions failed", n)
	}
	log.Printf("Metric definitions completed for %d users", len(userIDs))
	return nil
}

// submitHistories submits weekly submissions concurrently using worker pools.
func submitHistories(ctx context.Context, config *Config, submissions []Submission, stats *Stats) error {
	log.Printf("Submitting %d weekly submissions with %d workers...", len(submissions), config.Workers)

	client := newHTTPClient(config.Timeout)
	url := config.BaseURL + "/submissions"

	var (
		accepted  int64
		duplicate int64
		failed    int64
		submitted int64
	)

	var lastReport time.Time
	reportInterval := 1 * time.Second

	subChan := make(chan Submission, config.Workers*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for sub := range subChan {
				select {
				case <-ctx.Done():
					return
				default:
					result := submitSingle(client, url, sub)

					atomic.AddInt64(&submitted, 1)
					switch result {
					case "accepted":
						atomic.AddInt64(&accepted, 1)
					case "duplicate":
						atomic.AddInt64(&duplicate, 1)
					case "failed":
						atomic.AddInt64(&failed, 1)
					}

					if time.Since(lastReport) >= reportInterval {
						lastReport = time.Now()
						total := atomic.LoadInt64(&submitted)
						acc := atomic.LoadInt64(&accepted)
						dup := atomic.LoadInt64(&duplicate)
						fail := atomic.LoadInt64(&failed)

						if config.Verbose {
							log.Printf("Progress: %d/%d submitted (accepted: %d, duplicate: %d, failed: %d)",
								total, len(submissions), acc, dup, fail)
						} else {
							fmt.Printf("\rSubmitted: %d/%d (accepted: %d, duplicate: %d, failed: %d)",
								total, len(submissions), acc, dup, fail)
						}
					}
				}
			}
		}()
	}

	go func() {
		defer close(subChan)
		for _, sub := range submissions {
			select {
			case <-ctx.Done():
				return
			case subChan <- sub:
			}
		}
	}()

	wg.Wait()

	if !config.Verbose {
		fmt.Println()
	}

	stats.SubmissionsSubmitted = int(atomic.LoadInt64(&submitted))
	stats.SubmissionsAccepted = int(atomic.LoadInt64(&accepted))
	stats.SubmissionsDuplicate = int(atomic.LoadInt64(&duplicate))
	stats.SubmissionsFailed = int(atomic.LoadInt64(&failed))

	log.Printf(`Submission completed:
   Accepted: %d
   Duplicate: %d
   Failed: %d
`, stats.SubmissionsAccepted, stats.SubmissionsDuplicate, stats.SubmissionsFailed)

	return nil
}

// submitSingle submits one weekly submission and classifies the outcome.
func submitSingle(client *HTTPClient, url string, sub Submission) string {
	resp, err := client.Post(url, sub)
	if err != nil {
		return "failed"
	}

	body, err := readResponseBody(resp)
	if err != nil {
		return "failed"
	}

	switch resp.StatusCode {
	case StatusAccepted:
		return "accepted"
	case StatusOK:
		var ack AckResponse
		if err := json.Unmarshal(body, &ack); err == nil && ack.Duplicate {
			return "duplicate"
		}
		return "duplicate"
	default:
		return "failed"
	}
}
