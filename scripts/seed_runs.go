// seed_runs.go queues a batch of seeded runs via the Podium API.
//
// Usage:
//
//	go run scripts/seed_runs.go -api http://localhost:8700 -count 20 -n 25 -k 5 -top 3 -seed 1
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"time"
)

type runRequest struct {
	Competitors int    `json:"competitors"`
	RaceSize    int    `json:"race_size"`
	Podium      int    `json:"podium"`
	Seed        uint64 `json:"seed"`
	Source      string `json:"source"`
}

type runResponse struct {
	RunID string `json:"run_id"`
}

func main() {
	apiURL := flag.String("api", "http://localhost:8700", "Podium API base URL")
	clientID := flag.String("client", "seed", "X-Client-ID header value")
	count := flag.Int("count", 10, "number of runs to queue")
	n := flag.Int("n", 25, "competitors per run")
	k := flag.Int("k", 5, "competitors per race")
	top := flag.Int("top", 3, "podium positions to certify")
	seed := flag.Uint64("seed", 1, "seed of the first run; later runs count up from it")
	dryRun := flag.Bool("dry-run", false, "print runs without posting")
	flag.Parse()

	runs := make([]runRequest, *count)
	for i := range runs {
		runs[i] = runRequest{
			Competitors: *n,
			RaceSize:    *k,
			Podium:      *top,
			Seed:        *seed + uint64(i),
			Source:      "seed",
		}
	}

	if *dryRun {
		for i, r := range runs {
			fmt.Printf("[%d] n=%d k=%d top=%d seed=%d\n", i+1, r.Competitors, r.RaceSize, r.Podium, r.Seed)
		}
		return
	}

	client := &http.Client{Timeout: 10 * time.Second}
	created, skipped := 0, 0
	for _, r := range runs {
		body, _ := json.Marshal(r)
		req, err := http.NewRequest("POST", *apiURL+"/api/v1/runs", bytes.NewReader(body))
		if err != nil {
			log.Printf("skip seed %d: %v", r.Seed, err)
			skipped++
			continue
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Client-ID", *clientID)

		resp, err := client.Do(req)
		if err != nil {
			log.Printf("skip seed %d: %v", r.Seed, err)
			skipped++
			continue
		}
		var out runResponse
		_ = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()

		if resp.StatusCode == http.StatusCreated {
			log.Printf("queued seed %d as run %s", r.Seed, out.RunID)
			created++
		} else {
			log.Printf("skip seed %d: status %d", r.Seed, resp.StatusCode)
			skipped++
		}
	}

	log.Printf("done: %d created, %d skipped", created, skipped)
}
