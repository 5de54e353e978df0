package main

import (
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
)

// CLI flags
var (
	apiURL = flag.String("api-url", "http://localhost:3000", "upnext API base URL")
	runs   = flag.Int("runs", 3, "Number of warm runs per video after the cold one")
	burst  = flag.Int("burst", 8, "Concurrent identical requests fired at a fresh video id")
	ids    = flag.String("ids", "", "Comma separated video ids (default: built-in set)")
	output = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// Default ids cover music, talk, tutorial and long-form content.
var defaultIDs = []string{
	"dQw4w9WgXcQ",
	"jNQXAC9IVRw",
	"8jPQjjsBbIc",
	"rfscVS0vtbw",
	"aircAruvnKk",
}

type recsResponse struct {
	Items  []json.RawMessage `json:"items"`
	Cached bool              `json:"cached"`
	Error  string            `json:"error"`
}

// --- Benchmark result types ---

type runResult struct {
	Run       int    `json:"run"`
	LatencyMs int64  `json:"latency_ms"`
	Status    int    `json:"status"`
	Items     int    `json:"items"`
	Cached    bool   `json:"cached"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}

type videoResult struct {
	VideoID    string      `json:"video_id"`
	Cold       runResult   `json:"cold"`
	Warm       []runResult `json:"warm"`
	WarmAvgMs  float64     `json:"warm_avg_ms"`
	WarmCached int         `json:"warm_cached"`
}

type burstResult struct {
	VideoID   string   `json:"video_id"`
	Requests  int      `json:"requests"`
	Succeeded int      `json:"succeeded"`
	P50Ms     int64    `json:"p50_ms"`
	MaxMs     int64    `json:"max_ms"`
	WallMs    int64    `json:"wall_ms"`
	Errors    []string `json:"errors,omitempty"`
}

type benchmarkReport struct {
	Timestamp string        `json:"timestamp"`
	APIURL    string        `json:"api_url"`
	WarmRuns  int           `json:"warm_runs"`
	Results   []videoResult `json:"results"`
	Burst     *burstResult  `json:"burst,omitempty"`
}

var client = &http.Client{Timeout: 90 * time.Second}

func main() {
	flag.Parse()

	videoIDs := defaultIDs
	if *ids != "" {
		videoIDs = strings.Split(*ids, ",")
	}

	fmt.Println("=== upnext Benchmark Suite ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("Warm runs: %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	// Quick connectivity check.
	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure upnext is running (e.g. go run ./cmd/upnext)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		APIURL:    *apiURL,
		WarmRuns:  *runs,
	}

	// The last id is reserved for the burst so its first request is cold.
	burstID := ""
	if *burst > 0 && len(videoIDs) > 1 {
		burstID = videoIDs[len(videoIDs)-1]
		videoIDs = videoIDs[:len(videoIDs)-1]
	}

	for _, id := range videoIDs {
		fmt.Printf("Benchmarking %s ...\n", id)
		vr := videoResult{VideoID: id}

		vr.Cold = fetch(id, 0)
		printRun("cold", vr.Cold)

		for i := 1; i <= *runs; i++ {
			rr := fetch(id, i)
			printRun(fmt.Sprintf("warm %d", i), rr)
			vr.Warm = append(vr.Warm, rr)
		}
		vr.WarmAvgMs, vr.WarmCached = warmStats(vr.Warm)
		report.Results = append(report.Results, vr)
		fmt.Println()
	}

	if burstID != "" {
		fmt.Printf("Burst of %d concurrent requests for %s ...\n\n", *burst, burstID)
		report.Burst = runBurst(burstID, *burst)
	}

	// Print summary table.
	printTable(report)

	// Write JSON report.
	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

func checkAPI(baseURL string) error {
	resp, err := client.Get(baseURL + "/healthz")
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health returned %d", resp.StatusCode)
	}
	return nil
}

func fetch(videoID string, run int) runResult {
	rr := runResult{Run: run}

	start := time.Now()
	resp, err := client.Get(*apiURL + "/api/recs?" + url.Values{"v": {videoID}}.Encode())
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	rr.LatencyMs = time.Since(start).Milliseconds()
	rr.Status = resp.StatusCode
	if err != nil {
		rr.Error = fmt.Sprintf("read error: %v", err)
		return rr
	}

	var recs recsResponse
	if err := json.Unmarshal(body, &recs); err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Items = len(recs.Items)
	rr.Cached = recs.Cached
	rr.Error = recs.Error
	rr.Success = resp.StatusCode == http.StatusOK
	return rr
}

func printRun(label string, rr runResult) {
	if rr.Success {
		fmt.Printf("  %-7s OK  %5dms  %2d items  cached=%v\n", label, rr.LatencyMs, rr.Items, rr.Cached)
		return
	}
	fmt.Printf("  %-7s FAILED (%d): %s\n", label, rr.Status, rr.Error)
}

func warmStats(runs []runResult) (avgMs float64, cached int) {
	var n int
	for _, r := range runs {
		if !r.Success {
			continue
		}
		n++
		avgMs += float64(r.LatencyMs)
		if r.Cached {
			cached++
		}
	}
	if n == 0 {
		return 0, 0
	}
	return avgMs / float64(n), cached
}

// runBurst fires n identical requests at once. With request coalescing the
// wall time should be close to a single cold fetch.
func runBurst(videoID string, n int) *burstResult {
	br := &burstResult{VideoID: videoID, Requests: n}

	results := make([]runResult, n)
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = fetch(videoID, i+1)
		}(i)
	}
	wg.Wait()
	br.WallMs = time.Since(start).Milliseconds()

	latencies := make([]int64, 0, n)
	for _, r := range results {
		if !r.Success {
			br.Errors = append(br.Errors, r.Error)
			continue
		}
		br.Succeeded++
		latencies = append(latencies, r.LatencyMs)
	}
	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		br.P50Ms = latencies[len(latencies)/2]
		br.MaxMs = latencies[len(latencies)-1]
	}
	return br
}

func printTable(report benchmarkReport) {
	fmt.Println(strings.Repeat("─", 70))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Video\tCold\tItems\tWarm Avg\tWarm Cached\n")
	fmt.Fprintf(w, "─────\t────\t─────\t────────\t───────────\n")

	for _, r := range report.Results {
		if !r.Cold.Success {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\n", r.VideoID)
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%d\t%.0fms\t%d/%d\n",
			r.VideoID,
			r.Cold.LatencyMs,
			r.Cold.Items,
			r.WarmAvgMs,
			r.WarmCached,
			len(r.Warm),
		)
	}
	w.Flush()

	if b := report.Burst; b != nil {
		fmt.Printf("\nBurst %s: %d/%d ok, p50 %dms, max %dms, wall %dms\n",
			b.VideoID, b.Succeeded, b.Requests, b.P50Ms, b.MaxMs, b.WallMs)
	}
	fmt.Println(strings.Repeat("─", 70))
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
