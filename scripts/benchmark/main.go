package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"
	"time"
)

// CLI flags
var (
	apiURL  = flag.String("api-url", "http://localhost:3000", "Resolver API base URL")
	urlFile = flag.String("urls", "", "File with one Google News URL per line (default: positional args)")
	runs    = flag.Int("runs", 1, "Number of runs per URL")
	pause   = flag.Duration("pause", 2*time.Second, "Pause between requests, to stay under upstream rate limits")
	output  = flag.String("output", "benchmark-results.json", "JSON output file path")
)

// --- Request / Response types (mirrors models package) ---

type resolveRequest struct {
	GoogleNewsURL string `json:"google_news_url"`
}

type resolveResponse struct {
	OK          bool    `json:"ok"`
	Blocked     bool    `json:"blocked"`
	ResolvedURL *string `json:"resolved_url"`
	Method      string  `json:"method"`
	HTTPStatus  *int    `json:"http_status"`
	Attempt     int     `json:"attempt"`
	Error       string  `json:"error"`
}

// --- Benchmark result types ---

type runResult struct {
	Run         int    `json:"run"`
	LatencyMs   int64  `json:"latency_ms"`
	HTTPCode    int    `json:"http_code"`
	Method      string `json:"method"`
	Attempts    int    `json:"attempts"`
	Blocked     bool   `json:"blocked"`
	ResolvedURL string `json:"resolved_url,omitempty"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

type urlSummary struct {
	AvgLatencyMs float64 `json:"avg_latency_ms"`
	AvgAttempts  float64 `json:"avg_attempts"`
	Resolved     int     `json:"resolved"`
	Blocked      int     `json:"blocked"`
}

type urlResult struct {
	URL     string      `json:"url"`
	Runs    []runResult `json:"runs"`
	Summary *urlSummary `json:"summary,omitempty"`
}

type benchmarkReport struct {
	Timestamp  string      `json:"timestamp"`
	APIURL     string      `json:"api_url"`
	RunsPerURL int         `json:"runs_per_url"`
	Results    []urlResult `json:"results"`
}

func main() {
	flag.Parse()

	urls, err := loadURLs(*urlFile, flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if len(urls) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no URLs given (use -urls FILE or positional args)")
		os.Exit(1)
	}

	fmt.Println("=== Google News Resolver Benchmark ===")
	fmt.Printf("API URL:   %s\n", *apiURL)
	fmt.Printf("URLs:      %d\n", len(urls))
	fmt.Printf("Runs/URL:  %d\n", *runs)
	fmt.Printf("Output:    %s\n", *output)
	fmt.Println()

	if err := checkAPI(*apiURL); err != nil {
		fmt.Fprintf(os.Stderr, "Error: cannot reach API at %s: %v\n", *apiURL, err)
		fmt.Fprintf(os.Stderr, "Make sure gnresolver is running (e.g. go run ./cmd/gnresolver)\n")
		os.Exit(1)
	}

	report := benchmarkReport{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		APIURL:     *apiURL,
		RunsPerURL: *runs,
	}

	client := &http.Client{Timeout: 5 * time.Minute}
	first := true
	for _, u := range urls {
		fmt.Printf("Resolving %s ...\n", truncateURL(u, 70))
		ur := urlResult{URL: u}

		for i := 1; i <= *runs; i++ {
			if !first {
				time.Sleep(*pause)
			}
			first = false

			fmt.Printf("  Run %d/%d ... ", i, *runs)
			rr := resolveOnce(client, u, i)
			switch {
			case !rr.Success:
				fmt.Printf("FAILED: %s\n", rr.Error)
			case rr.Blocked:
				fmt.Printf("BLOCKED  %dms  %d attempts\n", rr.LatencyMs, rr.Attempts)
			default:
				fmt.Printf("%s  %dms  %d attempts\n", rr.Method, rr.LatencyMs, rr.Attempts)
			}
			ur.Runs = append(ur.Runs, rr)
		}

		ur.Summary = summarize(ur.Runs)
		report.Results = append(report.Results, ur)
		fmt.Println()
	}

	printTable(report.Results)

	if err := writeJSON(*output, report); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing JSON output: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nDetailed results written to %s\n", *output)
}

// loadURLs reads path (if set) followed by args, skipping blanks and # comments.
func loadURLs(path string, args []string) ([]string, error) {
	var urls []string
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			urls = append(urls, line)
		}
		if err := sc.Err(); err != nil {
			return nil, err
		}
	}
	return append(urls, args...), nil
}

func checkAPI(baseURL string) error {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func resolveOnce(client *http.Client, u string, run int) runResult {
	rr := runResult{Run: run}

	bodyBytes, err := json.Marshal(resolveRequest{GoogleNewsURL: u})
	if err != nil {
		rr.Error = fmt.Sprintf("marshal error: %v", err)
		return rr
	}

	start := time.Now()
	resp, err := client.Post(*apiURL+"/resolve", "application/json", bytes.NewReader(bodyBytes))
	if err != nil {
		rr.Error = fmt.Sprintf("request failed: %v", err)
		return rr
	}
	defer resp.Body.Close()

	var res resolveResponse
	err = json.NewDecoder(resp.Body).Decode(&res)
	rr.LatencyMs = time.Since(start).Milliseconds()
	rr.HTTPCode = resp.StatusCode
	if err != nil {
		rr.Error = fmt.Sprintf("decode error: %v", err)
		return rr
	}

	rr.Success = res.OK
	rr.Method = res.Method
	rr.Attempts = res.Attempt
	rr.Blocked = res.Blocked
	if res.ResolvedURL != nil {
		rr.ResolvedURL = *res.ResolvedURL
	}
	rr.Error = res.Error
	return rr
}

func summarize(runs []runResult) *urlSummary {
	var s urlSummary
	var ok int
	for _, r := range runs {
		if !r.Success {
			continue
		}
		ok++
		s.AvgLatencyMs += float64(r.LatencyMs)
		s.AvgAttempts += float64(r.Attempts)
		if r.ResolvedURL != "" {
			s.Resolved++
		}
		if r.Blocked {
			s.Blocked++
		}
	}
	if ok == 0 {
		return nil
	}
	s.AvgLatencyMs /= float64(ok)
	s.AvgAttempts /= float64(ok)
	return &s
}

func printTable(results []urlResult) {
	fmt.Println(strings.Repeat("─", 85))
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "URL\tAvg Latency\tAvg Attempts\tResolved\tBlocked\n")
	fmt.Fprintf(w, "───\t───────────\t────────────\t────────\t───────\n")

	for _, r := range results {
		if r.Summary == nil {
			fmt.Fprintf(w, "%s\tFAILED\t-\t-\t-\n", truncateURL(r.URL, 40))
			continue
		}
		fmt.Fprintf(w, "%s\t%dms\t%.1f\t%d/%d\t%d\n",
			truncateURL(r.URL, 40),
			int64(r.Summary.AvgLatencyMs),
			r.Summary.AvgAttempts,
			r.Summary.Resolved, len(r.Runs),
			r.Summary.Blocked,
		)
	}

	w.Flush()
	fmt.Println(strings.Repeat("─", 85))
}

func truncateURL(u string, max int) string {
	if len(u) <= max {
		return u
	}
	return u[:max-3] + "..."
}

func writeJSON(path string, report benchmarkReport) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
