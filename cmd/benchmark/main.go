package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	duration    time.Duration
	workload    string
	clients     int
	coins       int
)

// Metrics
var (
	totalRequests uint64
	success200    uint64 // Purchases
	success201    uint64 // Mints
	fail400       uint64 // Lost races, exhausted capacity
	fail429       uint64 // Rate limited
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8080", "API Base URL")
	flag.IntVar(&concurrency, "workers", 10, "Number of concurrent workers")
	flag.DurationVar(&duration, "duration", 30*time.Second, "Test duration")
	flag.StringVar(&workload, "workload", "buy", "Workload type: buy | hotspot | mint")
	flag.IntVar(&clients, "clients", 1000, "Number of seeded clients (IDs 1..n)")
	flag.IntVar(&coins, "coins", 200, "Number of seeded coins (IDs 1..n)")
}

func main() {
	flag.Parse()
	log.Printf("Starting Benchmark: %s | Workers: %d | Duration: %s", workload, concurrency, duration)

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)

	for i := 0; i < concurrency; i++ {
		go worker(&wg, start)
	}

	wg.Wait()
	printResults(time.Since(start))
}

func worker(wg *sync.WaitGroup, start time.Time) {
	defer wg.Done()
	client := &http.Client{Timeout: 5 * time.Second}

	for time.Since(start) < duration {
		path, payload := nextRequest()
		body, _ := json.Marshal(payload)

		req, _ := http.NewRequest("POST", targetURL+path, bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 200:
			atomic.AddUint64(&success200, 1)
		case 201:
			atomic.AddUint64(&success201, 1)
		case 400:
			atomic.AddUint64(&fail400, 1)
		case 429:
			atomic.AddUint64(&fail429, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

func nextRequest() (string, map[string]interface{}) {
	buyer := rand.Intn(clients) + 1

	switch workload {
	case "mint":
		return "/api/v1/coins", map[string]interface{}{
			"issuerId": buyer,
			"value":    10000 + rand.Intn(90001),
		}
	case "hotspot":
		// Hotspot: 90% of traffic races for coins 1 & 2
		if rand.Float32() < 0.90 {
			return "/api/v1/coins/buy", map[string]interface{}{
				"coinId":  rand.Intn(2) + 1,
				"buyerId": buyer,
			}
		}
	}

	return "/api/v1/coins/buy", map[string]interface{}{
		"coinId":  rand.Intn(coins) + 1,
		"buyerId": buyer,
	}
}

func printResults(d time.Duration) {
	total := atomic.LoadUint64(&totalRequests)
	s200 := atomic.LoadUint64(&success200)
	s201 := atomic.LoadUint64(&success201)
	f400 := atomic.LoadUint64(&fail400)
	f429 := atomic.LoadUint64(&fail429)
	fErr := atomic.LoadUint64(&failOther)

	tps := float64(total) / d.Seconds()
	var rejectRate float64
	if total > 0 {
		rejectRate = float64(f400) / float64(total) * 100
	}

	results := map[string]interface{}{
		"workload":         workload,
		"duration_sec":     d.Seconds(),
		"total_requests":   total,
		"throughput_tps":   tps,
		"purchases":        s200,
		"mints":            s201,
		"rejected_400":     f400,
		"reject_rate_pct":  rejectRate,
		"rate_limited_429": f429,
		"errors":           fErr,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	filename := fmt.Sprintf("results_%s.json", workload)
	file, err := os.Create(filename)
	if err != nil {
		log.Printf("unable to save results: %v", err)
		return
	}
	defer file.Close()
	json.NewEncoder(file).Encode(results)
}
