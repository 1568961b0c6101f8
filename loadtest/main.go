package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// Configuration
var (
	baseURL  = flag.String("url", "http://localhost:8080", "Flag store base URL")
	totalVUs = flag.Int("c", 50, "Total Virtual Users (Concurrency)")
	duration = flag.Duration("d", 60*time.Second, "Test duration")
	numFlags = flag.Int("flags", 100, "Number of distinct flag names to write")
)

// Metrics
var (
	writesOK     int64
	readsOK      int64
	requestErrs  int64
	latencySum   int64 // milliseconds
	latencyCount int64
)

func main() {
	flag.Parse()

	fmt.Printf("Starting load test\n")
	fmt.Printf("   Target: %s\n", *baseURL)
	fmt.Printf("   VUs: %d\n", *totalVUs)
	fmt.Printf("   Duration: %v\n", *duration)

	http.DefaultTransport.(*http.Transport).MaxIdleConns = *totalVUs
	http.DefaultTransport.(*http.Transport).MaxConnsPerHost = *totalVUs

	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	// Metric Reporter
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				writes := atomic.SwapInt64(&writesOK, 0)
				reads := atomic.SwapInt64(&readsOK, 0)
				errs := atomic.LoadInt64(&requestErrs)
				latSum := atomic.SwapInt64(&latencySum, 0)
				latCnt := atomic.SwapInt64(&latencyCount, 0)

				avgLat := float64(0)
				if latCnt > 0 {
					avgLat = float64(latSum) / float64(latCnt)
				}

				fmt.Printf("[%s] Writes/s: %d | Reads/s: %d | Errors: %d | Avg Latency: %.2f ms\n",
					time.Now().Format("15:04:05"), writes, reads, errs, avgLat)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < *totalVUs; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runClient(ctx, id)
		}(i)
	}

	wg.Wait()
	fmt.Println("Done.")
}

func runClient(ctx context.Context, id int) {
	client := &http.Client{Timeout: 5 * time.Second}
	value := false

	for i := 0; ; i++ {
		select {
		case <-ctx.Done():
			return
		default:
		}

		name := fmt.Sprintf("loadtest-flag-%d", (id+i)%(*numFlags))
		value = !value

		start := time.Now()
		if err := setFlag(ctx, client, name, value); err != nil {
			atomic.AddInt64(&requestErrs, 1)
			continue
		}
		atomic.AddInt64(&writesOK, 1)

		if err := getFlag(ctx, client, name); err != nil {
			atomic.AddInt64(&requestErrs, 1)
			continue
		}
		atomic.AddInt64(&readsOK, 1)

		latency := time.Since(start).Milliseconds()
		atomic.AddInt64(&latencySum, latency)
		atomic.AddInt64(&latencyCount, 1)
	}
}

func setFlag(ctx context.Context, client *http.Client, name string, value bool) error {
	body, _ := json.Marshal(map[string]bool{"value": value})
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, *baseURL+"/v1/flag/"+name, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("set status %d", resp.StatusCode)
	}
	return nil
}

func getFlag(ctx context.Context, client *http.Client, name string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, *baseURL+"/v1/flag/"+name, nil)
	if err != nil {
		return err
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get status %d", resp.StatusCode)
	}
	return nil
}
