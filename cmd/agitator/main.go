// Package main - agitator
// Load generator: simulates many concurrent players clicking, buying and
// rebirthing over the WebSocket endpoint.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"net/url"
	"os"
	"os/signal"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"github.com/MRamiBalles/ResourceRush/server/internal/network"
)

// Config for the agitator
type Config struct {
	ServerURL      string
	NumClients     int
	ActionInterval time.Duration
	TestDuration   time.Duration
	UserPrefix     string
}

// Stats tracks performance metrics
type Stats struct {
	MessagesSent     int64
	MessagesReceived int64
	Refused          int64
	Errors           int64
	Latencies        []time.Duration
	mu               sync.Mutex
}

// Weighted action mix; clicks dominate like real sessions.
var actionMix = []struct {
	action network.PlayerAction
	weight int
}{
	{network.PlayerAction{Type: network.ActionManual}, 70},
	{network.PlayerAction{Type: network.ActionPurchase, Payload: json.RawMessage(`{"generator_id":1}`)}, 12},
	{network.PlayerAction{Type: network.ActionPurchase, Payload: json.RawMessage(`{"generator_id":2,"amount":"max"}`)}, 6},
	{network.PlayerAction{Type: network.ActionSync}, 6},
	{network.PlayerAction{Type: network.ActionClaimDaily}, 4},
	{network.PlayerAction{Type: network.ActionPrestige}, 2},
}

func main() {
	serverURL := flag.String("url", "ws://localhost:8080/ws", "WebSocket server URL")
	numClients := flag.Int("clients", 50, "Number of concurrent players")
	interval := flag.Duration("interval", 100*time.Millisecond, "Action interval per player")
	duration := flag.Duration("duration", 60*time.Second, "Test duration")
	prefix := flag.String("prefix", "agitator", "User id prefix")
	flag.Parse()

	config := Config{
		ServerURL:      *serverURL,
		NumClients:     *numClients,
		ActionInterval: *interval,
		TestDuration:   *duration,
		UserPrefix:     *prefix,
	}

	fmt.Println("=========================================")
	fmt.Println("EL AGITADOR - Resource Rush load test")
	fmt.Println("=========================================")
	fmt.Printf("Server:   %s\n", config.ServerURL)
	fmt.Printf("Players:  %d\n", config.NumClients)
	fmt.Printf("Interval: %v\n", config.ActionInterval)
	fmt.Printf("Duration: %v\n", config.TestDuration)
	fmt.Println("=========================================")

	ctx, cancel := context.WithTimeout(context.Background(), config.TestDuration)
	defer cancel()
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	stats := runStressTest(ctx, config)
	printResults(stats, config)
}

func runStressTest(ctx context.Context, config Config) *Stats {
	stats := &Stats{
		Latencies: make([]time.Duration, 0, 10000),
	}

	g, gctx := errgroup.WithContext(ctx)

	fmt.Println("\nStarting players...")
	for i := 0; i < config.NumClients; i++ {
		userID := fmt.Sprintf("%s-%04d", config.UserPrefix, i)
		g.Go(func() error {
			runClient(gctx, userID, config, stats)
			return nil
		})

		// Stagger joins to avoid a thundering herd on the save store
		time.Sleep(10 * time.Millisecond)
	}
	fmt.Printf("All %d players started\n\n", config.NumClients)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return
			case <-ticker.C:
				fmt.Printf("Progress: sent=%s recv=%s errors=%d\n",
					humanize.Comma(atomic.LoadInt64(&stats.MessagesSent)),
					humanize.Comma(atomic.LoadInt64(&stats.MessagesReceived)),
					atomic.LoadInt64(&stats.Errors))
			}
		}
	}()

	_ = g.Wait()
	return stats
}

func runClient(ctx context.Context, userID string, config Config, stats *Stats) {
	u, err := url.Parse(config.ServerURL)
	if err != nil {
		log.Printf("%s: URL parse error: %v", userID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	q := u.Query()
	q.Set("user", userID)
	u.RawQuery = q.Encode()

	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			log.Printf("%s: refused with %s", userID, resp.Status)
			atomic.AddInt64(&stats.Refused, 1)
			return
		}
		log.Printf("%s: connection failed: %v", userID, err)
		atomic.AddInt64(&stats.Errors, 1)
		return
	}
	defer conn.Close()

	go func() {
		for {
			_, _, err := conn.ReadMessage()
			if err != nil {
				return
			}
			atomic.AddInt64(&stats.MessagesReceived, 1)
		}
	}()

	ticker := time.NewTicker(config.ActionInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			start := time.Now()
			if err := conn.WriteJSON(randomAction()); err != nil {
				atomic.AddInt64(&stats.Errors, 1)
				return
			}
			latency := time.Since(start)
			atomic.AddInt64(&stats.MessagesSent, 1)

			stats.mu.Lock()
			stats.Latencies = append(stats.Latencies, latency)
			stats.mu.Unlock()
		}
	}
}

func randomAction() network.PlayerAction {
	total := 0
	for _, a := range actionMix {
		total += a.weight
	}
	n := rand.Intn(total)
	for _, a := range actionMix {
		if n < a.weight {
			return a.action
		}
		n -= a.weight
	}
	return actionMix[0].action
}

func printResults(stats *Stats, config Config) {
	fmt.Println("\n=========================================")
	fmt.Println("LOAD TEST RESULTS")
	fmt.Println("=========================================")

	sent := atomic.LoadInt64(&stats.MessagesSent)
	recv := atomic.LoadInt64(&stats.MessagesReceived)
	errs := atomic.LoadInt64(&stats.Errors)
	refused := atomic.LoadInt64(&stats.Refused)

	fmt.Printf("Messages Sent:     %s\n", humanize.Comma(sent))
	fmt.Printf("Messages Received: %s\n", humanize.Comma(recv))
	fmt.Printf("Refused Joins:     %d\n", refused)
	fmt.Printf("Errors:            %d\n", errs)
	fmt.Printf("Error Rate:        %.2f%%\n", float64(errs)/float64(sent+1)*100)

	throughput := float64(sent) / config.TestDuration.Seconds()
	fmt.Printf("Throughput:        %s msg/sec\n", humanize.CommafWithDigits(throughput, 2))

	stats.mu.Lock()
	latencies := append([]time.Duration(nil), stats.Latencies...)
	stats.mu.Unlock()
	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })
		var total time.Duration
		for _, l := range latencies {
			total += l
		}
		fmt.Printf("\nWrite latency:\n")
		fmt.Printf("  Min: %v\n", latencies[0])
		fmt.Printf("  Avg: %v\n", total/time.Duration(len(latencies)))
		fmt.Printf("  P99: %v\n", latencies[len(latencies)*99/100])
		fmt.Printf("  Max: %v\n", latencies[len(latencies)-1])
	}

	fmt.Println("\n-----------------------------------------")
	switch {
	case errs == 0 && refused == 0:
		fmt.Println("TEST PASSED: server handled the load")
	case float64(errs)/float64(sent+1) < 0.05:
		fmt.Println("TEST WARNING: some errors detected")
	default:
		fmt.Println("TEST FAILED: high error rate")
	}
	fmt.Println("=========================================")

	results := map[string]interface{}{
		"messages_sent":      sent,
		"messages_received":  recv,
		"refused":            refused,
		"errors":             errs,
		"throughput_per_sec": throughput,
		"config": map[string]interface{}{
			"clients":  config.NumClients,
			"interval": config.ActionInterval.String(),
			"duration": config.TestDuration.String(),
		},
	}

	jsonData, _ := json.MarshalIndent(results, "", "  ")
	if err := os.WriteFile("stress_test_results.json", jsonData, 0644); err != nil {
		log.Printf("write results: %v", err)
		return
	}
	fmt.Println("\nResults saved to stress_test_results.json")
}
