package main

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"
)

// throughputMetrics counts wire traffic across all bots.
type throughputMetrics struct {
	sent     atomic.Uint64
	received atomic.Uint64
}

// report prints a per-second rate table until ctx ends.
func (m *throughputMetrics) report(ctx context.Context) {
	fmt.Println("\nPerformance Metrics:")
	fmt.Printf("%-12s %-12s %-12s %-12s\n", "Msgs Sent", "Sent/sec", "Msgs Rcvd", "Rcvd/sec")
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var lastSent, lastReceived uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sent := m.sent.Load()
			received := m.received.Load()
			fmt.Printf("%-12d %-12d %-12d %-12d\n",
				sent, sent-lastSent, received, received-lastReceived)
			lastSent = sent
			lastReceived = received
		}
	}
}

func (m *throughputMetrics) summary(elapsed time.Duration) {
	sent := m.sent.Load()
	received := m.received.Load()
	secs := elapsed.Seconds()
	fmt.Println("\nTest Complete")
	fmt.Printf("Duration: %.2f seconds\n", secs)
	fmt.Printf("Total Messages Sent: %d (%.2f msgs/sec)\n", sent, float64(sent)/secs)
	fmt.Printf("Total Messages Received: %d (%.2f msgs/sec)\n", received, float64(received)/secs)
}

// gameMetrics tracks bot lifecycle across gameplay and ui runs.
type gameMetrics struct {
	active    atomic.Int64
	completed atomic.Int64
	errors    atomic.Int64
}

func (m *gameMetrics) report(ctx context.Context, what string) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Printf("Active %s: %d, Completed: %d, Errors: %d\n",
				what, m.active.Load(), m.completed.Load(), m.errors.Load())
		}
	}
}
