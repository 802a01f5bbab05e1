package app

import (
	"testing"
	"time"
)

func TestTickerDeliversMonotonicElapsedTime(t *testing.T) {
	strand := NewStrand()
	go strand.Run()
	defer strand.Close()

	var deltas []time.Duration
	done := make(chan struct{})

	start := time.Now()
	ticker := NewTicker(strand, 5*time.Millisecond, func(delta time.Duration) {
		deltas = append(deltas, delta)
		if len(deltas) == 5 {
			close(done)
		}
	})
	ticker.Start()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("ticker did not fire")
	}
	ticker.Stop()
	elapsed := time.Since(start)

	// Late ticks may still be queued; read the slice on the strand.
	var observed []time.Duration
	strand.Do(func() { observed = append(observed, deltas...) })

	var total time.Duration
	for i, delta := range observed[:5] {
		if delta <= 0 {
			t.Errorf("tick %d delivered non-positive delta %v", i, delta)
		}
		total += delta
	}

	// The handler receives measured time, so the sum of deltas tracks the
	// wall clock regardless of scheduling jitter.
	if total > elapsed+50*time.Millisecond {
		t.Errorf("sum of deltas %v exceeds elapsed wall time %v", total, elapsed)
	}
}

func TestTickerStop(t *testing.T) {
	strand := NewStrand()
	go strand.Run()
	defer strand.Close()

	fired := make(chan struct{}, 64)
	ticker := NewTicker(strand, time.Millisecond, func(time.Duration) {
		select {
		case fired <- struct{}{}:
		default:
		}
	})
	ticker.Start()

	select {
	case <-fired:
	case <-time.After(5 * time.Second):
		t.Fatal("ticker did not fire before Stop")
	}

	ticker.Stop()
	ticker.Stop() // stopping twice is safe
}
