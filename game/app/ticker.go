package app

import (
	"sync"
	"time"
)

// Ticker periodically delivers the exact monotonic elapsed time to a handler
// running on the strand. Delivering measured time rather than the scheduled
// period absorbs scheduling jitter, so simulated time tracks the wall clock.
type Ticker struct {
	strand   *Strand
	period   time.Duration
	handler  func(delta time.Duration)
	stop     chan struct{}
	stopOnce sync.Once
}

// NewTicker creates a ticker; it does not start until Start is called.
func NewTicker(strand *Strand, period time.Duration, handler func(delta time.Duration)) *Ticker {
	return &Ticker{
		strand:  strand,
		period:  period,
		handler: handler,
		stop:    make(chan struct{}),
	}
}

// Start launches the timing goroutine.
func (t *Ticker) Start() {
	go func() {
		last := time.Now()
		timer := time.NewTicker(t.period)
		defer timer.Stop()

		for {
			select {
			case <-t.stop:
				return
			case now := <-timer.C:
				delta := now.Sub(last)
				last = now
				if err := t.strand.Dispatch(func() { t.handler(delta) }); err != nil {
					return
				}
			}
		}
	}()
}

// Stop ends the ticker; it is safe to call more than once.
func (t *Ticker) Stop() {
	t.stopOnce.Do(func() { close(t.stop) })
}
