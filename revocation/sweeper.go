package revocation

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper periodically calls Store.Sweep. Nothing depends on its cadence;
// it only bounds memory held by stale entries.
type Sweeper struct {
	store    Store
	interval time.Duration
	now      func() time.Time
	logger   zerolog.Logger
	// OnSweep, when set before Start, receives the count of every sweep
	// that removed entries.
	OnSweep func(removed int)

	stop     chan struct{}
	wg       sync.WaitGroup
	startOne sync.Once
	stopOnce sync.Once
}

// NewSweeper returns a stopped sweeper. A non-positive interval yields a
// sweeper whose Start does nothing.
func NewSweeper(store Store, interval time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		now:      time.Now,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Start launches the background loop once.
func (s *Sweeper) Start() {
	if s == nil || s.interval <= 0 || s.store == nil {
		return
	}
	s.startOne.Do(func() {
		s.wg.Add(1)
		go s.run()
	})
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.SweepOnce(context.Background())
		case <-s.stop:
			return
		}
	}
}

// SweepOnce runs a single sweep and returns the number of removed entries.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	removed, err := s.store.Sweep(ctx, s.now())
	if err != nil {
		s.logger.Warn().Err(err).Msg("revocation sweep failed")
		return removed
	}
	if removed > 0 {
		s.logger.Debug().Int("removed", removed).Msg("revocation sweep")
		if s.OnSweep != nil {
			s.OnSweep(removed)
		}
	}
	return removed
}

// Stop ends the loop and waits for it to exit. Safe to call more than once.
func (s *Sweeper) Stop() {
	if s == nil {
		return
	}
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
	})
}
