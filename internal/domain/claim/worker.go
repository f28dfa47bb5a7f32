package claim

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mwork/rewards-api/internal/pkg/clock"
	"github.com/mwork/rewards-api/internal/pkg/lock"
)

const sweepLockKey = "rewards:claims:sweep"

// Worker runs the maturity sweep on a fixed interval. Only the replica holding
// the sweep lock does work in a given tick.
type Worker struct {
	engine   *Engine
	locker   lock.Locker
	clock    clock.Clock
	interval time.Duration
	timeout  time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}
}

func NewWorker(engine *Engine, locker lock.Locker, clk clock.Clock, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Hour
	}
	if locker == nil {
		locker = lock.NewLocal()
	}
	if clk == nil {
		clk = clock.System{}
	}
	return &Worker{
		engine:   engine,
		locker:   locker,
		clock:    clk,
		interval: interval,
		timeout:  5 * time.Minute,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background sweep loop
func (w *Worker) Start() {
	log.Info().Dur("interval", w.interval).Msg("Starting maturity sweep worker...")
	go w.loop()
}

// Stop waits for an in-flight sweep to finish.
func (w *Worker) Stop() {
	log.Info().Msg("Stopping maturity sweep worker...")
	close(w.stopCh)
	<-w.doneCh
}

func (w *Worker) loop() {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Run once immediately on startup
	w.RunOnce(context.Background())

	for {
		select {
		case <-ticker.C:
			w.RunOnce(context.Background())
		case <-w.stopCh:
			return
		}
	}
}

// RunOnce performs a single locked sweep. It returns how many claims matured; a
// sweep skipped because another replica holds the lock returns 0.
func (w *Worker) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	release, ok, err := w.locker.TryLock(ctx, sweepLockKey, w.timeout)
	if err != nil {
		log.Error().Err(err).Msg("Failed to acquire sweep lock")
		return 0
	}
	if !ok {
		log.Debug().Msg("Maturity sweep already running elsewhere")
		return 0
	}
	defer release()

	log.Debug().Msg("Starting maturity sweep...")
	count, err := w.engine.SweepMaturity(ctx, w.clock.Now())
	if err != nil {
		log.Error().Err(err).Int("matured", count).Msg("Maturity sweep aborted")
		return count
	}
	log.Debug().Int("matured", count).Msg("Finished maturity sweep")
	return count
}
