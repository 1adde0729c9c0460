// Package scheduler runs the periodic refresh, price-delta and
// volume-spike tasks and triggers broadcasts on threshold crossings.
package scheduler

import (
	"context"
	"log"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"meme-aggregator/internal/domain"
	"meme-aggregator/internal/observability"
)

// Aggregator is the slice of the orchestrator the scheduler drives.
type Aggregator interface {
	FetchAndAggregate(ctx context.Context) ([]domain.Token, error)
	GetTokens(ctx context.Context, limit int, sortBy domain.SortField, tf domain.TimeFrame) ([]domain.Token, error)
}

// Broadcaster is the slice of the hub the scheduler triggers.
type Broadcaster interface {
	ConnectionCount() int
	BroadcastPriceUpdate(address string, token domain.Token)
	BroadcastVolumeSpike(address string, oldVolume, newVolume float64)
}

// Config holds task intervals and broadcast thresholds.
type Config struct {
	RefreshInterval     time.Duration // full refresh + snapshot replacement
	PriceCheckInterval  time.Duration // price-delta scan
	VolumeCheckInterval time.Duration // volume-spike scan

	PriceDeltaPercent float64 // broadcast when |Δprice| exceeds this
	VolumeSpikeRatio  float64 // broadcast when volume grows by more than this
	PriceCheckTop     int     // tokens scanned by the price-delta task
	VolumeCheckTop    int     // tokens scanned by the volume-spike task
}

// DefaultConfig returns the standard production intervals.
func DefaultConfig() Config {
	return Config{
		RefreshInterval:     30 * time.Second,
		PriceCheckInterval:  10 * time.Second,
		VolumeCheckInterval: 15 * time.Second,
		PriceDeltaPercent:   1.0,
		VolumeSpikeRatio:    0.5,
		PriceCheckTop:       20,
		VolumeCheckTop:      50,
	}
}

// Scheduler owns the previous-snapshot map and the three periodic tasks.
// Tasks are independent: they may overlap with each other, and each one
// skips a tick while its own previous run is still executing.
type Scheduler struct {
	cfg        Config
	aggregator Aggregator
	hub        Broadcaster
	logger     *log.Logger

	// snapshot maps address → last refreshed record. Replaced wholesale
	// each refresh, which also bounds it: addresses absent from the
	// latest refresh are dropped.
	snapshotMu sync.RWMutex
	snapshot   map[string]domain.Token

	// Per-task single-flight guards.
	refreshRunning atomic.Bool
	priceRunning   atomic.Bool
	volumeRunning  atomic.Bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Scheduler.
func New(cfg Config, agg Aggregator, hub Broadcaster, logger *log.Logger) *Scheduler {
	if logger == nil {
		logger = log.New(os.Stdout, "[scheduler] ", log.LstdFlags)
	}
	return &Scheduler{
		cfg:        cfg,
		aggregator: agg,
		hub:        hub,
		logger:     logger,
		snapshot:   make(map[string]domain.Token),
	}
}

// Start runs an initial refresh, then launches the three task loops.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.logger.Println("starting periodic tasks")
	s.runRefresh(ctx)

	s.wg.Add(3)
	go s.loop(ctx, s.cfg.RefreshInterval, s.runRefresh)
	go s.loop(ctx, s.cfg.PriceCheckInterval, s.runPriceCheck)
	go s.loop(ctx, s.cfg.VolumeCheckInterval, s.runVolumeCheck)
}

// Stop halts all task loops as a group and waits for in-flight runs.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Println("periodic tasks stopped")
}

// SnapshotSize reports how many addresses the snapshot currently holds.
func (s *Scheduler) SnapshotSize() int {
	s.snapshotMu.RLock()
	defer s.snapshotMu.RUnlock()
	return len(s.snapshot)
}

func (s *Scheduler) loop(ctx context.Context, interval time.Duration, task func(context.Context)) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			task(ctx)
		}
	}
}

// runRefresh re-runs the trending pipeline and replaces the snapshot.
func (s *Scheduler) runRefresh(ctx context.Context) {
	if !s.refreshRunning.CompareAndSwap(false, true) {
		s.logger.Println("refresh still running, skipping tick")
		return
	}
	defer s.refreshRunning.Store(false)

	start := time.Now()
	tokens, err := s.aggregator.FetchAndAggregate(ctx)
	if err != nil {
		observability.RecordRefreshRun("refresh", "error", time.Since(start).Seconds())
		s.logger.Printf("refresh failed: %v", err)
		return
	}

	next := make(map[string]domain.Token, len(tokens))
	for _, token := range tokens {
		next[token.Address] = token
	}

	s.snapshotMu.Lock()
	s.snapshot = next
	s.snapshotMu.Unlock()

	observability.RecordRefreshRun("refresh", "success", time.Since(start).Seconds())
	observability.UpdateSnapshotSize(len(next))
	s.logger.Printf("refreshed %d tokens", len(next))
}

// runPriceCheck broadcasts a price update for every top-volume token whose
// price moved more than the threshold since the last snapshot.
func (s *Scheduler) runPriceCheck(ctx context.Context) {
	if s.hub.ConnectionCount() == 0 {
		return
	}
	if !s.priceRunning.CompareAndSwap(false, true) {
		return
	}
	defer s.priceRunning.Store(false)

	start := time.Now()
	tokens, err := s.aggregator.GetTokens(ctx, s.cfg.PriceCheckTop, domain.SortVolume, domain.TimeFrame24h)
	if err != nil {
		observability.RecordRefreshRun("price_check", "error", time.Since(start).Seconds())
		s.logger.Printf("price check failed: %v", err)
		return
	}

	for _, token := range tokens {
		previous, ok := s.previous(token.Address)
		if !ok || previous.PriceSOL == 0 {
			continue
		}
		changePercent := (token.PriceSOL - previous.PriceSOL) / previous.PriceSOL * 100
		if math.Abs(changePercent) > s.cfg.PriceDeltaPercent {
			s.hub.BroadcastPriceUpdate(token.Address, token)
			s.logger.Printf("price update %s %+.2f%%", token.Ticker, changePercent)
		}
	}
	observability.RecordRefreshRun("price_check", "success", time.Since(start).Seconds())
}

// runVolumeCheck broadcasts volume spikes. Only upward moves count, and a
// token absent from the snapshot or with zero previous volume is skipped.
func (s *Scheduler) runVolumeCheck(ctx context.Context) {
	if s.hub.ConnectionCount() == 0 {
		return
	}
	if !s.volumeRunning.CompareAndSwap(false, true) {
		return
	}
	defer s.volumeRunning.Store(false)

	start := time.Now()
	tokens, err := s.aggregator.GetTokens(ctx, s.cfg.VolumeCheckTop, domain.SortVolume, domain.TimeFrame24h)
	if err != nil {
		observability.RecordRefreshRun("volume_check", "error", time.Since(start).Seconds())
		s.logger.Printf("volume check failed: %v", err)
		return
	}

	for _, token := range tokens {
		previous, ok := s.previous(token.Address)
		if !ok || previous.VolumeSOL <= 0 {
			continue
		}
		growth := (token.VolumeSOL - previous.VolumeSOL) / previous.VolumeSOL
		if growth > s.cfg.VolumeSpikeRatio {
			s.hub.BroadcastVolumeSpike(token.Address, previous.VolumeSOL, token.VolumeSOL)
			s.logger.Printf("volume spike %s +%.2f%%", token.Ticker, growth*100)
		}
	}
	observability.RecordRefreshRun("volume_check", "success", time.Since(start).Seconds())
}

func (s *Scheduler) previous(address string) (domain.Token, bool) {
	s.snapshotMu.RLock()
	defer s.snapshotMu.RUnlock()
	token, ok := s.snapshot[address]
	return token, ok
}
