package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kjannette/coinledger/internal/pricesync"
	"github.com/kjannette/coinledger/internal/telemetry"
)

// CoinLister returns the coins that already have stored prices.
type CoinLister interface {
	Coins(ctx context.Context) ([]string, error)
}

type BatchSyncer interface {
	SyncMany(ctx context.Context, coins []string, vsCurrency string, maxDays int) pricesync.Report
}

type Notifier interface {
	SyncFailures(ctx context.Context, rep pricesync.Report) error
}

type RefreshConfig struct {
	Interval     time.Duration // e.g. 1*time.Hour
	RunTimeout   time.Duration // per pass; covers every coin
	TrackedCoins []string
	VsCurrency   string
	MaxDays      int
	RunOnStart   bool
	Logger       *slog.Logger
}

// RefreshScheduler keeps the stored series of every tracked coin current.
type RefreshScheduler struct {
	syncer   BatchSyncer
	coins    CoinLister
	notifier Notifier
	cfg      RefreshConfig
	log      *slog.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
	runMu   sync.Mutex
}

func NewRefreshScheduler(syncer BatchSyncer, coins CoinLister, notifier Notifier, cfg RefreshConfig) *RefreshScheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = 1 * time.Hour
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 10 * time.Minute
	}
	if cfg.VsCurrency == "" {
		cfg.VsCurrency = "usd"
	}
	if cfg.MaxDays <= 0 {
		cfg.MaxDays = 365
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &RefreshScheduler{
		syncer:   syncer,
		coins:    coins,
		notifier: notifier,
		cfg:      cfg,
		log:      cfg.Logger.With("component", "refresh-scheduler"),
	}
}

func (s *RefreshScheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.log.Info("already running")
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	stopCh := s.stopCh
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if s.cfg.RunOnStart {
			s.runOnce(stopCh)
		}
		ticker := time.NewTicker(s.cfg.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-stopCh:
				return
			case <-ticker.C:
				s.runOnce(stopCh)
			}
		}
	}()

	s.log.Info("started", "interval", s.cfg.Interval)
}

// Stop ends the ticker and waits for an in-flight pass to finish.
func (s *RefreshScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	close(s.stopCh)
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()
	s.log.Info("stopped")
}

func (s *RefreshScheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// RefreshNow manually triggers a pass outside the normal schedule.
func (s *RefreshScheduler) RefreshNow(ctx context.Context) (pricesync.Report, error) {
	s.log.Info("manual refresh triggered")
	return s.refresh(ctx)
}

func (s *RefreshScheduler) runOnce(stopCh <-chan struct{}) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.RunTimeout)
	defer cancel()
	go func() {
		select {
		case <-stopCh:
			cancel()
		case <-ctx.Done():
		}
	}()
	if _, err := s.refresh(ctx); err != nil {
		s.log.Error("refresh failed", "err", err)
	}
}

// refresh runs one pass. Passes never overlap.
func (s *RefreshScheduler) refresh(ctx context.Context) (pricesync.Report, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	coins, err := s.trackedCoins(ctx)
	if err != nil {
		return pricesync.Report{}, err
	}
	if len(coins) == 0 {
		s.log.Info("no coins to refresh")
		return pricesync.Report{}, nil
	}

	start := time.Now()
	rep := s.syncer.SyncMany(ctx, coins, s.cfg.VsCurrency, s.cfg.MaxDays)
	failed := rep.Failed()
	telemetry.SyncRun(len(coins), len(failed))

	s.log.Info("refresh complete",
		"coins", len(coins),
		"failed", len(failed),
		"elapsed", time.Since(start).Round(time.Millisecond))

	if len(failed) > 0 && s.notifier != nil {
		if err := s.notifier.SyncFailures(ctx, rep); err != nil {
			s.log.Warn("failure notification not sent", "err", err)
		}
	}
	return rep, nil
}

// trackedCoins is the configured list plus every coin already stored,
// deduplicated and sorted.
func (s *RefreshScheduler) trackedCoins(ctx context.Context) ([]string, error) {
	set := map[string]struct{}{}
	for _, c := range s.cfg.TrackedCoins {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" {
			set[c] = struct{}{}
		}
	}
	if s.coins != nil {
		stored, err := s.coins.Coins(ctx)
		if err != nil {
			return nil, fmt.Errorf("list stored coins: %w", err)
		}
		for _, c := range stored {
			set[c] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out, nil
}
