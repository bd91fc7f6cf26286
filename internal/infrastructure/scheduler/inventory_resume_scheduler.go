package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/storesync/backend/internal/domain/catalogsync"
)

// ---------------------------------------------------------------------------
// Resume Run Types
// ---------------------------------------------------------------------------

// RunStatus represents the outcome of a resume pass
type RunStatus string

const (
	RunStatusRunning RunStatus = "RUNNING"
	RunStatusSuccess RunStatus = "SUCCESS"
	RunStatusPartial RunStatus = "PARTIAL"
	RunStatusFailed  RunStatus = "FAILED"
)

// ResumeRun records one pass over records stuck before inventory_synced
type ResumeRun struct {
	ID          uuid.UUID
	Cutoff      time.Time
	Status      RunStatus
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	Scanned  int
	Advanced int
	Failed   int
}

func newResumeRun(cutoff, now time.Time) *ResumeRun {
	return &ResumeRun{
		ID:        uuid.New(),
		Cutoff:    cutoff,
		Status:    RunStatusRunning,
		StartedAt: now,
	}
}

// Complete marks the run finished with the pass result
func (r *ResumeRun) Complete(result catalogsync.ResumeResult, now time.Time) {
	r.Scanned = result.Scanned
	r.Advanced = result.Advanced
	r.Failed = result.Failed
	r.CompletedAt = &now

	switch {
	case result.Failed == 0:
		r.Status = RunStatusSuccess
	case result.Advanced > 0:
		r.Status = RunStatusPartial
	default:
		r.Status = RunStatusFailed
	}
}

// Fail marks the run as failed
func (r *ResumeRun) Fail(err string, now time.Time) {
	r.Status = RunStatusFailed
	r.Error = err
	r.CompletedAt = &now
}

// ---------------------------------------------------------------------------
// InventoryResumer Interface
// ---------------------------------------------------------------------------

// InventoryResumer re-runs initial inventory propagation for records created
// before cutoff that never reached inventory_synced
type InventoryResumer interface {
	ResumePendingInventory(ctx context.Context, cutoff time.Time, limit int) (catalogsync.ResumeResult, error)
}

// ---------------------------------------------------------------------------
// InventoryResumeConfig
// ---------------------------------------------------------------------------

// InventoryResumeConfig holds configuration for the inventory resume scheduler
type InventoryResumeConfig struct {
	// Enabled indicates if the scheduler is enabled
	Enabled bool
	// Interval is the time between passes
	Interval time.Duration
	// Grace is how long a record may stay in the created state before it is resumed
	Grace time.Duration
	// BatchSize caps the records handled per pass
	BatchSize int
	// RunTimeout bounds a single pass
	RunTimeout time.Duration
}

// DefaultInventoryResumeConfig returns default configuration
func DefaultInventoryResumeConfig() InventoryResumeConfig {
	return InventoryResumeConfig{
		Enabled:    true,
		Interval:   5 * time.Minute,
		Grace:      2 * time.Minute,
		BatchSize:  50,
		RunTimeout: 4 * time.Minute,
	}
}

// Validate validates the configuration
func (c *InventoryResumeConfig) Validate() error {
	if c.Interval <= 0 || c.Grace < 0 || c.BatchSize <= 0 || c.RunTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// ---------------------------------------------------------------------------
// InventoryResumeScheduler
// ---------------------------------------------------------------------------

// InventoryResumeScheduler periodically advances records left in the created
// state by a failed initial inventory propagation
type InventoryResumeScheduler struct {
	config  InventoryResumeConfig
	resumer InventoryResumer
	logger  *zap.Logger
	now     func() time.Time

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
	inFlight  atomic.Bool

	historyMu  sync.RWMutex
	history    []*ResumeRun
	maxHistory int
}

// NewInventoryResumeScheduler creates a new inventory resume scheduler
func NewInventoryResumeScheduler(config InventoryResumeConfig, resumer InventoryResumer, logger *zap.Logger) (*InventoryResumeScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &InventoryResumeScheduler{
		config:     config,
		resumer:    resumer,
		logger:     logger,
		now:        time.Now,
		history:    make([]*ResumeRun, 0, 20),
		maxHistory: 20,
	}, nil
}

// Start starts the periodic loop. It is a no-op when disabled or already running.
func (s *InventoryResumeScheduler) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.logger.Info("Inventory resume scheduler disabled")
		return nil
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(ctx)

	s.logger.Info("Inventory resume scheduler started",
		zap.Duration("interval", s.config.Interval),
		zap.Duration("grace", s.config.Grace),
		zap.Int("batch_size", s.config.BatchSize),
	)
	return nil
}

// Stop gracefully stops the scheduler, waiting for an in-flight pass
func (s *InventoryResumeScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Inventory resume scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Inventory resume scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning reports whether the periodic loop is active
func (s *InventoryResumeScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

func (s *InventoryResumeScheduler) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrRunInProgress) {
				s.logger.Debug("Inventory resume pass ended with error", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single pass immediately. Only one pass runs at a time.
func (s *InventoryResumeScheduler) RunOnce(ctx context.Context) (*ResumeRun, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer s.inFlight.Store(false)

	run := newResumeRun(s.now().Add(-s.config.Grace), s.now())

	runCtx, cancel := context.WithTimeout(ctx, s.config.RunTimeout)
	defer cancel()

	result, err := s.resumer.ResumePendingInventory(runCtx, run.Cutoff, s.config.BatchSize)
	if err != nil {
		run.Fail(err.Error(), s.now())
		s.logger.Error("Inventory resume pass failed",
			zap.String("run_id", run.ID.String()),
			zap.Error(err),
		)
		s.addToHistory(run)
		return run, err
	}

	run.Complete(result, s.now())
	if result.Scanned > 0 {
		s.logger.Info("Inventory resume pass completed",
			zap.String("run_id", run.ID.String()),
			zap.String("status", string(run.Status)),
			zap.Int("scanned", result.Scanned),
			zap.Int("advanced", result.Advanced),
			zap.Int("failed", result.Failed),
		)
	}
	s.addToHistory(run)
	return run, nil
}

// addToHistory adds a finished run to history, newest first
func (s *InventoryResumeScheduler) addToHistory(run *ResumeRun) {
	s.historyMu.Lock()
	defer s.historyMu.Unlock()

	s.history = append([]*ResumeRun{run}, s.history...)
	if len(s.history) > s.maxHistory {
		s.history = s.history[:s.maxHistory]
	}
}

// GetRunHistory returns recent runs, newest first
func (s *InventoryResumeScheduler) GetRunHistory(limit int) []*ResumeRun {
	s.historyMu.RLock()
	defer s.historyMu.RUnlock()

	if limit <= 0 || limit > len(s.history) {
		limit = len(s.history)
	}
	result := make([]*ResumeRun, limit)
	copy(result, s.history[:limit])
	return result
}
