package services

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/quantumlife-hq/horizon-backend/internal/logger"
	"github.com/quantumlife-hq/horizon-backend/internal/repos"
)

// SweepResult reports what a single pass changed. Every task is a guarded
// conditional update, so a second pass over the same data changes nothing.
type SweepResult struct {
	SignalsExpired        int64 `json:"signals_expired"`
	WindowsPromoted       int64 `json:"windows_promoted"`
	WindowsPassed         int64 `json:"windows_passed"`
	SuggestionsExpired    int64 `json:"suggestions_expired"`
	RollbackWindowsClosed int64 `json:"rollback_windows_closed"`
	SnapshotsPruned       int64 `json:"snapshots_pruned"`
}

type SweeperService interface {
	Sweep(ctx context.Context, now time.Time) (*SweepResult, error)
	Start(ctx context.Context, interval time.Duration)
	Stop()
}

type sweeperService struct {
	db          *gorm.DB
	log         *logger.Logger
	signalRepo  repos.SignalRepo
	windowRepo  repos.WindowRepo
	suggRepo    repos.SuggestionRepo
	planRepo    repos.AdaptationPlanRepo
	snapRepo    repos.SnapshotRepo
	stopCh      chan struct{}
	running     atomic.Bool
}

func NewSweeperService(db *gorm.DB, baseLog *logger.Logger, signalRepo repos.SignalRepo, windowRepo repos.WindowRepo, suggRepo repos.SuggestionRepo, planRepo repos.AdaptationPlanRepo, snapRepo repos.SnapshotRepo) SweeperService {
	return &sweeperService{
		db:         db,
		log:        baseLog.With("service", "SweeperService"),
		signalRepo: signalRepo,
		windowRepo: windowRepo,
		suggRepo:   suggRepo,
		planRepo:   planRepo,
		snapRepo:   snapRepo,
		stopCh:     make(chan struct{}),
	}
}

func (s *sweeperService) Sweep(ctx context.Context, now time.Time) (*SweepResult, error) {
	if now.IsZero() {
		now = time.Now().UTC()
	}
	result := &SweepResult{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		n, err := s.signalRepo.ExpireDue(gctx, nil, now)
		result.SignalsExpired = n
		return err
	})
	g.Go(func() error {
		n, err := s.suggRepo.ExpireDue(gctx, nil, now)
		result.SuggestionsExpired = n
		return err
	})
	g.Go(func() error {
		n, err := s.planRepo.CloseRollbackWindows(gctx, nil, now)
		result.RollbackWindowsClosed = n
		return err
	})
	g.Go(func() error {
		n, err := s.snapRepo.PruneExpired(gctx, nil, now)
		result.SnapshotsPruned = n
		return err
	})
	// Window promotion must run before pass-out so a window that both opened
	// and closed since the last sweep still counts its activation.
	g.Go(func() error {
		promoted, err := s.windowRepo.PromoteDue(gctx, nil, now)
		if err != nil {
			return err
		}
		result.WindowsPromoted = promoted
		passed, err := s.windowRepo.PassDue(gctx, nil, now)
		if err != nil {
			return err
		}
		result.WindowsPassed = passed
		return nil
	})

	if err := g.Wait(); err != nil {
		s.log.Error("sweep failed", "error", err)
		return result, err
	}
	s.log.Info("sweep complete",
		"signals_expired", result.SignalsExpired,
		"windows_promoted", result.WindowsPromoted,
		"windows_passed", result.WindowsPassed,
		"suggestions_expired", result.SuggestionsExpired,
		"rollback_windows_closed", result.RollbackWindowsClosed,
		"snapshots_pruned", result.SnapshotsPruned)
	return result, nil
}

func (s *sweeperService) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if !s.running.CompareAndSwap(false, true) {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				sweepCtx, cancel := context.WithTimeout(ctx, time.Minute)
				if _, err := s.Sweep(sweepCtx, time.Now().UTC()); err != nil {
					s.log.Warn("scheduled sweep failed", "error", err)
				}
				cancel()
			}
		}
	}()
	s.log.Info("sweeper started", "interval", interval.String())
}

func (s *sweeperService) Stop() {
	if s.running.CompareAndSwap(true, false) {
		close(s.stopCh)
	}
}
