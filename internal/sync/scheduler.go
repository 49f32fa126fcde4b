// internal/sync/scheduler.go
package sync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"recruitsync/internal/common/config"
	"recruitsync/internal/common/database"
	"recruitsync/internal/common/logger"
	"recruitsync/internal/common/metrics"
	"recruitsync/internal/common/observability"
)

const (
	bulkRefreshLockKey  = "recruitsync:lock:bulk-refresh"
	bulkRefreshTask     = "bulk-job-refresh"
	opportunityPullTask = "opportunity-pull"
)

// Scheduler drives the periodic sync cycle: bulk job refresh followed by an
// inbound opportunity pull over the refreshed jobs. A Redis lock keeps the
// cycle single-flight across replicas; losing the lock race just means
// another replica is already doing the work.
type Scheduler struct {
	redis    *database.RedisClient
	jobs     *JobOppService
	opps     *CandidateOppService
	obs      *observability.Observability
	interval time.Duration
	lockTTL  time.Duration
	owner    string
	logger   logger.Logger
}

func NewScheduler(redis *database.RedisClient, jobs *JobOppService, opps *CandidateOppService, obs *observability.Observability, cfg config.SyncConfig, log logger.Logger) *Scheduler {
	return &Scheduler{
		redis:    redis,
		jobs:     jobs,
		opps:     opps,
		obs:      obs,
		interval: cfg.RefreshInterval,
		lockTTL:  cfg.RefreshInterval / 2,
		owner:    uuid.New().String(),
		logger:   log.WithFields(map[string]interface{}{"component": "scheduler"}),
	}
}

// Start runs the refresh loop until the context is canceled.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("scheduler started", map[string]interface{}{
			"interval": s.interval.String(),
		})

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopped", nil)
				return
			case <-ticker.C:
				s.runOnce(ctx)
			}
		}
	}()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	acquired, err := s.redis.AcquireLock(ctx, bulkRefreshLockKey, s.owner, s.lockTTL)
	if err != nil {
		s.logger.WithError(err).Error("refresh lock acquisition failed", nil)
		metrics.SyncRunsTotal.WithLabelValues(bulkRefreshTask, "lock_error").Inc()
		return
	}
	if !acquired {
		s.logger.Debug("refresh already running elsewhere, skipping", nil)
		metrics.SyncRunsTotal.WithLabelValues(bulkRefreshTask, "skipped").Inc()
		return
	}
	defer func() {
		if err := s.redis.ReleaseLock(ctx, bulkRefreshLockKey, s.owner); err != nil {
			s.logger.WithError(err).Warn("refresh lock release failed", nil)
		}
	}()

	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("bulk refresh panicked", map[string]interface{}{
				"panic": r,
			})
			metrics.SyncRunsTotal.WithLabelValues(bulkRefreshTask, "panic").Inc()
			s.obs.RecordSyncRun(ctx, bulkRefreshTask, "panic")
		}
	}()

	start := time.Now()
	if err := s.jobs.BulkRefreshOpenJobs(ctx); err != nil {
		s.logger.WithError(err).Error("bulk refresh failed", nil)
		metrics.SyncRunsTotal.WithLabelValues(bulkRefreshTask, "error").Inc()
		s.obs.RecordSyncRun(ctx, bulkRefreshTask, "error")
		return
	}

	metrics.SyncRunsTotal.WithLabelValues(bulkRefreshTask, "success").Inc()
	s.obs.RecordSyncRun(ctx, bulkRefreshTask, "success")
	s.obs.RecordSyncDuration(ctx, bulkRefreshTask, time.Since(start))

	ids, err := s.jobs.ListOpenExternalIDs(ctx)
	if err != nil {
		s.logger.WithError(err).Error("cannot list open jobs for pull", nil)
		metrics.SyncRunsTotal.WithLabelValues(opportunityPullTask, "error").Inc()
		s.obs.RecordSyncRun(ctx, opportunityPullTask, "error")
		return
	}

	pullStart := time.Now()
	s.opps.PullByJobIDs(ctx, ids)
	metrics.SyncRunsTotal.WithLabelValues(opportunityPullTask, "success").Inc()
	s.obs.RecordSyncRun(ctx, opportunityPullTask, "success")
	s.obs.RecordSyncDuration(ctx, opportunityPullTask, time.Since(pullStart))
}
