package ha

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// leaderLease is the lease row used for leader election. A single row per
// lease name records the current holder and the last renewal time; a lease
// whose renewed_at is older than LeaseDuration is up for grabs.
type leaderLease struct {
	Name      string    `gorm:"primaryKey;column:name"`
	Holder    string    `gorm:"column:holder;not null"`
	RenewedAt time.Time `gorm:"column:renewed_at;not null"`
}

func (leaderLease) TableName() string { return "leader_leases" }

// LeaderElector manages database lease-based leader election for singleton
// background loops. Only the elected leader replica runs loops such as the
// effective-date sweep, audit retention, and the job worker pool.
type LeaderElector struct {
	config   *HAConfig
	db       *gorm.DB
	identity string
	isLeader bool
	mu       sync.RWMutex
	logger   *slog.Logger
	onStart  func(ctx context.Context)
	onStop   func()
}

// NewLeaderElector creates a new LeaderElector. The identity should be unique
// per replica (typically the pod name or hostname).
func NewLeaderElector(cfg *HAConfig, db *gorm.DB, identity string, logger *slog.Logger) *LeaderElector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LeaderElector{
		config:   cfg,
		db:       db,
		identity: identity,
		logger:   logger,
	}
}

// AutoMigrate creates or updates the lease table.
func (le *LeaderElector) AutoMigrate() error {
	return le.db.AutoMigrate(&leaderLease{})
}

// OnStartLeading registers a callback invoked when this instance becomes leader.
// The provided context is cancelled when leadership is lost.
func (le *LeaderElector) OnStartLeading(fn func(ctx context.Context)) {
	le.onStart = fn
}

// OnStopLeading registers a callback invoked when this instance loses leadership.
func (le *LeaderElector) OnStopLeading(fn func()) {
	le.onStop = fn
}

// IsLeader returns true if this instance is the current leader.
func (le *LeaderElector) IsLeader() bool {
	le.mu.RLock()
	defer le.mu.RUnlock()
	return le.isLeader
}

// Run starts leader election. It blocks until the context is cancelled.
// When this instance becomes leader, it calls the OnStartLeading callback;
// when leadership is lost, OnStopLeading.
func (le *LeaderElector) Run(ctx context.Context) {
	le.logger.Info("starting leader election",
		"identity", le.identity,
		"lease", le.config.LeaseName,
		"leaseDuration", le.config.LeaseDuration,
		"renewPeriod", le.config.RenewPeriod,
		"retryPeriod", le.config.RetryPeriod)

	var leaderCtx context.Context
	var leaderCancel context.CancelFunc

	stopLeading := func() {
		if leaderCancel != nil {
			leaderCancel()
			leaderCancel = nil
		}
		le.setLeader(false)
		if le.onStop != nil {
			le.onStop()
		}
	}

	ticker := time.NewTicker(le.config.RetryPeriod)
	defer ticker.Stop()

	for {
		held, err := le.tryAcquireOrRenew(ctx)
		if err != nil {
			le.logger.Error("lease acquisition failed", "lease", le.config.LeaseName, "error", err)
		}

		switch {
		case held && !le.IsLeader():
			le.logger.Info("became leader", "identity", le.identity, "lease", le.config.LeaseName)
			le.setLeader(true)
			leaderCtx, leaderCancel = context.WithCancel(ctx)
			if le.onStart != nil {
				go le.onStart(leaderCtx)
			}
			ticker.Reset(le.config.RenewPeriod)
		case !held && le.IsLeader():
			le.logger.Warn("lost leadership", "identity", le.identity, "lease", le.config.LeaseName)
			stopLeading()
			ticker.Reset(le.config.RetryPeriod)
		}

		select {
		case <-ctx.Done():
			if le.IsLeader() {
				stopLeading()
				le.release()
			}
			le.logger.Info("leader election stopped", "identity", le.identity)
			return
		case <-ticker.C:
		}
	}
}

// tryAcquireOrRenew attempts to acquire the lease or renew it if this
// instance already holds it. Returns true when the lease is held after the
// attempt.
func (le *LeaderElector) tryAcquireOrRenew(ctx context.Context) (bool, error) {
	now := time.Now()
	staleBefore := now.Add(-le.config.LeaseDuration)

	// Renew or take over in one conditional update: succeeds when we hold
	// the lease or the current lease has gone stale.
	res := le.db.WithContext(ctx).Model(&leaderLease{}).
		Where("name = ? AND (holder = ? OR renewed_at < ?)", le.config.LeaseName, le.identity, staleBefore).
		Updates(map[string]any{"holder": le.identity, "renewed_at": now})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	// No row updated: either the lease row is missing or another live
	// holder owns it. Try to create it; a conflict means the latter.
	lease := leaderLease{Name: le.config.LeaseName, Holder: le.identity, RenewedAt: now}
	res = le.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&lease)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// release gives up the lease on shutdown so a standby can take over without
// waiting for expiry. Best effort.
func (le *LeaderElector) release() {
	le.db.Where("name = ? AND holder = ?", le.config.LeaseName, le.identity).Delete(&leaderLease{})
}

func (le *LeaderElector) setLeader(v bool) {
	le.mu.Lock()
	le.isLeader = v
	le.mu.Unlock()
}
