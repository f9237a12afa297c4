// Package scheduler runs the periodic maintenance jobs: orphaned profile
// reconciliation and expired refresh-token cleanup.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	tokenCleanupSpec = "@hourly"
	jobTimeout       = 5 * time.Minute
)

type Reconciler interface {
	Reconcile(ctx context.Context) (int64, error)
}

type TokenCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// New schedules the jobs on a cron that has not been started. An empty
// syncSpec disables reconciliation.
func New(syncSpec string, reconciler Reconciler, tokens TokenCleaner, logger *zap.Logger) (*cron.Cron, error) {
	c := cron.New()

	if syncSpec != "" {
		if _, err := c.AddFunc(syncSpec, func() { SyncUsers(reconciler, logger) }); err != nil {
			return nil, fmt.Errorf("invalid sync schedule %q: %w", syncSpec, err)
		}
	}

	if _, err := c.AddFunc(tokenCleanupSpec, func() { CleanupTokens(tokens, logger) }); err != nil {
		return nil, fmt.Errorf("failed to schedule token cleanup: %w", err)
	}

	return c, nil
}

func SyncUsers(reconciler Reconciler, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	removed, err := reconciler.Reconcile(ctx)
	if err != nil {
		logger.Error("scheduled user sync failed", zap.Int64("removed", removed), zap.Error(err))
		return
	}
	logger.Info("scheduled user sync finished", zap.Int64("removed", removed))
}

func CleanupTokens(tokens TokenCleaner, logger *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	n, err := tokens.CleanupExpired(ctx)
	if err != nil {
		logger.Error("refresh token cleanup failed", zap.Error(err))
		return
	}
	if n > 0 {
		logger.Info("expired refresh tokens removed", zap.Int64("count", n))
	}
}
