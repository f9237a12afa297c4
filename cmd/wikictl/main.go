// Command wikictl runs operator tasks against the LoreWiki database and claim
// store without going through the HTTP API.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dimitrije/lorewiki-api/internal/config"
	"github.com/dimitrije/lorewiki-api/internal/database"
	"github.com/dimitrije/lorewiki-api/internal/logging"
	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/dimitrije/lorewiki-api/internal/services"
	"github.com/dimitrije/lorewiki-api/internal/triggers"
)

// operator is the slice of PrivilegedService the CLI drives.
type operator interface {
	PromoteAdmin(ctx context.Context, email string) (*models.User, error)
	Reconcile(ctx context.Context) (int64, error)
	ResetAllViewCounts(ctx context.Context) (int64, error)
}

type opener func(ctx context.Context) (operator, func(), error)

func main() {
	if err := newRootCmd(openOperator).Execute(); err != nil {
		os.Exit(1)
	}
}

func openOperator(ctx context.Context) (operator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(!cfg.IsProduction())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	redisClient, err := services.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	// Lifecycle events raised here have no running worker; they are queued
	// and discarded when the process exits.
	events := triggers.New(64, logger, nil)

	claims := services.NewClaimStore(redisClient)
	profiles := services.NewProfileService(db, events)
	accounts := services.NewAccountService(db, claims, events)
	pages := services.NewPageService(db)
	svc := services.NewPrivilegedService(claims, profiles, accounts, pages, nil, logger)

	closeFn := func() {
		_ = redisClient.Close()
		db.Close()
		_ = logger.Sync()
	}
	return svc, closeFn, nil
}
