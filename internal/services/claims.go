package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dimitrije/lorewiki-api/internal/models"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const claimsKeyPrefix = "claims:"

// ClaimStore is the authoritative role store consulted when tokens are
// minted and when privileged operations authorise their caller. It is
// independent of the profile records, so writes to both are not atomic.
type ClaimStore struct {
	client *redis.Client
}

func NewClaimStore(client *redis.Client) *ClaimStore {
	return &ClaimStore{client: client}
}

// NewRedisClient parses a redis:// URL and verifies the connection.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

func claimsKey(accountID uuid.UUID) string {
	return claimsKeyPrefix + accountID.String()
}

// Role returns the account's role claim. Accounts without a claim are Viewers.
func (s *ClaimStore) Role(ctx context.Context, accountID uuid.UUID) (models.Role, error) {
	val, err := s.client.HGet(ctx, claimsKey(accountID), "role").Result()
	if errors.Is(err, redis.Nil) {
		return models.DefaultRole, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read role claim: %w", err)
	}

	role, err := models.ParseRole(val)
	if err != nil {
		return models.DefaultRole, nil
	}
	return role, nil
}

func (s *ClaimStore) SetRole(ctx context.Context, accountID uuid.UUID, role models.Role) error {
	if err := s.client.HSet(ctx, claimsKey(accountID), "role", string(role)).Err(); err != nil {
		return fmt.Errorf("failed to write role claim: %w", err)
	}
	return nil
}

func (s *ClaimStore) Delete(ctx context.Context, accountID uuid.UUID) error {
	if err := s.client.Del(ctx, claimsKey(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to delete claims: %w", err)
	}
	return nil
}

const bootstrapLockKey = "lock:bootstrap-admin"

// AcquireBootstrapLock serialises first-admin bootstrap attempts. The returned
// release func is a no-op when the lock was not obtained.
func (s *ClaimStore) AcquireBootstrapLock(ctx context.Context, owner uuid.UUID, ttl time.Duration) (bool, func(), error) {
	ok, err := s.client.SetNX(ctx, bootstrapLockKey, owner.String(), ttl).Result()
	if err != nil {
		return false, func() {}, fmt.Errorf("failed to acquire bootstrap lock: %w", err)
	}
	if !ok {
		return false, func() {}, nil
	}
	release := func() {
		// Only the owner may release; the lock may have expired and been retaken.
		val, err := s.client.Get(context.Background(), bootstrapLockKey).Result()
		if err == nil && val == owner.String() {
			s.client.Del(context.Background(), bootstrapLockKey)
		}
	}
	return true, release, nil
}
