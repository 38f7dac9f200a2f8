package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"negotiation-service/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/claim_active.lua
var claimActiveScript string

//go:embed scripts/release_lock.lua
var releaseLockScript string

// Client wraps Redis for the negotiation service: the advisory active-
// negotiation index, the short-lived code preview cache, and the sweeper
// lock. All of it is a fast path; Postgres stays authoritative.
type Client struct {
	rdb           *redis.Client
	claimScript   *redis.Script
	releaseScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{
		rdb:           rdb,
		claimScript:   redis.NewScript(claimActiveScript),
		releaseScript: redis.NewScript(releaseLockScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

func activeKey(buyerID, projectID string) string {
	return fmt.Sprintf("nego:active:%s:%s", buyerID, projectID)
}

func codeKey(code string) string {
	return fmt.Sprintf("nego:code:%s", code)
}

// SetActive claims the (buyer, project) slot for a negotiation. The Lua
// script makes claim-or-read atomic, so two opens racing through the fast
// path see the same holder.
func (c *Client) SetActive(ctx context.Context, buyerID, projectID, negotiationID string, ttl time.Duration) error {
	seconds := int64(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	_, err := c.claimScript.Run(ctx, c.rdb, []string{activeKey(buyerID, projectID)}, negotiationID, seconds).Result()
	if err != nil {
		return fmt.Errorf("claim active script failed: %w", err)
	}
	return nil
}

// GetActive returns the negotiation currently indexed for (buyer, project),
// or "" when the slot is free.
func (c *Client) GetActive(ctx context.Context, buyerID, projectID string) (string, error) {
	id, err := c.rdb.Get(ctx, activeKey(buyerID, projectID)).Result()
	if err == redis.Nil {
		return "", nil
	}
	return id, err
}

// ClearActive frees the (buyer, project) slot.
func (c *Client) ClearActive(ctx context.Context, buyerID, projectID string) error {
	return c.rdb.Del(ctx, activeKey(buyerID, projectID)).Err()
}

// SetCode caches a code preview with a short TTL.
func (c *Client) SetCode(ctx context.Context, code *models.DiscountCode, ttl time.Duration) error {
	raw, err := json.Marshal(code)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, codeKey(code.Code), raw, ttl).Err()
}

// GetCode returns a cached code preview, or nil on a miss.
func (c *Client) GetCode(ctx context.Context, code string) (*models.DiscountCode, error) {
	raw, err := c.rdb.Get(ctx, codeKey(code)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var dc models.DiscountCode
	if err := json.Unmarshal(raw, &dc); err != nil {
		return nil, fmt.Errorf("corrupt cached code: %w", err)
	}
	return &dc, nil
}

// InvalidateCode drops a cached preview, called on redemption and void.
func (c *Client) InvalidateCode(ctx context.Context, code string) error {
	return c.rdb.Del(ctx, codeKey(code)).Err()
}

// AcquireLock acquires a named lock with a holder token, used so only one
// instance runs the expiry sweep at a time.
func (c *Client) AcquireLock(ctx context.Context, lockKey, token string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("nego:lock:%s", lockKey), token, ttl).Result()
}

// ReleaseLock releases a lock if the caller still holds it.
func (c *Client) ReleaseLock(ctx context.Context, lockKey, token string) error {
	_, err := c.releaseScript.Run(ctx, c.rdb, []string{fmt.Sprintf("nego:lock:%s", lockKey)}, token).Result()
	if err != nil {
		return fmt.Errorf("release lock script failed: %w", err)
	}
	return nil
}
