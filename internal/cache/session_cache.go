package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

// KeyPrefix prefixes every session entry.
const KeyPrefix = "sessionData_"

// Key returns the storage key of a session.
func Key(sessionID string) string {
	return KeyPrefix + sessionID
}

// SessionCache stores raw session payloads, compressed, one entry per session.
type SessionCache struct {
	storage Storage
	codec   *Codec
	logger  *zap.Logger
}

func NewSessionCache(storage Storage, codec *Codec, logger *zap.Logger) *SessionCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionCache{storage: storage, codec: codec, logger: logger}
}

// Get returns the cached payload of sessionID. A miss is reported with ok
// false and a nil error.
func (c *SessionCache) Get(ctx context.Context, sessionID string) ([]byte, bool, error) {
	compressed, err := c.storage.Get(ctx, Key(sessionID))
	if errors.Is(err, ErrMiss) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	raw, err := c.codec.Decode(compressed)
	if err != nil {
		return nil, false, fmt.Errorf("session %s: %w", sessionID, err)
	}
	return raw, true, nil
}

// Put stores raw under sessionID. When storage is full every other session
// entry is evicted and the write is retried once; a second failure is returned.
func (c *SessionCache) Put(ctx context.Context, sessionID string, raw []byte) error {
	key := Key(sessionID)
	value := c.codec.Encode(raw)

	err := c.storage.Set(ctx, key, value)
	if err == nil || !errors.Is(err, ErrQuotaExceeded) {
		return err
	}

	evicted, evictErr := c.evictExcept(ctx, key)
	c.logger.Warn("session cache full; evicted other sessions",
		zap.String("session_id", sessionID), zap.Int("evicted", evicted), zap.Int("bytes", len(value)))
	if evictErr != nil {
		return fmt.Errorf("evict sessions: %w", evictErr)
	}
	if err := c.storage.Set(ctx, key, value); err != nil {
		return fmt.Errorf("retry after eviction: %w", err)
	}
	return nil
}

func (c *SessionCache) Delete(ctx context.Context, sessionID string) error {
	return c.storage.Delete(ctx, Key(sessionID))
}

// SessionIDs lists the cached sessions.
func (c *SessionCache) SessionIDs(ctx context.Context) ([]string, error) {
	keys, err := c.storage.Keys(ctx, KeyPrefix)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(keys))
	for _, key := range keys {
		ids = append(ids, strings.TrimPrefix(key, KeyPrefix))
	}
	return ids, nil
}

func (c *SessionCache) evictExcept(ctx context.Context, keep string) (int, error) {
	keys, err := c.storage.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, err
	}
	evicted := 0
	for _, key := range keys {
		if key == keep {
			continue
		}
		if err := c.storage.Delete(ctx, key); err != nil {
			return evicted, err
		}
		evicted++
	}
	return evicted, nil
}
