// Package cache provides a Redis-backed result cache for classifiers.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tckmpsi/kq-classifier/internal/classifier"
	"github.com/tckmpsi/kq-classifier/internal/model"
)

// CachingClassifier decorates a Classifier, remembering results per model
// and image content.
type CachingClassifier struct {
	inner     classifier.Classifier
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ classifier.Classifier = (*CachingClassifier)(nil)

// NewCachingClassifier wraps inner. If ttl is 0 it defaults to 10 minutes; if
// namespace is empty it uses "kq". A nil rdb disables caching.
func NewCachingClassifier(rdb *redis.Client, ttl time.Duration, inner classifier.Classifier, namespace string) *CachingClassifier {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if namespace == "" {
		namespace = "kq"
	}
	return &CachingClassifier{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Classify returns a cached result when one exists, otherwise classifies and
// stores the result. Failures are never cached.
func (c *CachingClassifier) Classify(ctx context.Context, req model.ClassificationRequest) (*model.ClassificationResult, error) {
	if c.rdb == nil {
		return c.inner.Classify(ctx, req)
	}

	key := c.cacheKey(req.Model, req.Image)

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out model.ClassificationResult
		if err := json.Unmarshal(b, &out); err == nil {
			return &out, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.Classify(ctx, req)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(out); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			slog.Warn("failed to cache result", "model", req.Model, "error", err)
		}
	}
	return out, nil
}

// Invalidate drops every cached result for modelName.
func (c *CachingClassifier) Invalidate(ctx context.Context, modelName string) error {
	if c.rdb == nil {
		return nil
	}
	return c.deleteByPattern(ctx, c.cacheKeyPrefix(modelName)+"*")
}

func (c *CachingClassifier) cacheKey(modelName, image string) string {
	sum := sha256.Sum256([]byte(image))
	return c.cacheKeyPrefix(modelName) + hex.EncodeToString(sum[:])
}

func (c *CachingClassifier) cacheKeyPrefix(modelName string) string {
	return fmt.Sprintf("%s:%s:", c.namespace, safe(modelName))
}

// deleteByPattern deletes all keys matching pattern using SCAN.
func (c *CachingClassifier) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}

func safe(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	s = strings.ReplaceAll(s, "*", "_")
	return s
}
