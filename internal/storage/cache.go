package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/stitts-dev/dfs-ml/internal/training"
	"github.com/stitts-dev/dfs-ml/pkg/logger"
)

// BundleCache keeps reconstructed bundles in Redis so inference-heavy
// callers avoid hitting the artifact table per request.
type BundleCache struct {
	client     *redis.Client
	defaultTTL time.Duration
	keyPrefix  string
	logger     *logrus.Entry
}

// NewBundleCache connects to Redis and verifies the connection.
func NewBundleCache(redisURL string, ttl time.Duration) (*BundleCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &BundleCache{
		client:     client,
		defaultTTL: ttl,
		keyPrefix:  "dfsml:bundle",
		logger:     logger.WithComponent("bundle_cache"),
	}, nil
}

// cachedBundle is the wire form of a bundle: the model rides as an opaque
// envelope blob.
type cachedBundle struct {
	Category     string                     `json:"category"`
	FeatureNames []string                   `json:"feature_names"`
	Scaler       *training.Scaler           `json:"scaler"`
	Performance  training.PerformanceRecord `json:"performance"`
	Model        json.RawMessage            `json:"model"`
}

// Get returns the cached bundle for a category, or nil on a miss.
func (c *BundleCache) Get(ctx context.Context, category string) (*training.ModelBundle, error) {
	key := c.key(category)
	raw, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			c.logger.WithField("key", key).Debug("Cache miss for model bundle")
			return nil, nil
		}
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var cached cachedBundle
	if err := json.Unmarshal([]byte(raw), &cached); err != nil {
		return nil, fmt.Errorf("invalid cached bundle: %w", err)
	}
	model, err := training.UnmarshalModel(cached.Model)
	if err != nil {
		return nil, fmt.Errorf("invalid cached model: %w", err)
	}

	return &training.ModelBundle{
		Category:     cached.Category,
		Model:        model,
		Scaler:       cached.Scaler,
		FeatureNames: cached.FeatureNames,
		Performance:  cached.Performance,
	}, nil
}

// Set stores a bundle under its category with the default TTL.
func (c *BundleCache) Set(ctx context.Context, bundle *training.ModelBundle) error {
	modelBlob, err := training.MarshalModel(bundle.Model)
	if err != nil {
		return fmt.Errorf("failed to serialize model: %w", err)
	}
	payload, err := json.Marshal(cachedBundle{
		Category:     bundle.Category,
		FeatureNames: bundle.FeatureNames,
		Scaler:       bundle.Scaler,
		Performance:  bundle.Performance,
		Model:        modelBlob,
	})
	if err != nil {
		return fmt.Errorf("failed to serialize bundle: %w", err)
	}

	if err := c.client.Set(ctx, c.key(bundle.Category), payload, c.defaultTTL).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Invalidate drops a category's cached bundle, e.g. after a new training
// run supersedes it.
func (c *BundleCache) Invalidate(ctx context.Context, category string) error {
	return c.client.Del(ctx, c.key(category)).Err()
}

// Close releases the Redis connection.
func (c *BundleCache) Close() error {
	return c.client.Close()
}

func (c *BundleCache) key(category string) string {
	return fmt.Sprintf("%s:%s", c.keyPrefix, category)
}
