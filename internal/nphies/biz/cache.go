package biz

import (
	"context"
	"errors"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/nphies-rag/internal/model"
	"github.com/kart-io/nphies-rag/internal/pkg/textutil"
	"github.com/kart-io/nphies-rag/pkg/utils/json"
)

// AnswerCacheConfig 回答缓存配置。
type AnswerCacheConfig struct {
	// TTL 缓存过期时间。
	TTL time.Duration
	// KeyPrefix 缓存键前缀。
	KeyPrefix string
}

// DefaultAnswerCacheConfig 返回默认的回答缓存配置。
func DefaultAnswerCacheConfig() *AnswerCacheConfig {
	return &AnswerCacheConfig{
		TTL:       1 * time.Hour,
		KeyPrefix: "nphies:answer:",
	}
}

// CacheStats 缓存统计信息。Available 为 false 时 KeyCount 无意义，Error 记录原因。
type CacheStats struct {
	Enabled   bool   `json:"enabled"`
	Available bool   `json:"available"`
	KeyCount  int    `json:"key_count"`
	TTL       string `json:"ttl,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty"`
	Error     string `json:"error,omitempty"`
}

// AnswerCache 生成回答的 Redis 缓存。redis 为 nil 时所有操作都是空操作。
type AnswerCache struct {
	redis  *goredis.Client
	config *AnswerCacheConfig
}

// NewAnswerCache 创建回答缓存实例。
func NewAnswerCache(redis *goredis.Client, config *AnswerCacheConfig) *AnswerCache {
	if config == nil {
		config = DefaultAnswerCacheConfig()
	}
	return &AnswerCache{
		redis:  redis,
		config: config,
	}
}

// Enabled 报告缓存是否可用。
func (c *AnswerCache) Enabled() bool {
	return c != nil && c.redis != nil
}

// generateCacheKey 由语料指纹、语言和规范化后的问题生成缓存键。
func (c *AnswerCache) generateCacheKey(fingerprint string, lang model.Language, query string) string {
	return c.config.KeyPrefix + textutil.HashString(fingerprint+"\x00"+string(lang)+"\x00"+textutil.NormalizeQuery(query))
}

// Get 从缓存获取回答。未命中返回 (nil, nil)。
func (c *AnswerCache) Get(ctx context.Context, fingerprint string, lang model.Language, query string) (*model.Answer, error) {
	if !c.Enabled() {
		return nil, nil
	}

	cacheKey := c.generateCacheKey(fingerprint, lang, query)

	data, err := c.redis.Get(ctx, cacheKey).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			logger.Debugw("answer cache miss", "key", cacheKey)
			return nil, nil
		}
		logger.Warnw("failed to get from answer cache", "error", err.Error(), "key", cacheKey)
		return nil, err
	}

	var answer model.Answer
	if err := json.Unmarshal(data, &answer); err != nil {
		logger.Warnw("failed to unmarshal cached answer", "error", err.Error(), "key", cacheKey)
		// 删除损坏的缓存
		_ = c.redis.Del(ctx, cacheKey).Err()
		return nil, err
	}

	logger.Debugw("answer cache hit", "key", cacheKey, "answer_length", len(answer.Text))
	return &answer, nil
}

// Set 写入生成的回答。固定回答不会被缓存。
func (c *AnswerCache) Set(ctx context.Context, fingerprint string, lang model.Language, query string, answer *model.Answer) error {
	if !c.Enabled() || answer == nil || answer.Canned {
		return nil
	}

	cacheKey := c.generateCacheKey(fingerprint, lang, query)

	data, err := json.Marshal(answer)
	if err != nil {
		logger.Warnw("failed to marshal answer for caching", "error", err.Error())
		return err
	}

	if err := c.redis.Set(ctx, cacheKey, data, c.config.TTL).Err(); err != nil {
		logger.Warnw("failed to set answer cache", "error", err.Error(), "key", cacheKey)
		return err
	}

	logger.Debugw("cached answer", "key", cacheKey, "ttl", c.config.TTL.String())
	return nil
}

// Clear 清除所有回答缓存，返回删除的键数。
func (c *AnswerCache) Clear(ctx context.Context) (int, error) {
	if !c.Enabled() {
		return 0, nil
	}

	// 使用 SCAN 命令查找所有匹配的键
	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()

	deleted := 0
	for iter.Next(ctx) {
		if err := c.redis.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warnw("failed to delete cache key", "error", err.Error(), "key", iter.Val())
			continue
		}
		deleted++
	}

	if err := iter.Err(); err != nil {
		logger.Warnw("error during cache scan", "error", err.Error())
		return deleted, err
	}

	logger.Infow("cleared answer cache", "deleted_count", deleted)
	return deleted, nil
}

// Stats 获取缓存统计信息。
func (c *AnswerCache) Stats(ctx context.Context) (*CacheStats, error) {
	if !c.Enabled() {
		return &CacheStats{Enabled: false}, nil
	}

	iter := c.redis.Scan(ctx, 0, c.config.KeyPrefix+"*", 0).Iterator()

	keyCount := 0
	for iter.Next(ctx) {
		keyCount++
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}

	return &CacheStats{
		Enabled:   true,
		Available: true,
		KeyCount:  keyCount,
		TTL:       c.config.TTL.String(),
		KeyPrefix: c.config.KeyPrefix,
	}, nil
}
