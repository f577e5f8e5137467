// Package querycache 以 query key 为索引的缓存，支持 redis 与进程内两种后端
package querycache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"time"

	"snapgram/internal/pkg/querykeys"
	"snapgram/internal/pkg/xerrors"
)

// Cache 缓存后端
// Get 未命中时返回 (nil, false, nil)
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// GetJSON 读取并反序列化
func GetJSON[T any](ctx context.Context, c Cache, key string) (T, bool, error) {
	var zero T
	raw, ok, err := c.Get(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false, xerrors.NewCacheError("decode", err).WithMetadata("key", key)
	}
	return v, true, nil
}

// SetJSON 序列化后写入
func SetJSON[T any](ctx context.Context, c Cache, key string, value T, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return xerrors.NewCacheError("encode", err).WithMetadata("key", key)
	}
	return c.Set(ctx, key, raw, ttl)
}

// HashToken 会话 token 不直接出现在缓存 key 和日志里
func HashToken(token string) string {
	if token == "" {
		return ""
	}
	h := sha1.Sum([]byte(token))
	return hex.EncodeToString(h[:])[:12]
}

// queryLabel 指标里的 query 标签
func queryLabel(key string) string {
	if k, ok := querykeys.FromCacheKey(key); ok {
		return k.String()
	}
	return "other"
}
