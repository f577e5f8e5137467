// Package querykeys 查询缓存使用的 key 名称
package querykeys

import (
	"strings"

	"snapgram/internal/pkg/xerrors"
)

// QueryKey 缓存查询的名称
type QueryKey string

const (
	// AUTH
	GetCurrentUser QueryKey = "getCurrentUser"
	GetUser        QueryKey = "getUser"
	GetUserByID    QueryKey = "getUserByID"

	// POST
	GetPosts         QueryKey = "getPosts"
	GetInfinitePosts QueryKey = "getInfinitePosts"
	GetRecentPosts   QueryKey = "getRecentPosts"
	GetPostByID      QueryKey = "getPostById"
	GetUserPosts     QueryKey = "getUserPosts"
	GetFilePreview   QueryKey = "getFilePreview"

	// SEARCH
	SearchPosts QueryKey = "searchPosts"
)

// Prefix 所有缓存 key 的命名空间
const Prefix = "snapgram"

var all = []QueryKey{
	GetCurrentUser, GetUser, GetUserByID,
	GetPosts, GetInfinitePosts, GetRecentPosts, GetPostByID, GetUserPosts, GetFilePreview,
	SearchPosts,
}

// All 返回全部 key，顺序固定
func All() []QueryKey {
	out := make([]QueryKey, len(all))
	copy(out, all)
	return out
}

func (k QueryKey) String() string { return string(k) }

// Valid 是否是已定义的 key
func (k QueryKey) Valid() bool {
	for _, known := range all {
		if k == known {
			return true
		}
	}
	return false
}

// Key 组合缓存 key：snapgram:<key>:<part>...
// 空的 part 会被跳过
func Key(k QueryKey, parts ...string) string {
	var b strings.Builder
	b.WriteString(Prefix)
	b.WriteByte(':')
	b.WriteString(string(k))
	for _, p := range parts {
		if p == "" {
			continue
		}
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// Parse 校验 key 名称
func Parse(s string) (QueryKey, error) {
	k := QueryKey(s)
	if !k.Valid() {
		return "", xerrors.New(xerrors.CodeInvalidParams, "unknown query key").
			WithMetadata("query_key", s)
	}
	return k, nil
}

// FromCacheKey 从完整缓存 key 中取回查询名称，用于指标标签
func FromCacheKey(cacheKey string) (QueryKey, bool) {
	rest, ok := strings.CutPrefix(cacheKey, Prefix+":")
	if !ok {
		return "", false
	}
	name, _, _ := strings.Cut(rest, ":")
	k := QueryKey(name)
	return k, k.Valid()
}
