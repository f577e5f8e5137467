package client

import (
	"sync"
	"time"
)

// NewAccount 创建账户所需的完整注册记录
type NewAccount struct {
	Name     string
	Username string
	Email    string
	Password string
}

// Credentials 登录凭据
type Credentials struct {
	Email    string
	Password string
}

// User Kratos identity 在本服务中的视图
type User struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Session 登录成功后 Kratos 返回的会话
type Session struct {
	ID        string     `json:"id"`
	Token     string     `json:"-"`
	Active    bool       `json:"active"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	User      *User      `json:"user,omitempty"`
}

// TokenJar 保存一个客户端的 session token
type TokenJar interface {
	Token() string
	SetToken(token string)
	Clear()
}

// MemoryJar 进程内的 TokenJar
type MemoryJar struct {
	mu    sync.RWMutex
	token string
}

// NewMemoryJar 创建 jar，token 可以为空
func NewMemoryJar(token string) *MemoryJar {
	return &MemoryJar{token: token}
}

func (j *MemoryJar) Token() string {
	j.mu.RLock()
	defer j.mu.RUnlock()
	return j.token
}

func (j *MemoryJar) SetToken(token string) {
	j.mu.Lock()
	j.token = token
	j.mu.Unlock()
}

func (j *MemoryJar) Clear() { j.SetToken("") }
