// Package kratostest 提供 Kratos Frontend API native 流程的内存实现，供测试使用
package kratostest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

type identity struct {
	ID       string
	Password string
	Traits   map[string]any
}

// Server 模拟 Kratos Public API
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	identities map[string]*identity // email -> identity
	sessions   map[string]string    // token -> identity id
	calls      map[string]int
	failures   map[string]int // path -> 下一次调用返回的状态码
	inactive   bool
}

// NewServer 启动服务，测试结束时自动关闭
func NewServer(t interface{ Cleanup(func()) }) *Server {
	s := &Server{
		identities: map[string]*identity{},
		sessions:   map[string]string{},
		calls:      map[string]int{},
		failures:   map[string]int{},
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /self-service/registration/api", s.createFlow("registration"))
	mux.HandleFunc("POST /self-service/registration", s.register)
	mux.HandleFunc("GET /self-service/login/api", s.createFlow("login"))
	mux.HandleFunc("POST /self-service/login", s.login)
	mux.HandleFunc("GET /sessions/whoami", s.whoami)
	mux.HandleFunc("DELETE /self-service/logout/api", s.logout)

	s.Server = httptest.NewServer(s.track(mux))
	t.Cleanup(s.Close)
	return s
}

// AddIdentity 预置一个账户
func (s *Server) AddIdentity(email, username, name, password string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := uuid.NewString()
	s.identities[strings.ToLower(email)] = &identity{
		ID:       id,
		Password: password,
		Traits:   map[string]any{"email": email, "username": username, "name": name},
	}
	return id
}

// FailNext 让 path 的下一次请求返回 status
func (s *Server) FailNext(path string, status int) {
	s.mu.Lock()
	s.failures[path] = status
	s.mu.Unlock()
}

// Calls 返回 path 被调用的次数
func (s *Server) Calls(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[path]
}

// SetInactiveSessions 为 true 时返回的会话 active=false
func (s *Server) SetInactiveSessions(v bool) {
	s.mu.Lock()
	s.inactive = v
	s.mu.Unlock()
}

// RevokeAll 使所有会话失效
func (s *Server) RevokeAll() {
	s.mu.Lock()
	s.sessions = map[string]string{}
	s.mu.Unlock()
}

// SessionCount 当前有效会话数
func (s *Server) SessionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *Server) track(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.calls[r.URL.Path]++
		status, fail := s.failures[r.URL.Path]
		delete(s.failures, r.URL.Path)
		s.mu.Unlock()

		if fail {
			writeJSON(w, status, genericError(status, "injected failure"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) createFlow(kind string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, s.flow(kind, uuid.NewString(), nil))
	}
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Method   string         `json:"method"`
		Password string         `json:"password"`
		Traits   map[string]any `json:"traits"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Method != "password" {
		writeJSON(w, http.StatusBadRequest, genericError(http.StatusBadRequest, "malformed body"))
		return
	}
	email, _ := body.Traits["email"].(string)
	key := strings.ToLower(email)
	flowID := r.URL.Query().Get("flow")

	s.mu.Lock()
	_, exists := s.identities[key]
	var id *identity
	if !exists {
		id = &identity{ID: uuid.NewString(), Password: body.Password, Traits: body.Traits}
		s.identities[key] = id
	}
	s.mu.Unlock()

	if exists {
		writeJSON(w, http.StatusBadRequest, s.flow("registration", flowID, []map[string]any{{
			"id":   4000007,
			"text": "An account with the same identifier (email, phone, username, ...) exists already.",
			"type": "error",
		}}))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"identity": identityJSON(id)})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Method     string `json:"method"`
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Method != "password" {
		writeJSON(w, http.StatusBadRequest, genericError(http.StatusBadRequest, "malformed body"))
		return
	}

	s.mu.Lock()
	id, ok := s.identities[strings.ToLower(body.Identifier)]
	valid := ok && id.Password == body.Password
	token := ""
	if valid {
		token = "ory_st_" + strings.ReplaceAll(uuid.NewString(), "-", "")
		s.sessions[token] = id.ID
	}
	s.mu.Unlock()

	if !valid {
		writeJSON(w, http.StatusBadRequest, s.flow("login", r.URL.Query().Get("flow"), []map[string]any{{
			"id":   4000006,
			"text": "The provided credentials are invalid, check for spelling mistakes in your password or username, email address, or phone number.",
			"type": "error",
		}}))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"session":       s.sessionJSON(token, id),
		"session_token": token,
	})
}

func (s *Server) whoami(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Session-Token")

	s.mu.Lock()
	identityID, ok := s.sessions[token]
	var id *identity
	if ok {
		for _, candidate := range s.identities {
			if candidate.ID == identityID {
				id = candidate
				break
			}
		}
	}
	s.mu.Unlock()

	if id == nil {
		writeJSON(w, http.StatusUnauthorized, genericError(http.StatusUnauthorized, "No valid session credentials found in the request."))
		return
	}
	writeJSON(w, http.StatusOK, s.sessionJSON(token, id))
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionToken string `json:"session_token"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	_, ok := s.sessions[body.SessionToken]
	delete(s.sessions, body.SessionToken)
	s.mu.Unlock()

	if !ok {
		writeJSON(w, http.StatusUnauthorized, genericError(http.StatusUnauthorized, "session not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) flow(kind, id string, messages []map[string]any) map[string]any {
	now := time.Now().UTC()
	if messages == nil {
		messages = []map[string]any{}
	}
	return map[string]any{
		"id":          id,
		"type":        "api",
		"state":       "choose_method",
		"issued_at":   now.Format(time.RFC3339),
		"expires_at":  now.Add(time.Hour).Format(time.RFC3339),
		"request_url": fmt.Sprintf("%s/self-service/%s/api", s.URL, kind),
		"ui": map[string]any{
			"action":   fmt.Sprintf("%s/self-service/%s?flow=%s", s.URL, kind, id),
			"method":   "POST",
			"nodes":    []any{},
			"messages": messages,
		},
	}
}

func (s *Server) sessionJSON(token string, id *identity) map[string]any {
	now := time.Now().UTC()
	s.mu.Lock()
	active := !s.inactive
	s.mu.Unlock()
	return map[string]any{
		"id":         "sess-" + token[len(token)-8:],
		"active":     active,
		"expires_at": now.Add(24 * time.Hour).Format(time.RFC3339),
		"identity":   identityJSON(id),
	}
}

func identityJSON(id *identity) map[string]any {
	return map[string]any{
		"id":         id.ID,
		"schema_id":  "default",
		"schema_url": "http://kratos/schemas/default",
		"traits":     id.Traits,
		"state":      "active",
	}
}

func genericError(status int, message string) map[string]any {
	return map[string]any{
		"error": map[string]any{
			"code":    status,
			"status":  http.StatusText(status),
			"message": message,
			"reason":  message,
		},
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
