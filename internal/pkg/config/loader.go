package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config auth-server 的运行配置
// 优先级：环境变量 > 默认值
type Config struct {
	Environment string
	LogLevel    string
	HTTPAddr    string

	// KratosPublicURL Kratos Public (Frontend) API 地址
	KratosPublicURL string
	KratosTimeout   time.Duration

	// RedisAddr 为空时使用内存缓存和进程内提交锁
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// NATSURL 为空时 toast 只随 HTTP 响应返回
	NATSURL      string
	ToastSubject string

	CurrentUserTTL   time.Duration
	SubmissionTTL    time.Duration
	CacheSweepSpec   string
	SessionCookie    string
	CookieSecure     bool
	MetricsNamespace string

	// SubmitRateLimit 每个 IP 每秒允许的表单提交次数
	SubmitRateLimit float64
	CORSOrigins     []string
	ShutdownTimeout time.Duration
}

// Load 从环境变量加载配置
func Load() Config {
	return Config{
		Environment: GetEnvOrDefault("APP_ENV", "development"),
		LogLevel:    GetEnvOrDefault("LOG_LEVEL", "info"),
		HTTPAddr:    GetEnvOrDefault("HTTP_ADDR", ":8080"),

		KratosPublicURL: GetEnvOrDefault("KRATOS_PUBLIC_URL", "http://127.0.0.1:4433"),
		KratosTimeout:   GetEnvDuration("KRATOS_TIMEOUT", 10*time.Second),

		RedisAddr:     GetEnvOrDefault("REDIS_ADDR", ""),
		RedisPassword: GetEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       GetEnvInt("REDIS_DB", 0),

		NATSURL:      GetEnvOrDefault("NATS_URL", ""),
		ToastSubject: GetEnvOrDefault("TOAST_SUBJECT", "snapgram.toast"),

		CurrentUserTTL:   GetEnvDuration("CURRENT_USER_TTL", 5*time.Minute),
		SubmissionTTL:    GetEnvDuration("SUBMISSION_TTL", 30*time.Second),
		CacheSweepSpec:   GetEnvOrDefault("CACHE_SWEEP_SPEC", "@every 1m"),
		SessionCookie:    GetEnvOrDefault("SESSION_COOKIE", "snapgram_session"),
		CookieSecure:     GetEnvBool("COOKIE_SECURE", false),
		MetricsNamespace: GetEnvOrDefault("METRICS_NAMESPACE", "snapgram"),

		SubmitRateLimit: GetEnvFloat("SUBMIT_RATE_LIMIT", 5),
		CORSOrigins:     GetEnvList("CORS_ORIGINS"),
		ShutdownTimeout: GetEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
	}
}

// LogFields 返回可安全写入日志的配置
func (c Config) LogFields() map[string]any {
	return SanitizeConfigForLog(map[string]any{
		"environment":       c.Environment,
		"log_level":         c.LogLevel,
		"http_addr":         c.HTTPAddr,
		"kratos_public_url": c.KratosPublicURL,
		"redis_addr":        c.RedisAddr,
		"redis_password":    c.RedisPassword,
		"nats_url":          c.NATSURL,
		"toast_subject":     c.ToastSubject,
		"current_user_ttl":  c.CurrentUserTTL.String(),
		"submission_ttl":    c.SubmissionTTL.String(),
	})
}

// GetEnvOrDefault 获取环境变量，如果不存在则返回默认值
func GetEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// MustGetEnv 获取环境变量，如果不存在则 panic
func MustGetEnv(key string) string {
	value := os.Getenv(key)
	if value == "" {
		panic("environment variable " + key + " is required")
	}
	return value
}

// GetEnvInt 读取整数环境变量，解析失败时返回默认值
func GetEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

// GetEnvFloat 读取浮点数环境变量，解析失败或非正数时返回默认值
func GetEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil || f <= 0 {
		return defaultValue
	}
	return f
}

// GetEnvList 读取逗号分隔的列表，忽略空项
func GetEnvList(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// GetEnvBool 读取布尔环境变量
func GetEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return b
}

// GetEnvDuration 读取 time.Duration 格式的环境变量（如 "30s"）
func GetEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil || d <= 0 {
		return defaultValue
	}
	return d
}

// SanitizeConfigForLog 清理配置中的敏感信息，用于日志输出
func SanitizeConfigForLog(config map[string]any) map[string]any {
	sanitized := make(map[string]any)
	for k, v := range config {
		if isSensitiveKey(k) {
			if s, ok := v.(string); ok && s == "" {
				sanitized[k] = ""
				continue
			}
			sanitized[k] = "***REDACTED***"
		} else {
			sanitized[k] = v
		}
	}
	return sanitized
}

// isSensitiveKey 判断是否是敏感配置项
func isSensitiveKey(key string) bool {
	lowerKey := strings.ToLower(key)
	sensitiveKeywords := []string{
		"password", "secret", "token", "credential", "private", "api_key",
	}

	for _, keyword := range sensitiveKeywords {
		if strings.Contains(lowerKey, keyword) {
			return true
		}
	}
	return false
}
