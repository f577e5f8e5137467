package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("REDIS_ADDR", "")

	cfg := Load()
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "snapgram.toast", cfg.ToastSubject)
	assert.Equal(t, 5*time.Minute, cfg.CurrentUserTTL)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("SUBMISSION_TTL", "45s")
	t.Setenv("COOKIE_SECURE", "true")

	cfg := Load()
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, 3, cfg.RedisDB)
	assert.Equal(t, 45*time.Second, cfg.SubmissionTTL)
	assert.True(t, cfg.CookieSecure)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_DB", "three")
	t.Setenv("SUBMISSION_TTL", "-5s")

	assert.Equal(t, 0, GetEnvInt("REDIS_DB", 0))
	assert.Equal(t, 30*time.Second, GetEnvDuration("SUBMISSION_TTL", 30*time.Second))
}

func TestSanitizeConfigForLog(t *testing.T) {
	out := SanitizeConfigForLog(map[string]any{
		"redis_password": "hunter2",
		"session_token":  "",
		"http_addr":      ":8080",
	})
	assert.Equal(t, "***REDACTED***", out["redis_password"])
	assert.Equal(t, "", out["session_token"])
	assert.Equal(t, ":8080", out["http_addr"])
}

func TestGetEnvList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " https://a.app, ,https://b.app")
	assert.Equal(t, []string{"https://a.app", "https://b.app"}, GetEnvList("CORS_ORIGINS"))

	t.Setenv("CORS_ORIGINS", "")
	assert.Nil(t, GetEnvList("CORS_ORIGINS"))
}

func TestGetEnvFloat(t *testing.T) {
	t.Setenv("SUBMIT_RATE_LIMIT", "2.5")
	assert.Equal(t, 2.5, GetEnvFloat("SUBMIT_RATE_LIMIT", 5))

	t.Setenv("SUBMIT_RATE_LIMIT", "0")
	assert.Equal(t, 5.0, GetEnvFloat("SUBMIT_RATE_LIMIT", 5))
}
