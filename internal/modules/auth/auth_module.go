// Package auth 组装认证服务：基础设施、中间件与路由
package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	custommiddleware "snapgram/internal/middleware"
	"snapgram/internal/modules/auth/client"
	"snapgram/internal/modules/auth/handler"
	"snapgram/internal/modules/auth/workflow"
	"snapgram/internal/pkg/config"
	"snapgram/internal/pkg/i18n"
	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/metrics"
	"snapgram/internal/pkg/notify"
	"snapgram/internal/pkg/querycache"
	"snapgram/internal/pkg/response"
	"snapgram/internal/pkg/trace"
	"snapgram/internal/pkg/validation"
)

const serviceName = "auth-server"

// AuthModule 认证服务进程内的全部组件
type AuthModule struct {
	cfg    config.Config
	logger log.Logger

	// Infrastructure
	registry   *prometheus.Registry
	redis      *redis.Client
	memCache   *querycache.MemoryCache
	cache      querycache.Cache
	guard      workflow.Guard
	natsConn   *nats.Conn
	natsHealth *notify.HealthChecker
	publisher  *notify.NATSPublisher

	respWriter response.Writer
	echoServer *echo.Echo
}

// New 初始化各组件，失败时已创建的连接会被关闭
func New(ctx context.Context, cfg config.Config, logger log.Logger) (*AuthModule, error) {
	if logger == nil {
		logger = log.GetLogger()
	}
	m := &AuthModule{
		cfg:        cfg,
		logger:     logger.WithGroup("auth-module"),
		registry:   prometheus.NewRegistry(),
		respWriter: response.NewWriter(logger, cfg.Environment),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics.SetServiceName(serviceName)

	cacheMetrics := metrics.NewCacheMetrics(cfg.MetricsNamespace, m.registry)
	if err := m.initCache(ctx, cacheMetrics); err != nil {
		m.Close()
		return nil, err
	}
	m.initNATS()
	m.initEchoServer()

	m.logger.Info("Auth Module 初始化完成", log.Any("config", cfg.LogFields()))
	return m, nil
}

// initCache 配置了 Redis 时缓存与提交锁都放在 Redis，否则使用进程内实现
func (m *AuthModule) initCache(ctx context.Context, cacheMetrics *metrics.CacheMetrics) error {
	if m.cfg.RedisAddr == "" {
		m.memCache = querycache.NewMemoryCache(cacheMetrics, m.logger)
		if err := m.memCache.StartSweeper(m.cfg.CacheSweepSpec); err != nil {
			return err
		}
		m.cache = m.memCache
		m.guard = workflow.NewLocalGuard()
		m.logger.Info("使用内存缓存与进程内提交锁")
		return nil
	}

	rdb, err := querycache.NewRedisClient(ctx, querycache.RedisConfig{
		Addr:     m.cfg.RedisAddr,
		Password: m.cfg.RedisPassword,
		DB:       m.cfg.RedisDB,
	})
	if err != nil {
		return err
	}
	m.redis = rdb
	m.cache = querycache.NewRedisCache(rdb, cacheMetrics, m.logger)
	m.guard = querycache.NewRedisGuard(rdb, m.cfg.SubmissionTTL, m.logger)
	m.logger.Info("Redis 连接初始化成功", log.String("addr", m.cfg.RedisAddr))
	return nil
}

// initNATS 连接失败只降级为不发布 toast
func (m *AuthModule) initNATS() {
	m.publisher = notify.NewNATSPublisher(nil, m.cfg.ToastSubject, m.logger)

	conn, err := notify.Connect(m.cfg.NATSURL, "snapgram-"+serviceName)
	if err != nil {
		m.logger.Warn("NATS 连接失败，toast 只随响应返回", log.Err(err))
		return
	}
	if conn == nil {
		return
	}
	m.natsConn = conn
	m.publisher.SetConn(conn)
	m.natsHealth = notify.NewHealthChecker(conn, 0)
	m.logger.Info("NATS 连接成功", log.String("subject", m.cfg.ToastSubject))
}

// 初始化 Echo 服务器
func (m *AuthModule) initEchoServer() {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = validation.NewEchoValidator()
	e.HTTPErrorHandler = custommiddleware.ErrorHandler(m.respWriter, m.logger)

	e.Use(custommiddleware.RecoveryMiddleware(m.respWriter, m.logger))
	e.Use(trace.Middleware())
	e.Use(i18n.Middleware())
	e.Use(custommiddleware.LoggingMiddleware(m.logger))
	e.Use(metrics.Middleware(metrics.NewHTTPMetrics(m.cfg.MetricsNamespace, m.registry)))
	e.Use(custommiddleware.SecurityMiddleware())
	e.Use(custommiddleware.CORSMiddleware(m.cfg.CORSOrigins...))

	m.echoServer = e
	m.setupHTTPRoutes()
}

// 设置 HTTP 路由
func (m *AuthModule) setupHTTPRoutes() {
	healthHandler := &HealthHandler{nats: m.natsHealth}
	if m.redis != nil {
		healthHandler.redis = m.redis
	}
	m.echoServer.GET("/health", healthHandler.Health)
	m.echoServer.GET("/metrics", metrics.EchoHandler(m.registry))

	var notifier notify.Notifier
	if m.natsConn != nil {
		notifier = m.publisher
	}
	authHandler := handler.NewAuthHandler(handler.Options{
		Kratos: client.NewKratos(client.Config{
			PublicURL: m.cfg.KratosPublicURL,
			Timeout:   m.cfg.KratosTimeout,
		}, m.logger),
		Cache:          m.cache,
		Guard:          m.guard,
		Notifier:       notifier,
		Metrics:        metrics.NewWorkflowMetrics(m.cfg.MetricsNamespace, m.registry),
		CurrentUserTTL: m.cfg.CurrentUserTTL,
		CookieName:     m.cfg.SessionCookie,
		CookieSecure:   m.cfg.CookieSecure,
	}, m.respWriter, m.logger)

	g := m.echoServer.Group("/auth", custommiddleware.SessionTokenMiddleware(m.cfg.SessionCookie))
	authHandler.Register(g, custommiddleware.RateLimitMiddleware(m.cfg.SubmitRateLimit))
}

// Handler 返回 HTTP 处理器
func (m *AuthModule) Handler() http.Handler { return m.echoServer }

// Run 启动 HTTP 服务器，ctx 取消后优雅关闭
func (m *AuthModule) Run(ctx context.Context) error {
	if m.natsHealth != nil {
		go m.natsHealth.Start(ctx)
	}

	errCh := make(chan error, 1)
	go func() {
		m.logger.Info("启动 HTTP 服务器", log.String("addr", m.cfg.HTTPAddr))
		if err := m.echoServer.Start(m.cfg.HTTPAddr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			m.logger.Error("HTTP 服务器启动失败", err)
			return err
		}
		return nil
	case <-ctx.Done():
	}

	m.logger.Info("Auth Module 正在关闭")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cfg.ShutdownTimeout)
	defer cancel()
	if err := m.echoServer.Shutdown(shutdownCtx); err != nil {
		m.logger.Error("HTTP 服务器关闭失败", err)
		return err
	}
	return nil
}

// Close 释放连接，可重复调用
func (m *AuthModule) Close() {
	if m.memCache != nil {
		_ = m.memCache.Close()
	}
	if m.natsConn != nil {
		if err := m.natsConn.Drain(); err != nil {
			m.logger.Warn("NATS drain 失败", log.Err(err))
		}
		m.natsConn = nil
	}
	if m.redis != nil {
		if err := m.redis.Close(); err != nil {
			m.logger.Warn("Redis 关闭失败", log.Err(err))
		}
		m.redis = nil
	}
}
