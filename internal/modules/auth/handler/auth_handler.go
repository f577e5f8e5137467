package handler

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"snapgram/internal/middleware"
	"snapgram/internal/modules/auth/client"
	"snapgram/internal/modules/auth/session"
	"snapgram/internal/modules/auth/workflow"
	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/metrics"
	"snapgram/internal/pkg/notify"
	"snapgram/internal/pkg/querycache"
	"snapgram/internal/pkg/response"
	"snapgram/internal/pkg/validation"
	"snapgram/internal/pkg/xerrors"
)

// Options AuthHandler 的依赖
type Options struct {
	Kratos *client.Kratos
	// Cache 当前用户缓存，可为空
	Cache querycache.Cache
	// Guard 为空时使用进程内锁
	Guard workflow.Guard
	// Notifier 除响应以外的提示出口（例如 NATS），可为空
	Notifier notify.Notifier
	Metrics  *metrics.WorkflowMetrics

	CurrentUserTTL time.Duration
	CookieName     string
	CookieSecure   bool
}

// AuthHandler 登录、注册等表单接口
type AuthHandler struct {
	opts       Options
	respWriter response.Writer
	logger     log.Logger
}

// NewAuthHandler 创建 AuthHandler
func NewAuthHandler(opts Options, respWriter response.Writer, logger log.Logger) *AuthHandler {
	if logger == nil {
		logger = log.GetLogger()
	}
	if opts.Guard == nil {
		opts.Guard = workflow.NewLocalGuard()
	}
	if opts.CookieName == "" {
		opts.CookieName = "snapgram_session"
	}
	return &AuthHandler{
		opts:       opts,
		respWriter: respWriter,
		logger:     logger.With("component", "auth_handler"),
	}
}

// ==================== HTTP Response Models ====================

// SubmitResponse 表单提交结果
type SubmitResponse struct {
	RunID         string                 `json:"run_id"`
	Outcome       workflow.Outcome       `json:"outcome"`
	State         workflow.State         `json:"state"`
	Redirect      string                 `json:"redirect,omitempty"`
	Notifications []string               `json:"notifications"`
	FieldErrors   validation.FieldErrors `json:"field_errors,omitempty"`
	Form          map[string]any         `json:"form"`
	User          *client.User           `json:"user,omitempty"`
}

// ValidateResponse 仅校验的结果
type ValidateResponse struct {
	Schema      string                 `json:"schema"`
	Valid       bool                   `json:"valid"`
	FieldErrors validation.FieldErrors `json:"field_errors,omitempty"`
}

// validateRequest 路由参数
type validateRequest struct {
	Schema string `param:"schema" validate:"required,oneof=sign-up sign-in post"`
}

// ==================== HTTP Handlers ====================

// SignUp 注册
// @Summary 用户注册
// @Description 校验表单、创建账户、登录并确认会话
// @Tags 认证
// @Accept json
// @Produce json
// @Success 200 {object} response.Result[SubmitResponse] "注册成功"
// @Failure 400 {object} response.Result[SubmitResponse] "表单校验失败"
// @Failure 409 {object} response.Result[response.EmptyData] "同一邮箱的提交正在进行"
// @Failure 422 {object} response.Result[SubmitResponse] "账户创建被拒绝"
// @Failure 502 {object} response.Result[response.EmptyData] "身份服务错误"
// @Router /auth/sign-up [post]
func (h *AuthHandler) SignUp(c echo.Context) error {
	raw, err := bindForm(c)
	if err != nil {
		return response.EchoBadRequest(c, h.respWriter, "body", "malformed JSON body")
	}
	rc := h.newRequest(c, raw)
	res, runErr := workflow.NewSignUp(rc.kratos, rc.users, rc.deps).Run(c.Request().Context(), raw)
	return h.writeSubmit(c, rc, res, runErr)
}

// SignIn 登录
// @Summary 用户登录
// @Description 校验表单、登录并确认会话
// @Tags 认证
// @Accept json
// @Produce json
// @Success 200 {object} response.Result[SubmitResponse] "登录成功"
// @Failure 400 {object} response.Result[SubmitResponse] "表单校验失败"
// @Failure 401 {object} response.Result[SubmitResponse] "凭据无效或会话未确认"
// @Failure 409 {object} response.Result[response.EmptyData] "同一邮箱的提交正在进行"
// @Failure 502 {object} response.Result[response.EmptyData] "身份服务错误"
// @Router /auth/sign-in [post]
func (h *AuthHandler) SignIn(c echo.Context) error {
	raw, err := bindForm(c)
	if err != nil {
		return response.EchoBadRequest(c, h.respWriter, "body", "malformed JSON body")
	}
	rc := h.newRequest(c, raw)
	res, runErr := workflow.NewSignIn(rc.kratos, rc.users, rc.deps).Run(c.Request().Context(), raw)
	return h.writeSubmit(c, rc, res, runErr)
}

// Validate 仅校验表单，不提交
// @Summary 表单校验
// @Tags 认证
// @Accept json
// @Produce json
// @Param schema path string true "sign-up | sign-in | post"
// @Success 200 {object} response.Result[ValidateResponse] "校验通过"
// @Failure 400 {object} response.Result[ValidateResponse] "校验失败"
// @Router /auth/validate/{schema} [post]
func (h *AuthHandler) Validate(c echo.Context) error {
	req := validateRequest{Schema: c.Param("schema")}
	if err := c.Validate(&req); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			if fields, ok := he.Message.(validation.FieldErrors); ok {
				return response.EchoCoded(c, h.respWriter, xerrors.CodeInvalidParams, ValidateResponse{
					Schema:      req.Schema,
					FieldErrors: fields,
				})
			}
		}
		return response.EchoError(c, h.respWriter, err)
	}
	checker, ok := validation.Lookup(req.Schema)
	if !ok {
		return response.EchoBadRequest(c, h.respWriter, "schema", "unknown schema")
	}

	raw, err := bindForm(c)
	if err != nil {
		return response.EchoBadRequest(c, h.respWriter, "body", "malformed JSON body")
	}

	fields := checker.Check(raw)
	resp := ValidateResponse{Schema: checker.Name(), Valid: len(fields) == 0, FieldErrors: fields}
	if !resp.Valid {
		return response.EchoCoded(c, h.respWriter, xerrors.CodeInvalidParams, resp)
	}
	return response.EchoOK(c, h.respWriter, resp)
}

// Me 当前用户
// @Summary 获取当前用户
// @Tags 认证
// @Produce json
// @Success 200 {object} response.Result[client.User] "已登录"
// @Failure 401 {object} response.Result[response.EmptyData] "未登录或会话失效"
// @Failure 502 {object} response.Result[response.EmptyData] "身份服务错误"
// @Router /auth/me [get]
func (h *AuthHandler) Me(c echo.Context) error {
	token := middleware.SessionToken(c)
	if token == "" {
		return response.EchoUnauthorized(c, h.respWriter, "not signed in")
	}
	ctx := c.Request().Context()
	jar := client.NewMemoryJar(token)
	users := h.newUsers(h.opts.Kratos.ForJar(jar), jar)

	ok, err := users.CheckAuthUser(ctx)
	if err != nil {
		return response.EchoError(c, h.respWriter, err)
	}
	if !ok {
		h.clearCookie(c)
		return response.EchoError(c, h.respWriter, xerrors.NewSessionExpiredError())
	}
	return response.EchoOK(c, h.respWriter, users.User())
}

// SignOut 退出登录
// @Summary 退出登录
// @Tags 认证
// @Produce json
// @Success 200 {object} response.Result[response.EmptyData] "已退出"
// @Failure 502 {object} response.Result[response.EmptyData] "身份服务错误"
// @Router /auth/sign-out [post]
func (h *AuthHandler) SignOut(c echo.Context) error {
	token := middleware.SessionToken(c)
	if token == "" {
		h.clearCookie(c)
		return response.EchoOK(c, h.respWriter, response.EmptyData{})
	}
	ctx := c.Request().Context()
	jar := client.NewMemoryJar(token)
	kc := h.opts.Kratos.ForJar(jar)
	users := h.newUsers(kc, jar)

	if u, ok := users.CachedUser(ctx); ok {
		h.logger.InfoContext(ctx, "user signing out", log.String("user_id", u.ID))
	}
	// 先删缓存，token 被清掉后就算不出 key 了
	users.Invalidate(ctx)
	if err := kc.SignOut(ctx); err != nil {
		return response.EchoError(c, h.respWriter, err)
	}
	h.clearCookie(c)
	return response.EchoOK(c, h.respWriter, response.EmptyData{})
}

// ==================== helpers ====================

// request 一次表单提交用到的对象，全部按请求创建
type request struct {
	jar       *client.MemoryJar
	kratos    *client.Kratos
	users     *session.Context
	form      *workflow.MapForm
	navigator *navigator
	toasts    *notify.Recorder
	deps      workflow.Deps
}

func (h *AuthHandler) newRequest(c echo.Context, raw map[string]any) *request {
	jar := client.NewMemoryJar(middleware.SessionToken(c))
	kc := h.opts.Kratos.ForJar(jar)
	rc := &request{
		jar:       jar,
		kratos:    kc,
		users:     h.newUsers(kc, jar),
		form:      workflow.NewMapForm(raw),
		navigator: &navigator{},
		toasts:    notify.NewRecorder(),
	}

	var notifier notify.Notifier = rc.toasts
	if h.opts.Notifier != nil {
		notifier = notify.Multi{rc.toasts, h.opts.Notifier}
	}
	rc.deps = workflow.Deps{
		Notifier:  notifier,
		Navigator: rc.navigator,
		Form:      rc.form,
		Guard:     h.opts.Guard,
		Logger:    h.logger,
		Metrics:   h.opts.Metrics,
	}
	return rc
}

func (h *AuthHandler) newUsers(kc *client.Kratos, jar client.TokenJar) *session.Context {
	return session.New(kc, jar, session.Options{
		Cache:  h.opts.Cache,
		TTL:    h.opts.CurrentUserTTL,
		Logger: h.logger,
	})
}

// writeSubmit 把一次运行的结果写成响应
func (h *AuthHandler) writeSubmit(c echo.Context, rc *request, res workflow.Result, runErr error) error {
	if runErr != nil {
		// 外部调用失败与重复提交都不带提示
		return response.EchoError(c, h.respWriter, runErr)
	}

	resp := SubmitResponse{
		RunID:         res.RunID,
		Outcome:       res.Outcome,
		State:         res.State,
		Redirect:      rc.navigator.Last(),
		Notifications: rc.toasts.Titles(),
		FieldErrors:   res.FieldErrors,
		Form:          publicForm(rc.form.Values()),
	}
	if resp.Notifications == nil {
		resp.Notifications = []string{}
	}

	switch res.Outcome {
	case workflow.OutcomeNavigatedHome:
		resp.User = rc.users.User()
		h.setCookie(c, rc.jar.Token())
		return response.EchoOK(c, h.respWriter, resp)
	case workflow.OutcomeInvalid:
		return response.EchoCoded(c, h.respWriter, xerrors.CodeInvalidParams, resp)
	case workflow.OutcomeAccountRejected:
		return response.EchoCoded(c, h.respWriter, xerrors.CodeAccountRejected, resp)
	case workflow.OutcomeSignInRejected:
		return response.EchoCoded(c, h.respWriter, xerrors.CodeInvalidCredentials, resp)
	case workflow.OutcomeSessionUnverified:
		return response.EchoCoded(c, h.respWriter, xerrors.CodeAuthenticationFailed, resp)
	default:
		h.logger.ErrorContext(c.Request().Context(), "unexpected workflow outcome without error",
			log.String("outcome", res.Outcome.String()))
		return response.EchoError(c, h.respWriter, xerrors.FromCode(xerrors.CodeInternalError))
	}
}

func (h *AuthHandler) setCookie(c echo.Context, token string) {
	if token == "" {
		return
	}
	c.SetCookie(&http.Cookie{
		Name:     h.opts.CookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandler) clearCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     h.opts.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.opts.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// bindForm 请求体解析为原始表单记录，空请求体得到空记录
func bindForm(c echo.Context) (map[string]any, error) {
	raw := map[string]any{}
	if err := (&echo.DefaultBinder{}).BindBody(c, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// publicForm 回显表单时去掉密码
func publicForm(values map[string]any) map[string]any {
	delete(values, "password")
	return values
}

// navigator 记录最后一次跳转
type navigator struct {
	routes []string
}

func (n *navigator) Navigate(route string) { n.routes = append(n.routes, route) }

func (n *navigator) Last() string {
	if len(n.routes) == 0 {
		return ""
	}
	return n.routes[len(n.routes)-1]
}
