package client

import (
	"context"
	"net/http"
	"strings"
	"time"

	ory "github.com/ory/kratos-client-go"

	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/querycache"
	"snapgram/internal/pkg/xerrors"
)

const service = "kratos_client"

// Config Kratos 客户端配置
type Config struct {
	PublicURL string
	Timeout   time.Duration
	// HTTPClient 为空时按 Timeout 创建
	HTTPClient *http.Client
}

// Kratos 封装 Ory Kratos Frontend (Public) API 的 native 流程
//
// 拒绝类结果（凭据错误、重复注册、会话无效）返回 (nil, nil)，
// 网络错误、5xx 与数据缺失返回 *xerrors.AppError。
type Kratos struct {
	publicURL string
	api       *ory.APIClient
	jar       TokenJar
	logger    log.Logger
}

// NewKratos 创建 Kratos 客户端，默认使用进程内 jar
func NewKratos(cfg Config, logger log.Logger) *Kratos {
	if logger == nil {
		logger = log.GetLogger()
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	oryCfg := ory.NewConfiguration()
	oryCfg.Servers = []ory.ServerConfiguration{{URL: strings.TrimRight(cfg.PublicURL, "/")}}
	oryCfg.HTTPClient = httpClient

	return &Kratos{
		publicURL: cfg.PublicURL,
		api:       ory.NewAPIClient(oryCfg),
		jar:       NewMemoryJar(""),
		logger:    logger.With("component", service),
	}
}

// ForJar 返回绑定到指定 jar 的视图，底层连接共享
func (c *Kratos) ForJar(jar TokenJar) *Kratos {
	view := *c
	view.jar = jar
	return &view
}

// Jar 当前绑定的 jar
func (c *Kratos) Jar() TokenJar { return c.jar }

// CreateAccount 通过 native registration flow 创建账户
func (c *Kratos) CreateAccount(ctx context.Context, in NewAccount) (*User, error) {
	const op = "CreateAccount"

	flow, resp, err := c.api.FrontendAPI.CreateNativeRegistrationFlow(ctx).Execute()
	if out := xerrors.ClassifyKratos("CreateNativeRegistrationFlow", resp, err); out.Err != nil || out.Rejected {
		return nil, c.failure(ctx, op, out)
	}

	body := ory.UpdateRegistrationFlowBody{
		UpdateRegistrationFlowWithPasswordMethod: &ory.UpdateRegistrationFlowWithPasswordMethod{
			Method:   "password",
			Password: in.Password,
			Traits: map[string]interface{}{
				"email":    in.Email,
				"username": in.Username,
				"name":     in.Name,
			},
		},
	}

	result, resp, err := c.api.FrontendAPI.UpdateRegistrationFlow(ctx).
		Flow(flow.Id).
		UpdateRegistrationFlowBody(body).
		Execute()

	out := xerrors.ClassifyKratos(op, resp, err)
	if out.Rejected {
		c.logger.InfoContext(ctx, "registration rejected",
			log.String("reason", out.Reason.String()),
			log.Any("messages", out.Messages))
		return nil, nil
	}
	if out.Err != nil {
		return nil, c.failure(ctx, op, out)
	}

	user, ok := userFromIdentity(&result.Identity)
	if !ok {
		return nil, c.integrity(ctx, op, "identity.id")
	}

	c.logger.InfoContext(ctx, "account created", log.String("identity_id", user.ID))
	return user, nil
}

// SignIn 通过 native login flow 登录，成功后 token 写入 jar
func (c *Kratos) SignIn(ctx context.Context, in Credentials) (*Session, error) {
	const op = "SignIn"

	flow, resp, err := c.api.FrontendAPI.CreateNativeLoginFlow(ctx).Execute()
	if out := xerrors.ClassifyKratos("CreateNativeLoginFlow", resp, err); out.Err != nil || out.Rejected {
		return nil, c.failure(ctx, op, out)
	}

	body := ory.UpdateLoginFlowBody{
		UpdateLoginFlowWithPasswordMethod: &ory.UpdateLoginFlowWithPasswordMethod{
			Method:     "password",
			Identifier: in.Email,
			Password:   in.Password,
		},
	}

	result, resp, err := c.api.FrontendAPI.UpdateLoginFlow(ctx).
		Flow(flow.Id).
		UpdateLoginFlowBody(body).
		Execute()

	out := xerrors.ClassifyKratos(op, resp, err)
	if out.Rejected {
		c.logger.InfoContext(ctx, "login rejected", log.String("reason", out.Reason.String()))
		return nil, nil
	}
	if out.Err != nil {
		return nil, c.failure(ctx, op, out)
	}

	// native 流程必须返回 session_token
	if result.SessionToken == nil || *result.SessionToken == "" {
		return nil, c.integrity(ctx, op, "session_token")
	}

	sess := sessionFromOry(&result.Session, *result.SessionToken)
	c.jar.SetToken(sess.Token)

	c.logger.InfoContext(ctx, "login succeeded",
		log.String("session_id", sess.ID),
		log.String("token_hash", querycache.HashToken(sess.Token)))
	return sess, nil
}

// CurrentUser 用 jar 中的 token 查询当前用户，没有有效会话时返回 (nil, nil)
func (c *Kratos) CurrentUser(ctx context.Context) (*User, error) {
	const op = "CurrentUser"

	token := c.jar.Token()
	if token == "" {
		return nil, nil
	}

	sess, resp, err := c.api.FrontendAPI.ToSession(ctx).XSessionToken(token).Execute()
	out := xerrors.ClassifyKratos(op, resp, err)
	if out.Rejected {
		c.logger.DebugContext(ctx, "session not valid",
			log.String("token_hash", querycache.HashToken(token)))
		return nil, nil
	}
	if out.Err != nil {
		return nil, c.failure(ctx, op, out)
	}

	if sess.Active != nil && !*sess.Active {
		return nil, nil
	}
	user, ok := userFromIdentity(sess.Identity)
	if !ok {
		return nil, c.integrity(ctx, op, "session.identity")
	}
	return user, nil
}

// SignOut 撤销 jar 中的会话，已失效的会话视为成功
func (c *Kratos) SignOut(ctx context.Context) error {
	const op = "SignOut"

	token := c.jar.Token()
	if token == "" {
		return nil
	}

	resp, err := c.api.FrontendAPI.PerformNativeLogout(ctx).
		PerformNativeLogoutBody(*ory.NewPerformNativeLogoutBody(token)).
		Execute()

	out := xerrors.ClassifyKratos(op, resp, err)
	if out.Err != nil {
		return c.failure(ctx, op, out)
	}
	c.jar.Clear()
	c.logger.InfoContext(ctx, "signed out", log.String("token_hash", querycache.HashToken(token)))
	return nil
}

// failure 记录并返回 AppError。创建 flow 阶段的拒绝同样视为故障，因为此时还没有提交任何用户输入
func (c *Kratos) failure(ctx context.Context, op string, out xerrors.KratosOutcome) *xerrors.AppError {
	appErr := out.Err
	if appErr == nil {
		appErr = xerrors.FromCode(xerrors.CodeKratosError).
			WithMetadata("reason", out.Reason.String())
	}
	appErr = appErr.WithService(service, op).WithMetadata("public_url", c.publicURL)
	log.LogAppError(ctx, c.logger, "kratos request failed", appErr)
	return appErr
}

func (c *Kratos) integrity(ctx context.Context, op, field string) *xerrors.AppError {
	appErr := xerrors.NewKratosDataIntegrityError(op, field).WithService(service, op)
	log.LogAppError(ctx, c.logger, "kratos returned incomplete data", appErr)
	return appErr
}

func userFromIdentity(identity *ory.Identity) (*User, bool) {
	if identity == nil || identity.Id == "" {
		return nil, false
	}
	u := &User{ID: identity.Id}
	if traits, ok := identity.Traits.(map[string]interface{}); ok {
		u.Email, _ = traits["email"].(string)
		u.Username, _ = traits["username"].(string)
		u.Name, _ = traits["name"].(string)
	}
	return u, true
}

func sessionFromOry(s *ory.Session, token string) *Session {
	out := &Session{
		ID:        s.Id,
		Token:     token,
		Active:    s.Active == nil || *s.Active,
		ExpiresAt: s.ExpiresAt,
	}
	if u, ok := userFromIdentity(s.Identity); ok {
		out.User = u
	}
	return out
}
