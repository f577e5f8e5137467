package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"snapgram/internal/pkg/ctxkey"
	"snapgram/internal/pkg/log"
	"snapgram/internal/pkg/notify"
	"snapgram/internal/pkg/validation"
	"snapgram/internal/pkg/xerrors"
)

// run 一次提交的执行记录
type run struct {
	form   string
	ctx    context.Context
	deps   Deps
	logger log.Logger
	start  time.Time
	res    Result
}

func newRun(ctx context.Context, form string, deps Deps) *run {
	id := uuid.NewString()
	ctx = ctxkey.WithValue(ctx, ctxkey.RunID, id)
	return &run{
		form:   form,
		ctx:    ctx,
		deps:   deps,
		logger: deps.Logger.With("component", "auth_workflow", "form", form),
		start:  time.Now(),
		res: Result{
			RunID: id,
			State: StateIdle,
			Trail: []State{StateIdle},
		},
	}
}

func (r *run) enter(s State) {
	r.res.State = s
	r.res.Trail = append(r.res.Trail, s)
}

// validate 校验失败时回到 Idle
func validate[T any](r *run, schema validation.Schema[T], raw map[string]any) (T, bool) {
	r.enter(StateValidating)
	v := validation.Validate(schema, raw)
	if !v.OK() {
		r.res.FieldErrors = v.Errors
		r.res.Outcome = OutcomeInvalid
		r.enter(StateIdle)
		return v.Value, false
	}
	return v.Value, true
}

// acquire 获取提交锁，失败时结束运行
func (r *run) acquire(key string) (func(), error) {
	release, ok, err := r.deps.Guard.Acquire(r.ctx, key)
	if err != nil {
		return nil, r.unexpected(StateValidating, err)
	}
	if !ok {
		r.res.Outcome = OutcomeBusy
		r.enter(StateIdle)
		appErr := xerrors.NewSubmissionInFlightError(key).WithRunID(r.res.RunID)
		appErr.Err = ErrSubmissionInFlight
		return nil, appErr
	}
	r.deps.Metrics.IncInFlight(r.form)
	return func() {
		release()
		r.deps.Metrics.DecInFlight(r.form)
	}, nil
}

// step 进入状态 s 并执行一个外部调用，错误与 panic 都转换为 *UnexpectedError
func step[T any](r *run, s State, fn func(ctx context.Context) (T, error)) (out T, err error) {
	r.enter(s)
	if ctxErr := r.ctx.Err(); ctxErr != nil {
		return out, r.unexpected(s, ctxErr)
	}

	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = r.unexpected(s, fmt.Errorf("panic: %v", p))
		}
		result := "ok"
		if err != nil {
			result = "error"
		}
		r.deps.Metrics.ObserveStep(r.form, s.String(), result, time.Since(start))
	}()

	out, err = fn(r.ctx)
	if err != nil {
		return out, r.unexpected(s, err)
	}
	return out, nil
}

// unexpected 记录并返回 *UnexpectedError，结束在 Idle
func (r *run) unexpected(s State, err error) *UnexpectedError {
	var appErr *xerrors.AppError
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		appErr = xerrors.NewCanceledError(s.String(), err)
	default:
		appErr = xerrors.Wrap(err, xerrors.CodeExternalServiceError, "auth step failed")
	}
	appErr = appErr.WithRunID(r.res.RunID).WithMetadata("step", s.String())

	r.res.Outcome = OutcomeUnexpected
	r.enter(StateIdle)
	log.LogAppError(r.ctx, r.logger, "auth workflow step failed", appErr)
	return &UnexpectedError{Step: s, Err: appErr}
}

func (r *run) notify(title string) {
	r.deps.Notifier.Notify(r.ctx, notify.Toast{Title: title})
	r.deps.Metrics.IncNotification(r.form)
}

// fail 发出提示并回到 Idle
func (r *run) fail(outcome Outcome, title string) {
	r.res.Outcome = outcome
	r.notify(title)
	r.enter(StateIdle)
}

func (r *run) finish() Result {
	r.deps.Metrics.ObserveRun(r.form, r.res.Outcome.String())
	r.logger.InfoContext(r.ctx, "auth workflow finished",
		log.String("outcome", r.res.Outcome.String()),
		log.String("state", r.res.State.String()),
		log.Duration("elapsed", time.Since(r.start).Milliseconds()))
	return r.res
}
