package controller

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-novapay/app/factory"
	"github.com/vibast-solutions/ms-go-novapay/app/mapper"
	"github.com/vibast-solutions/ms-go-novapay/app/metrics"
	"github.com/vibast-solutions/ms-go-novapay/app/service"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
)

const (
	HeaderAPIKey         = "X-API-Key"
	HeaderIdempotencyKey = "Idempotency-Key"
)

type idempotencyExecutor interface {
	Execute(ctx context.Context, key, operation, requestHash string, fn func(ctx context.Context) (*types.Response, error)) (*types.Response, error)
}

// responder renders every outcome as a result envelope. Gated operations
// run through the idempotency executor so retries replay the stored bytes.
type responder struct {
	idempotency idempotencyExecutor
	timeout     time.Duration
	logger      logrus.FieldLogger
	now         func() time.Time
}

func newResponder(idempotency idempotencyExecutor, timeout time.Duration, module string) responder {
	return responder{
		idempotency: idempotency,
		timeout:     timeout,
		logger:      factory.NewModuleLogger(module),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type envelopeFunc func(ctx context.Context) *types.Envelope

// run executes fn under the request deadline and writes its envelope. A
// non-empty idempotency scope gates fn on the Idempotency-Key header.
func (r *responder) run(ctx echo.Context, operation, scope, requestHash string, fn envelopeFunc) error {
	start := time.Now()
	reqCtx, cancel := context.WithTimeout(ctx.Request().Context(), r.timeout)
	defer cancel()

	render := func(c context.Context) (*types.Response, error) {
		return types.RenderEnvelope(fn(c))
	}

	var (
		resp *types.Response
		err  error
	)
	key := ""
	if scope != "" {
		key = service.IdempotencyKey(scope, ctx.Request().Header.Get(HeaderIdempotencyKey))
	}
	if key != "" && r.idempotency != nil {
		resp, err = r.idempotency.Execute(reqCtx, key, operation, requestHash, render)
	} else {
		resp, err = render(reqCtx)
	}
	if err != nil {
		resp, err = types.RenderEnvelope(r.failure(ctx, operation, err, ""))
		if err != nil {
			return err
		}
	}

	metrics.ObserveOperation(operation, resultCodeOf(resp.Body), time.Since(start).Seconds())
	return ctx.Blob(resp.StatusCode, echo.MIMEApplicationJSON, resp.Body)
}

// failure builds the envelope for err. System errors are logged and
// reported with the generic message of their code.
func (r *responder) failure(ctx echo.Context, operation string, err error, flowID string) *types.Envelope {
	code := service.ResultCodeOf(err)
	message := err.Error()

	var data any
	var flowErr *service.FlowError
	if errors.As(err, &flowErr) && flowErr.Flow != nil {
		flowID = flowErr.Flow.ID
		data = mapper.FlowToResponse(flowErr.Flow)
	}

	if code.Retryable() {
		factory.LoggerWithContext(r.logger, ctx).
			WithError(err).
			WithFields(logrus.Fields{"operation": operation, "flow_id": flowID}).
			Error("Operation failed")
		message = code.Message()
	}
	return types.NewEnvelope(code, message, data, flowID, r.now())
}

func (r *responder) success(code types.ResultCode, data any, flowID string) *types.Envelope {
	return types.NewEnvelope(code, "", data, flowID, r.now())
}

// invalid writes a request-shape failure. These never reach the
// idempotency store.
func (r *responder) invalid(ctx echo.Context, operation string, err error) error {
	var reqErr *types.RequestError
	if !errors.As(err, &reqErr) {
		err = &types.RequestError{Code: types.CodeInvalidRequest, Message: "invalid request body"}
	}
	env := r.failure(ctx, operation, err, "")
	metrics.ObserveOperation(operation, env.ResultCode, 0)
	return r.write(ctx, env)
}

func (r *responder) write(ctx echo.Context, env *types.Envelope) error {
	resp, err := types.RenderEnvelope(env)
	if err != nil {
		return err
	}
	return ctx.Blob(resp.StatusCode, echo.MIMEApplicationJSON, resp.Body)
}

func resultCodeOf(body []byte) int {
	var env struct {
		ResultCode int `json:"resultCode"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return types.CodeInternalError.Int()
	}
	return env.ResultCode
}

func writeHealth(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}
