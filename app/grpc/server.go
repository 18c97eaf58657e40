package grpc

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-novapay/app/mapper"
	"github.com/vibast-solutions/ms-go-novapay/app/metrics"
	"github.com/vibast-solutions/ms-go-novapay/app/service"
	"github.com/vibast-solutions/ms-go-novapay/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	merchantKeyHeader    = "x-merchant-key"
	idempotencyKeyHeader = "idempotency-key"
)

type merchantAuthenticator interface {
	Authenticate(ctx context.Context, rawKey string) (*service.Principal, error)
}

type idempotencyExecutor interface {
	Execute(ctx context.Context, key, operation, requestHash string, fn func(ctx context.Context) (*types.Response, error)) (*types.Response, error)
}

type envelopeFunc func(ctx context.Context) *types.Envelope

// Server implements FlowsServiceServer on top of the flow service. Replies
// carry the same envelope as HTTP; failures return it as a status detail.
type Server struct {
	flows           *service.FlowService
	auth            merchantAuthenticator
	idempotency     idempotencyExecutor
	checkoutBaseURL string
	timeout         time.Duration
	now             func() time.Time
}

func NewServer(flows *service.FlowService, auth merchantAuthenticator, idempotency idempotencyExecutor, checkoutBaseURL string, timeout time.Duration) *Server {
	return &Server{
		flows:           flows,
		auth:            auth,
		idempotency:     idempotency,
		checkoutBaseURL: checkoutBaseURL,
		timeout:         timeout,
		now:             func() time.Time { return time.Now().UTC() },
	}
}

func (s *Server) Health(_ context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"status": "ok"})
}

func (s *Server) Reserve(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	const op = "reserve"
	principal, err := s.authenticate(ctx)
	if err != nil {
		return s.reject(ctx, op, err)
	}

	var req types.ReserveFlowRequest
	if err := decode(in, &req); err != nil {
		return s.reject(ctx, op, err)
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		return s.reject(ctx, op, err)
	}

	return s.invoke(ctx, op, principal.APIKeyID, types.Fingerprint(op, "", &req), func(ctx context.Context) *types.Envelope {
		flow, err := s.flows.Reserve(ctx, principal, &req)
		if err != nil {
			return s.failure(ctx, op, err, "")
		}
		return s.success(types.CodeFlowCreated, mapper.ReserveToResponse(flow, s.checkoutBaseURL), flow.ID)
	})
}

func (s *Server) Authorize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	const op = "authorize"
	var req types.AuthorizeFlowRequest
	if err := decode(in, &req); err != nil {
		return s.reject(ctx, op, err)
	}
	req.FlowID = flowIDOf(in)
	req.Normalize()
	if err := req.Validate(); err != nil {
		return s.reject(ctx, op, err)
	}

	return s.invoke(ctx, op, "", "", func(ctx context.Context) *types.Envelope {
		flow, err := s.flows.Authorize(ctx, &req)
		if err != nil {
			env := s.failure(ctx, op, err, req.FlowID)
			var flowErr *service.FlowError
			if errors.As(err, &flowErr) && flowErr.Flow != nil {
				env.Data = mapper.AuthorizeToResponse(flowErr.Flow)
			}
			return env
		}
		return s.success(types.CodeFlowHeld, mapper.AuthorizeToResponse(flow), flow.ID)
	})
}

func (s *Server) Charge(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	const op = "charge"
	principal, err := s.authenticate(ctx)
	if err != nil {
		return s.reject(ctx, op, err)
	}

	var req types.ChargeFlowRequest
	if err := decode(in, &req); err != nil {
		return s.reject(ctx, op, err)
	}
	req.FlowID = flowIDOf(in)
	req.Amount = json.Number(strings.TrimSpace(req.Amount.String()))
	if err := req.Validate(); err != nil {
		return s.reject(ctx, op, err)
	}

	return s.invoke(ctx, op, principal.APIKeyID, types.Fingerprint(op, req.FlowID, &req), func(ctx context.Context) *types.Envelope {
		flow, err := s.flows.Charge(ctx, principal, &req)
		if err != nil {
			return s.failure(ctx, op, err, req.FlowID)
		}
		return s.success(types.CodeFlowSettled, mapper.ChargeToResponse(flow), flow.ID)
	})
}

func (s *Server) Void(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	const op = "void"
	principal, err := s.authenticate(ctx)
	if err != nil {
		return s.reject(ctx, op, err)
	}

	var req types.VoidFlowRequest
	if err := decode(in, &req); err != nil {
		return s.reject(ctx, op, err)
	}
	req.FlowID = flowIDOf(in)
	req.Reason = strings.TrimSpace(req.Reason)
	if err := req.Validate(); err != nil {
		return s.reject(ctx, op, err)
	}

	return s.invoke(ctx, op, principal.APIKeyID, types.Fingerprint(op, req.FlowID, &req), func(ctx context.Context) *types.Envelope {
		flow, err := s.flows.Void(ctx, principal, &req)
		if err != nil {
			return s.failure(ctx, op, err, req.FlowID)
		}
		return s.success(types.CodeFlowVoided, mapper.VoidToResponse(flow), flow.ID)
	})
}

func (s *Server) Refund(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	const op = "refund"
	principal, err := s.authenticate(ctx)
	if err != nil {
		return s.reject(ctx, op, err)
	}

	var req types.RefundFlowRequest
	if err := decode(in, &req); err != nil {
		return s.reject(ctx, op, err)
	}
	req.FlowID = flowIDOf(in)
	req.Amount = json.Number(strings.TrimSpace(req.Amount.String()))
	req.Reason = strings.TrimSpace(req.Reason)
	if err := req.Validate(); err != nil {
		return s.reject(ctx, op, err)
	}

	return s.invoke(ctx, op, principal.APIKeyID, types.Fingerprint(op, req.FlowID, &req), func(ctx context.Context) *types.Envelope {
		flow, debit, err := s.flows.Refund(ctx, principal, &req)
		if err != nil {
			return s.failure(ctx, op, err, req.FlowID)
		}
		return s.success(types.CodeFlowReturned, mapper.RefundToResponse(flow, debit), flow.ID)
	})
}

func (s *Server) Lookup(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	const op = "lookup"
	principal, err := s.authenticate(ctx)
	if err != nil {
		return s.reject(ctx, op, err)
	}

	req := &types.GetFlowRequest{FlowID: flowIDOf(in)}
	if err := req.Validate(); err != nil {
		return s.reject(ctx, op, err)
	}

	return s.invoke(ctx, op, "", "", func(ctx context.Context) *types.Envelope {
		flow, err := s.flows.Lookup(ctx, principal, req.FlowID)
		if err != nil {
			return s.failure(ctx, op, err, req.FlowID)
		}
		return s.success(types.CodeOK, mapper.FlowToResponse(flow), flow.ID)
	})
}

func (s *Server) authenticate(ctx context.Context) (*service.Principal, error) {
	return s.auth.Authenticate(ctx, metadataValue(ctx, merchantKeyHeader))
}

// invoke runs fn under the request deadline, gated on the idempotency-key
// metadata when scope is set, and converts its envelope into a reply.
func (s *Server) invoke(ctx context.Context, operation, scope, requestHash string, fn envelopeFunc) (*structpb.Struct, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
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
		key = service.IdempotencyKey(scope, metadataValue(ctx, idempotencyKeyHeader))
	}
	if key != "" && s.idempotency != nil {
		resp, err = s.idempotency.Execute(ctx, key, operation, requestHash, render)
	} else {
		resp, err = render(ctx)
	}
	if err != nil {
		resp, err = types.RenderEnvelope(s.failure(ctx, operation, err, ""))
		if err != nil {
			return nil, status.Error(codes.Internal, "internal server error")
		}
	}
	return s.reply(operation, resp, start)
}

// reject answers a request that failed before reaching the flow service.
func (s *Server) reject(ctx context.Context, operation string, err error) (*structpb.Struct, error) {
	resp, renderErr := types.RenderEnvelope(s.failure(ctx, operation, err, ""))
	if renderErr != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}
	return s.reply(operation, resp, time.Now())
}

func (s *Server) reply(operation string, resp *types.Response, start time.Time) (*structpb.Struct, error) {
	body := &structpb.Struct{}
	if err := protojson.Unmarshal(resp.Body, body); err != nil {
		return nil, status.Error(codes.Internal, "internal server error")
	}

	code := types.ResultCode(int(body.GetFields()["resultCode"].GetNumberValue()))
	metrics.ObserveOperation(operation, code.Int(), time.Since(start).Seconds())
	if code.Success() {
		return body, nil
	}

	st := status.New(statusCode(code), body.GetFields()["message"].GetStringValue())
	if detailed, err := st.WithDetails(body); err == nil {
		st = detailed
	}
	return nil, st.Err()
}

func (s *Server) failure(ctx context.Context, operation string, err error, flowID string) *types.Envelope {
	code := service.ResultCodeOf(err)
	message := err.Error()

	if isDecodeError(err) {
		code = types.CodeInvalidRequest
		message = "invalid request body"
	}

	var data any
	var flowErr *service.FlowError
	if errors.As(err, &flowErr) && flowErr.Flow != nil {
		flowID = flowErr.Flow.ID
		data = mapper.FlowToResponse(flowErr.Flow)
	}

	if code.Retryable() {
		loggerWithContext(ctx).
			WithError(err).
			WithField("operation", operation).
			WithField("flow_id", flowID).
			Error("Operation failed")
		message = code.Message()
	}
	return types.NewEnvelope(code, message, data, flowID, s.now())
}

func (s *Server) success(code types.ResultCode, data any, flowID string) *types.Envelope {
	return types.NewEnvelope(code, "", data, flowID, s.now())
}

// statusCode maps a failure result code onto the closest gRPC code.
func statusCode(code types.ResultCode) codes.Code {
	switch {
	case code == types.CodeUnauthorized:
		return codes.Unauthenticated
	case code == types.CodeFlowNotFound, code == types.CodeAccountNotFound:
		return codes.NotFound
	case code == types.CodeInvalidStateTransition:
		return codes.FailedPrecondition
	case code == types.CodeIdempotencyInProgress:
		return codes.Aborted
	case code == types.CodeIdempotencyKeyReused:
		return codes.AlreadyExists
	case code == types.CodeTimeout:
		return codes.DeadlineExceeded
	case code >= 4000 && code < 5000:
		return codes.InvalidArgument
	case code >= 5000 && code < 6000:
		return codes.FailedPrecondition
	default:
		return codes.Internal
	}
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string {
	return "decode request: " + e.err.Error()
}

func (e *decodeError) Unwrap() error {
	return e.err
}

func isDecodeError(err error) bool {
	var target *decodeError
	return errors.As(err, &target)
}

func decode(in *structpb.Struct, dst any) error {
	if in == nil {
		return nil
	}
	raw, err := protojson.Marshal(in)
	if err != nil {
		return &decodeError{err: err}
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return &decodeError{err: err}
	}
	return nil
}

func flowIDOf(in *structpb.Struct) string {
	return strings.TrimSpace(in.GetFields()["flowId"].GetStringValue())
}
