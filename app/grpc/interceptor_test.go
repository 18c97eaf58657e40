package grpc

import (
	"context"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

func TestRequestIDFromMetadata(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDHeader, "grpc-abc"))
	if got := requestIDFromMetadata(ctx); got != "grpc-abc" {
		t.Fatalf("expected grpc-abc, got %q", got)
	}
}

func TestRequestIDInterceptorRequiresHeader(t *testing.T) {
	interceptor := RequestIDInterceptor()

	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req interface{}) (interface{}, error) {
		return "ok", nil
	})
	if status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected InvalidArgument for missing x-request-id, got %v", err)
	}
}

func TestRequestIDInterceptorUsesIncomingHeader(t *testing.T) {
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDHeader, "grpc-fixed"))
	interceptor := RequestIDInterceptor()

	_, err := interceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, req interface{}) (interface{}, error) {
		if got := RequestIDFromContext(ctx); got != "grpc-fixed" {
			t.Fatalf("expected grpc-fixed, got %q", got)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRecoveryInterceptorConvertsPanicToInternal(t *testing.T) {
	interceptor := RecoveryInterceptor()
	_, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/novapay.flows.v1.FlowsService/Reserve"}, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	if status.Code(err) != codes.Internal {
		t.Fatalf("expected codes.Internal, got %v", err)
	}
}

func TestLoggingInterceptorPassThrough(t *testing.T) {
	interceptor := LoggingInterceptor()
	resp, err := interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/novapay.flows.v1.FlowsService/Lookup"}, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if resp != "ok" {
		t.Fatalf("unexpected response: %v", resp)
	}
}

func TestInterceptorsKeepEnvelopeDetail(t *testing.T) {
	env, err := structpb.NewStruct(map[string]interface{}{
		"ok":         false,
		"resultCode": 4090,
		"flowId":     "flow_1",
	})
	if err != nil {
		t.Fatalf("build envelope: %v", err)
	}
	st, err := status.New(codes.FailedPrecondition, "invalid state transition").WithDetails(env)
	if err != nil {
		t.Fatalf("attach detail: %v", err)
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(requestIDHeader, "grpc-env"))
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod("Void")}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, st.Err()
	}
	chain := []grpc.UnaryServerInterceptor{RecoveryInterceptor(), RequestIDInterceptor(), LoggingInterceptor()}
	for i := len(chain) - 1; i >= 0; i-- {
		interceptor, next := chain[i], handler
		handler = func(ctx context.Context, req interface{}) (interface{}, error) {
			return interceptor(ctx, req, info, next)
		}
	}

	_, err = handler(ctx, nil)
	got := status.Convert(err)
	if got.Code() != codes.FailedPrecondition {
		t.Fatalf("expected FailedPrecondition, got %v", err)
	}
	details := got.Details()
	if len(details) != 1 {
		t.Fatalf("expected one detail, got %v", details)
	}
	detail, ok := details[0].(*structpb.Struct)
	if !ok {
		t.Fatalf("expected envelope struct, got %T", details[0])
	}
	if code := detail.GetFields()["resultCode"].GetNumberValue(); code != 4090 {
		t.Fatalf("expected resultCode 4090, got %v", code)
	}
	if flowID := detail.GetFields()["flowId"].GetStringValue(); flowID != "flow_1" {
		t.Fatalf("expected flowId flow_1, got %q", flowID)
	}
}
