package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const FlowsServiceName = "novapay.flows.v1.FlowsService"

// FlowsServiceServer exchanges google.protobuf.Struct messages shaped like
// the HTTP request bodies and the result envelope.
type FlowsServiceServer interface {
	Health(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reserve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Authorize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Charge(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Void(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Refund(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Lookup(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterFlowsServiceServer(r grpc.ServiceRegistrar, srv FlowsServiceServer) {
	r.RegisterService(&flowsServiceDesc, srv)
}

// FullMethod returns the invocation path of a FlowsService method.
func FullMethod(method string) string {
	return "/" + FlowsServiceName + "/" + method
}

type unaryMethod func(FlowsServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

var flowsServiceDesc = grpc.ServiceDesc{
	ServiceName: FlowsServiceName,
	HandlerType: (*FlowsServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Health", Handler: unaryHandler("Health", FlowsServiceServer.Health)},
		{MethodName: "Reserve", Handler: unaryHandler("Reserve", FlowsServiceServer.Reserve)},
		{MethodName: "Authorize", Handler: unaryHandler("Authorize", FlowsServiceServer.Authorize)},
		{MethodName: "Charge", Handler: unaryHandler("Charge", FlowsServiceServer.Charge)},
		{MethodName: "Void", Handler: unaryHandler("Void", FlowsServiceServer.Void)},
		{MethodName: "Refund", Handler: unaryHandler("Refund", FlowsServiceServer.Refund)},
		{MethodName: "Lookup", Handler: unaryHandler("Lookup", FlowsServiceServer.Lookup)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "novapay/flows/v1/flows.proto",
}

func unaryHandler(name string, method unaryMethod) grpc.MethodHandler {
	fullMethod := FullMethod(name)
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(FlowsServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(FlowsServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}
