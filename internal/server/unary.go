package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Handler is a typed unary endpoint.
type Handler[Req, Resp any] func(ctx context.Context, req *Req) (*Resp, error)

// FullMethod builds "/<service>/<method>".
func FullMethod(service, method string) string {
	return "/" + service + "/" + method
}

// Unary adapts a typed handler to a grpc.MethodDesc, running it through the
// server's interceptor chain like generated code does.
func Unary[Req, Resp any](service, method string, h Handler[Req, Resp]) grpc.MethodDesc {
	info := &grpc.UnaryServerInfo{FullMethod: FullMethod(service, method)}

	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(Req)
			if err := dec(in); err != nil {
				return nil, status.Error(codes.InvalidArgument, "malformed request")
			}
			if interceptor == nil {
				return h(ctx, in)
			}
			call := func(ctx context.Context, req any) (any, error) {
				return h(ctx, req.(*Req))
			}
			return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: info.FullMethod}, call)
		},
	}
}

// ServiceDesc assembles a service description for hand-written handlers.
func ServiceDesc(service string, methods ...grpc.MethodDesc) *grpc.ServiceDesc {
	return &grpc.ServiceDesc{
		ServiceName: service,
		HandlerType: (*any)(nil),
		Methods:     methods,
		Streams:     []grpc.StreamDesc{},
		Metadata:    service,
	}
}
