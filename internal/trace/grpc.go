package trace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryClientInterceptor injects trace context into outgoing engine calls
// and wraps each call in a span named after the RPC method.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply any, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx, span := StartSpan(ctx, "rpc")
		defer span.End()
		span.SetAttr("method", method)

		err := invoker(injectMetadata(ctx), method, req, reply, cc, opts...)
		span.RecordError(err)
		return err
	}
}

// injectMetadata adds trace context to outgoing gRPC metadata.
func injectMetadata(ctx context.Context) context.Context {
	tc, ok := FromContext(ctx)
	if !ok {
		tc = New()
		ctx = WithContext(ctx, tc)
	}

	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		md = metadata.New(nil)
	} else {
		md = md.Copy()
	}

	md.Set(TraceIDKey, tc.TraceID)
	md.Set(SpanIDKey, tc.SpanID)
	if tc.ParentSpanID != "" {
		md.Set(ParentSpanIDKey, tc.ParentSpanID)
	}

	return metadata.NewOutgoingContext(ctx, md)
}
