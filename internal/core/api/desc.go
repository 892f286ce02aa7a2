package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * Service descriptor for sortdl.v1.SuggestService.
 *
 * Messages are google.protobuf.Struct on both sides, so the descriptor and
 * client are written out here instead of generated from a .proto file.
 * Field names are snake_case; see suggest.go, preview.go and rules.go.
 */

// Full method names.
const (
	ServiceName         = "sortdl.v1.SuggestService"
	SuggestFullMethod   = "/" + ServiceName + "/Suggest"
	PreviewFullMethod   = "/" + ServiceName + "/Preview"
	ListRulesFullMethod = "/" + ServiceName + "/ListRules"
)

// SuggestServer is the server API for SuggestService.
type SuggestServer interface {
	Suggest(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Preview(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRules(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterSuggestServer registers srv on s.
func RegisterSuggestServer(s grpc.ServiceRegistrar, srv SuggestServer) {
	s.RegisterService(&SuggestServiceDesc, srv)
}

// SuggestServiceDesc is the grpc.ServiceDesc for SuggestService.
var SuggestServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*SuggestServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Suggest", Handler: unaryHandler(SuggestFullMethod, SuggestServer.Suggest)},
		{MethodName: "Preview", Handler: unaryHandler(PreviewFullMethod, SuggestServer.Preview)},
		{MethodName: "ListRules", Handler: unaryHandler(ListRulesFullMethod, SuggestServer.ListRules)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "sortdl/v1/suggest.proto",
}

type unaryMethod func(SuggestServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, method unaryMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return method(srv.(SuggestServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return method(srv.(SuggestServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// SuggestClient is the client API for SuggestService.
type SuggestClient struct {
	cc grpc.ClientConnInterface
}

// NewSuggestClient creates a client over cc.
func NewSuggestClient(cc grpc.ClientConnInterface) *SuggestClient {
	return &SuggestClient{cc: cc}
}

// Suggest calls SuggestService.Suggest.
func (c *SuggestClient) Suggest(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, SuggestFullMethod, in, opts...)
}

// Preview calls SuggestService.Preview.
func (c *SuggestClient) Preview(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, PreviewFullMethod, in, opts...)
}

// ListRules calls SuggestService.ListRules.
func (c *SuggestClient) ListRules(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, ListRulesFullMethod, in, opts...)
}

func (c *SuggestClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
