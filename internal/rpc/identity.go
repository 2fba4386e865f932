// Package rpc describes the identity service on the wire. Messages are
// google.protobuf.Struct values, so the service needs no generated code; the
// typed request/response structs below convert to and from them.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const IdentityService = "fahrme.identity.v1.Identity"

const (
	MethodRegister = "Register"
	MethodLogin    = "Login"
	MethodSession  = "Session"
	MethodConfirm  = "Confirm"
)

// FullMethod is the gRPC method path, e.g. "/fahrme.identity.v1.Identity/Login".
func FullMethod(method string) string {
	return "/" + IdentityService + "/" + method
}

// IdentityServer is implemented by the identity provider.
type IdentityServer interface {
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Session(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Confirm(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryFunc func(context.Context, *structpb.Struct) (*structpb.Struct, error)

// IdentityServiceDesc is the grpc.ServiceDesc of the identity service.
var IdentityServiceDesc = grpc.ServiceDesc{
	ServiceName: IdentityService,
	HandlerType: (*IdentityServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: MethodRegister, Handler: unary(MethodRegister, func(s IdentityServer) unaryFunc { return s.Register })},
		{MethodName: MethodLogin, Handler: unary(MethodLogin, func(s IdentityServer) unaryFunc { return s.Login })},
		{MethodName: MethodSession, Handler: unary(MethodSession, func(s IdentityServer) unaryFunc { return s.Session })},
		{MethodName: MethodConfirm, Handler: unary(MethodConfirm, func(s IdentityServer) unaryFunc { return s.Confirm })},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "fahrme/identity/v1/identity.proto",
}

// RegisterIdentityServer attaches srv to a gRPC server.
func RegisterIdentityServer(s grpc.ServiceRegistrar, srv IdentityServer) {
	s.RegisterService(&IdentityServiceDesc, srv)
}

func unary(method string, pick func(IdentityServer) unaryFunc) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		call := pick(srv.(IdentityServer))
		if interceptor == nil {
			return call(ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// IdentityClient calls the identity service.
type IdentityClient struct {
	cc grpc.ClientConnInterface
}

func NewIdentityClient(cc grpc.ClientConnInterface) *IdentityClient {
	return &IdentityClient{cc: cc}
}

func (c *IdentityClient) Register(ctx context.Context, in Credentials, opts ...grpc.CallOption) (AuthReply, error) {
	out, err := c.call(ctx, MethodRegister, in.Struct(), opts...)
	if err != nil {
		return AuthReply{}, err
	}
	return AuthReplyFrom(out), nil
}

func (c *IdentityClient) Login(ctx context.Context, in Credentials, opts ...grpc.CallOption) (AuthReply, error) {
	out, err := c.call(ctx, MethodLogin, in.Struct(), opts...)
	if err != nil {
		return AuthReply{}, err
	}
	return AuthReplyFrom(out), nil
}

// Session resolves the bearer token carried in the outgoing metadata.
func (c *IdentityClient) Session(ctx context.Context, opts ...grpc.CallOption) (Profile, error) {
	out, err := c.call(ctx, MethodSession, &structpb.Struct{}, opts...)
	if err != nil {
		return Profile{}, err
	}
	return ProfileFrom(out), nil
}

func (c *IdentityClient) Confirm(ctx context.Context, token string, opts ...grpc.CallOption) (Profile, error) {
	out, err := c.call(ctx, MethodConfirm, ConfirmRequest{Token: token}.Struct(), opts...)
	if err != nil {
		return Profile{}, err
	}
	return ProfileFrom(out), nil
}

func (c *IdentityClient) call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
