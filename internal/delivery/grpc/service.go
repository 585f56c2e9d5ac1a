package grpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const ServiceName = "authstate.v1.AuthState"

// AuthStateServer exposes the session registry over gRPC. Requests and
// responses are protobuf Structs shaped like the HTTP API bodies.
type AuthStateServer interface {
	CreateSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetState(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Login(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Register(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Logout(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateProfile(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteSession(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(AuthStateServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(AuthStateServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{
				Server:     srv,
				FullMethod: "/" + ServiceName + "/" + name,
			}
			handler := func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(srv.(AuthStateServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AuthStateServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod("CreateSession", AuthStateServer.CreateSession),
		unaryMethod("GetState", AuthStateServer.GetState),
		unaryMethod("Login", AuthStateServer.Login),
		unaryMethod("Register", AuthStateServer.Register),
		unaryMethod("Logout", AuthStateServer.Logout),
		unaryMethod("UpdateProfile", AuthStateServer.UpdateProfile),
		unaryMethod("DeleteSession", AuthStateServer.DeleteSession),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "authstate/v1/authstate.proto",
}

func RegisterAuthStateServer(s grpc.ServiceRegistrar, srv AuthStateServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// AuthStateClient is the client side of ServiceDesc.
type AuthStateClient struct {
	cc grpc.ClientConnInterface
}

func NewAuthStateClient(cc grpc.ClientConnInterface) *AuthStateClient {
	return &AuthStateClient{cc: cc}
}

func (c *AuthStateClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	if in == nil {
		in = &structpb.Struct{}
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
