package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "chatsync.v1.ChatSync"

// Method names.
const (
	MethodGetStatus     = "GetStatus"
	MethodLogin         = "Login"
	MethodSignUp        = "SignUp"
	MethodLogout        = "Logout"
	MethodSetPresence   = "SetPresence"
	MethodSetUsername   = "SetUsername"
	MethodListProfiles  = "ListProfiles"
	MethodListChats     = "ListChats"
	MethodOpenChat      = "OpenChat"
	MethodSetActiveChat = "SetActiveChat"
	MethodListMessages  = "ListMessages"
	MethodSendMessage   = "SendMessage"
	MethodGetTheme      = "GetTheme"
	MethodSetTheme      = "SetTheme"
	MethodWatchEvents   = "WatchEvents"
)

type unaryFunc func(s *Service, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unary(MethodGetStatus, (*Service).GetStatus),
		unary(MethodLogin, (*Service).Login),
		unary(MethodSignUp, (*Service).SignUp),
		unary(MethodLogout, (*Service).Logout),
		unary(MethodSetPresence, (*Service).SetPresence),
		unary(MethodSetUsername, (*Service).SetUsername),
		unary(MethodListProfiles, (*Service).ListProfiles),
		unary(MethodListChats, (*Service).ListChats),
		unary(MethodOpenChat, (*Service).OpenChat),
		unary(MethodSetActiveChat, (*Service).SetActiveChat),
		unary(MethodListMessages, (*Service).ListMessages),
		unary(MethodSendMessage, (*Service).SendMessage),
		unary(MethodGetTheme, (*Service).GetTheme),
		unary(MethodSetTheme, (*Service).SetTheme),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    MethodWatchEvents,
			Handler:       watchEventsHandler,
			ServerStreams: true,
		},
	},
	Metadata: "chatsync/v1/chatsync.proto",
}

// Register attaches svc to srv.
func Register(srv *grpc.Server, svc *Service) {
	srv.RegisterService(&serviceDesc, svc)
}

func fullMethod(name string) string {
	return "/" + ServiceName + "/" + name
}

func unary(name string, call unaryFunc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(*Service)
			if interceptor == nil {
				out, err := call(s, ctx, in)
				return out, toStatus(err)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				out, err := call(s, ctx, req.(*structpb.Struct))
				return out, toStatus(err)
			})
		},
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(structpb.Struct)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return toStatus(srv.(*Service).WatchEvents(in, stream))
}
