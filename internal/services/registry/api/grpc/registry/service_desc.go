package registry

import (
	"context"

	"github.com/louisbranch/didregistry/internal/services/registry/event"
	"google.golang.org/grpc"
)

// ServiceName is the fully qualified registry service name.
const ServiceName = "registry.v1.DIDRegistryService"

// Full method names.
const (
	CreateDIDMethod   = "/" + ServiceName + "/CreateDID"
	UpdateDIDMethod   = "/" + ServiceName + "/UpdateDID"
	RevokeDIDMethod   = "/" + ServiceName + "/RevokeDID"
	GetDIDMethod      = "/" + ServiceName + "/GetDID"
	ListEventsMethod  = "/" + ServiceName + "/ListEvents"
	WatchEventsMethod = "/" + ServiceName + "/WatchEvents"
)

// WatchEventsServer is the server side of a WatchEvents stream.
type WatchEventsServer = grpc.ServerStreamingServer[event.Event]

// WatchEventsClient is the client side of a WatchEvents stream.
type WatchEventsClient = grpc.ServerStreamingClient[event.Event]

// DIDRegistryServer is the server API for the registry service.
type DIDRegistryServer interface {
	CreateDID(context.Context, *CreateDIDRequest) (*DIDResponse, error)
	UpdateDID(context.Context, *UpdateDIDRequest) (*DIDResponse, error)
	RevokeDID(context.Context, *RevokeDIDRequest) (*RevokeDIDResponse, error)
	GetDID(context.Context, *GetDIDRequest) (*DIDResponse, error)
	ListEvents(context.Context, *ListEventsRequest) (*ListEventsResponse, error)
	WatchEvents(*WatchEventsRequest, WatchEventsServer) error
}

// RegisterDIDRegistryServer registers srv on s. Messages use the JSON codec,
// so clients must select it with JSONCallOption.
func RegisterDIDRegistryServer(s grpc.ServiceRegistrar, srv DIDRegistryServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// ServiceDesc describes the registry service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DIDRegistryServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "CreateDID", Handler: unaryHandler(CreateDIDMethod, DIDRegistryServer.CreateDID)},
		{MethodName: "UpdateDID", Handler: unaryHandler(UpdateDIDMethod, DIDRegistryServer.UpdateDID)},
		{MethodName: "RevokeDID", Handler: unaryHandler(RevokeDIDMethod, DIDRegistryServer.RevokeDID)},
		{MethodName: "GetDID", Handler: unaryHandler(GetDIDMethod, DIDRegistryServer.GetDID)},
		{MethodName: "ListEvents", Handler: unaryHandler(ListEventsMethod, DIDRegistryServer.ListEvents)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchEvents", Handler: watchEventsHandler, ServerStreams: true},
	},
	Metadata: "registry/v1/registry.json",
}

func unaryHandler[Req, Resp any](fullMethod string, call func(DIDRegistryServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DIDRegistryServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DIDRegistryServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func watchEventsHandler(srv any, stream grpc.ServerStream) error {
	in := new(WatchEventsRequest)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(DIDRegistryServer).WatchEvents(in, &grpc.GenericServerStream[WatchEventsRequest, event.Event]{ServerStream: stream})
}
