// Package rpc serves the recorder's control plane over gRPC. Messages are
// protobuf well-known types, so the service needs no generated code: commands
// take google.protobuf.Empty and answer with a google.protobuf.Struct holding
// the session snapshot.
package rpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const ServiceName = "screenrec.v1.Recorder"

// Full method names.
const (
	MethodStart       = "/" + ServiceName + "/Start"
	MethodPause       = "/" + ServiceName + "/Pause"
	MethodResume      = "/" + ServiceName + "/Resume"
	MethodTogglePause = "/" + ServiceName + "/TogglePause"
	MethodStop        = "/" + ServiceName + "/Stop"
	MethodStatus      = "/" + ServiceName + "/Status"
	MethodDownload    = "/" + ServiceName + "/Download"
	MethodFetch       = "/" + ServiceName + "/Fetch"
)

// RecorderServer is the server API for the Recorder service.
type RecorderServer interface {
	Start(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Pause(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Resume(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	TogglePause(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Stop(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Download offers the finished artifact; the answer is the offer.
	Download(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	// Fetch streams the bytes behind a live artifact reference.
	Fetch(*wrapperspb.StringValue, grpc.ServerStreamingServer[wrapperspb.BytesValue]) error
}

func RegisterRecorderServer(s grpc.ServiceRegistrar, srv RecorderServer) {
	s.RegisterService(&ServiceDesc, srv)
}

type emptyMethod func(RecorderServer, context.Context, *emptypb.Empty) (*structpb.Struct, error)

func emptyHandler(fullMethod string, call emptyMethod) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(emptypb.Empty)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(RecorderServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(RecorderServer), ctx, req.(*emptypb.Empty))
		})
	}
}

func fetchHandler(srv any, stream grpc.ServerStream) error {
	in := new(wrapperspb.StringValue)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(RecorderServer).Fetch(in, &grpc.GenericServerStream[wrapperspb.StringValue, wrapperspb.BytesValue]{ServerStream: stream})
}

// ServiceDesc describes the Recorder service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*RecorderServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Start", Handler: emptyHandler(MethodStart, RecorderServer.Start)},
		{MethodName: "Pause", Handler: emptyHandler(MethodPause, RecorderServer.Pause)},
		{MethodName: "Resume", Handler: emptyHandler(MethodResume, RecorderServer.Resume)},
		{MethodName: "TogglePause", Handler: emptyHandler(MethodTogglePause, RecorderServer.TogglePause)},
		{MethodName: "Stop", Handler: emptyHandler(MethodStop, RecorderServer.Stop)},
		{MethodName: "Status", Handler: emptyHandler(MethodStatus, RecorderServer.Status)},
		{MethodName: "Download", Handler: emptyHandler(MethodDownload, RecorderServer.Download)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Fetch", Handler: fetchHandler, ServerStreams: true},
	},
	Metadata: "screenrec/v1/recorder.proto",
}

// FetchStreamDesc is the client-side descriptor of Fetch.
var FetchStreamDesc = &grpc.StreamDesc{StreamName: "Fetch", ServerStreams: true}
