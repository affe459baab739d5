package rpc

import (
	"context"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"github.com/GriffinCanCode/screenrec/internal/artifact"
	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
	"github.com/GriffinCanCode/screenrec/internal/session"
	"github.com/GriffinCanCode/screenrec/internal/trace"
)

// FetchChunkSize bounds each message of a Fetch stream.
const FetchChunkSize = 64 << 10

// ArtifactSource resolves live artifact references.
type ArtifactSource interface {
	Lookup(ref string) (*artifact.Artifact, bool)
}

// Server implements RecorderServer on top of a session controller.
type Server struct {
	ctrl      session.Controller
	artifacts ArtifactSource
}

var _ RecorderServer = (*Server)(nil)

func NewServer(ctrl session.Controller, artifacts ArtifactSource) *Server {
	return &Server{ctrl: ctrl, artifacts: artifacts}
}

// NewGRPCServer returns a grpc.Server with the Recorder service and trace
// interceptors installed.
func NewGRPCServer(srv *Server, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.ChainUnaryInterceptor(trace.UnaryServerInterceptor()),
		grpc.ChainStreamInterceptor(trace.StreamServerInterceptor()),
	)
	gs := grpc.NewServer(opts...)
	RegisterRecorderServer(gs, srv)
	return gs
}

func (s *Server) Start(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return reply(s.ctrl.Start(ctx))
}

func (s *Server) Pause(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return reply(s.ctrl.Pause(ctx))
}

func (s *Server) Resume(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return reply(s.ctrl.Resume(ctx))
}

func (s *Server) TogglePause(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return reply(s.ctrl.TogglePause(ctx))
}

func (s *Server) Stop(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return reply(s.ctrl.Stop(ctx))
}

func (s *Server) Status(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return reply(s.ctrl.Snapshot(ctx))
}

func (s *Server) Download(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	offer, err := s.ctrl.Download(ctx)
	if err != nil {
		return nil, statusError(err)
	}
	return EncodeStruct(offer)
}

func (s *Server) Fetch(ref *wrapperspb.StringValue, stream grpc.ServerStreamingServer[wrapperspb.BytesValue]) error {
	if s.artifacts == nil {
		return apperrors.New(apperrors.CodeUnavailable, "artifact fetch is not enabled")
	}
	a, ok := s.artifacts.Lookup(ref.GetValue())
	if !ok {
		return apperrors.New(apperrors.CodeNoArtifact, "artifact reference is not live").
			WithMetadata("ref", ref.GetValue())
	}
	data := a.Data
	for len(data) > 0 {
		n := min(len(data), FetchChunkSize)
		if err := stream.Send(wrapperspb.Bytes(data[:n])); err != nil {
			return err
		}
		data = data[n:]
	}
	trace.Logger(stream.Context()).Debug("artifact fetched", "ref", ref.GetValue(), "bytes", a.Size())
	return nil
}

func reply(snap session.Snapshot, err error) (*structpb.Struct, error) {
	if err != nil {
		e := statusError(err)
		if appErr, ok := e.(*apperrors.AppError); ok && snap.State != "" {
			appErr.WithMetadata("state", string(snap.State))
		}
		return nil, e
	}
	return EncodeStruct(snap)
}

// statusError returns a copy of err's AppError so metadata added for the wire
// never leaks back into the session's stored error.
func statusError(err error) error {
	appErr, ok := apperrors.As(err)
	if !ok {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return status.FromContextError(err).Err()
		}
		return apperrors.Wrap(err, apperrors.CodeInternal, err.Error())
	}
	out := &apperrors.AppError{Code: appErr.Code, Message: appErr.Message, Cause: appErr.Cause}
	for k, v := range appErr.Metadata {
		out.WithMetadata(k, v)
	}
	return out
}
