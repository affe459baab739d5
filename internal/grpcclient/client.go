// Package grpcclient is the remote session.Controller used by recctl and the
// MCP tools to drive a running recorder.
package grpcclient

import (
	"context"
	"errors"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
	"github.com/GriffinCanCode/screenrec/internal/resilience"
	"github.com/GriffinCanCode/screenrec/internal/rpc"
	"github.com/GriffinCanCode/screenrec/internal/session"
	"github.com/GriffinCanCode/screenrec/internal/trace"
)

// Client talks to the Recorder service. Idempotent calls are retried on
// transport failures; every call goes through one circuit breaker.
type Client struct {
	conn    *grpc.ClientConn
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
}

var _ session.Controller = (*Client)(nil)

// Options tunes a Client.
type Options struct {
	Breaker resilience.Config
	Retry   resilience.RetryConfig
	Dial    []grpc.DialOption
}

// New creates a client for addr. The connection is established lazily.
func New(addr string, opts Options) (*Client, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	dial := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithChainStreamInterceptor(trace.StreamClientInterceptor()),
	}, opts.Dial...)

	conn, err := grpc.NewClient(addr, dial...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidArgument, "invalid recorder address").WithMetadata("addr", addr)
	}
	if opts.Retry.MaxRetries == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	return &Client{conn: conn, breaker: resilience.New(opts.Breaker), retry: opts.Retry}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Start is never retried: a retry after a lost reply would be rejected as an
// active session.
func (c *Client) Start(ctx context.Context) (session.Snapshot, error) {
	ctx, cancel := withTimeout(ctx, StartTimeout)
	defer cancel()
	return c.snapshotCall(ctx, rpc.MethodStart, false)
}

func (c *Client) Pause(ctx context.Context) (session.Snapshot, error) {
	return c.command(ctx, rpc.MethodPause, true)
}

func (c *Client) Resume(ctx context.Context) (session.Snapshot, error) {
	return c.command(ctx, rpc.MethodResume, true)
}

// TogglePause is not idempotent, so it is not retried.
func (c *Client) TogglePause(ctx context.Context) (session.Snapshot, error) {
	return c.command(ctx, rpc.MethodTogglePause, false)
}

func (c *Client) Stop(ctx context.Context) (session.Snapshot, error) {
	return c.command(ctx, rpc.MethodStop, true)
}

func (c *Client) Snapshot(ctx context.Context) (session.Snapshot, error) {
	return c.command(ctx, rpc.MethodStatus, true)
}

func (c *Client) Download(ctx context.Context) (session.Offer, error) {
	ctx, cancel := withTimeout(ctx, CommandTimeout)
	defer cancel()
	var offer session.Offer
	out, err := c.invoke(ctx, rpc.MethodDownload, true)
	if err != nil {
		return offer, err
	}
	return offer, rpc.DecodeStruct(out, &offer)
}

// Fetch streams the artifact behind ref into w and returns the byte count.
func (c *Client) Fetch(ctx context.Context, ref string, w io.Writer) (int64, error) {
	var written int64
	err := c.breaker.Execute(func() error {
		stream, err := c.conn.NewStream(ctx, rpc.FetchStreamDesc, rpc.MethodFetch)
		if err != nil {
			return err
		}
		if err := stream.SendMsg(wrapperspb.String(ref)); err != nil {
			return err
		}
		if err := stream.CloseSend(); err != nil {
			return err
		}
		for {
			chunk := new(wrapperspb.BytesValue)
			if err := stream.RecvMsg(chunk); err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
			n, err := w.Write(chunk.GetValue())
			written += int64(n)
			if err != nil {
				return err
			}
		}
	})
	return written, remoteError(err)
}

func (c *Client) command(ctx context.Context, method string, retry bool) (session.Snapshot, error) {
	ctx, cancel := withTimeout(ctx, CommandTimeout)
	defer cancel()
	return c.snapshotCall(ctx, method, retry)
}

func (c *Client) snapshotCall(ctx context.Context, method string, retry bool) (session.Snapshot, error) {
	var snap session.Snapshot
	out, err := c.invoke(ctx, method, retry)
	if err != nil {
		if appErr, ok := apperrors.As(err); ok {
			snap.State = session.State(appErr.Metadata["state"])
		}
		return snap, err
	}
	return snap, rpc.DecodeStruct(out, &snap)
}

func (c *Client) invoke(ctx context.Context, method string, retry bool) (*structpb.Struct, error) {
	call := func() (*structpb.Struct, error) {
		return resilience.ExecuteWithResult(c.breaker, func() (*structpb.Struct, error) {
			out := new(structpb.Struct)
			if err := c.conn.Invoke(ctx, method, &emptypb.Empty{}, out); err != nil {
				return nil, err
			}
			return out, nil
		})
	}
	var (
		out *structpb.Struct
		err error
	)
	if retry {
		out, err = resilience.RetryValue(ctx, c.retry, call)
	} else {
		out, err = call()
	}
	return out, remoteError(err)
}

// remoteError turns a gRPC status into the AppError the server raised.
func remoteError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, resilience.ErrOpen) {
		return apperrors.Wrap(err, apperrors.CodeUnavailable, err.Error())
	}
	return apperrors.FromGRPCError(err)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, d)
}
