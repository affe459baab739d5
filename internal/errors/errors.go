// Package errors provides unified error handling for the recorder.
// Codes are shared by the HTTP, WebSocket, gRPC and MCP surfaces.
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// Code identifies an error class.
type Code string

const (
	CodeUnknown           Code = "UNKNOWN"
	CodeInternal          Code = "INTERNAL"
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeUnavailable       Code = "UNAVAILABLE"
	CodeClosed            Code = "CLOSED"
	CodePermissionDenied  Code = "PERMISSION_DENIED"
	CodeUnsupportedFormat Code = "UNSUPPORTED_FORMAT"
	CodeEncoderInit       Code = "ENCODER_INIT_FAILED"
	CodeSessionActive     Code = "SESSION_ACTIVE"
	CodeNoArtifact        Code = "NO_ARTIFACT"
)

// grpcCodeMap maps Code to gRPC status codes.
var grpcCodeMap = map[Code]codes.Code{
	CodeUnknown:           codes.Unknown,
	CodeInternal:          codes.Internal,
	CodeInvalidArgument:   codes.InvalidArgument,
	CodeUnavailable:       codes.Unavailable,
	CodeClosed:            codes.Aborted,
	CodePermissionDenied:  codes.PermissionDenied,
	CodeUnsupportedFormat: codes.FailedPrecondition,
	CodeEncoderInit:       codes.Internal,
	CodeSessionActive:     codes.AlreadyExists,
	CodeNoArtifact:        codes.NotFound,
}

var httpCodeMap = map[Code]int{
	CodeInvalidArgument:   http.StatusBadRequest,
	CodeUnavailable:       http.StatusServiceUnavailable,
	CodeClosed:            http.StatusServiceUnavailable,
	CodePermissionDenied:  http.StatusForbidden,
	CodeUnsupportedFormat: http.StatusUnprocessableEntity,
	CodeSessionActive:     http.StatusConflict,
	CodeNoArtifact:        http.StatusNotFound,
}

// detailCodeKey carries the Code inside the status detail struct.
const detailCodeKey = "code"

// AppError is the base error type with structured error code and metadata.
type AppError struct {
	Code     Code
	Message  string
	Metadata map[string]string
	Cause    error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	s := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Metadata) > 0 {
		s += fmt.Sprintf(" %v", e.Metadata)
	}
	if e.Cause != nil {
		s += fmt.Sprintf(" caused by: %v", e.Cause)
	}
	return s
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *AppError) Unwrap() error { return e.Cause }

// GRPCCode returns the corresponding gRPC status code.
func (e *AppError) GRPCCode() codes.Code {
	if c, ok := grpcCodeMap[e.Code]; ok {
		return c
	}
	return codes.Unknown
}

// HTTPStatus returns the HTTP status used when the error crosses the REST surface.
func (e *AppError) HTTPStatus() int {
	if c, ok := httpCodeMap[e.Code]; ok {
		return c
	}
	return http.StatusInternalServerError
}

// GRPCStatus returns a gRPC status carrying the code and metadata as a detail.
// grpc-go picks this up when a handler returns an *AppError.
func (e *AppError) GRPCStatus() *status.Status {
	st := status.New(e.GRPCCode(), e.Message)
	fields := map[string]any{detailCodeKey: string(e.Code)}
	for k, v := range e.Metadata {
		fields[k] = v
	}
	detail, err := structpb.NewStruct(fields)
	if err != nil {
		return st
	}
	if withDetail, err := st.WithDetails(detail); err == nil {
		return withDetail
	}
	return st
}

// New creates a new AppError with the given code and message.
func New(code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg}
}

// Newf creates a new AppError with formatted message.
func Newf(code Code, format string, args ...any) *AppError {
	return &AppError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap wraps an existing error with an AppError.
func Wrap(err error, code Code, msg string) *AppError {
	return &AppError{Code: code, Message: msg, Cause: err}
}

// WithMetadata adds metadata to an AppError.
func (e *AppError) WithMetadata(key, value string) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]string)
	}
	e.Metadata[key] = value
	return e
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// FromGRPCError extracts an AppError from a gRPC error if present.
func FromGRPCError(err error) *AppError {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return &AppError{Code: CodeUnknown, Message: err.Error(), Cause: err}
	}

	for _, detail := range st.Details() {
		fields, ok := detail.(*structpb.Struct)
		if !ok {
			continue
		}
		appErr := &AppError{Message: st.Message()}
		for k, v := range fields.AsMap() {
			s, _ := v.(string)
			if k == detailCodeKey {
				appErr.Code = Code(s)
				continue
			}
			appErr.WithMetadata(k, s)
		}
		if appErr.Code != "" {
			return appErr
		}
	}

	return &AppError{Code: grpcToCode(st.Code()), Message: st.Message()}
}

// grpcToCode maps gRPC codes back to our codes (best effort).
func grpcToCode(c codes.Code) Code {
	switch c {
	case codes.InvalidArgument:
		return CodeInvalidArgument
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return CodeUnavailable
	case codes.PermissionDenied:
		return CodePermissionDenied
	case codes.FailedPrecondition:
		return CodeUnsupportedFormat
	case codes.AlreadyExists:
		return CodeSessionActive
	case codes.NotFound:
		return CodeNoArtifact
	case codes.Aborted:
		return CodeClosed
	case codes.Internal:
		return CodeInternal
	default:
		return CodeUnknown
	}
}

// IsCode checks if an error chain carries a specific code.
func IsCode(err error, code Code) bool {
	if appErr, ok := As(err); ok {
		return appErr.Code == code
	}
	return false
}
