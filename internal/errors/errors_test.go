package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestErrorString(t *testing.T) {
	err := Wrap(fmt.Errorf("exit status 1"), CodeEncoderInit, "encoder failed to start").WithMetadata("format", "video/webm")
	want := "[ENCODER_INIT_FAILED] encoder failed to start map[format:video/webm] caused by: exit status 1"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("denied by user")
	err := fmt.Errorf("start: %w", Wrap(cause, CodePermissionDenied, "permission denied"))
	if !stderrors.Is(err, cause) {
		t.Error("cause not reachable through errors.Is")
	}
	if !IsCode(err, CodePermissionDenied) {
		t.Error("IsCode should see through fmt wrapping")
	}
	if IsCode(stderrors.New("plain"), CodePermissionDenied) {
		t.Error("plain errors carry no code")
	}
}

func TestCodeMappings(t *testing.T) {
	tests := []struct {
		code     Code
		grpc     codes.Code
		httpCode int
	}{
		{CodePermissionDenied, codes.PermissionDenied, http.StatusForbidden},
		{CodeUnsupportedFormat, codes.FailedPrecondition, http.StatusUnprocessableEntity},
		{CodeEncoderInit, codes.Internal, http.StatusInternalServerError},
		{CodeSessionActive, codes.AlreadyExists, http.StatusConflict},
		{CodeNoArtifact, codes.NotFound, http.StatusNotFound},
		{CodeInvalidArgument, codes.InvalidArgument, http.StatusBadRequest},
		{CodeUnavailable, codes.Unavailable, http.StatusServiceUnavailable},
		{Code("SOMETHING_NEW"), codes.Unknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			err := New(tt.code, "x")
			if got := err.GRPCCode(); got != tt.grpc {
				t.Errorf("GRPCCode() = %v, want %v", got, tt.grpc)
			}
			if got := err.HTTPStatus(); got != tt.httpCode {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.httpCode)
			}
		})
	}
}

func TestGRPCRoundTrip(t *testing.T) {
	orig := New(CodeSessionActive, "a recording session is already recording").WithMetadata("state", "paused")

	// status.Convert is what grpc-go does with a handler's error.
	st := status.Convert(orig)
	if st.Code() != codes.AlreadyExists {
		t.Fatalf("code = %v", st.Code())
	}

	got := FromGRPCError(st.Err())
	if got.Code != CodeSessionActive {
		t.Errorf("Code = %s, want %s", got.Code, CodeSessionActive)
	}
	if got.Message != orig.Message {
		t.Errorf("Message = %q", got.Message)
	}
	if got.Metadata["state"] != "paused" {
		t.Errorf("Metadata = %v", got.Metadata)
	}
}

func TestFromGRPCErrorWithoutDetail(t *testing.T) {
	tests := []struct {
		err  error
		want Code
	}{
		{status.Error(codes.Unavailable, "connection refused"), CodeUnavailable},
		{status.Error(codes.DeadlineExceeded, "slow"), CodeUnavailable},
		{status.Error(codes.NotFound, "gone"), CodeNoArtifact},
		{status.Error(codes.DataLoss, "?"), CodeUnknown},
		{stderrors.New("not a status"), CodeUnknown},
	}
	for _, tt := range tests {
		if got := FromGRPCError(tt.err).Code; got != tt.want {
			t.Errorf("FromGRPCError(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
	if FromGRPCError(nil) != nil {
		t.Error("nil error should map to nil")
	}
}
