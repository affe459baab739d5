package server

import (
	apperrors "github.com/GriffinCanCode/screenrec/internal/errors"
	"github.com/GriffinCanCode/screenrec/internal/session"
)

// Command types accepted over the WebSocket.
const (
	CmdStart    = "start"
	CmdPause    = "pause"
	CmdResume   = "resume"
	CmdToggle   = "toggle"
	CmdStop     = "stop"
	CmdStatus   = "status"
	CmdDownload = "download"
)

// Message is the envelope every frame shares.
type Message struct {
	Type string `json:"type"`
}

// CommandMessage is sent by the browser.
type CommandMessage struct {
	Type    string `json:"type"`
	ID      string `json:"id,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}

type ViewMessage struct {
	Type string       `json:"type"`
	View session.View `json:"view"`
}

// PreviewMessage points the playback region at url; empty clears it.
type PreviewMessage struct {
	Type string `json:"type"`
	Ref  string `json:"ref,omitempty"`
	URL  string `json:"url"`
}

// DownloadMessage asks the browser to save url as filename.
type DownloadMessage struct {
	Type     string `json:"type"`
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// ResultMessage answers one command.
type ResultMessage struct {
	Type     string            `json:"type"`
	ID       string            `json:"id,omitempty"`
	Command  string            `json:"command"`
	TraceID  string            `json:"trace_id,omitempty"`
	Snapshot *session.Snapshot `json:"snapshot,omitempty"`
	Offer    *OfferBody        `json:"offer,omitempty"`
	Error    *ErrorBody        `json:"error,omitempty"`
}

type RateLimitedMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// OfferBody is a download offer with its URL.
type OfferBody struct {
	session.Offer
	URL string `json:"url"`
}

// ErrorBody is the JSON form of an error on every surface.
type ErrorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

func errorBody(err error) *ErrorBody {
	if err == nil {
		return nil
	}
	if appErr, ok := apperrors.As(err); ok {
		return &ErrorBody{Code: string(appErr.Code), Message: appErr.Message, Metadata: appErr.Metadata}
	}
	return &ErrorBody{Code: string(apperrors.CodeInternal), Message: err.Error()}
}
