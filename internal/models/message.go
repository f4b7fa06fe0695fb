package models

import (
	"github.com/whookdev/composer/internal/auth"
)

// Message types carried over the channel between the composer and the
// executor.
const (
	TypeSendRequest = "send-request"
	TypeResponse    = "response"
)

// Message is the envelope written to and read from the channel. Exactly one
// of Request and Reply is set, matching Type.
type Message struct {
	Type      string       `json:"type"`
	RequestID string       `json:"request_id"`
	Request   *SendRequest `json:"request,omitempty"`
	Reply     *Reply       `json:"reply,omitempty"`
}

// SendRequest is the outbound payload: the signed wire request plus the
// authentication selection it was signed with.
type SendRequest struct {
	RequestOptions
	AuthType   auth.Type   `json:"authType"`
	AuthParams auth.Params `json:"authParams"`
}

// Reply is the inbound payload. RequestHeaders are the headers the executor
// actually transmitted.
type Reply struct {
	Response       *Response         `json:"response,omitempty"`
	RequestHeaders map[string]string `json:"requestHeaders,omitempty"`
	Error          *ReplyError       `json:"error,omitempty"`
}

type ErrorKind string

const (
	ErrorKindTimeout    ErrorKind = "timeout"
	ErrorKindUnexpected ErrorKind = "unexpected"
	ErrorKindInvalid    ErrorKind = "invalid"
)

// ReplyError reports a transport-level failure. HTTP error statuses are
// never reported here.
type ReplyError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

func (e *ReplyError) Error() string {
	return e.Message
}
