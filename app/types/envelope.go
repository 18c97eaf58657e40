package types

import (
	"encoding/json"
	"fmt"
	"time"
)

type Envelope struct {
	OK         bool   `json:"ok"`
	ResultCode int    `json:"resultCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	FlowID     string `json:"flowId,omitempty"`
	Timestamp  string `json:"timestamp"`
}

func NewEnvelope(code ResultCode, message string, data any, flowID string, now time.Time) *Envelope {
	if message == "" {
		message = code.Message()
	}
	return &Envelope{
		OK:         code.Success(),
		ResultCode: code.Int(),
		Message:    message,
		Data:       data,
		FlowID:     flowID,
		Timestamp:  now.UTC().Format(time.RFC3339Nano),
	}
}

// Response is a rendered envelope, stored as-is for idempotent replays.
type Response struct {
	StatusCode int
	FlowID     string
	Body       []byte
}

func RenderEnvelope(env *Envelope) (*Response, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: ResultCode(env.ResultCode).HTTPStatus(), FlowID: env.FlowID, Body: body}, nil
}

// RequestError is a request-shape failure detected before any state is read.
type RequestError struct {
	Code    ResultCode
	Message string
}

func (e *RequestError) Error() string {
	return e.Message
}

func invalid(code ResultCode, format string, args ...any) error {
	return &RequestError{Code: code, Message: fmt.Sprintf(format, args...)}
}

type HealthResponse struct {
	Status string `json:"status"`
}
