package api

import (
	"bytes"
	"net/http"
	"sync"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
)

// Response codes. The first three digits follow the HTTP status.
const (
	CodeSuccess          = 0
	CodeBadRequest       = 40000
	CodeInvalidJSON      = 40001
	CodeValidationFailed = 40002
	CodeInvalidCursor    = 40003
	CodeNotFound         = 44000
	CodeEndpointNotFound = 44002
	CodeMethodNotAllowed = 44005
	CodeUnprocessable    = 42000
	CodeCompileFailed    = 42001
	CodeInternalError    = 50000
	CodeUnavailable      = 50300
)

var codeMessages = map[int]string{
	CodeSuccess:          "Successful",
	CodeBadRequest:       "Bad request",
	CodeInvalidJSON:      "Invalid JSON payload",
	CodeValidationFailed: "Validation failed",
	CodeInvalidCursor:    "Invalid cursor",
	CodeNotFound:         "Not found",
	CodeEndpointNotFound: "Endpoint not found",
	CodeMethodNotAllowed: "Method not allowed",
	CodeUnprocessable:    "Unprocessable request",
	CodeCompileFailed:    "Query definition failed to compile",
	CodeInternalError:    "Internal server error",
	CodeUnavailable:      "Service unavailable",
}

// MessageFor returns the standard message for a response code.
func MessageFor(code int) string {
	if msg, ok := codeMessages[code]; ok {
		return msg
	}
	return codeMessages[CodeInternalError]
}

// codeForStatus maps an HTTP status raised by echo itself to a response code.
func codeForStatus(status int) int {
	switch status {
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusNotFound:
		return CodeEndpointNotFound
	case http.StatusMethodNotAllowed:
		return CodeMethodNotAllowed
	case http.StatusUnprocessableEntity:
		return CodeUnprocessable
	case http.StatusServiceUnavailable:
		return CodeUnavailable
	}
	if status >= 400 && status < 500 {
		return CodeBadRequest
	}
	return CodeInternalError
}

// Response is the body of every API reply.
type Response struct {
	Success   bool   `json:"success"`
	Code      int    `json:"code"`
	Data      any    `json:"data"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

var bufferPool = sync.Pool{
	New: func() any {
		return &bytes.Buffer{}
	},
}

func writeJSON(c echo.Context, status int, body Response) error {
	buf := bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	defer func() {
		// Oversized buffers are left for the GC.
		if buf.Cap() < 64*1024 {
			bufferPool.Put(buf)
		}
	}()

	if err := json.NewEncoder(buf).Encode(body); err != nil {
		return err
	}
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMEApplicationJSONCharsetUTF8)
	c.Response().WriteHeader(status)
	_, err := c.Response().Write(buf.Bytes())
	return err
}

// Success replies 200 with data.
func Success(c echo.Context, data any) error {
	return writeJSON(c, http.StatusOK, Response{
		Success:   true,
		Code:      CodeSuccess,
		Data:      data,
		Message:   MessageFor(CodeSuccess),
		RequestID: RequestID(c),
	})
}

// Created replies 201 with data.
func Created(c echo.Context, data any) error {
	return writeJSON(c, http.StatusCreated, Response{
		Success:   true,
		Code:      CodeSuccess,
		Data:      data,
		Message:   MessageFor(CodeSuccess),
		RequestID: RequestID(c),
	})
}

// Fail replies with an error status, code and message.
func Fail(c echo.Context, status, code int, message string) error {
	return writeJSON(c, status, Response{
		Success:   false,
		Code:      code,
		Message:   message,
		RequestID: RequestID(c),
	})
}

// FailWithData is Fail carrying a payload, e.g. the list of problems found.
func FailWithData(c echo.Context, status, code int, message string, data any) error {
	return writeJSON(c, status, Response{
		Success:   false,
		Code:      code,
		Data:      data,
		Message:   message,
		RequestID: RequestID(c),
	})
}
