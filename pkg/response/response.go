package response

import (
	"github.com/fatflowers/streambox/pkg/apperr"
)

// APIResponseCode is the application-level status carried in every envelope.
type APIResponseCode int

const (
	APIResponseCodeOK               APIResponseCode = 0
	APIResponseCodeBadRequest       APIResponseCode = 40000
	APIResponseCodeInvalidSignature APIResponseCode = 40001
	APIResponseCodeUnauthorized     APIResponseCode = 40100
	APIResponseCodeForbidden        APIResponseCode = 40300
	APIResponseCodeNotFound         APIResponseCode = 40400
	APIResponseCodeConflict         APIResponseCode = 40900
	APIResponseCodeError            APIResponseCode = 50000
	APIResponseCodeUnavailable      APIResponseCode = 50300
)

var codeToMsg = map[APIResponseCode]string{
	APIResponseCodeOK:               "ok",
	APIResponseCodeBadRequest:       "bad request",
	APIResponseCodeInvalidSignature: "invalid payment signature",
	APIResponseCodeUnauthorized:     "unauthorized",
	APIResponseCodeForbidden:        "forbidden",
	APIResponseCodeNotFound:         "not found",
	APIResponseCodeConflict:         "conflict",
	APIResponseCodeError:            "unexpected error",
	APIResponseCodeUnavailable:      "service unavailable, retry later",
}

var kindToCode = map[apperr.Kind]APIResponseCode{
	apperr.KindValidation:       APIResponseCodeBadRequest,
	apperr.KindInvalidSignature: APIResponseCodeInvalidSignature,
	apperr.KindUnauthorized:     APIResponseCodeUnauthorized,
	apperr.KindForbidden:        APIResponseCodeForbidden,
	apperr.KindNotFound:         APIResponseCodeNotFound,
	apperr.KindConflict:         APIResponseCodeConflict,
	apperr.KindUnavailable:      APIResponseCodeUnavailable,
	apperr.KindInternal:         APIResponseCodeError,
}

// APIResponse is the generic response envelope used by HTTP APIs.
// Use OKT / ErrorT helpers to construct instances.
type APIResponse[T any] struct {
	Code    APIResponseCode `json:"code"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
}

// OKT returns a successful response with data.
func OKT[T any](data T) *APIResponse[T] {
	return &APIResponse[T]{Code: APIResponseCodeOK, Message: codeToMsg[APIResponseCodeOK], Data: data}
}

// ErrorT returns an error response with message and optional data.
func ErrorT[T any](code APIResponseCode, data T) *APIResponse[T] {
	return &APIResponse[T]{Code: code, Message: codeToMsg[code], Data: data}
}

// CodeOf maps an error's kind to a response code.
func CodeOf(err error) APIResponseCode {
	if code, ok := kindToCode[apperr.KindOf(err)]; ok {
		return code
	}
	return APIResponseCodeError
}

// FromError builds an error envelope whose data is the error message. Internal
// errors are not echoed to the caller.
func FromError(err error) *APIResponse[any] {
	code := CodeOf(err)
	if code == APIResponseCodeError {
		return ErrorT[any](code, nil)
	}
	return ErrorT[any](code, err.Error())
}
