package model

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation error")
)

// Machine-readable error codes surfaced to callers.
const (
	CodeBadCredentials  = "BAD_CREDENTIALS"
	CodeLoginFailed     = "UNTIS_LOGIN_FAILED"
	CodeFetchFailed     = "UNTIS_FETCH_FAILED"
	CodeMissingSecret   = "MISSING_UNTIS_SECRET"
	CodeDecryptFailed   = "DECRYPT_FAILED"
	CodeNoClassesFound  = "NO_CLASSES_FOUND"
	CodeClassNotFound   = "CLASS_NOT_FOUND"
	CodeSubjectNotFound = "NOT_FOUND"
	CodeInternal        = "INTERNAL"
)

// Error is a typed error carrying a code string and an HTTP-style status for
// the transport layer to translate.
type Error struct {
	Code    string
	Status  int
	Message string
	err     error
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.err }

func newError(code string, status int, msg string, err error) *Error {
	return &Error{Code: code, Status: status, Message: msg, err: err}
}

func BadCredentials(err error) *Error {
	return newError(CodeBadCredentials, http.StatusUnauthorized, "upstream rejected the stored credential", err)
}

func LoginFailed(err error) *Error {
	return newError(CodeLoginFailed, http.StatusBadGateway, "upstream login failed", err)
}

func FetchFailed(err error) *Error {
	return newError(CodeFetchFailed, http.StatusBadGateway, "upstream fetch failed", err)
}

func MissingSecret(userID string) *Error {
	return newError(CodeMissingSecret, http.StatusNotFound, fmt.Sprintf("no upstream credential stored for %s", userID), nil)
}

func DecryptFailed(err error) *Error {
	return newError(CodeDecryptFailed, http.StatusInternalServerError, "stored credential could not be decrypted", err)
}

func NoClassesFound(userID string) *Error {
	return newError(CodeNoClassesFound, http.StatusNotFound, fmt.Sprintf("no classes resolvable for %s", userID), nil)
}

func ClassNotFound(name string) *Error {
	return newError(CodeClassNotFound, http.StatusNotFound, fmt.Sprintf("class %q not found", name), nil)
}

func NotFoundError(what string) *Error {
	return newError(CodeSubjectNotFound, http.StatusNotFound, what+" not found", ErrNotFound)
}

// CodeOf extracts the machine-readable code, or CodeInternal for untyped errors.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// StatusOf extracts the HTTP status, or 500 for untyped errors.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}

// IsBadCredentials reports whether err is a credential-rejection error.
func IsBadCredentials(err error) bool {
	return CodeOf(err) == CodeBadCredentials
}

// IsUpstreamUnavailable reports whether err is one of the three
// availability-class errors eligible for a stale-cache fallback.
func IsUpstreamUnavailable(err error) bool {
	switch CodeOf(err) {
	case CodeBadCredentials, CodeLoginFailed, CodeFetchFailed:
		return true
	}
	return false
}
