package oauth

import (
	"errors"
	"net/http"
)

// Error is an OAuth protocol error. Two Errors match under errors.Is when
// their codes are equal, so a sentinel with a custom description still
// matches the bare sentinel.
type Error struct {
	Code        string
	Description string
	Status      int
}

func (e *Error) Error() string {
	if e.Description == "" {
		return e.Code
	}
	return e.Code + ": " + e.Description
}

// Is reports whether target is an *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// WithDescription returns a copy of e carrying desc.
func (e *Error) WithDescription(desc string) *Error {
	return &Error{Code: e.Code, Description: desc, Status: e.Status}
}

// HTTPStatus returns the status code for the response, 400 when unset.
func (e *Error) HTTPStatus() int {
	if e.Status == 0 {
		return http.StatusBadRequest
	}
	return e.Status
}

// Response renders e as the JSON error body.
func (e *Error) Response() ErrorResponse {
	return ErrorResponse{Error: e.Code, ErrorDescription: e.Description}
}

// Protocol errors.
var (
	ErrInvalidRequest          = &Error{Code: "invalid_request", Status: http.StatusBadRequest}
	ErrInvalidClient           = &Error{Code: "invalid_client", Status: http.StatusUnauthorized}
	ErrInvalidRedirectURI      = &Error{Code: "invalid_redirect_uri", Status: http.StatusBadRequest}
	ErrInvalidGrant            = &Error{Code: "invalid_grant", Status: http.StatusBadRequest}
	ErrUnsupportedGrantType    = &Error{Code: "unsupported_grant_type", Status: http.StatusBadRequest}
	ErrUnsupportedResponseType = &Error{Code: "unsupported_response_type", Status: http.StatusBadRequest}
	ErrAccessDenied            = &Error{Code: "access_denied", Status: http.StatusBadRequest}
	ErrInvalidToken            = &Error{Code: "invalid_token", Status: http.StatusUnauthorized}
	ErrUserNotFound            = &Error{Code: "user_not_found", Status: http.StatusNotFound}
	ErrRateLimited             = &Error{Code: "rate_limited", Status: http.StatusTooManyRequests}
	ErrServerError             = &Error{Code: "server_error", Status: http.StatusInternalServerError}
)

// Store-level causes. They are logged and folded into ErrInvalidGrant
// before reaching a caller.
var (
	ErrCodeNotFound    = errors.New("authorization code not found")
	ErrCodeExpired     = errors.New("authorization code expired")
	ErrCodeMismatch    = errors.New("authorization code client or redirect_uri mismatch")
	ErrPKCEMismatch    = errors.New("code_verifier does not match code_challenge")
	ErrRefreshNotFound = errors.New("refresh token not found")
	ErrRefreshExpired  = errors.New("refresh token expired")
	ErrRefreshMismatch = errors.New("refresh token client mismatch")
)

// AsError converts err to an *Error, mapping anything that is not already
// a protocol error to ErrServerError.
func AsError(err error) *Error {
	var oerr *Error
	if errors.As(err, &oerr) {
		return oerr
	}
	return ErrServerError
}
