// Package httputil provides shared HTTP response helpers.
package httputil

import (
	"encoding/json"
	"net/http"

	"github.com/getmockd/mockidp/pkg/oauth"
)

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteOK writes a 200 OK response with data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteNoStore writes a 200 response that caches must not keep. Token
// endpoint responses always go through here.
func WriteNoStore(w http.ResponseWriter, data any) {
	noStore(w)
	WriteJSON(w, http.StatusOK, data)
}

// WriteOAuthError writes err as an OAuth error body. Errors that are not
// protocol errors are reported as server_error. invalid_client and
// invalid_token responses carry a WWW-Authenticate challenge.
func WriteOAuthError(w http.ResponseWriter, err error) {
	oerr := oauth.AsError(err)
	noStore(w)

	switch oerr.Code {
	case oauth.ErrInvalidToken.Code:
		w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token"`)
	case oauth.ErrInvalidClient.Code:
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
	}

	WriteJSON(w, oerr.HTTPStatus(), oerr.Response())
}

// WriteError writes a generic JSON error body for non-OAuth routes.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteJSON(w, status, map[string]string{
		"error":   errCode,
		"message": message,
	})
}

// WriteNotFound writes a 404 Not Found error response.
func WriteNotFound(w http.ResponseWriter, errCode, message string) {
	WriteError(w, http.StatusNotFound, errCode, message)
}

// WriteMethodNotAllowed writes a 405 response.
func WriteMethodNotAllowed(w http.ResponseWriter) {
	WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

// WriteHTML writes an HTML body with the given status code.
func WriteHTML(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}
