// Package handlers adapts the portal services to Cloud Functions HTTP
// entry points.
package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/Lllllllleong/conferenceportal/internal/apperr"
	"github.com/Lllllllleong/conferenceportal/internal/auth"
)

// Authenticator attaches the caller's identity to a request.
// *auth.JWTManager satisfies it.
type Authenticator interface {
	Authenticate(r *http.Request) (*http.Request, error)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "error", err)
	}
	writeJSON(w, status, errorBody{Error: errorDetail{Kind: string(kind), Message: apperr.PublicMessage(err)}})
}

func writeUnauthenticated(w http.ResponseWriter, err error) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeJSON(w, http.StatusUnauthorized, errorBody{Error: errorDetail{Kind: "unauthenticated", Message: err.Error()}})
}

func allowMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method == method {
		return true
	}
	w.Header().Set("Allow", method)
	writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: errorDetail{Kind: "method_not_allowed", Message: "use " + method}})
	return false
}

// authenticated validates the bearer token, writing 401 on failure.
func authenticated(w http.ResponseWriter, r *http.Request, a Authenticator) (*http.Request, bool) {
	authed, err := a.Authenticate(r)
	if err != nil {
		if !errors.Is(err, auth.ErrMissingToken) && !errors.Is(err, auth.ErrInvalidToken) {
			slog.Warn("Token rejected", "error", err)
			err = auth.ErrInvalidToken
		}
		writeUnauthenticated(w, err)
		return nil, false
	}
	return authed, true
}

func decodeJSON(r *http.Request, op string, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	if err := dec.Decode(v); err != nil {
		return apperr.Validation(op, "could not parse JSON body")
	}
	return nil
}

// readUpload reads the "file" part of a multipart form, limited to maxBytes.
func readUpload(w http.ResponseWriter, r *http.Request, op string, maxBytes int64) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return nil, apperr.Validation(op, "file exceeds %d bytes", maxBytes)
		}
		return nil, apperr.Validation(op, "could not parse multipart form")
	}
	file, _, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, apperr.Validation(op, "could not read uploaded file")
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxBytes+1))
	if err != nil {
		return nil, apperr.Internal(op, fmt.Errorf("reading upload: %w", err))
	}
	if int64(len(data)) > maxBytes {
		return nil, apperr.Validation(op, "file exceeds %d bytes", maxBytes)
	}
	return data, nil
}
