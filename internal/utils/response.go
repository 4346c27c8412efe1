package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"venuly/internal/apperr"
	"venuly/internal/logger"
)

const maxBodyBytes = 1 << 20

type ErrorBody struct {
	Error   string            `json:"error"`
	Details map[string]string `json:"details,omitempty"`
}

// ErrorResponse maps err onto its status and public body.
func ErrorResponse(err error) (int, ErrorBody) {
	return apperr.StatusCode(err), ErrorBody{
		Error:   apperr.PublicMessage(err),
		Details: apperr.Details(err),
	}
}

type MessageBody struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes the mapped error body. Internal errors are logged in full.
func WriteError(w http.ResponseWriter, log *logger.Logger, err error) {
	status, body := ErrorResponse(err)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("API", fmt.Sprintf("internal error: %v", err))
	}
	WriteJSON(w, status, body)
}

// DecodeJSON reads a JSON body of at most 1MB into v.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.TooLarge("Request body too large")
		case errors.Is(err, io.EOF):
			return apperr.BadRequest("Request body is required")
		default:
			return apperr.BadRequest("Invalid JSON body")
		}
	}
	return nil
}

// QueryInt parses an integer query parameter, falling back to def.
func QueryInt(r *http.Request, key string, def int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// QueryFloat returns nil when the parameter is absent or malformed.
func QueryFloat(r *http.Request, key string) *float64 {
	if v := r.URL.Query().Get(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return &f
		}
	}
	return nil
}

func QueryBool(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
