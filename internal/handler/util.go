package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/techsolutions/agency-chat/internal/model"
)

const maxBodyBytes = 64 * 1024

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *errorBody  `json:"error,omitempty"`
}

type errorBody struct {
	Code    model.ErrorCode `json:"code"`
	Message string          `json:"message"`
}

// writeJSON writes a JSON response.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, data interface{}) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

// writeError writes the error envelope with the status matching its code.
func writeError(w http.ResponseWriter, err error) {
	code := model.CodeOf(err)
	writeJSON(w, statusFor(code), envelope{
		Error: &errorBody{Code: code, Message: model.MessageOf(err)},
	})
}

func statusFor(code model.ErrorCode) int {
	switch code {
	case model.CodeValidation:
		return http.StatusBadRequest
	case model.CodeNotFound:
		return http.StatusNotFound
	case model.CodeForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

// decodeBody reads a JSON request body into v.
func decodeBody(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return model.Validation("Request body is required")
		}
		return model.Validation("Invalid request body")
	}
	return nil
}
