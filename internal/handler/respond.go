package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/docassist/docassist-go/internal/model"
)

const maxBodyBytes = 1 << 20 // 1MB

var (
	errBodyTooLarge = errors.New("Request body too large")
	errInvalidBody  = errors.New("Invalid request body")
)

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errBodyTooLarge
		}
		return errInvalidBody
	}
	return nil
}

// writeDecodeError answers a request whose body could not be decoded.
func writeDecodeError(w http.ResponseWriter, err error) {
	if errors.Is(err, errBodyTooLarge) {
		writeJSON(w, http.StatusRequestEntityTooLarge, errorResponse(err.Error()))
		return
	}
	writeJSON(w, http.StatusBadRequest, errorResponse(errInvalidBody.Error()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func errorResponse(msg string) model.MessageResponse {
	return model.MessageResponse{Success: false, Message: msg}
}
