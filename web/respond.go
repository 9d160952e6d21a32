package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/voxbridge/voxbridge/ports"
)

// trackTimeout bounds the background usage write after the response
// has already been sent.
const trackTimeout = 10 * time.Second

func contextWithTrackTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), trackTimeout)
}

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorBody{Error: errorDetail{Code: code, Message: message}})
}

func isNotFound(err error) bool {
	return errors.Is(err, ports.ErrNotFound)
}
