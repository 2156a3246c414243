package server

import (
	"encoding/json"
	"net/http"
)

// maxBodyBytes bounds request bodies; every payload here is a few fields.
const maxBodyBytes = 64 << 10

type errorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return dec.Decode(v)
}

func sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func sendError(w http.ResponseWriter, status int, msg string) {
	sendJSON(w, status, errorResponse{Success: false, Error: msg})
}
