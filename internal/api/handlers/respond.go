package handlers

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("Failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(v)
}

// emailParam returns the decoded {email} path parameter. chi matches on
// URL.RawPath when it is set, leaving the segment escaped; otherwise the
// segment comes from the already decoded URL.Path.
func emailParam(r *http.Request) string {
	email := chi.URLParam(r, "email")
	if r.URL.RawPath == "" {
		return email
	}
	if unescaped, err := url.PathUnescape(email); err == nil {
		return unescaped
	}
	return email
}
