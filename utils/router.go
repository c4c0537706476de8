package utils

import (
	"net/http"

	"github.com/gorilla/mux"
)

// CORS middleware for addon routes. Preflights end here with 204.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetCORSHeaders(w.Header())
		if IsPreflight(r) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// fallback keeps the CORS contract for requests no route accepts, so a
// client probing a bad install URL still gets a readable answer.
func fallback(status int, message string) http.HandlerFunc {
	body := []byte(`{"error":"` + message + `"}`)
	return func(w http.ResponseWriter, r *http.Request) {
		SetJSONCORSHeaders(w.Header())
		if IsPreflight(r) {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(status)
		w.Write(body)
	}
}

// NewRouter constructs the base mux router with common routes.
func NewRouter() *mux.Router {
	r := mux.NewRouter()

	r.Use(corsMiddleware)
	r.NotFoundHandler = fallback(http.StatusNotFound, "not found")
	r.MethodNotAllowedHandler = fallback(http.StatusMethodNotAllowed, "method not allowed")

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)
	return r
}
