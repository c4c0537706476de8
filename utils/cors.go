package utils

import (
	"net/http"
)

// Addon clients fetch manifests and catalogs from arbitrary origins (web
// player, desktop shells), so every response is readable cross-origin.
const (
	CORSAllowOrigin  = "*"
	CORSAllowMethods = "GET"
)

// SetCORSHeaders applies the addon CORS policy to a response.
func SetCORSHeaders(h http.Header) {
	h.Set("Access-Control-Allow-Origin", CORSAllowOrigin)
	h.Set("Access-Control-Allow-Methods", CORSAllowMethods)
}

// SetJSONCORSHeaders applies the CORS policy plus a JSON content type.
func SetJSONCORSHeaders(h http.Header) {
	SetCORSHeaders(h)
	h.Set("Content-Type", "application/json")
}

// IsPreflight reports whether r is a CORS preflight request.
func IsPreflight(r *http.Request) bool {
	return r.Method == http.MethodOptions
}
