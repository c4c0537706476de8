package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"

	"staticcurator/models"
	"staticcurator/services/manifest"
	"staticcurator/utils"
)

// configVar is the route variable holding the encoded preference token.
const configVar = "config"

// invalidConfigBody is the only error text callers ever see.
var invalidConfigBody = []byte(`{"error":"Invalid Configuration or Link"}`)

// ManifestHandler serves per-user manifests built from a preference token
// embedded in the install URL. It holds no per-request state.
type ManifestHandler struct {
	defs     manifest.Definitions
	identity models.ManifestIdentity
	requests *prometheus.CounterVec
}

func NewManifestHandler(defs manifest.Definitions, identity models.ManifestIdentity) *ManifestHandler {
	return &ManifestHandler{
		defs:     defs,
		identity: identity,
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "curator",
			Name:      "manifest_requests_total",
			Help:      "Dynamic manifest requests, by outcome.",
		}, []string{"outcome"}),
	}
}

// Collector exposes the request counter for registration.
func (h *ManifestHandler) Collector() prometheus.Collector { return h.requests }

// RegisterRoutes mounts the manifest routes under prefix ("" for root).
// Extra middleware (rate limiting) applies to these routes only.
func (h *ManifestHandler) RegisterRoutes(r *mux.Router, prefix string, mw ...mux.MiddlewareFunc) {
	var handler http.Handler = http.HandlerFunc(h.Manifest)
	for i := len(mw) - 1; i >= 0; i-- {
		handler = mw[i](handler)
	}
	for _, path := range []string{
		"/c/{" + configVar + "}/manifest.json",
		"/c/{" + configVar + "}",
		"/c",
	} {
		r.Handle(prefix+path, handler).Methods(http.MethodGet, http.MethodOptions)
	}
	// Anything else under /c/ is a broken install link, not a missing page.
	r.PathPrefix(prefix+"/c/").Handler(handler).Methods(http.MethodGet, http.MethodOptions)
}

// Manifest answers preflights with 204 and everything else with either the
// personalised manifest or a fixed 400 body.
func (h *ManifestHandler) Manifest(w http.ResponseWriter, r *http.Request) {
	utils.SetJSONCORSHeaders(w.Header())
	if utils.IsPreflight(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	body, err := h.render(r)
	if err != nil {
		log.Printf("[manifest] rejecting %s: %v", r.URL.Path, err)
		h.requests.WithLabelValues("invalid").Inc()
		w.WriteHeader(http.StatusBadRequest)
		w.Write(invalidConfigBody)
		return
	}
	h.requests.WithLabelValues("ok").Inc()
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

func (h *ManifestHandler) render(r *http.Request) (body []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			body, err = nil, manifest.ErrInvalidConfiguration
			log.Printf("[manifest] recovered panic: %v", p)
		}
	}()

	token, ok := mux.Vars(r)[configVar]
	if !ok {
		return nil, manifest.ErrInvalidConfiguration
	}
	pref, err := manifest.DecodePreference(token)
	if err != nil {
		return nil, err
	}
	return json.Marshal(manifest.Build(h.identity, h.defs, pref))
}
