package handlers

import (
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/spf13/afero"

	"staticcurator/services/catalog"
	"staticcurator/utils"
)

// StaticHandler serves the published manifest and catalog files.
type StaticHandler struct {
	fileServer http.Handler
}

// NewStaticHandler serves files below root on fs.
func NewStaticHandler(fs afero.Fs, root string) *StaticHandler {
	return &StaticHandler{
		fileServer: http.FileServer(afero.NewHttpFs(afero.NewBasePathFs(fs, root))),
	}
}

// RegisterRoutes exposes /manifest.json and /catalog/... . Clients that
// installed a personalised manifest fetch catalogs relative to it, so
// {prefix}/c/{config}/catalog/... is served too for every given prefix ("" for
// root). Register these before the manifest routes.
func (h *StaticHandler) RegisterRoutes(r *mux.Router, installPrefixes ...string) {
	r.Handle("/"+catalog.ManifestFile, h).Methods(http.MethodGet, http.MethodOptions)
	r.PathPrefix("/catalog/").Handler(h).Methods(http.MethodGet, http.MethodOptions)
	for _, prefix := range installPrefixes {
		r.Handle(prefix+"/c/{"+configVar+"}/catalog/{rest:.+}", http.HandlerFunc(h.serveInstalled)).
			Methods(http.MethodGet, http.MethodOptions)
	}
}

// serveInstalled maps {prefix}/c/{config}/catalog/<rest> onto /catalog/<rest>.
// The token does not affect catalog content.
func (h *StaticHandler) serveInstalled(w http.ResponseWriter, r *http.Request) {
	r2 := new(http.Request)
	*r2 = *r
	u := *r.URL
	u.Path = "/catalog/" + mux.Vars(r)["rest"]
	u.RawPath = ""
	r2.URL = &u
	h.ServeHTTP(w, r2)
}

// ServeHTTP serves published files. Directory listings are not exposed.
func (h *StaticHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	utils.SetCORSHeaders(w.Header())
	if strings.HasSuffix(r.URL.Path, "/") {
		http.NotFound(w, r)
		return
	}
	// Catalogs change at most once per build.
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if strings.HasSuffix(r.URL.Path, ".json") {
		w.Header().Set("Content-Type", "application/json")
	}
	h.fileServer.ServeHTTP(w, r)
}
