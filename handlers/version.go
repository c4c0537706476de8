package handlers

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"sync"
)

// Version is set at build time with -ldflags "-X staticcurator/handlers.Version=...".
// When empty it is read from version.txt.
var (
	Version     string
	versionOnce sync.Once
)

type VersionHandler struct {
	manifestVersion string
}

type VersionResponse struct {
	Version         string `json:"version"`
	ManifestVersion string `json:"manifestVersion"`
}

func NewVersionHandler(manifestVersion string) *VersionHandler {
	return &VersionHandler{manifestVersion: manifestVersion}
}

// GetBuildVersion returns the binary version (cached after first read).
func GetBuildVersion() string {
	versionOnce.Do(func() {
		if Version != "" {
			return
		}
		for _, path := range []string{"version.txt", "/app/version.txt"} {
			data, err := os.ReadFile(path)
			if err == nil {
				Version = strings.TrimSpace(string(data))
				return
			}
		}
		Version = "dev"
	})
	return Version
}

func (h *VersionHandler) GetVersion(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(VersionResponse{
		Version:         GetBuildVersion(),
		ManifestVersion: h.manifestVersion,
	})
}
