package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"staticcurator/api"
	"staticcurator/models"
	"staticcurator/services/manifest"
	"staticcurator/services/recipes"
	"staticcurator/utils"
)

var testIdentity = models.ManifestIdentity{
	ID:          "org.family.staticcurator",
	Version:     "1.0.0",
	Name:        "Static Curator",
	Description: "Personalized curated movie rows.",
}

func newManifestServer(t *testing.T, prefix string) (*ManifestHandler, http.Handler) {
	t.Helper()
	h := NewManifestHandler(recipes.Default(), testIdentity)
	r := utils.NewRouter()
	h.RegisterRoutes(r, prefix)
	return h, r
}

func get(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decodeManifest(t *testing.T, rec *httptest.ResponseRecorder) models.Manifest {
	t.Helper()
	var m models.Manifest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func catalogIDs(m models.Manifest) []string {
	ids := make([]string, 0, len(m.Catalogs))
	for _, c := range m.Catalogs {
		ids = append(ids, c.ID)
	}
	return ids
}

func assertCORS(t *testing.T, rec *httptest.ResponseRecorder) {
	t.Helper()
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "GET", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestManifest_SelectedRowsInCallerOrder(t *testing.T) {
	_, srv := newManifestServer(t, "")
	token, err := manifest.EncodePreference([]string{"hidden_gems", "80s_action"})
	require.NoError(t, err)

	rec := get(t, srv, http.MethodGet, "/c/"+token+"/manifest.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assertCORS(t, rec)

	m := decodeManifest(t, rec)
	assert.Equal(t, []string{"hidden_gems", "80s_action"}, catalogIDs(m))
	assert.Equal(t, testIdentity.ID, m.ID)
	assert.Equal(t, []string{"catalog"}, m.Resources)
	assert.Equal(t, []string{"movie"}, m.Types)
	assert.Equal(t, []string{"tt"}, m.IDPrefixes)
	gems, ok := recipes.Default().Lookup("hidden_gems")
	require.True(t, ok)
	assert.Equal(t, "movie", m.Catalogs[0].Type)
	assert.Equal(t, gems.Name, m.Catalogs[0].Name)
}

func TestManifest_UnknownRowsDropped(t *testing.T) {
	_, srv := newManifestServer(t, "")
	token, err := manifest.EncodePreference([]string{"nope", "80s_action", "also_nope"})
	require.NoError(t, err)

	rec := get(t, srv, http.MethodGet, "/c/"+token+"/manifest.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"80s_action"}, catalogIDs(decodeManifest(t, rec)))
}

func TestManifest_EmptyRowsYieldsNoCatalogs(t *testing.T) {
	_, srv := newManifestServer(t, "")
	token, err := manifest.EncodePreference([]string{})
	require.NoError(t, err)

	rec := get(t, srv, http.MethodGet, "/c/"+token+"/manifest.json")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"catalogs":[]`)
}

func TestManifest_AbsentRowsListsEverything(t *testing.T) {
	_, srv := newManifestServer(t, "")

	// "e30" is {} without padding.
	for _, path := range []string{"/c/e30/manifest.json", "/c/e30"} {
		rec := get(t, srv, http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, recipes.Default().IDs(), catalogIDs(decodeManifest(t, rec)), path)
	}
}

func TestManifest_MalformedTokens(t *testing.T) {
	h, srv := newManifestServer(t, "")

	paths := []string{
		"/c/!!!notbase64/manifest.json",
		"/c/bm90IGpzb24/manifest.json", // "not json"
		"/c/WzEsMl0/manifest.json",     // [1,2]
		"/c/e30/extra/manifest.json",
		"/c/",
		"/c",
	}
	for _, path := range paths {
		rec := get(t, srv, http.MethodGet, path)
		assert.Equal(t, http.StatusBadRequest, rec.Code, path)
		assert.Equal(t, `{"error":"Invalid Configuration or Link"}`, rec.Body.String(), path)
		assertCORS(t, rec)
	}
	assert.Equal(t, float64(len(paths)), testutil.ToFloat64(h.requests.WithLabelValues("invalid")))
}

func TestManifest_PreflightAlwaysNoContent(t *testing.T) {
	_, srv := newManifestServer(t, "")

	for _, path := range []string{"/c/!!!notbase64/manifest.json", "/c/e30/manifest.json", "/c/"} {
		rec := get(t, srv, http.MethodOptions, path)
		assert.Equal(t, http.StatusNoContent, rec.Code, path)
		assert.Zero(t, rec.Body.Len(), path)
		assertCORS(t, rec)
	}
}

func TestManifest_FreshDescriptorPerRequest(t *testing.T) {
	_, srv := newManifestServer(t, "")
	one, err := manifest.EncodePreference([]string{"80s_action"})
	require.NoError(t, err)

	first := get(t, srv, http.MethodGet, "/c/"+one+"/manifest.json")
	all := get(t, srv, http.MethodGet, "/c/e30/manifest.json")
	again := get(t, srv, http.MethodGet, "/c/"+one+"/manifest.json")

	assert.Equal(t, first.Body.String(), again.Body.String())
	assert.Len(t, decodeManifest(t, all).Catalogs, 2)
}

func TestManifest_Prefix(t *testing.T) {
	_, srv := newManifestServer(t, "/addon")

	rec := get(t, srv, http.MethodGet, "/addon/c/e30/manifest.json")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = get(t, srv, http.MethodGet, "/c/e30/manifest.json")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManifest_RateLimited(t *testing.T) {
	h := NewManifestHandler(recipes.Default(), testIdentity)
	limiter := api.NewIPRateLimiter(rate.Every(time.Hour), 1)
	r := utils.NewRouter()
	h.RegisterRoutes(r, "", limiter.Middleware())

	assert.Equal(t, http.StatusOK, get(t, r, http.MethodGet, "/c/e30/manifest.json").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(t, r, http.MethodGet, "/c/e30/manifest.json").Code)
	// Preflights are answered by the router before the limiter sees them.
	assert.Equal(t, http.StatusNoContent, get(t, r, http.MethodOptions, "/c/e30/manifest.json").Code)
}
