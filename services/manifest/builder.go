package manifest

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"staticcurator/models"
)

// ErrInvalidConfiguration covers every way a caller-supplied preference token
// can be unusable: absent, not base64, not JSON, or not a JSON object.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// Definitions is the read-only view of the recipe catalog the builder needs.
type Definitions interface {
	All() []models.Recipe
	Lookup(id string) (models.Recipe, bool)
}

// Preference is a decoded user selection. When HasRows is false the caller
// did not express a selection and every catalog is offered.
type Preference struct {
	Rows    []string
	HasRows bool
}

// Build returns a fresh manifest advertising the requested catalogs in the
// caller's order. Unknown ids are skipped. Without rows every defined catalog
// is listed in declaration order.
func Build(identity models.ManifestIdentity, defs Definitions, pref Preference) models.Manifest {
	m := base(identity)
	if !pref.HasRows {
		m.Catalogs = entries(defs.All())
		return m
	}
	for _, id := range pref.Rows {
		r, ok := defs.Lookup(id)
		if !ok {
			continue
		}
		m.Catalogs = append(m.Catalogs, entry(r))
	}
	return m
}

// ForRecipes returns a manifest listing exactly the given recipes, in order.
// The batch build uses it with the recipes that produced a catalog.
func ForRecipes(identity models.ManifestIdentity, built []models.Recipe) models.Manifest {
	m := base(identity)
	m.Catalogs = entries(built)
	return m
}

// DecodePreference turns a path token into a Preference. The token is
// URL-safe base64 of a JSON object; unpadded tokens are accepted.
func DecodePreference(token string) (Preference, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Preference{}, fmt.Errorf("%w: missing token", ErrInvalidConfiguration)
	}

	std := strings.NewReplacer("-", "+", "_", "/").Replace(token)
	raw, err := base64.StdEncoding.DecodeString(std)
	if err != nil && !strings.Contains(std, "=") {
		raw, err = base64.RawStdEncoding.DecodeString(std)
	}
	if err != nil {
		return Preference{}, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return Preference{}, fmt.Errorf("%w: %v", ErrInvalidConfiguration, err)
	}
	if obj == nil {
		return Preference{}, fmt.Errorf("%w: expected a JSON object", ErrInvalidConfiguration)
	}

	rows, ok := obj["rows"]
	if !ok || bytes.Equal(bytes.TrimSpace(rows), []byte("null")) {
		return Preference{}, nil
	}
	var list []any
	if err := json.Unmarshal(rows, &list); err != nil {
		// rows present but not an array: same as no selection.
		return Preference{}, nil
	}
	pref := Preference{Rows: make([]string, 0, len(list)), HasRows: true}
	for _, v := range list {
		if id, ok := v.(string); ok {
			pref.Rows = append(pref.Rows, id)
		}
	}
	return pref, nil
}

// EncodePreference is the inverse of DecodePreference, producing the token a
// configuration page would embed in the install URL.
func EncodePreference(rows []string) (string, error) {
	if rows == nil {
		rows = []string{}
	}
	data, err := json.Marshal(map[string][]string{"rows": rows})
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(data), nil
}

func base(identity models.ManifestIdentity) models.Manifest {
	return models.Manifest{
		ID:          identity.ID,
		Version:     identity.Version,
		Name:        identity.Name,
		Description: identity.Description,
		Resources:   []string{"catalog"},
		Types:       []string{models.ContentTypeMovie},
		IDPrefixes:  []string{"tt"},
		Catalogs:    []models.CatalogEntry{},
	}
}

func entries(recipes []models.Recipe) []models.CatalogEntry {
	out := make([]models.CatalogEntry, 0, len(recipes))
	for _, r := range recipes {
		out = append(out, entry(r))
	}
	return out
}

func entry(r models.Recipe) models.CatalogEntry {
	return models.CatalogEntry{ID: r.ID, Type: models.ContentTypeMovie, Name: r.Name}
}
