package models

// ContentTypeMovie is the only content type the curated feeds carry.
const ContentTypeMovie = "movie"

// Recipe is a named discovery query that produces one catalog feed.
type Recipe struct {
	ID     string `json:"id" yaml:"id"`
	Name   string `json:"name" yaml:"name"`
	Filter string `json:"filter" yaml:"filter"` // raw query fragment appended to the discover call
}

// RawItem is a single movie as returned by the upstream discover endpoint.
type RawItem struct {
	UpstreamID int64   `json:"id"`
	Title      string  `json:"title"`
	PosterPath *string `json:"poster_path"`
	Overview   string  `json:"overview"`
}

// MetaPreview is one catalog entry in the addon protocol's item schema.
type MetaPreview struct {
	ID          string `json:"id"`   // canonical IMDb id, e.g. tt0093773
	Type        string `json:"type"` // always "movie"
	Name        string `json:"name"`
	Poster      string `json:"poster,omitempty"`
	Description string `json:"description"`
}

// CatalogFile is the body persisted for each recipe under both path conventions.
type CatalogFile struct {
	Metas []MetaPreview `json:"metas"`
}

// CatalogEntry advertises one feed inside the manifest.
type CatalogEntry struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Name string `json:"name"`
}

// Manifest is the addon capability descriptor.
type Manifest struct {
	ID          string         `json:"id"`
	Version     string         `json:"version"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Resources   []string       `json:"resources"`
	Types       []string       `json:"types"`
	IDPrefixes  []string       `json:"idPrefixes"`
	Catalogs    []CatalogEntry `json:"catalogs"`
}

// ManifestIdentity holds the descriptor fields that never change between requests.
type ManifestIdentity struct {
	ID          string
	Version     string
	Name        string
	Description string
}
