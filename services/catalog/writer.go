package catalog

import (
	"encoding/json"
	"fmt"
	"path"

	"github.com/spf13/afero"

	"staticcurator/models"
)

const (
	catalogDir   = "catalog/movie"
	skipFileName = "skip=0.json"
	ManifestFile = "manifest.json"
)

// CatalogPath is the flat path a catalog is published under.
func CatalogPath(recipeID string) string {
	return path.Join(catalogDir, recipeID+".json")
}

// SkipPath is the paginated path clients request for the first page.
func SkipPath(recipeID string) string {
	return path.Join(catalogDir, recipeID, skipFileName)
}

// Writer publishes catalogs and the manifest into an output tree.
type Writer struct {
	fs afero.Fs
}

// NewWriter writes below root on the given filesystem.
func NewWriter(fs afero.Fs, root string) *Writer {
	return &Writer{fs: afero.NewBasePathFs(fs, root)}
}

// WriteCatalog overwrites both copies of a recipe's catalog.
func (w *Writer) WriteCatalog(recipeID string, metas []models.MetaPreview) error {
	if metas == nil {
		metas = []models.MetaPreview{}
	}
	data, err := json.Marshal(models.CatalogFile{Metas: metas})
	if err != nil {
		return fmt.Errorf("encode catalog %s: %w", recipeID, err)
	}
	for _, p := range []string{CatalogPath(recipeID), SkipPath(recipeID)} {
		if err := w.writeFile(p, data); err != nil {
			return fmt.Errorf("write catalog %s: %w", p, err)
		}
	}
	return nil
}

// WriteManifest overwrites the persisted manifest.
func (w *Writer) WriteManifest(m models.Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := w.writeFile(ManifestFile, data); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// ReadManifest loads the persisted manifest.
func (w *Writer) ReadManifest() (models.Manifest, error) {
	var m models.Manifest
	data, err := afero.ReadFile(w.fs, ManifestFile)
	if err != nil {
		return m, err
	}
	err = json.Unmarshal(data, &m)
	return m, err
}

// ReadCatalog loads the flat copy of a recipe's catalog.
func (w *Writer) ReadCatalog(recipeID string) (models.CatalogFile, error) {
	var c models.CatalogFile
	data, err := afero.ReadFile(w.fs, CatalogPath(recipeID))
	if err != nil {
		return c, err
	}
	err = json.Unmarshal(data, &c)
	return c, err
}

func (w *Writer) writeFile(p string, data []byte) error {
	if err := w.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return err
	}
	tmp := p + ".tmp"
	if err := afero.WriteFile(w.fs, tmp, data, 0o644); err != nil {
		_ = w.fs.Remove(tmp)
		return err
	}
	return w.fs.Rename(tmp, p)
}
