package recipes

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mozillazg/go-unidecode"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"staticcurator/models"
)

var (
	ErrInvalidRecipe = errors.New("invalid recipe")
	ErrDuplicateID   = errors.New("duplicate recipe id")
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Catalog is the immutable, ordered set of recipe definitions.
type Catalog struct {
	order []string
	byID  map[string]models.Recipe
}

// Default returns the built-in recipes.
func Default() *Catalog {
	c, _ := New([]models.Recipe{
		{
			ID:     "80s_action",
			Name:   "80s Action Hits",
			Filter: "&with_genres=28&primary_release_date.gte=1980-01-01&primary_release_date.lte=1989-12-31&vote_average.gte=6.5",
		},
		{
			ID:     "hidden_gems",
			Name:   "Highly Rated Hidden Gems",
			Filter: "&vote_count.gte=100&vote_count.lte=1000&vote_average.gte=7.5",
		},
	})
	return c
}

// New builds a catalog from recipes in declaration order. Recipes without an
// id get one derived from their name. When two recipes share an id the later
// definition replaces the earlier one but keeps its position.
func New(list []models.Recipe) (*Catalog, error) {
	c := &Catalog{byID: make(map[string]models.Recipe, len(list))}
	for i, r := range list {
		r.Name = strings.TrimSpace(r.Name)
		r.Filter = strings.TrimSpace(r.Filter)
		r.ID = strings.TrimSpace(r.ID)
		if r.ID == "" {
			r.ID = Slug(r.Name)
		}
		if r.ID == "" || r.Name == "" || r.Filter == "" {
			return nil, fmt.Errorf("%w: entry %d needs a name and a filter", ErrInvalidRecipe, i)
		}
		if _, exists := c.byID[r.ID]; exists {
			log.Printf("[recipes] %v %q at entry %d, later definition wins", ErrDuplicateID, r.ID, i)
		} else {
			c.order = append(c.order, r.ID)
		}
		c.byID[r.ID] = r
	}
	return c, nil
}

// Load reads recipes from a JSON or YAML file. The format is chosen by
// extension; anything that is not .yaml/.yml is parsed as JSON.
func Load(fs afero.Fs, path string) (*Catalog, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read recipes %s: %w", path, err)
	}
	var list []models.Recipe
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &list)
	default:
		err = json.Unmarshal(data, &list)
	}
	if err != nil {
		return nil, fmt.Errorf("parse recipes %s: %w", path, err)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %s defines no recipes", ErrInvalidRecipe, path)
	}
	return New(list)
}

// All returns the recipes in declaration order.
func (c *Catalog) All() []models.Recipe {
	out := make([]models.Recipe, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// Lookup returns the recipe with the given id.
func (c *Catalog) Lookup(id string) (models.Recipe, bool) {
	r, ok := c.byID[id]
	return r, ok
}

// IDs returns recipe ids in declaration order.
func (c *Catalog) IDs() []string {
	return append([]string(nil), c.order...)
}

func (c *Catalog) Len() int { return len(c.order) }

// Slug turns a display name into an id: "Noir Classics (40s)" -> "noir_classics_40s".
func Slug(name string) string {
	s := strings.ToLower(unidecode.Unidecode(name))
	s = nonSlugChars.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
