package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"staticcurator/models"
	"staticcurator/services/catalog"
	"staticcurator/services/manifest"
	"staticcurator/services/resolver"
)

// ErrNothingBuilt is returned by callers that treat an all-failed run as fatal.
var ErrNothingBuilt = errors.New("no recipe produced a catalog")

// Discoverer lists the movies matching a recipe filter.
type Discoverer interface {
	Discover(ctx context.Context, filter string) ([]models.RawItem, error)
}

// Publisher persists catalogs and the manifest.
type Publisher interface {
	WriteCatalog(recipeID string, metas []models.MetaPreview) error
	WriteManifest(m models.Manifest) error
}

type RecipeSource interface {
	All() []models.Recipe
}

// RecipeReport describes what happened to a single recipe during a run.
type RecipeReport struct {
	Recipe     models.Recipe
	Discovered int
	Resolved   int
	Err        error
	Duration   time.Duration
	// LookupFailures are the items dropped because their id lookup failed.
	LookupFailures []resolver.Result
}

func (r RecipeReport) Dropped() int { return r.Discovered - r.Resolved }

// Report summarises a build run.
type Report struct {
	RunID    string
	Recipes  []RecipeReport
	Manifest models.Manifest
}

// Built returns the number of recipes that produced a catalog.
func (r Report) Built() int {
	n := 0
	for _, rr := range r.Recipes {
		if rr.Err == nil {
			n++
		}
	}
	return n
}

// Service runs the catalog build: discover, resolve, assemble, publish.
type Service struct {
	recipes   RecipeSource
	discover  Discoverer
	resolver  *resolver.Resolver
	publisher Publisher
	identity  models.ManifestIdentity
	imageBase string
	metrics   *Metrics
	now       func() time.Time
}

type Config struct {
	Recipes   RecipeSource
	Discover  Discoverer
	Resolver  *resolver.Resolver
	Publisher Publisher
	Identity  models.ManifestIdentity
	ImageBase string
	Metrics   *Metrics
}

func NewService(cfg Config) *Service {
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics(nil)
	}
	return &Service{
		recipes:   cfg.Recipes,
		discover:  cfg.Discover,
		resolver:  cfg.Resolver,
		publisher: cfg.Publisher,
		identity:  cfg.Identity,
		imageBase: cfg.ImageBase,
		metrics:   cfg.Metrics,
		now:       time.Now,
	}
}

// Run builds every recipe and then rewrites the manifest with the recipes that
// succeeded, in declaration order. A failing recipe is logged and left out of
// the manifest; it never stops the others. An error is returned only when the
// manifest cannot be written or ctx is cancelled.
func (s *Service) Run(ctx context.Context) (Report, error) {
	report := Report{RunID: uuid.NewString()}
	start := s.now()
	policy := s.resolver.Policy()
	log.Printf("[pipeline] run=%s starting build of %d recipes (lookups in chunks of %d, %s apart)",
		report.RunID, len(s.recipes.All()), policy.ChunkSize, policy.Delay)

	var built []models.Recipe
	for _, recipe := range s.recipes.All() {
		rr := s.buildRecipe(ctx, recipe)
		report.Recipes = append(report.Recipes, rr)

		if err := ctx.Err(); err != nil {
			log.Printf("[pipeline] run=%s cancelled during %q, manifest left untouched", report.RunID, recipe.ID)
			return report, err
		}
		if rr.Err != nil {
			s.metrics.Recipes.WithLabelValues("failed").Inc()
			log.Printf("[pipeline] run=%s recipe %q failed: %v", report.RunID, recipe.ID, rr.Err)
			continue
		}
		s.metrics.Recipes.WithLabelValues("built").Inc()
		built = append(built, recipe)
		log.Printf("[pipeline] run=%s recipe %q: %d discovered, %d resolved, %d dropped (%d failed lookups) in %s",
			report.RunID, recipe.ID, rr.Discovered, rr.Resolved, rr.Dropped(), len(rr.LookupFailures), rr.Duration.Round(time.Millisecond))
	}

	report.Manifest = manifest.ForRecipes(s.identity, built)
	if err := s.publisher.WriteManifest(report.Manifest); err != nil {
		return report, fmt.Errorf("publish manifest: %w", err)
	}
	s.metrics.LastBuild.Set(float64(s.now().Unix()))

	log.Printf("[pipeline] run=%s complete: %d/%d recipes published in %s",
		report.RunID, len(built), len(report.Recipes), s.now().Sub(start).Round(time.Millisecond))
	return report, nil
}

func (s *Service) buildRecipe(ctx context.Context, recipe models.Recipe) (rr RecipeReport) {
	rr.Recipe = recipe
	start := s.now()
	defer func() {
		rr.Duration = s.now().Sub(start)
		if p := recover(); p != nil {
			rr.Err = fmt.Errorf("recipe %s panicked: %v", recipe.ID, p)
		}
	}()

	raw, err := s.discover.Discover(ctx, recipe.Filter)
	if err != nil {
		rr.Err = err
		return rr
	}
	rr.Discovered = len(raw)

	resolution, err := s.resolver.Resolve(ctx, raw)
	s.metrics.Pauses.Add(float64(resolution.Pauses))
	if err != nil {
		rr.Err = fmt.Errorf("resolve ids: %w", err)
		return rr
	}

	rr.LookupFailures = resolution.Failed()
	metas := catalog.Assemble(raw, resolution.IDs, s.imageBase)
	rr.Resolved = len(metas)
	s.metrics.Items.WithLabelValues("resolved").Add(float64(rr.Resolved))
	s.metrics.Items.WithLabelValues("dropped").Add(float64(rr.Dropped()))

	if err := s.publisher.WriteCatalog(recipe.ID, metas); err != nil {
		rr.Err = err
		return rr
	}
	return rr
}
