package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/text/language"

	"staticcurator/models"
)

// ErrMissingAPIKey is returned by Validate when the TMDB credential is absent.
var ErrMissingAPIKey = errors.New("TMDB_API_KEY is not set")

const (
	DefaultTMDBBaseURL        = "https://api.themoviedb.org/3"
	DefaultImageBaseURL       = "https://image.tmdb.org/t/p/w500"
	DefaultLanguage           = "en-US"
	DefaultOutputDir          = "./public"
	DefaultChunkSize          = 20
	DefaultChunkDelay         = 5 * time.Second
	DefaultIDCacheTTLHours    = 168
	DefaultHTTPAddr           = ":7000"
	DefaultRateLimitPerMinute = 120
)

// Settings is the complete runtime configuration of the curator.
type Settings struct {
	TMDB     TMDBSettings
	Build    BuildSettings
	Server   ServerSettings
	Log      LogSettings
	Manifest models.ManifestIdentity
}

type TMDBSettings struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string
}

type BuildSettings struct {
	OutputDir       string
	RecipesFile     string
	ChunkSize       int
	ChunkDelay      time.Duration
	IDCacheDir      string
	IDCacheTTLHours int
	IDCacheReset    bool
}

type ServerSettings struct {
	Addr               string
	ManifestPrefix     string
	RateLimitPerMinute int
	// TrustedProxies may set X-Forwarded-For for rate limiting.
	TrustedProxies []string
	// RebuildInterval makes serve re-run the build periodically; 0 disables it.
	RebuildInterval time.Duration
}

// LogSettings configures the optional rotating log file.
type LogSettings struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads settings from the environment. A .env file in the working
// directory is loaded first when present; real environment variables win.
func Load() (Settings, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds settings from an arbitrary key lookup so tests do not
// need to mutate the process environment.
func FromLookup(lookup func(string) (string, bool)) (Settings, error) {
	r := reader{lookup: lookup}

	s := Settings{
		TMDB: TMDBSettings{
			APIKey:       r.str("TMDB_API_KEY", ""),
			BaseURL:      strings.TrimRight(r.str("TMDB_BASE_URL", DefaultTMDBBaseURL), "/"),
			ImageBaseURL: r.str("TMDB_IMAGE_BASE_URL", DefaultImageBaseURL),
			Language:     NormalizeLanguage(r.str("TMDB_LANGUAGE", DefaultLanguage)),
		},
		Build: BuildSettings{
			OutputDir:       r.str("CURATOR_OUTPUT_DIR", DefaultOutputDir),
			RecipesFile:     r.str("CURATOR_RECIPES", ""),
			ChunkSize:       r.integer("CURATOR_CHUNK_SIZE", DefaultChunkSize),
			ChunkDelay:      r.duration("CURATOR_CHUNK_DELAY", DefaultChunkDelay),
			IDCacheDir:      r.str("CURATOR_ID_CACHE_DIR", ""),
			IDCacheTTLHours: r.integer("CURATOR_ID_CACHE_TTL_HOURS", DefaultIDCacheTTLHours),
			IDCacheReset:    r.boolean("CURATOR_ID_CACHE_RESET", false),
		},
		Server: ServerSettings{
			Addr:               r.str("CURATOR_HTTP_ADDR", DefaultHTTPAddr),
			ManifestPrefix:     strings.TrimRight(r.str("CURATOR_MANIFEST_PREFIX", ""), "/"),
			RateLimitPerMinute: r.integer("CURATOR_RATE_LIMIT_PER_MINUTE", DefaultRateLimitPerMinute),
			TrustedProxies:     r.list("CURATOR_TRUSTED_PROXIES"),
			RebuildInterval:    r.duration("CURATOR_REBUILD_INTERVAL", 0),
		},
		Log: LogSettings{
			File:       r.str("CURATOR_LOG_FILE", ""),
			MaxSizeMB:  r.integer("CURATOR_LOG_MAX_SIZE_MB", 10),
			MaxBackups: r.integer("CURATOR_LOG_MAX_BACKUPS", 3),
			MaxAgeDays: r.integer("CURATOR_LOG_MAX_AGE_DAYS", 14),
		},
		Manifest: models.ManifestIdentity{
			ID:          r.str("CURATOR_MANIFEST_ID", "org.family.staticcurator"),
			Version:     r.str("CURATOR_MANIFEST_VERSION", "1.0.0"),
			Name:        r.str("CURATOR_MANIFEST_NAME", "Static Curator"),
			Description: r.str("CURATOR_MANIFEST_DESCRIPTION", "Personalized curated movie rows."),
		},
	}

	if len(r.errs) > 0 {
		return Settings{}, errors.Join(r.errs...)
	}
	if s.Build.ChunkSize < 1 {
		return Settings{}, fmt.Errorf("CURATOR_CHUNK_SIZE must be at least 1, got %d", s.Build.ChunkSize)
	}
	if s.Build.ChunkDelay < 0 {
		return Settings{}, fmt.Errorf("CURATOR_CHUNK_DELAY must not be negative, got %s", s.Build.ChunkDelay)
	}
	if s.Server.RebuildInterval < 0 {
		return Settings{}, fmt.Errorf("CURATOR_REBUILD_INTERVAL must not be negative, got %s", s.Server.RebuildInterval)
	}
	return s, nil
}

// Validate checks the settings required for a batch build.
func (s Settings) Validate() error {
	if strings.TrimSpace(s.TMDB.APIKey) == "" {
		return ErrMissingAPIKey
	}
	return nil
}

// NormalizeLanguage canonicalises a language tag into the region-qualified form
// TMDB expects ("en" -> "en-US", "pt_br" -> "pt-BR"). Unparseable input falls
// back to en-US.
func NormalizeLanguage(raw string) string {
	raw = strings.ReplaceAll(strings.TrimSpace(raw), "_", "-")
	if raw == "" {
		return DefaultLanguage
	}
	tag, err := language.Parse(raw)
	if err != nil {
		return DefaultLanguage
	}
	base, _ := tag.Base()
	region, conf := tag.Region()
	if conf == language.No {
		return DefaultLanguage
	}
	return base.String() + "-" + region.String()
}

type reader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (r *reader) str(key, def string) string {
	if v, ok := r.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (r *reader) integer(key string, def int) int {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid integer %q", key, v))
		return def
	}
	return n
}

func (r *reader) list(key string) []string {
	var out []string
	for _, part := range strings.Split(r.str(key, ""), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (r *reader) boolean(key string, def bool) bool {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.errs = append(r.errs, fmt.Errorf("%s: invalid boolean %q", key, v))
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v := r.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		// Bare numbers are read as milliseconds.
		if ms, convErr := strconv.Atoi(v); convErr == nil {
			return time.Duration(ms) * time.Millisecond
		}
		r.errs = append(r.errs, fmt.Errorf("%s: invalid duration %q", key, v))
		return def
	}
	return d
}
