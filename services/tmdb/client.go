package tmdb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"staticcurator/models"
)

var (
	ErrMissingAPIKey = errors.New("tmdb: api key is required")
	ErrNoExternalID  = errors.New("tmdb: no imdb id mapped")
)

var imdbIDPattern = regexp.MustCompile(`^tt\d+$`)

// Client is a minimal TMDB v3 client covering the two calls the curator
// needs: discover and external id lookup.
type Client struct {
	apiKey   string
	language string
	baseURL  string
	httpc    *http.Client
}

func NewClient(apiKey, language, baseURL string, httpc *http.Client) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, ErrMissingAPIKey
	}
	if httpc == nil {
		httpc = &http.Client{Timeout: 15 * time.Second}
	}
	if baseURL == "" {
		baseURL = "https://api.themoviedb.org/3"
	}
	if language == "" {
		language = "en-US"
	}
	return &Client{
		apiKey:   apiKey,
		language: language,
		baseURL:  strings.TrimRight(baseURL, "/"),
		httpc:    httpc,
	}, nil
}

type discoverResponse struct {
	Results []models.RawItem `json:"results"`
}

// Discover returns the first page of popularity-sorted movies matching the
// filter fragment. The fragment is appended to the query string verbatim.
func (c *Client) Discover(ctx context.Context, filter string) ([]models.RawItem, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	q.Set("language", c.language)
	q.Set("sort_by", "popularity.desc")
	q.Set("include_adult", "false")

	endpoint := c.baseURL + "/discover/movie?" + q.Encode()
	if filter = strings.TrimSpace(filter); filter != "" {
		if !strings.HasPrefix(filter, "&") {
			endpoint += "&"
		}
		endpoint += filter
	}

	var resp discoverResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("discover: %w", err)
	}
	if resp.Results == nil {
		return []models.RawItem{}, nil
	}
	return resp.Results, nil
}

type externalIDsResponse struct {
	IMDBID *string `json:"imdb_id"`
}

// ResolveExternalID returns the IMDb id TMDB maps to the given movie.
// ErrNoExternalID is returned when the mapping is absent or malformed.
func (c *Client) ResolveExternalID(ctx context.Context, tmdbID int64) (string, error) {
	q := url.Values{}
	q.Set("api_key", c.apiKey)
	endpoint := fmt.Sprintf("%s/movie/%d/external_ids?%s", c.baseURL, tmdbID, q.Encode())

	var resp externalIDsResponse
	if err := c.get(ctx, endpoint, &resp); err != nil {
		return "", fmt.Errorf("external ids %d: %w", tmdbID, err)
	}
	if resp.IMDBID == nil {
		return "", ErrNoExternalID
	}
	id := strings.TrimSpace(*resp.IMDBID)
	if !ValidIMDBID(id) {
		return "", ErrNoExternalID
	}
	return id, nil
}

// ValidIMDBID reports whether id looks like a canonical IMDb title id.
func ValidIMDBID(id string) bool {
	return imdbIDPattern.MatchString(id)
}

func (c *Client) get(ctx context.Context, endpoint string, dst any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			urlErr.URL = strings.ReplaceAll(urlErr.URL, c.apiKey, "REDACTED")
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return errors.New("invalid api key")
	case resp.StatusCode == http.StatusTooManyRequests:
		return errors.New("rate limited")
	case resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
