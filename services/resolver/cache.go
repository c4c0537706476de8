package resolver

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/afero"
)

// IDCache persists TMDB->IMDb mappings between runs. Mappings rarely change,
// so entries live for days. Only successful lookups are stored.
type IDCache struct {
	fs  afero.Fs
	dir string
	ttl time.Duration
	now func() time.Time
}

type idCacheEntry struct {
	TMDBID int64  `json:"tmdbId"`
	IMDBID string `json:"imdbId"`
}

func NewIDCache(fs afero.Fs, dir string, ttlHours int) *IDCache {
	if ttlHours <= 0 {
		ttlHours = 168
	}
	return &IDCache{fs: fs, dir: dir, ttl: time.Duration(ttlHours) * time.Hour, now: time.Now}
}

// jitteredTTL staggers expiry by up to 6 hours, derived from the key so the
// same key always expires at the same age.
func (c *IDCache) jitteredTTL(key string) time.Duration {
	h := sha256.Sum256([]byte(key))
	n := binary.BigEndian.Uint64(h[:8])
	return c.ttl + time.Duration(n%uint64(6*time.Hour))
}

func (c *IDCache) path(key string) string {
	return filepath.Join(c.dir, key+".json")
}

func cacheKey(tmdbID int64) string {
	return "movie-" + strconv.FormatInt(tmdbID, 10)
}

// Get returns the cached IMDb id. Expired or unreadable entries are misses.
func (c *IDCache) Get(tmdbID int64) (string, bool) {
	key := cacheKey(tmdbID)
	path := c.path(key)
	fi, err := c.fs.Stat(path)
	if err != nil {
		return "", false
	}
	if c.now().Sub(fi.ModTime()) > c.jitteredTTL(key) {
		_ = c.fs.Remove(path)
		return "", false
	}
	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		return "", false
	}
	var entry idCacheEntry
	if err := json.Unmarshal(data, &entry); err != nil || entry.IMDBID == "" {
		return "", false
	}
	return entry.IMDBID, true
}

func (c *IDCache) Set(tmdbID int64, imdbID string) error {
	if imdbID == "" {
		return errors.New("empty imdb id")
	}
	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return err
	}
	data, err := json.Marshal(idCacheEntry{TMDBID: tmdbID, IMDBID: imdbID})
	if err != nil {
		return err
	}
	key := cacheKey(tmdbID)
	// Unique temp names: the same movie can be resolved twice in one chunk.
	tmp, err := afero.TempFile(c.fs, c.dir, key+"-*.tmp")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		_ = c.fs.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = c.fs.Remove(tmp.Name())
		return err
	}
	return c.fs.Rename(tmp.Name(), c.path(key))
}

// Clear removes every cached mapping.
func (c *IDCache) Clear() error {
	entries, err := afero.ReadDir(c.fs, c.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		_ = c.fs.Remove(filepath.Join(c.dir, entry.Name()))
	}
	return nil
}
