package driver

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/76creates/ILGPU/internal/irenc"
)

// Schema version of cached artifacts. Increment when the payload or the key
// derivation changes.
const cacheSchemaVersion uint16 = 1

// CacheKey identifies one (method, target) artifact.
type CacheKey [sha256.Size]byte

// ArtifactCache stores generated artifacts on disk, keyed by a digest of the
// encoded method and the target name. Safe for concurrent use. A nil cache
// is valid and caches nothing.
type ArtifactCache struct {
	mu  sync.RWMutex
	dir string
}

type cachePayload struct {
	Schema uint16 `msgpack:"schema"`
	Data   []byte `msgpack:"data"`
}

// OpenArtifactCache initializes the cache at the standard location:
// XDG_CACHE_HOME/<app>, falling back to ~/.cache/<app>.
func OpenArtifactCache(app string) (*ArtifactCache, error) {
	base := os.Getenv("XDG_CACHE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		base = filepath.Join(home, ".cache")
	}
	return OpenArtifactCacheAt(filepath.Join(base, app))
}

// OpenArtifactCacheAt initializes the cache in an explicit directory.
func OpenArtifactCacheAt(dir string) (*ArtifactCache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &ArtifactCache{dir: dir}, nil
}

// Key derives the cache key of one method for one target. The digest covers
// the cache schema, the target name and the method's full wire encoding, so
// any change to either invalidates the entry.
func (c *ArtifactCache) Key(targetName string, md *irenc.MethodDesc) (CacheKey, error) {
	h := sha256.New()
	var schema [2]byte
	binary.LittleEndian.PutUint16(schema[:], cacheSchemaVersion)
	h.Write(schema[:])
	h.Write([]byte(targetName))
	h.Write([]byte{0})
	encoded, err := msgpack.Marshal(md)
	if err != nil {
		return CacheKey{}, err
	}
	h.Write(encoded)
	var key CacheKey
	copy(key[:], h.Sum(nil))
	return key, nil
}

func (c *ArtifactCache) pathFor(key CacheKey) string {
	return filepath.Join(c.dir, "artifacts", hex.EncodeToString(key[:])+".mp")
}

// Get returns the cached artifact data, or ok=false on a miss.
func (c *ArtifactCache) Get(key CacheKey) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var payload cachePayload
	if err := msgpack.NewDecoder(f).Decode(&payload); err != nil {
		return nil, false, err
	}
	if payload.Schema != cacheSchemaVersion {
		// Stale format; treat as a miss and let Put overwrite it.
		return nil, false, nil
	}
	return payload.Data, true, nil
}

// Put stores artifact data. The write goes through a temp file and an atomic
// rename, so readers never observe a partial entry.
func (c *ArtifactCache) Put(key CacheKey, data []byte) error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	p := c.pathFor(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if err := msgpack.NewEncoder(f).Encode(&cachePayload{Schema: cacheSchemaVersion, Data: data}); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, p)
}

// Drop removes every cached artifact.
func (c *ArtifactCache) Drop() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return os.RemoveAll(filepath.Join(c.dir, "artifacts"))
}
