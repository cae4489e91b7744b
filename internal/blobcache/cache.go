package blobcache

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
)

// Key derives the deterministic cache key for a document identifier.
// The same URL always yields the same key, so artifacts generated in
// one session are found by every later one.
func Key(docURL string) string {
	sum := md5.Sum([]byte(docURL))
	return hex.EncodeToString(sum[:])
}

// Cache maps (document identifier, artifact namespace) pairs to stored
// artifacts. It is a write-through cache with no expiry of its own;
// cleanup is an operational concern outside the request path.
//
// Concurrent Store calls for the same key are not deduplicated:
// regenerating deterministic content is idempotent in effect, and the
// last writer wins.
type Cache struct {
	store ObjectStore
}

// NewCache wraps an object store with content-addressed keying.
func NewCache(store ObjectStore) *Cache {
	return &Cache{store: store}
}

// objectName builds the namespaced object name for a document.
func objectName(namespace, docURL, ext string) string {
	return fmt.Sprintf("%s/%s%s", namespace, Key(docURL), ext)
}

// Lookup checks for a cached artifact. A miss returns ok=false with a
// nil error; a non-nil error always means the store itself failed.
func (c *Cache) Lookup(ctx context.Context, namespace, docURL, ext string) (Object, bool, error) {
	obj, err := c.store.Head(ctx, objectName(namespace, docURL, ext))
	if err != nil {
		if IsNotFound(err) {
			lookupsTotal.WithLabelValues(namespace, "miss").Inc()
			return Object{}, false, nil
		}
		return Object{}, false, err
	}
	lookupsTotal.WithLabelValues(namespace, "hit").Inc()
	return obj, true, nil
}

// Store writes an artifact under the deterministic key and returns its
// public location.
func (c *Cache) Store(ctx context.Context, namespace, docURL, ext string, payload []byte, contentType string) (Object, error) {
	return c.store.Put(ctx, objectName(namespace, docURL, ext), payload, contentType)
}
