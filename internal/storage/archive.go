// Package storage archives raw product pages so extractor drift can be
// diagnosed after the fact. Concrete blob stores live in the gcs, local and
// memory subpackages.
package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
)

// BlobStore writes one object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Hasher derives the object name from a page URL.
type Hasher interface {
	Hash(s string) string
}

// Archive stores product HTML under {prefix}/{site}/{hash(url)}.html.
type Archive struct {
	blobs  BlobStore
	hasher Hasher
	prefix string
}

// NewArchive wires an Archive. An empty prefix defaults to "archive".
func NewArchive(blobs BlobStore, hasher Hasher, prefix string) *Archive {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "archive"
	}
	return &Archive{blobs: blobs, hasher: hasher, prefix: prefix}
}

// Key returns the object path used for url.
func (a *Archive) Key(site, url string) string {
	return path.Join(a.prefix, site, a.hasher.Hash(url)+".html")
}

// Save writes html for url and returns the blob URI.
func (a *Archive) Save(ctx context.Context, site, url, html string) (string, error) {
	uri, err := a.blobs.PutObject(ctx, a.Key(site, url), "text/html; charset=utf-8", strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("archive %s: %w", url, err)
	}
	return uri, nil
}
