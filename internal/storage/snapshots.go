// Package storage adapts blob stores into the crawler's snapshot capability.
// Backends live in the local, memory, and gcs subpackages.
package storage

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/JakeFAU/career-crawler/internal/crawler"
)

// BlobStore persists opaque objects and returns a URI for them.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Hasher digests content for object naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}

const snapshotContentType = "text/html; charset=utf-8"

var unsafeSegment = regexp.MustCompile(`[^a-z0-9]+`)

// Snapshots stores challenge pages under
// <prefix>/<company>/<unix>-<digest>.html.
type Snapshots struct {
	blobs  BlobStore
	hasher Hasher
	clock  crawler.Clock
	prefix string
}

// NewSnapshots wires a blob store into crawler.SnapshotStore.
func NewSnapshots(blobs BlobStore, hasher Hasher, clock crawler.Clock, prefix string) (*Snapshots, error) {
	if blobs == nil {
		return nil, fmt.Errorf("blob store is required")
	}
	if hasher == nil {
		return nil, fmt.Errorf("hasher is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	return &Snapshots{
		blobs:  blobs,
		hasher: hasher,
		clock:  clock,
		prefix: strings.Trim(prefix, "/"),
	}, nil
}

// SaveSnapshot implements crawler.SnapshotStore.
func (s *Snapshots) SaveSnapshot(ctx context.Context, company string, page crawler.RenderedPage) (string, error) {
	body := []byte(page.HTML)
	digest, err := s.hasher.Hash(body)
	if err != nil {
		return "", fmt.Errorf("hash snapshot: %w", err)
	}
	if len(digest) > 16 {
		digest = digest[:16]
	}
	path := ObjectPath(s.prefix, company, s.clock.Now(), digest)
	uri, err := s.blobs.PutObject(ctx, path, snapshotContentType, body)
	if err != nil {
		return "", fmt.Errorf("put snapshot: %w", err)
	}
	return uri, nil
}

// ObjectPath builds a stable, filesystem-safe object key.
func ObjectPath(prefix, company string, at time.Time, digest string) string {
	slug := strings.Trim(unsafeSegment.ReplaceAllString(strings.ToLower(company), "-"), "-")
	if slug == "" {
		slug = "unknown"
	}
	name := fmt.Sprintf("%d-%s.html", at.Unix(), digest)
	if prefix == "" {
		return slug + "/" + name
	}
	return prefix + "/" + slug + "/" + name
}
