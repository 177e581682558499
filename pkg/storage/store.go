// Package storage gives the ETL job a flat key/value view of an object store
// root. Keys are slash-separated and relative to the root the store was
// opened on.
package storage

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/wdm0006/songlake/pkg/apperrors"
)

// Store is the minimal object-store surface the job needs.
type Store interface {
	// List returns every key that starts with prefix, in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, data []byte) error
	// DeletePrefix removes every key that starts with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
	String() string
}

// Location is a parsed storage URI.
type Location struct {
	Scheme string // "s3" or "file"
	Bucket string
	Prefix string // key prefix for s3, directory for file
}

// ParseURI understands s3://, s3a://, s3n://, file:// and bare paths.
func ParseURI(uri string) (Location, error) {
	uri = strings.TrimSpace(uri)
	if uri == "" {
		return Location{}, fmt.Errorf("%w: empty uri", apperrors.ErrUnsupportedURI)
	}
	i := strings.Index(uri, "://")
	if i < 0 {
		return Location{Scheme: "file", Prefix: uri}, nil
	}
	u, err := url.Parse(uri)
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", apperrors.ErrUnsupportedURI, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "s3", "s3a", "s3n":
		if u.Host == "" {
			return Location{}, fmt.Errorf("%w: %s has no bucket", apperrors.ErrUnsupportedURI, uri)
		}
		return Location{Scheme: "s3", Bucket: u.Host, Prefix: strings.TrimPrefix(u.Path, "/")}, nil
	case "file":
		return Location{Scheme: "file", Prefix: u.Path}, nil
	}
	return Location{}, fmt.Errorf("%w: scheme %q", apperrors.ErrUnsupportedURI, u.Scheme)
}

// Open returns the store rooted at uri.
func Open(uri string, opt S3Options, logger *zap.Logger) (Store, error) {
	loc, err := ParseURI(uri)
	if err != nil {
		return nil, err
	}
	if loc.Scheme == "s3" {
		return NewS3Store(loc.Bucket, loc.Prefix, opt, logger)
	}
	return NewLocalStore(loc.Prefix, logger)
}
