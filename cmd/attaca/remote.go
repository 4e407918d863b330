package main

import (
	"context"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/attaca-vcs/attaca/internal/atcerr"
	"github.com/attaca-vcs/attaca/modules/backend"
	"github.com/attaca-vcs/attaca/modules/backend/fsblob"
	"github.com/attaca-vcs/attaca/modules/backend/remote"
)

// openRemote resolves a remote URL to a Registry. file:// (or a bare path)
// opens an fsblob-backed directory, the way a shared NFS mount or a bare
// second workspace would be addressed; s3://bucket/prefix opens an
// aws-sdk-go-v2 S3 client via remote.NewFromEndpoint, reading region and
// credentials from the URL's query string and falling back to the default
// AWS credential chain when they're absent. Any other scheme needs a
// registry assembled out-of-band (a MySQL DSN for the id map, say) and is
// rejected here with atcerr.UnsupportedScheme.
func openRemote(ctx context.Context, rawURL string) (*backend.Registry, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, atcerr.NewIo("parse remote URL "+rawURL, err)
	}
	switch u.Scheme {
	case "", "file":
		dir := u.Path
		if dir == "" {
			dir = rawURL
		}
		store, err := fsblob.New(filepath.Clean(dir))
		if err != nil {
			return nil, err
		}
		return backend.NewRegistry(store)
	case "s3":
		bucket := u.Host
		prefix := strings.TrimPrefix(u.Path, "/")
		q := u.Query()
		ep := remote.Endpoint{
			Region:    q.Get("region"),
			URL:       q.Get("endpoint"),
			AccessKey: q.Get("access_key"),
			SecretKey: q.Get("secret_key"),
		}
		store, err := remote.NewFromEndpoint(ctx, ep, bucket, prefix)
		if err != nil {
			return nil, err
		}
		return backend.NewRegistry(store, backend.WithEnableLRU(true))
	default:
		return nil, &atcerr.UnsupportedScheme{URL: rawURL}
	}
}
