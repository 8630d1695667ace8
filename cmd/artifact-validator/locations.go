package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Mindburn-Labs/artifact-validator/pkg/artifacts"
)

// artifactRef is a package named on the command line: s3://bucket/key,
// gs://bucket/key or a local file path.
type artifactRef struct {
	store    artifacts.StoreType
	location artifacts.Location
	root     string // fs only
}

func parseArtifactRef(s string) (artifactRef, error) {
	for scheme, store := range map[string]artifacts.StoreType{
		"s3://": artifacts.StoreTypeS3,
		"gs://": artifacts.StoreTypeGCS,
	} {
		if !strings.HasPrefix(s, scheme) {
			continue
		}
		bucket, key, ok := strings.Cut(strings.TrimPrefix(s, scheme), "/")
		if !ok || bucket == "" || key == "" {
			return artifactRef{}, fmt.Errorf("invalid object URI %q (want %sbucket/key)", s, scheme)
		}
		return artifactRef{store: store, location: artifacts.Location{Bucket: bucket, Key: key}}, nil
	}

	abs, err := filepath.Abs(s)
	if err != nil {
		return artifactRef{}, fmt.Errorf("resolve %q: %w", s, err)
	}
	// A local file is served by a filesystem store rooted at the volume root,
	// with the parent directory standing in for the bucket.
	root := filepath.VolumeName(abs) + string(os.PathSeparator)
	bucket := strings.TrimPrefix(filepath.Dir(abs), root)
	if bucket == "" {
		bucket = "."
	}
	return artifactRef{
		store:    artifacts.StoreTypeFS,
		root:     root,
		location: artifacts.Location{Bucket: bucket, Key: filepath.Base(abs)},
	}, nil
}

// fetcherConfig resolves the store for a pair of refs, which must agree.
func fetcherConfig(base artifacts.FetcherConfig, refs ...artifactRef) (artifacts.FetcherConfig, error) {
	cfg := base
	for i, ref := range refs {
		if i > 0 && (ref.store != refs[0].store || ref.root != refs[0].root) {
			return cfg, fmt.Errorf("candidate and reference must live in the same kind of store")
		}
	}
	cfg.Type = refs[0].store
	if cfg.Type == artifacts.StoreTypeFS {
		cfg.Root = refs[0].root
	}
	return cfg, nil
}
