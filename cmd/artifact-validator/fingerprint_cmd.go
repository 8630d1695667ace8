package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/Mindburn-Labs/artifact-validator/pkg/artifacts"
	"github.com/Mindburn-Labs/artifact-validator/pkg/config"
	"github.com/Mindburn-Labs/artifact-validator/pkg/fingerprint"
	"github.com/Mindburn-Labs/artifact-validator/pkg/scratch"
	"github.com/Mindburn-Labs/artifact-validator/pkg/unpack"
)

// runFingerprintCmd implements `artifact-validator fingerprint`.
//
// Prints the digest of every file under --dir, or under the unpacked tree of
// --package, as a JSON object keyed by relative path.
func runFingerprintCmd(args []string, stdout, stderr io.Writer) int {
	cmd := flag.NewFlagSet("fingerprint", flag.ContinueOnError)
	cmd.SetOutput(stderr)

	var (
		dir       string
		pkg       string
		algorithm string
	)

	cmd.StringVar(&dir, "dir", "", "Directory to fingerprint")
	cmd.StringVar(&pkg, "package", "", "Package to unpack and fingerprint")
	cmd.StringVar(&algorithm, "algorithm", string(fingerprint.SHA256), "Hash algorithm: sha256 or blake3")

	if err := cmd.Parse(args); err != nil {
		return 2
	}
	if (dir == "") == (pkg == "") {
		_, _ = fmt.Fprintln(stderr, "Error: exactly one of --dir or --package is required")
		cmd.Usage()
		return 2
	}

	alg, err := fingerprint.ParseAlgorithm(algorithm)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	cfg, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	setupLogging(cfg, stderr)

	ctx := context.Background()
	fp := fingerprint.New(alg)

	var hashes fingerprint.Map
	if dir != "" {
		hashes, err = fp.Compute(ctx, dir)
	} else {
		hashes, err = fingerprintPackage(ctx, cfg, fp, pkg)
	}
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}

	data, _ := json.MarshalIndent(hashes, "", "  ")
	_, _ = fmt.Fprintln(stdout, string(data))
	return 0
}

func fingerprintPackage(ctx context.Context, cfg *config.Config, fp *fingerprint.Fingerprinter, path string) (fingerprint.Map, error) {
	ref, err := parseArtifactRef(path)
	if err != nil {
		return nil, err
	}
	storeCfg, err := fetcherConfig(cfg.FetcherConfig(), ref)
	if err != nil {
		return nil, err
	}
	fetcher, err := artifacts.NewFetcher(ctx, storeCfg)
	if err != nil {
		return nil, err
	}
	defer closeFetcher(ctx, fetcher)

	area := scratch.NewArea(cfg.ScratchRoot, "artifact-validator")
	defer func() { _ = area.Release(ctx) }()

	work, err := area.NewDir("fingerprint")
	if err != nil {
		return nil, err
	}
	download := filepath.Join(work, uuid.NewString()+unpack.PackageExt)
	if err := fetcher.Fetch(ctx, ref.location, download); err != nil {
		return nil, err
	}
	if _, err := unpack.New().Unpack(ctx, work, download); err != nil {
		return nil, err
	}
	return fp.Compute(ctx, work)
}
