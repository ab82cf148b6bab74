package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/garyellow/college-predictor-go/internal/catalog"
	"github.com/garyellow/college-predictor-go/internal/config"
	"github.com/garyellow/college-predictor-go/internal/objstore"
)

func newImportCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <path|s3://key>",
		Short: "Validate and load a catalog dump",
		Long: `Validate every college document in a dump and upsert them in one
transaction. Dumps are JSON arrays or newline-delimited documents; a ".zst"
suffix selects zstd decompression. An "s3://" source is read from the
configured catalog bucket.

Examples:
  catalogctl import colleges.json
  catalogctl import s3://catalog/colleges.json.zst`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.checkOutput(); err != nil {
				return err
			}
			return runImport(cmd, opts, args[0])
		},
	}
}

func runImport(cmd *cobra.Command, opts *globalOptions, source string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), config.CatalogDownload+config.CatalogImport)
	defer cancel()

	var downloader catalog.Downloader
	if strings.HasPrefix(source, catalog.ObjectPrefix) && opts.cfg.Catalog.Enabled() {
		client, err := objstore.New(ctx, objstore.Config{
			Endpoint:    opts.cfg.Catalog.Endpoint,
			AccessKeyID: opts.cfg.Catalog.AccessKeyID,
			SecretKey:   opts.cfg.Catalog.SecretKey,
			Bucket:      opts.cfg.Catalog.Bucket,
		})
		if err != nil {
			return fmt.Errorf("catalog storage: %w", err)
		}
		downloader = client
	}

	db, err := opts.openDB(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	importer, err := catalog.NewImporter(db, downloader, nil)
	if err != nil {
		return err
	}

	res, err := importer.Import(ctx, source)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if opts.output == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"source":      res.Source,
			"etag":        res.ETag,
			"imported":    res.Imported,
			"total":       res.Total,
			"duration_ms": res.Duration.Milliseconds(),
		})
	}

	_, err = fmt.Fprintf(out, "Imported %d colleges from %s (catalog now holds %d) in %s\n",
		res.Imported, res.Source, res.Total, res.Duration.Round(time.Millisecond))
	return err
}
