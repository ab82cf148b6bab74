// Package catalog loads college catalog dumps into storage.
//
// A dump is a JSON array or a newline-delimited stream of college documents,
// optionally zstd-compressed (".zst"), read from a local file or from object
// storage ("s3://key"). Every document is validated before anything is
// written; a dump with any invalid document is rejected as a whole.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"golang.org/x/sync/errgroup"

	domerrors "github.com/garyellow/college-predictor-go/internal/errors"
	"github.com/garyellow/college-predictor-go/internal/metrics"
	"github.com/garyellow/college-predictor-go/internal/storage"
)

// ObjectPrefix marks a source as an object storage key.
const ObjectPrefix = "s3://"

// maxReportedProblems caps the problems listed in an import error.
const maxReportedProblems = 10

// Writer stores validated colleges.
type Writer interface {
	storage.CatalogWriter
	CountColleges(ctx context.Context) (int, error)
}

// Downloader fetches objects from object storage.
type Downloader interface {
	Download(ctx context.Context, key string) (io.ReadCloser, string, error)
}

// Result summarizes a completed import.
type Result struct {
	Source   string
	ETag     string // set for object storage sources
	Imported int
	Total    int // catalog size after the import
	Duration time.Duration
}

// Importer validates and writes catalog dumps. It is safe for concurrent use;
// concurrent imports are serialized.
type Importer struct {
	writer     Writer
	downloader Downloader
	metrics    *metrics.Metrics
	schema     *gojsonschema.Schema
	workers    int
	mu         sync.Mutex
}

// NewImporter creates an Importer. downloader and m may be nil; without a
// downloader object storage sources are rejected.
func NewImporter(writer Writer, downloader Downloader, m *metrics.Metrics) (*Importer, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(collegeSchema))
	if err != nil {
		return nil, fmt.Errorf("compile college schema: %w", err)
	}
	return &Importer{
		writer:     writer,
		downloader: downloader,
		metrics:    m,
		schema:     schema,
		workers:    runtime.GOMAXPROCS(0),
	}, nil
}

// Import reads source, validates every document and upserts the colleges in
// one transaction. Validation failures wrap ErrInvalidInput.
func (im *Importer) Import(ctx context.Context, source string) (Result, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	start := time.Now()
	res, err := im.importSource(ctx, source)
	res.Duration = time.Since(start)

	outcome := importOutcome(err)
	if im.metrics != nil {
		im.metrics.RecordCatalogImport(outcome)
		if err == nil {
			im.metrics.SetCatalogSize(res.Total)
		}
	}

	if err != nil {
		slog.ErrorContext(ctx, "catalog import failed",
			"source", source,
			"outcome", outcome,
			"error", err)
		return res, err
	}
	slog.InfoContext(ctx, "catalog imported",
		"source", source,
		"etag", res.ETag,
		"imported", res.Imported,
		"total", res.Total,
		"duration_ms", res.Duration.Milliseconds())
	return res, nil
}

func importOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case domerrors.IsInvalidInput(err):
		return "invalid"
	default:
		return "error"
	}
}

func (im *Importer) importSource(ctx context.Context, source string) (Result, error) {
	res := Result{Source: source}

	body, etag, err := im.open(ctx, source)
	if err != nil {
		return res, err
	}
	defer func() { _ = body.Close() }()
	res.ETag = etag

	reader, err := decompress(body, source)
	if err != nil {
		return res, err
	}
	defer func() { _ = reader.Close() }()

	docs, err := splitDocuments(reader)
	if err != nil {
		return res, fmt.Errorf("%w: %w", domerrors.ErrInvalidInput, err)
	}

	colleges, err := im.Parse(ctx, docs)
	if err != nil {
		return res, err
	}

	if err := im.writer.UpsertColleges(ctx, colleges); err != nil {
		return res, fmt.Errorf("write catalog: %w", err)
	}
	res.Imported = len(colleges)

	total, err := im.writer.CountColleges(ctx)
	if err != nil {
		return res, fmt.Errorf("count catalog: %w", err)
	}
	res.Total = total
	return res, nil
}

func (im *Importer) open(ctx context.Context, source string) (io.ReadCloser, string, error) {
	if key, ok := strings.CutPrefix(source, ObjectPrefix); ok {
		if im.downloader == nil {
			return nil, "", fmt.Errorf("%w: object storage is not configured", domerrors.ErrInvalidInput)
		}
		return im.downloader.Download(ctx, key)
	}
	f, err := os.Open(source)
	if err != nil {
		return nil, "", fmt.Errorf("open catalog file: %w", err)
	}
	return f, "", nil
}

// Parse validates docs concurrently and decodes them into colleges, keeping
// document order. Duplicate codes within one dump are invalid.
func (im *Importer) Parse(ctx context.Context, docs []json.RawMessage) ([]storage.College, error) {
	colleges := make([]storage.College, len(docs))
	problems := make([]string, len(docs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.workers)
	for i, doc := range docs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, problem := im.parseOne(doc)
			colleges[i] = c
			if problem != "" {
				problems[i] = fmt.Sprintf("document %d: %s", i, problem)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[string]int, len(colleges))
	for i, c := range colleges {
		if problems[i] != "" {
			continue
		}
		if first, dup := seen[c.Code]; dup {
			problems[i] = fmt.Sprintf("document %d: code %q duplicates document %d", i, c.Code, first)
			continue
		}
		seen[c.Code] = i
	}

	var reported []string
	failed := 0
	for _, p := range problems {
		if p == "" {
			continue
		}
		failed++
		if len(reported) < maxReportedProblems {
			reported = append(reported, p)
		}
	}
	if failed > 0 {
		return nil, fmt.Errorf("%w: %d of %d documents invalid: %s",
			domerrors.ErrInvalidInput, failed, len(docs), strings.Join(reported, "; "))
	}
	return colleges, nil
}

func (im *Importer) parseOne(doc json.RawMessage) (storage.College, string) {
	result, err := im.schema.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return storage.College{}, err.Error()
	}
	if !result.Valid() {
		errs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			errs = append(errs, e.String())
		}
		return storage.College{}, strings.Join(errs, ", ")
	}

	var c storage.College
	if err := json.Unmarshal(doc, &c); err != nil {
		return storage.College{}, err.Error()
	}
	c.Code = strings.TrimSpace(c.Code)
	if c.Branches == nil {
		c.Branches = []storage.Branch{}
	}
	return c, ""
}
