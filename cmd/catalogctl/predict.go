package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/garyellow/college-predictor-go/internal/matching"
	"github.com/garyellow/college-predictor-go/internal/modules/predict"
)

type predictOptions struct {
	percentile  float64
	rangeMin    float64
	rangeMax    float64
	branch      string
	category    string
	city        string
	collegeType string
	page        int
	limit       int
	mappings    string
}

func newPredictCmd(opts *globalOptions) *cobra.Command {
	p := &predictOptions{}

	cmd := &cobra.Command{
		Use:   "predict",
		Short: "Rank eligible colleges for a student profile",
		Long: `Evaluate a prediction against the local catalog and print the requested page.

Give either --percentile or both --min and --max.

Examples:
  catalogctl predict --percentile 95 --branch "Computer Engineering" --category OPEN
  catalogctl predict --min 80 --max 90 --category SC --city pune -o json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.checkOutput(); err != nil {
				return err
			}
			return runPredict(cmd, opts, p)
		},
	}

	f := cmd.Flags()
	f.Float64Var(&p.percentile, "percentile", 0, "student percentile (percentile mode)")
	f.Float64Var(&p.rangeMin, "min", 0, "lowest representative cutoff (range mode)")
	f.Float64Var(&p.rangeMax, "max", 0, "highest representative cutoff (range mode)")
	f.StringVar(&p.branch, "branch", matching.AnyBranch, `preferred branch, or "Any"`)
	f.StringVar(&p.category, "category", "", "reservation category (OPEN, SC, ST, ...)")
	f.StringVar(&p.city, "city", "", "case-insensitive city substring")
	f.StringVar(&p.collegeType, "type", "", `college type, or "All Types"`)
	f.IntVar(&p.page, "page", 1, "page number")
	f.IntVar(&p.limit, "limit", 0, "page size (default: $CP_PREDICT_DEFAULT_LIMIT)")
	f.StringVar(&p.mappings, "mappings", "", "branch mapping YAML file (default: $CP_BRANCH_MAPPINGS_FILE or built-in)")
	cmd.MarkFlagsMutuallyExclusive("percentile", "min")
	cmd.MarkFlagsMutuallyExclusive("percentile", "max")
	return cmd
}

func runPredict(cmd *cobra.Command, opts *globalOptions, p *predictOptions) error {
	q := matching.Query{
		Branch:      p.branch,
		Category:    p.category,
		City:        p.city,
		CollegeType: p.collegeType,
	}
	flags := cmd.Flags()
	if flags.Changed("percentile") {
		q.Percentile = &p.percentile
	}
	if flags.Changed("min") {
		q.CutoffRangeMin = &p.rangeMin
	}
	if flags.Changed("max") {
		q.CutoffRangeMax = &p.rangeMax
	}

	profile, err := q.Profile()
	if err != nil {
		return err
	}

	limit := p.limit
	if limit == 0 {
		limit = opts.cfg.PredictDefaultLimit
	}
	req, err := matching.NewPageRequest(p.page, limit, opts.cfg.PredictMaxLimit)
	if err != nil {
		return err
	}

	mappingsFile := p.mappings
	if mappingsFile == "" {
		mappingsFile = opts.cfg.BranchMappingsFile
	}
	mappings := matching.DefaultMappings()
	if mappingsFile != "" {
		if mappings, err = matching.LoadMappingsFile(mappingsFile); err != nil {
			return err
		}
	}

	db, err := opts.openDB(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	engine := matching.NewEngine(db, matching.NewNormalizer(mappings), nil)
	page, err := engine.Predict(cmd.Context(), profile, req)
	if err != nil {
		return err
	}

	if opts.output == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(predict.NewResponse(page))
	}
	return writeMatches(cmd.OutOrStdout(), page, req.Offset())
}

// writeMatches prints a page of matches as an aligned table. offset is the
// overall position of the page's first match.
func writeMatches(w io.Writer, page matching.Page[matching.Match], offset int) error {
	if page.Total == 0 {
		_, err := fmt.Fprintln(w, "No colleges qualify.")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "#\tCODE\tNAME\tCITY\tTYPE\tCUTOFF\tBRANCHES")
	_, _ = fmt.Fprintln(tw, "-\t----\t----\t----\t----\t------\t--------")

	for i, m := range page.Items {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%.2f\t%s\n",
			offset+i+1,
			m.Code,
			truncate(m.Name, 40),
			m.Location.City,
			m.Type,
			m.RepresentativeCutoff,
			strings.Join(m.MatchedBranches, ", "),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "\nPage %d of %d (%d colleges)\n", page.CurrentPage, page.TotalPages, page.Total)
	return err
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
