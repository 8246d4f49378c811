package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"reviewd/internal/models"
	"reviewd/internal/review"
	"reviewd/internal/storage"
)

var reportFlags struct {
	site     string
	kind     string
	limit    int
	lastFrom string
	lastTo   string
	nextFrom string
	nextTo   string
	archive  bool
}

var reportCmd = &cobra.Command{
	Use:   "report [overdue|this-month|periodic]",
	Short: "Print a review listing as a table",
	Long: `Prints one of the review listings:

  overdue     live items whose next review date has passed
  this-month  live items due for review this calendar month
  periodic    reviewed items filtered by kind and date ranges

With --archive the listing is also uploaded as CSV to the report bucket
(S3_ENDPOINT, S3_ACCESS_KEY, S3_SECRET_KEY, REPORT_BUCKET) and a download
link valid for 24 hours is printed.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"overdue", "this-month", "periodic"},
	RunE:      runReport,
}

func init() {
	f := reportCmd.Flags()
	f.StringVar(&reportFlags.site, "site", "", "restrict to one site (site id)")
	f.StringVar(&reportFlags.kind, "kind", "", "periodic: restrict to one kind")
	f.IntVar(&reportFlags.limit, "limit", 0, "maximum rows (0 for all)")
	f.StringVar(&reportFlags.lastFrom, "last-from", "", "periodic: last review on or after (YYYY-MM-DD)")
	f.StringVar(&reportFlags.lastTo, "last-to", "", "periodic: last review on or before (YYYY-MM-DD)")
	f.StringVar(&reportFlags.nextFrom, "next-from", "", "periodic: next review on or after (YYYY-MM-DD)")
	f.StringVar(&reportFlags.nextTo, "next-to", "", "periodic: next review on or before (YYYY-MM-DD)")
	f.BoolVar(&reportFlags.archive, "archive", false, "upload the listing as CSV to the report bucket")
}

func runReport(cmd *cobra.Command, args []string) error {
	a, err := setup(false)
	if err != nil {
		return err
	}
	defer a.close()
	ctx := cmd.Context()

	c := review.All()
	if reportFlags.site != "" {
		id, err := uuid.Parse(reportFlags.site)
		if err != nil {
			return fmt.Errorf("--site: %w", err)
		}
		site, err := a.sites.FindByID(ctx, id)
		if err != nil {
			return err
		}
		if site == nil {
			return fmt.Errorf("site %s not found", id)
		}
		c = c.InTree(site.RootPath)
	}

	agg := review.NewAggregator(a.db, a.registry)
	now := time.Now().UTC()

	switch args[0] {
	case "overdue":
		c = agg.ReviewOverdue(c.Live(), now)
	case "this-month":
		c = agg.ForReviewThisMonth(c.Live(), now)
	case "periodic":
		f, err := reportFilter()
		if err != nil {
			return err
		}
		if c, err = agg.PeriodicReport(c, f); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown report %q", args[0])
	}
	if reportFlags.limit > 0 {
		c = c.Limit(reportFlags.limit)
	}

	rows, err := agg.Fetch(ctx, c)
	if err != nil {
		return err
	}
	if err := renderRows(os.Stdout, rows); err != nil {
		return err
	}
	if !reportFlags.archive {
		return nil
	}

	cfg := a.cfg
	archive, err := storage.New(cfg.S3Endpoint, cfg.S3Region, cfg.S3AccessKey, cfg.S3SecretKey, cfg.ReportBucket)
	if err != nil {
		return err
	}
	if archive == nil {
		return fmt.Errorf("--archive: report bucket not configured")
	}
	key, err := archive.ArchiveReport(ctx, args[0], now, rows)
	if err != nil {
		return err
	}
	url, err := archive.PresignedURL(ctx, key, 24*time.Hour)
	if err != nil {
		return err
	}
	slog.Info("report archived", "bucket", archive.Bucket(), "key", key, "rows", len(rows))
	fmt.Println(url)
	return nil
}

func reportFilter() (review.ReportFilter, error) {
	f := review.ReportFilter{Kind: reportFlags.kind}
	for _, d := range []struct {
		flag string
		val  string
		dst  **time.Time
	}{
		{"--last-from", reportFlags.lastFrom, &f.LastReview.From},
		{"--last-to", reportFlags.lastTo, &f.LastReview.To},
		{"--next-from", reportFlags.nextFrom, &f.NextReview.From},
		{"--next-to", reportFlags.nextTo, &f.NextReview.To},
	} {
		if d.val == "" {
			continue
		}
		t, err := time.ParseInLocation(time.DateOnly, d.val, time.UTC)
		if err != nil {
			return f, fmt.Errorf("%s: %w", d.flag, err)
		}
		*d.dst = &t
	}
	return f, nil
}

func renderRows(w io.Writer, rows []models.ReviewRow) error {
	table := tablewriter.NewWriter(w)
	table.Header("Title", "Kind", "Path", "Last review", "Next review")
	for _, r := range rows {
		if err := table.Append([]string{r.Title, r.Kind, r.Path, dateCell(r.LastReviewDate), dateCell(r.NextReviewDate)}); err != nil {
			return fmt.Errorf("append row: %w", err)
		}
	}
	if err := table.Render(); err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	_, err := fmt.Fprintf(w, "%d item(s)\n", len(rows))
	return err
}

func dateCell(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format(time.DateOnly)
}
