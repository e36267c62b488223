package main

import (
	"fmt"
	"runtime"
	"text/tabwriter"

	"github.com/caio/go-tdigest/v4"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/INLOpen/qvd/qvd"
	"github.com/INLOpen/qvd/symbol"
)

// columnStats summarizes one column of a loaded table.
type columnStats struct {
	name    string
	symbols int64
	nulls   int
	numeric int
	p50     float64
	p90     float64
	p99     float64
}

type fileStats struct {
	path    string
	table   string
	records int
	columns []columnStats
}

func newStatsCmd(a *app) *cobra.Command {
	var parallel int
	cmd := &cobra.Command{
		Use:   "stats <file>...",
		Short: "Print per-column statistics for QVD files",
		Long: `Load each file and print, per column, the number of distinct
symbols, the number of nulls and percentiles over the numeric cells.

Example:
  qvdtool stats sales_2023.qvd sales_2024.qvd`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1, got %d", parallel)
			}
			results := make([]fileStats, len(args))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(parallel)
			for i, path := range args {
				g.Go(func() error {
					t, err := qvd.Load(ctx, path, a.loadOptions())
					if err != nil {
						return err
					}
					fs, err := summarize(path, t)
					if err != nil {
						return err
					}
					results[i] = fs
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return err
			}

			for i, fs := range results {
				if i > 0 {
					fmt.Fprintln(a.stdout)
				}
				if err := printStats(a, fs); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&parallel, "parallel", "p", runtime.GOMAXPROCS(0), "Number of files loaded at once")
	return cmd
}

func summarize(path string, t *qvd.Table) (fileStats, error) {
	fs := fileStats{path: path, records: t.NumRows()}
	if t.Header != nil {
		fs.table = t.Header.TableName
	}
	for c, name := range t.Columns() {
		cs := columnStats{name: name}
		if t.Header != nil && c < len(t.Header.Fields) {
			cs.symbols = t.Header.Fields[c].NoOfSymbols
		}
		nulls, err := t.NullCount(name)
		if err != nil {
			return fs, err
		}
		cs.nulls = nulls

		values, err := t.Column(name)
		if err != nil {
			return fs, err
		}
		td, err := tdigest.New()
		if err != nil {
			return fs, fmt.Errorf("tdigest.New failed: %w", err)
		}
		for _, v := range values {
			var f float64
			switch x := v.(type) {
			case int64:
				f = float64(x)
			case float64:
				f = x
			case symbol.Symbol:
				if d, ok := x.Double(); ok {
					f = d
				} else if n, ok := x.Int(); ok {
					f = float64(n)
				} else {
					continue
				}
			default:
				continue
			}
			if err := td.AddWeighted(f, 1); err != nil {
				return fs, fmt.Errorf("column %s: %w", name, err)
			}
			cs.numeric++
		}
		if cs.numeric > 0 {
			cs.p50 = td.Quantile(0.5)
			cs.p90 = td.Quantile(0.9)
			cs.p99 = td.Quantile(0.99)
		}
		fs.columns = append(fs.columns, cs)
	}
	return fs, nil
}

func printStats(a *app, fs fileStats) error {
	fmt.Fprintf(a.stdout, "%s (table %q, %d records)\n", fs.path, fs.table, fs.records)
	w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "FIELD\tSYMBOLS\tNULLS\tNUMERIC\tP50\tP90\tP99")
	for _, cs := range fs.columns {
		if cs.numeric == 0 {
			fmt.Fprintf(w, "%s\t%d\t%d\t0\t-\t-\t-\n", cs.name, cs.symbols, cs.nulls)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\t%s\n", cs.name, cs.symbols, cs.nulls, cs.numeric,
			symbol.FormatNumber(cs.p50), symbol.FormatNumber(cs.p90), symbol.FormatNumber(cs.p99))
	}
	return w.Flush()
}
