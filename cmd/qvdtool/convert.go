package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/INLOpen/qvd/core"
	"github.com/INLOpen/qvd/hooks"
	"github.com/INLOpen/qvd/hooks/listeners"
	"github.com/INLOpen/qvd/qvd"
	"github.com/INLOpen/qvd/symbol"
	"github.com/INLOpen/qvd/sys"
)

func newConvertCmd(a *app) *cobra.Command {
	var tableName string
	cmd := &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert between CSV and QVD",
		Long: `Convert a table between CSV and QVD, chosen by file extension.
QVD to QVD rewrites the file and keeps its metadata.

Examples:
  qvdtool convert orders.csv orders.qvd
  qvdtool convert orders.qvd orders.csv`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in, out := args[0], args[1]
			ctx := cmd.Context()

			var t *qvd.Table
			var err error
			switch ext(in) {
			case ".csv":
				t, err = readCSV(in, a.cfg.Loader.AllowedDir)
			case ".qvd":
				t, err = qvd.Load(ctx, in, a.loadOptions())
			default:
				return fmt.Errorf("unsupported input type %q", filepath.Ext(in))
			}
			if err != nil {
				return err
			}

			switch ext(out) {
			case ".csv":
				err = writeCSV(out, a.cfg.Loader.AllowedDir, t)
			case ".qvd":
				opts := a.saveOptions()
				opts.TableName = tableName
				a.registerProgress()
				err = qvd.Save(ctx, out, t, opts)
			default:
				return fmt.Errorf("unsupported output type %q", filepath.Ext(out))
			}
			if err != nil {
				return err
			}
			a.logger.Info("Converted", "from", in, "to", out, "records", t.NumRows(), "fields", len(t.Columns()))
			return nil
		},
	}
	cmd.Flags().StringVar(&tableName, "table-name", "", "Table name for a new QVD header (default: output file name)")
	return cmd
}

func ext(path string) string { return strings.ToLower(filepath.Ext(path)) }

// registerProgress shows save progress on stderr when it is a terminal and
// logs it otherwise.
func (a *app) registerProgress() {
	if f, ok := a.stderr.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		a.hooks.Register(hooks.EventProgress, hooks.ProgressFunc(func(p hooks.ProgressPayload) {
			fmt.Fprintf(f, "\r%-14s %3.0f%%", p.Stage, p.Percent)
			if p.Stage == core.StageWrite && p.Percent >= 100 {
				fmt.Fprintln(f)
			}
		}))
		return
	}
	a.hooks.Register(hooks.EventProgress, listeners.NewProgressLogger(a.logger))
}

func readCSV(path, allowedDir string) (*qvd.Table, error) {
	resolved, err := sys.SafePath(path, allowedDir)
	if err != nil {
		return nil, err
	}
	f, err := sys.Open(resolved)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	columns, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%s: empty CSV file", path)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	var rows [][]any
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		row := make([]any, len(rec))
		for i, s := range rec {
			row[i] = parseCSVCell(s)
		}
		rows = append(rows, row)
	}
	return qvd.NewTable(columns, rows)
}

// parseCSVCell turns an empty cell into null and numbers into numbers.
// Text that would not come back unchanged, such as "+1", "007" or "2.0",
// stays a string.
func parseCSVCell(s string) any {
	if s == "" {
		return nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		if strconv.FormatInt(n, 10) == s {
			return n
		}
		return s
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) || symbol.FormatNumber(f) != s {
		return s
	}
	return f
}

func writeCSV(path, allowedDir string, t *qvd.Table) (err error) {
	resolved, err := sys.SafePath(path, allowedDir)
	if err != nil {
		return err
	}
	f, err := sys.Create(resolved)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(t.Columns()); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns()))
	for _, row := range t.Rows() {
		for i, v := range row {
			if v == nil {
				rec[i] = ""
				continue
			}
			rec[i] = cellText(v)
		}
		if err := w.Write(rec); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
