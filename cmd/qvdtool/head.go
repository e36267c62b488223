package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/INLOpen/qvd/qvd"
	"github.com/INLOpen/qvd/symbol"
)

const nullText = "<null>"

func newHeadCmd(a *app) *cobra.Command {
	var rows int
	cmd := &cobra.Command{
		Use:   "head <file>",
		Short: "Print the first rows of a QVD file",
		Long: `Print the first rows of a QVD file. Only the header, the symbol
table and the needed part of the index table are read.

Example:
  qvdtool head -n 20 orders.qvd`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := qvd.LoadHead(cmd.Context(), args[0], rows, a.loadOptions())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, strings.Join(t.Columns(), "\t"))
			cells := make([]string, len(t.Columns()))
			for _, row := range t.Rows() {
				for i, v := range row {
					cells[i] = formatCell(v)
				}
				fmt.Fprintln(w, strings.Join(cells, "\t"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&rows, "rows", "n", 10, "Number of rows to print")
	return cmd
}

func formatCell(v any) string {
	if v == nil {
		return nullText
	}
	return cellText(v)
}

// cellText renders a non-null cell the way the symbol table would display it.
func cellText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return symbol.FormatNumber(x)
	case symbol.Symbol:
		if str, ok := x.Str(); ok {
			return str
		}
		return fmt.Sprint(x.PrimaryValue())
	default:
		return fmt.Sprint(x)
	}
}
