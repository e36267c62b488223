package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/INLOpen/qvd/qvd"
)

func newInspectCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file>",
		Short: "Print the header of a QVD file",
		Long: `Print table-level metadata and the per-field layout of a QVD file.
Only the header is read.

Example:
  qvdtool inspect orders.qvd`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := qvd.ReadHeader(cmd.Context(), args[0], a.loadOptions())
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintf(w, "Table:\t%s\n", h.TableName)
			fmt.Fprintf(w, "Records:\t%d\n", h.NoOfRecords)
			fmt.Fprintf(w, "Record size:\t%d bytes\n", h.RecordByteSize)
			fmt.Fprintf(w, "Symbol table:\t%d bytes\n", h.SymbolTableLength)
			fmt.Fprintf(w, "Index table:\t%d bytes\n", h.IndexTableLength)
			fmt.Fprintf(w, "Created:\t%s\n", h.CreateUtcTime)
			fmt.Fprintf(w, "Creator:\t%s\n", h.CreatorDoc)
			if h.Comment != "" {
				fmt.Fprintf(w, "Comment:\t%s\n", h.Comment)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout)

			w = tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "FIELD\tSYMBOLS\tBIT OFFSET\tBIT WIDTH\tBIAS\tOFFSET\tLENGTH\tFORMAT\tTAGS")
			for _, f := range h.Fields {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\t%d\t%s\t%s\n",
					f.Name, f.NoOfSymbols, f.BitOffset, f.BitWidth, f.Bias, f.Offset, f.Length,
					f.NumberFormat.Type, strings.Join(f.Tags, ","))
			}
			return w.Flush()
		},
	}
}
