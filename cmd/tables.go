package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/concession-cli/internal/join"
	"github.com/sells-group/concession-cli/internal/model"
	"github.com/sells-group/concession-cli/internal/report"
)

var (
	tablesTable    string
	tablesCompany  string
	tablesSelect   []string
	tablesCombined bool
)

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "Print the report sections for a company",
	Long: `Prints one table per selected section. --select takes "section" for every
column of the section or "section=colA,colB" for a subset, and may be repeated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, err := loadTable(tablesTable)
		if err != nil {
			return err
		}
		bundle, err := buildBundle(tbl, tablesCompany, tablesSelect)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if tablesCombined {
			return printTable(out, "", report.Combined(bundle))
		}
		for i, sec := range bundle {
			if i > 0 {
				fmt.Fprintln(out)
			}
			if err := printTable(out, sec.Title, sec.Table); err != nil {
				return err
			}
		}
		return nil
	},
}

func printTable(out io.Writer, title string, tbl model.Table) error {
	if title != "" {
		fmt.Fprintf(out, "== %s ==\n", title)
	}
	if len(tbl.Columns) == 0 {
		fmt.Fprintln(out, "(aucune colonne)")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, strings.Join(tbl.Columns, "\t"))
	for _, rec := range tbl.Records {
		cells := make([]string, len(tbl.Columns))
		for i, col := range tbl.Columns {
			cells[i] = rec.Text(col)
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	return w.Flush()
}

func init() {
	tablesCmd.Flags().StringVar(&tablesTable, "table", "", "attribute table (.xlsx or .csv)")
	tablesCmd.Flags().StringVar(&tablesCompany, "company", join.AllCompanies, "company filter")
	tablesCmd.Flags().StringArrayVar(&tablesSelect, "select", nil, `section selection, "id" or "id=colA,colB" (repeatable)`)
	tablesCmd.Flags().BoolVar(&tablesCombined, "combined", false, "print every selected column in one table")
	rootCmd.AddCommand(tablesCmd)
}
