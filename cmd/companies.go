package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/concession-cli/internal/join"
	"github.com/sells-group/concession-cli/internal/table"
)

var companiesTable string

var companiesCmd = &cobra.Command{
	Use:   "companies",
	Short: "List the companies of the attribute table",
	Long:  "Prints the company filter values: the all-companies entry first, then every distinct company in table order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, err := loadTable(companiesTable)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, join.AllCompanies)
		for _, c := range table.Companies(tbl, cfg.Schema.Schema()) {
			fmt.Fprintln(out, c)
		}
		return nil
	},
}

func init() {
	companiesCmd.Flags().StringVar(&companiesTable, "table", "", "attribute table (.xlsx or .csv)")
	rootCmd.AddCommand(companiesCmd)
}
