package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/concession-cli/internal/export"
	"github.com/sells-group/concession-cli/internal/join"
)

var (
	exportTable   string
	exportCompany string
	exportSelect  []string
	exportFormat  string
	exportOut     string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the report sections to XLSX or DOCX",
	Long: `Writes the selected sections for a company to a spreadsheet (one sheet per
section) or a document (one heading and table per section).`,
	RunE: func(cmd *cobra.Command, args []string) error {
		name := exportFormat
		if name == "" {
			name = cfg.Export.DefaultFormat
		}
		format, err := export.ParseFormat(name)
		if err != nil {
			return err
		}

		tbl, err := loadTable(exportTable)
		if err != nil {
			return err
		}
		bundle, err := buildBundle(tbl, exportCompany, exportSelect)
		if err != nil {
			return err
		}

		payload, err := export.Write(bundle, format)
		if err != nil {
			return err
		}

		out := exportOut
		if out == "" {
			out = payload.Filename(cfg.Export.FilePrefix)
		}
		if err := os.WriteFile(out, payload.Data, 0o644); err != nil {
			return eris.Wrapf(err, "export: write %s", out)
		}

		zap.L().Info("export written",
			zap.String("out", out),
			zap.String("format", string(format)),
			zap.Int("sections", len(bundle)),
			zap.Int("bytes", len(payload.Data)),
		)
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportTable, "table", "", "attribute table (.xlsx or .csv)")
	exportCmd.Flags().StringVar(&exportCompany, "company", join.AllCompanies, "company filter")
	exportCmd.Flags().StringArrayVar(&exportSelect, "select", nil, `section selection, "id" or "id=colA,colB" (repeatable)`)
	exportCmd.Flags().StringVar(&exportFormat, "format", "", "xlsx or docx (default from config)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output file (default <file_prefix>.<format>)")
	rootCmd.AddCommand(exportCmd)
}
