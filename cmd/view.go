package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/concession-cli/internal/join"
)

var (
	viewTable   string
	viewShapes  string
	viewCompany string
	viewOut     string
)

var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Join block shapes with the attribute table and write GeoJSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		tbl, features, err := loadInputs(cmd.Context(), viewTable, viewShapes)
		if err != nil {
			return err
		}

		view := join.Build(tbl, features, cfg.Schema.Schema(), viewCompany)
		if view.Empty() {
			fmt.Fprintln(cmd.ErrOrStderr(), emptyViewMessage)
		}

		data, err := view.GeoJSON()
		if err != nil {
			return err
		}

		if viewOut == "" {
			_, err = cmd.OutOrStdout().Write(append(data, '\n'))
			return err
		}
		if err := os.WriteFile(viewOut, data, 0o644); err != nil {
			return eris.Wrapf(err, "view: write %s", viewOut)
		}

		fields := []zap.Field{
			zap.String("out", viewOut),
			zap.Int("joined", len(view.Pairs)),
			zap.Int("unmatched", view.Unmatched),
		}
		if lon, lat, ok := view.Center(); ok {
			fields = append(fields, zap.Float64("center_lon", lon), zap.Float64("center_lat", lat))
		}
		zap.L().Info("view written", fields...)
		return nil
	},
}

func init() {
	viewCmd.Flags().StringVar(&viewTable, "table", "", "attribute table (.xlsx or .csv)")
	viewCmd.Flags().StringVar(&viewShapes, "shapes", "", "zipped shapefile archive")
	viewCmd.Flags().StringVar(&viewCompany, "company", join.AllCompanies, "company filter")
	viewCmd.Flags().StringVar(&viewOut, "out", "", "GeoJSON output file (default stdout)")
	rootCmd.AddCommand(viewCmd)
}
