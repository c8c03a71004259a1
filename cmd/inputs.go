package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/concession-cli/internal/geometry"
	"github.com/sells-group/concession-cli/internal/join"
	"github.com/sells-group/concession-cli/internal/model"
	"github.com/sells-group/concession-cli/internal/report"
	"github.com/sells-group/concession-cli/internal/table"
)

// emptyViewMessage is printed when no block matches the company filter.
const emptyViewMessage = "Aucun bloc ne correspond au filtre sélectionné."

func loadTable(path string) (model.Table, error) {
	if path == "" {
		return model.Table{}, eris.New("--table is required")
	}
	return table.Load(path, cfg.Schema.Schema(), cfg.TableOptions())
}

// loadInputs reads the attribute table and the shapefile archive
// concurrently.
func loadInputs(ctx context.Context, tablePath, shapesPath string) (model.Table, model.FeatureSet, error) {
	if shapesPath == "" {
		return model.Table{}, model.FeatureSet{}, eris.New("--shapes is required")
	}

	var (
		tbl      model.Table
		features model.FeatureSet
	)
	g, _ := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		tbl, err = loadTable(tablePath)
		return err
	})
	g.Go(func() error {
		var err error
		features, err = geometry.Load(shapesPath, cfg.GeometryOptions())
		return err
	})
	if err := g.Wait(); err != nil {
		return model.Table{}, model.FeatureSet{}, err
	}
	return tbl, features, nil
}

// buildBundle filters tbl on company and projects the sections named by
// selects (every section when empty).
func buildBundle(tbl model.Table, company string, selects []string) (model.Bundle, error) {
	catalog, err := cfg.Catalog()
	if err != nil {
		return nil, err
	}

	sel, err := report.ParseSelection(catalog, selects)
	if err != nil {
		return nil, err
	}
	sel, dropped, err := sel.Resolve(catalog)
	if err != nil {
		return nil, err
	}
	if len(dropped) > 0 {
		zap.L().Warn("selection: ignoring columns not declared by their section", zap.Strings("columns", dropped))
	}

	filtered := join.FilterTable(tbl, cfg.Schema.Schema(), company)
	return report.Project(filtered, cfg.Schema.Schema(), catalog, sel), nil
}
