package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/concession-cli/internal/cache"
	"github.com/sells-group/concession-cli/internal/export"
	"github.com/sells-group/concession-cli/internal/geometry"
	"github.com/sells-group/concession-cli/internal/join"
	"github.com/sells-group/concession-cli/internal/model"
	"github.com/sells-group/concession-cli/internal/report"
	"github.com/sells-group/concession-cli/internal/table"
)

type errorResponse struct {
	Error string `json:"error"`
}

type companiesResponse struct {
	All       string   `json:"all"`
	Companies []string `json:"companies"`
	Rows      int      `json:"rows"`
}

type point struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

type viewResponse struct {
	Company   string          `json:"company"`
	Empty     bool            `json:"empty"`
	Message   string          `json:"message,omitempty"`
	Records   int             `json:"records"`
	Joined    int             `json:"joined"`
	Unmatched int             `json:"unmatched"`
	Center    *point          `json:"center"`
	GeoJSON   json.RawMessage `json:"geojson"`
}

type sectionResponse struct {
	Title   string   `json:"title"`
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

type tablesResponse struct {
	Company  string            `json:"company"`
	Sections []sectionResponse `json:"sections"`
	Combined *sectionResponse  `json:"combined,omitempty"`
	Dropped  []string          `json:"dropped,omitempty"`
}

// reportForm holds the non-file fields of the report endpoints.
type reportForm struct {
	Company  string   `validate:"max=256"`
	Select   []string `validate:"max=64,dive,min=1,max=2048"`
	Combined bool
	Format   string `validate:"omitempty,oneof=xlsx docx"`
}

// statusError carries the HTTP status of a request-level failure.
type statusError struct {
	status int
	err    error
}

func (e *statusError) Error() string { return e.err.Error() }
func (e *statusError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &statusError{status: http.StatusBadRequest, err: err}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]string{"status": "ok"})
}

func (s *Server) handleSections(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"all":      join.AllCompanies,
		"sections": s.catalog.Sections,
	})
}

func (s *Server) handleCacheStats(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]cache.Stats{
		"tables": s.tables.Stats(),
		"shapes": s.shapes.Stats(),
	})
}

func (s *Server) handleCompanies(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	tbl, err := s.uploadedTable(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	companies := table.Companies(tbl, s.schema)
	if companies == nil {
		companies = []string{}
	}
	render.JSON(w, r, companiesResponse{
		All:       join.AllCompanies,
		Companies: companies,
		Rows:      tbl.Len(),
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	form, err := s.reportForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tbl, err := s.uploadedTable(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	features, err := s.uploadedShapes(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	view := join.Build(tbl, features, s.schema, form.Company)
	data, err := view.GeoJSON()
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := viewResponse{
		Company:   companyLabel(form.Company),
		Empty:     view.Empty(),
		Records:   len(view.Records),
		Joined:    len(view.Pairs),
		Unmatched: view.Unmatched,
		GeoJSON:   data,
	}
	if view.Empty() {
		resp.Message = model.ErrJoinEmpty.Error()
		s.metrics.emptyJoins.Inc()
	}
	if lon, lat, ok := view.Center(); ok {
		resp.Center = &point{Lon: lon, Lat: lat}
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleTables(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	form, err := s.reportForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	tbl, err := s.uploadedTable(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bundle, dropped, err := s.bundle(tbl, form)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	resp := tablesResponse{
		Company:  companyLabel(form.Company),
		Sections: make([]sectionResponse, 0, len(bundle)),
		Dropped:  dropped,
	}
	for _, sec := range bundle {
		resp.Sections = append(resp.Sections, toSectionResponse(sec.Title, sec.Table))
	}
	if form.Combined {
		c := toSectionResponse("", report.Combined(bundle))
		resp.Combined = &c
	}
	render.JSON(w, r, resp)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if err := s.parseMultipart(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	defer r.MultipartForm.RemoveAll() //nolint:errcheck

	form, err := s.reportForm(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	format, err := export.ParseFormat(form.Format)
	if err != nil {
		s.fail(w, r, badRequest(err))
		return
	}
	tbl, err := s.uploadedTable(r)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	bundle, _, err := s.bundle(tbl, form)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	payload, err := export.Write(bundle, format)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	id := uuid.New()
	name := payload.Filename(s.cfg.Export.FilePrefix + "-" + id.String()[:8])
	s.log.Info("export written",
		zap.String("export_id", id.String()),
		zap.String("format", string(format)),
		zap.Int("sections", len(bundle)),
		zap.Int("bytes", len(payload.Data)),
	)

	w.Header().Set("Content-Type", payload.MediaType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	w.Header().Set("Content-Length", strconv.Itoa(len(payload.Data)))
	w.Header().Set("X-Export-ID", id.String())
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(payload.Data); err != nil {
		s.log.Warn("export: write response", zap.Error(err))
	}
}

// parseMultipart bounds the request body and parses the multipart form.
func (s *Server) parseMultipart(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return &statusError{status: http.StatusRequestEntityTooLarge, err: eris.Wrap(err, "server: upload too large")}
		}
		return badRequest(eris.Wrap(err, "server: parse multipart form"))
	}
	return nil
}

// reportForm reads and validates the report fields of a parsed form.
func (s *Server) reportForm(r *http.Request) (reportForm, error) {
	values := r.MultipartForm.Value
	form := reportForm{
		Company: strings.TrimSpace(first(values["company"])),
		Format:  strings.TrimSpace(first(values["format"])),
	}
	for _, v := range values["select"] {
		if v = strings.TrimSpace(v); v != "" {
			form.Select = append(form.Select, v)
		}
	}
	if c := first(values["combined"]); c != "" {
		b, err := strconv.ParseBool(c)
		if err != nil {
			return form, badRequest(eris.Errorf("server: invalid combined flag %q", c))
		}
		form.Combined = b
	}
	if form.Format == "" {
		form.Format = s.cfg.Export.DefaultFormat
	}
	form.Format = strings.ToLower(strings.TrimPrefix(form.Format, "."))

	if err := s.validate.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field())+" ("+fe.Tag()+")")
			}
			return form, badRequest(eris.Errorf("server: invalid fields: %s", strings.Join(fields, ", ")))
		}
		return form, badRequest(eris.Wrap(err, "server: validate form"))
	}
	return form, nil
}

// bundle filters tbl on the form's company and projects the selected
// sections.
func (s *Server) bundle(tbl model.Table, form reportForm) (model.Bundle, []string, error) {
	sel, err := report.ParseSelection(s.catalog, form.Select)
	if err != nil {
		return nil, nil, badRequest(err)
	}
	sel, dropped, err := sel.Resolve(s.catalog)
	if err != nil {
		return nil, nil, badRequest(err)
	}
	if len(dropped) > 0 {
		s.log.Debug("selection: dropped undeclared columns", zap.Strings("columns", dropped))
	}

	filtered := join.FilterTable(tbl, s.schema, form.Company)
	return report.Project(filtered, s.schema, s.catalog, sel), dropped, nil
}

func (s *Server) uploadedTable(r *http.Request) (model.Table, error) {
	name, data, err := readUpload(r, "table")
	if err != nil {
		return model.Table{}, err
	}

	opts := s.cfg.TableOptions()
	key := cache.Key("table", data,
		strings.ToLower(filepath.Ext(name)),
		strconv.FormatBool(opts.Parser.DayFirst),
		string(opts.Delimiter),
	)
	tbl, hit, err := s.tables.GetOrLoad(key, func() (model.Table, error) {
		return table.LoadBytes(name, data, s.schema, opts)
	})
	s.metrics.cacheLookup("table", hit)
	return tbl, err
}

func (s *Server) uploadedShapes(r *http.Request) (model.FeatureSet, error) {
	name, data, err := readUpload(r, "shapes")
	if err != nil {
		return model.FeatureSet{}, err
	}

	opts := s.cfg.GeometryOptions()
	key := cache.Key("shapes", data, opts.NameField)
	fs, hit, err := s.shapes.GetOrLoad(key, func() (model.FeatureSet, error) {
		return geometry.LoadBytes(name, data, opts)
	})
	s.metrics.cacheLookup("shapes", hit)
	return fs, err
}

func readUpload(r *http.Request, field string) (string, []byte, error) {
	f, hdr, err := r.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return "", nil, badRequest(eris.Errorf("server: missing %q upload", field))
		}
		return "", nil, badRequest(eris.Wrapf(err, "server: open %q upload", field))
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(f)
	if err != nil {
		return "", nil, badRequest(eris.Wrapf(err, "server: read %q upload", field))
	}
	return hdr.Filename, data, nil
}

// fail writes err as a JSON error with its mapped status.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	var se *statusError
	switch {
	case errors.As(err, &se):
		status = se.status
	case model.IsLoadError(err), model.IsNoGeometryFound(err):
		status = http.StatusUnprocessableEntity
	}

	msg := err.Error()
	if status == http.StatusInternalServerError {
		s.log.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		msg = "internal server error"
	} else {
		s.log.Debug("request rejected", zap.String("path", r.URL.Path), zap.Int("status", status), zap.Error(err))
	}

	render.Status(r, status)
	render.JSON(w, r, errorResponse{Error: msg})
}

func toSectionResponse(title string, tbl model.Table) sectionResponse {
	out := sectionResponse{
		Title:   title,
		Columns: tbl.Columns,
		Rows:    make([][]any, 0, len(tbl.Records)),
	}
	if out.Columns == nil {
		out.Columns = []string{}
	}
	for _, rec := range tbl.Records {
		row := make([]any, len(tbl.Columns))
		for i, col := range tbl.Columns {
			row[i] = rec[col]
		}
		out.Rows = append(out.Rows, row)
	}
	return out
}

func companyLabel(company string) string {
	if join.IsAll(company) {
		return join.AllCompanies
	}
	return company
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
