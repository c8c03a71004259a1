package server

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/goleak"

	"github.com/sells-group/concession-cli/internal/config"
	"github.com/sells-group/concession-cli/internal/dates"
	"github.com/sells-group/concession-cli/internal/export"
	"github.com/sells-group/concession-cli/internal/report"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const blocksCSV = "Nom,Compagnie,Phases_actuelle,Date_de_signature_de_contrats\n" +
	"A,X,Exploration,2023-11-05\n" +
	"B,X,Production,\n" +
	"C,Y,Exploration,15/03/2024\n"

type upload struct {
	field string
	name  string
	data  []byte
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	cfg.Server.RateLimit = 1000
	cfg.Server.RateBurst = 1000
	return cfg
}

func newTestServer(t *testing.T, mutate func(*config.Config)) (*Server, http.Handler) {
	t.Helper()
	cfg := testConfig(t)
	if mutate != nil {
		mutate(cfg)
	}
	s := New(cfg, report.DefaultCatalog())
	return s, s.Router()
}

func multipartRequest(t *testing.T, path string, files []upload, fields map[string][]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, f := range files {
		fw, err := mw.CreateFormFile(f.field, f.name)
		require.NoError(t, err)
		_, err = fw.Write(f.data)
		require.NoError(t, err)
	}
	for k, vs := range fields {
		for _, v := range vs {
			require.NoError(t, mw.WriteField(k, v))
		}
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

// shapesZip builds a zipped polygon shapefile with one unit square per name,
// laid out left to right.
func shapesZip(t *testing.T, names ...string) []byte {
	t.Helper()
	dir := t.TempDir()
	w, err := shp.Create(filepath.Join(dir, "blocs.shp"), shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{shp.StringField("Nom", 40)})
	for i, name := range names {
		x := float64(i * 2)
		ring := []shp.Point{{X: x, Y: 0}, {X: x, Y: 1}, {X: x + 1, Y: 1}, {X: x + 1, Y: 0}, {X: x, Y: 0}}
		poly := shp.Polygon(*shp.NewPolyLine([][]shp.Point{ring}))
		w.Write(&poly)
		w.WriteAttribute(i, 0, name)
	}
	w.Close()

	return zipDir(t, dir)
}

func zipDir(t *testing.T, dir string) []byte {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		fw, err := zw.Create("export/" + e.Name())
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func tableUpload() upload {
	return upload{field: "table", name: "blocs.csv", data: []byte(blocksCSV)}
}

func TestHealth(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSections(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/sections", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		All      string           `json:"all"`
		Sections []report.Section `json:"sections"`
	}
	decode(t, rec, &body)
	assert.Equal(t, "Tous", body.All)
	require.Len(t, body.Sections, 7)
	assert.Equal(t, report.SectionCompany, body.Sections[0].ID)
	assert.Equal(t, "Avenants", body.Sections[6].Title)
}

func TestCompanies(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := serve(h, multipartRequest(t, "/api/companies", []upload{tableUpload()}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body companiesResponse
	decode(t, rec, &body)
	assert.Equal(t, "Tous", body.All)
	assert.Equal(t, []string{"X", "Y"}, body.Companies)
	assert.Equal(t, 3, body.Rows)
}

func TestCompanies_Errors(t *testing.T) {
	_, h := newTestServer(t, nil)

	tests := []struct {
		name   string
		req    *http.Request
		status int
		want   string
	}{
		{
			name:   "missing upload",
			req:    multipartRequest(t, "/api/companies", nil, map[string][]string{"company": {"X"}}),
			status: http.StatusBadRequest,
			want:   `missing "table" upload`,
		},
		{
			name:   "not multipart",
			req:    httptest.NewRequest(http.MethodPost, "/api/companies", strings.NewReader("{}")),
			status: http.StatusBadRequest,
			want:   "parse multipart form",
		},
		{
			name:   "unsupported table",
			req:    multipartRequest(t, "/api/companies", []upload{{field: "table", name: "blocs.pdf", data: []byte("%PDF")}}, nil),
			status: http.StatusUnprocessableEntity,
			want:   "unsupported file type",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(h, tt.req)
			assert.Equal(t, tt.status, rec.Code)

			var body errorResponse
			decode(t, rec, &body)
			assert.Contains(t, body.Error, tt.want)
		})
	}
}

func TestView(t *testing.T) {
	_, h := newTestServer(t, nil)
	files := []upload{tableUpload(), {field: "shapes", name: "blocs.zip", data: shapesZip(t, "A", "B", "C")}}

	rec := serve(h, multipartRequest(t, "/api/view", files, map[string][]string{"company": {"X"}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body struct {
		viewResponse
		GeoJSON struct {
			Features []struct {
				Properties map[string]any `json:"properties"`
			} `json:"features"`
		} `json:"geojson"`
	}
	decode(t, rec, &body)

	assert.Equal(t, "X", body.Company)
	assert.False(t, body.Empty)
	assert.Empty(t, body.Message)
	assert.Equal(t, 2, body.Records)
	assert.Equal(t, 2, body.Joined)
	assert.Equal(t, 1, body.Unmatched)
	require.NotNil(t, body.Center)
	assert.InDelta(t, 2.5, body.Center.Lon, 1e-9)
	assert.InDelta(t, 0.5, body.Center.Lat, 1e-9)

	require.Len(t, body.GeoJSON.Features, 2)
	assert.Equal(t, "A", body.GeoJSON.Features[0].Properties["block"])
	assert.Equal(t, "5 novembre 2023", body.GeoJSON.Features[0].Properties["signature_date"])
	assert.Equal(t, "N/A", body.GeoJSON.Features[1].Properties["signature_date"])
}

func TestView_AllAndEmpty(t *testing.T) {
	_, h := newTestServer(t, nil)
	shapes := shapesZip(t, "A", "B", "C")

	rec := serve(h, multipartRequest(t, "/api/view",
		[]upload{tableUpload(), {field: "shapes", name: "blocs.zip", data: shapes}}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var all viewResponse
	decode(t, rec, &all)
	assert.Equal(t, "Tous", all.Company)
	assert.Equal(t, 3, all.Joined)

	rec = serve(h, multipartRequest(t, "/api/view",
		[]upload{tableUpload(), {field: "shapes", name: "blocs.zip", data: shapes}},
		map[string][]string{"company": {"Z"}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var empty viewResponse
	decode(t, rec, &empty)
	assert.True(t, empty.Empty)
	assert.Equal(t, 0, empty.Joined)
	assert.NotEmpty(t, empty.Message)
	assert.NotNil(t, empty.Center, "centre covers every loaded feature")
}

func TestView_NoShapefile(t *testing.T) {
	_, h := newTestServer(t, nil)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	fw, err := zw.Create("readme.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("vide"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	rec := serve(h, multipartRequest(t, "/api/view",
		[]upload{tableUpload(), {field: "shapes", name: "vide.zip", data: buf.Bytes()}}, nil))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body errorResponse
	decode(t, rec, &body)
	assert.Contains(t, body.Error, "no .shp file")
}

func TestTables(t *testing.T) {
	_, h := newTestServer(t, nil)
	fields := map[string][]string{
		"company":  {"X"},
		"select":   {"company=Nom,Compagnie,Date_de_signature_de_contrats,Inconnu", "situation=Phases_actuelle"},
		"combined": {"true"},
	}
	rec := serve(h, multipartRequest(t, "/api/tables", []upload{tableUpload()}, fields))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body tablesResponse
	decode(t, rec, &body)
	assert.Equal(t, "X", body.Company)
	assert.Equal(t, []string{"company.Inconnu"}, body.Dropped)

	require.Len(t, body.Sections, 2)
	first := body.Sections[0]
	assert.Equal(t, "A propos de la compagnie", first.Title)
	assert.Equal(t, []string{"Nom", "Compagnie", "Date_de_signature_de_contrats"}, first.Columns)
	require.Len(t, first.Rows, 2)
	assert.Equal(t, []any{"A", "X", "5 novembre 2023"}, first.Rows[0])
	assert.Equal(t, []any{"B", "X", dates.Placeholder}, first.Rows[1], "missing dates render as the placeholder")

	assert.Equal(t, []string{"Phases_actuelle"}, body.Sections[1].Columns)

	require.NotNil(t, body.Combined)
	assert.Equal(t, []string{"Nom", "Compagnie", "Date_de_signature_de_contrats", "Phases_actuelle"}, body.Combined.Columns)
	assert.Len(t, body.Combined.Rows, 2)
}

func TestTables_BadInput(t *testing.T) {
	_, h := newTestServer(t, nil)

	for name, fields := range map[string]map[string][]string{
		"unknown section": {"select": {"nope"}},
		"bad combined":    {"combined": {"peut-être"}},
		"long company":    {"company": {strings.Repeat("x", 300)}},
	} {
		t.Run(name, func(t *testing.T) {
			rec := serve(h, multipartRequest(t, "/api/tables", []upload{tableUpload()}, fields))
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestExport_XLSX(t *testing.T) {
	_, h := newTestServer(t, nil)
	fields := map[string][]string{"company": {"Y"}, "select": {"company", "amendments"}}
	rec := serve(h, multipartRequest(t, "/api/export", []upload{tableUpload()}, fields))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, export.MediaTypeXLSX, rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get("X-Export-ID"))
	_, params, err := mime.ParseMediaType(rec.Header().Get("Content-Disposition"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(params["filename"], "rapport-"), params["filename"])
	assert.True(t, strings.HasSuffix(params["filename"], ".xlsx"), params["filename"])

	f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
	require.NoError(t, err)
	defer f.Close() //nolint:errcheck
	assert.Equal(t, []string{"A propos de la compagnie", "Avenants"}, f.GetSheetList())

	rows, err := f.GetRows("A propos de la compagnie")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Compagnie", "Nom", "Date_de_signature_de_contrats"}, rows[0])
	assert.Equal(t, []string{"Y", "C", "15 mars 2024"}, rows[1])
}

func TestExport_DOCX(t *testing.T) {
	_, h := newTestServer(t, nil)
	fields := map[string][]string{"format": {"DOCX"}}
	rec := serve(h, multipartRequest(t, "/api/export", []upload{tableUpload()}, fields))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	assert.Equal(t, export.MediaTypeDOCX, rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".docx")

	zr, err := zip.NewReader(bytes.NewReader(rec.Body.Bytes()), int64(rec.Body.Len()))
	require.NoError(t, err)
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	assert.Contains(t, names, "word/document.xml")
}

func TestExport_DefaultFormatFromConfig(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) { c.Export.DefaultFormat = "docx" })
	rec := serve(h, multipartRequest(t, "/api/export", []upload{tableUpload()}, nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, export.MediaTypeDOCX, rec.Header().Get("Content-Type"))
}

func TestExport_BadFormat(t *testing.T) {
	_, h := newTestServer(t, nil)
	rec := serve(h, multipartRequest(t, "/api/export", []upload{tableUpload()}, map[string][]string{"format": {"pdf"}}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	decode(t, rec, &body)
	assert.Contains(t, body.Error, "format")
}

func TestUploadTooLarge(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) { c.Server.MaxUploadMB = 1 })
	big := upload{field: "table", name: "blocs.csv", data: bytes.Repeat([]byte("A,X\n"), 1<<19)}

	rec := serve(h, multipartRequest(t, "/api/companies", []upload{big}, nil))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestUploadCache(t *testing.T) {
	s, h := newTestServer(t, nil)

	for range 2 {
		rec := serve(h, multipartRequest(t, "/api/companies", []upload{tableUpload()}, nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
	stats := s.tables.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/cache", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"tables"`)
}

func TestRateLimit(t *testing.T) {
	_, h := newTestServer(t, func(c *config.Config) {
		c.Server.RateLimit = 0.001
		c.Server.RateBurst = 1
	})

	req := func(addr string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/sections", nil)
		r.RemoteAddr = addr
		return r
	}
	assert.Equal(t, http.StatusOK, serve(h, req("10.0.0.1:1234")).Code)

	rec := serve(h, req("10.0.0.1:5678"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))

	assert.Equal(t, http.StatusOK, serve(h, req("10.0.0.2:1234")).Code, "limits are per client")
	assert.Equal(t, http.StatusOK, serve(h, httptest.NewRequest(http.MethodGet, "/health", nil)).Code, "health is not limited")
}

func TestRateLimit_ForwardedHeaders(t *testing.T) {
	limited := func(c *config.Config) {
		c.Server.RateLimit = 0.001
		c.Server.RateBurst = 1
	}
	req := func(forwarded string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/api/sections", nil)
		r.RemoteAddr = "10.0.0.1:1234"
		r.Header.Set("X-Forwarded-For", forwarded)
		return r
	}

	_, h := newTestServer(t, limited)
	assert.Equal(t, http.StatusOK, serve(h, req("203.0.113.1")).Code)
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req("203.0.113.2")).Code,
		"forwarded headers are ignored unless the proxy is trusted")
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req("203.0.113.3")).Code)

	_, h = newTestServer(t, func(c *config.Config) {
		limited(c)
		c.Server.TrustProxy = true
	})
	assert.Equal(t, http.StatusOK, serve(h, req("203.0.113.1")).Code)
	assert.Equal(t, http.StatusOK, serve(h, req("203.0.113.2")).Code, "trusted proxy forwards the client address")
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req("203.0.113.2")).Code)
}

func TestRateLimiter_PrunesIdleClients(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))

	now = now.Add(clientIdle + time.Second)
	assert.True(t, rl.Allow("b"))
	rl.mu.Lock()
	_, kept := rl.clients["a"]
	rl.mu.Unlock()
	assert.False(t, kept)
}

func TestCORSPreflight(t *testing.T) {
	_, h := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/api/view", nil)
	req.Header.Set("Origin", "https://carte.example.org")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)

	rec := serve(h, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestMetrics(t *testing.T) {
	_, h := newTestServer(t, nil)
	serve(h, httptest.NewRequest(http.MethodGet, "/api/sections", nil))
	serve(h, multipartRequest(t, "/api/companies", []upload{tableUpload()}, nil))

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `concession_http_requests_total{method="GET",route="/api/sections",status="200"} 1`)
	assert.Contains(t, body, `concession_upload_cache_lookups_total{kind="table",result="miss"} 1`)
	assert.Contains(t, body, "concession_http_request_duration_seconds")
}

func TestHTTPServer(t *testing.T) {
	s, _ := newTestServer(t, nil)
	srv := s.HTTPServer(9191)
	assert.Equal(t, ":9191", srv.Addr)
	assert.Equal(t, 30*time.Second, srv.ReadTimeout)
	assert.Equal(t, 120*time.Second, srv.WriteTimeout)
	assert.NotNil(t, srv.Handler)
}
