package config

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/concession-cli/internal/dates"
	"github.com/sells-group/concession-cli/internal/export"
	"github.com/sells-group/concession-cli/internal/geometry"
	"github.com/sells-group/concession-cli/internal/model"
	"github.com/sells-group/concession-cli/internal/report"
	"github.com/sells-group/concession-cli/internal/table"
)

// Config holds the full application configuration.
type Config struct {
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
	Schema   SchemaConfig   `yaml:"schema" mapstructure:"schema"`
	Dates    DatesConfig    `yaml:"dates" mapstructure:"dates"`
	Geometry GeometryConfig `yaml:"geometry" mapstructure:"geometry"`
	Report   ReportConfig   `yaml:"report" mapstructure:"report"`
	Export   ExportConfig   `yaml:"export" mapstructure:"export"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
}

// SchemaConfig names the columns of the attribute workbook.
type SchemaConfig struct {
	NameColumn        string   `yaml:"name_column" mapstructure:"name_column"`
	CompanyColumn     string   `yaml:"company_column" mapstructure:"company_column"`
	PhaseColumn       string   `yaml:"phase_column" mapstructure:"phase_column"`
	CommentColumn     string   `yaml:"comment_column" mapstructure:"comment_column"`
	SignatureColumn   string   `yaml:"signature_column" mapstructure:"signature_column"`
	EffectiveColumn   string   `yaml:"effective_column" mapstructure:"effective_column"`
	PhaseStartColumn  string   `yaml:"phase_start_column" mapstructure:"phase_start_column"`
	PhaseEndColumn    string   `yaml:"phase_end_column" mapstructure:"phase_end_column"`
	DateColumns       []string `yaml:"date_columns" mapstructure:"date_columns"`
	GeometryNameField string   `yaml:"geometry_name_field" mapstructure:"geometry_name_field"`
	CSVDelimiter      string   `yaml:"csv_delimiter" mapstructure:"csv_delimiter"` // empty sniffs ',' or ';'
}

// DatesConfig configures date parsing.
type DatesConfig struct {
	DayFirst bool `yaml:"day_first" mapstructure:"day_first"`
}

// GeometryConfig configures the shapefile loader.
type GeometryConfig struct {
	ScratchDir string `yaml:"scratch_dir" mapstructure:"scratch_dir"`
}

// ReportConfig configures the section catalog.
type ReportConfig struct {
	CatalogPath string `yaml:"catalog_path" mapstructure:"catalog_path"`
}

// ExportConfig configures document export.
type ExportConfig struct {
	DefaultFormat string `yaml:"default_format" mapstructure:"default_format"`
	FilePrefix    string `yaml:"file_prefix" mapstructure:"file_prefix"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	MaxUploadMB      int      `yaml:"max_upload_mb" mapstructure:"max_upload_mb"`
	RateLimit        float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	RateBurst        int      `yaml:"rate_burst" mapstructure:"rate_burst"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
	ReadTimeoutSecs  int      `yaml:"read_timeout_secs" mapstructure:"read_timeout_secs"`
	WriteTimeoutSecs int      `yaml:"write_timeout_secs" mapstructure:"write_timeout_secs"`
	// TrustProxy takes the client address from X-Forwarded-For or X-Real-IP.
	// Enable only behind a reverse proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy" mapstructure:"trust_proxy"`
}

// CacheConfig configures the upload cache of the HTTP API.
type CacheConfig struct {
	MaxEntries int `yaml:"max_entries" mapstructure:"max_entries"`
	TTLMinutes int `yaml:"ttl_minutes" mapstructure:"ttl_minutes"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CONCESSION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	schema := model.DefaultSchema()
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("schema.name_column", schema.NameColumn)
	v.SetDefault("schema.company_column", schema.CompanyColumn)
	v.SetDefault("schema.phase_column", schema.PhaseColumn)
	v.SetDefault("schema.comment_column", schema.CommentColumn)
	v.SetDefault("schema.signature_column", schema.SignatureColumn)
	v.SetDefault("schema.effective_column", schema.EffectiveColumn)
	v.SetDefault("schema.phase_start_column", schema.PhaseStartColumn)
	v.SetDefault("schema.phase_end_column", schema.PhaseEndColumn)
	v.SetDefault("schema.date_columns", schema.DateColumns)
	v.SetDefault("schema.geometry_name_field", schema.GeometryNameField)
	v.SetDefault("schema.csv_delimiter", "")
	v.SetDefault("dates.day_first", true)
	v.SetDefault("geometry.scratch_dir", "")
	v.SetDefault("report.catalog_path", "")
	v.SetDefault("export.default_format", string(export.FormatXLSX))
	v.SetDefault("export.file_prefix", "rapport")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.max_upload_mb", 64)
	v.SetDefault("server.rate_limit", 10.0)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("server.read_timeout_secs", 30)
	v.SetDefault("server.write_timeout_secs", 120)
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("cache.max_entries", 32)
	v.SetDefault("cache.ttl_minutes", 30)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate rejects configurations the loaders cannot work with.
func (c *Config) Validate() error {
	var problems []string

	for _, f := range []struct{ key, val string }{
		{"schema.name_column", c.Schema.NameColumn},
		{"schema.company_column", c.Schema.CompanyColumn},
		{"schema.geometry_name_field", c.Schema.GeometryNameField},
	} {
		if strings.TrimSpace(f.val) == "" {
			problems = append(problems, f.key+" is empty")
		}
	}
	if d := c.Schema.CSVDelimiter; d != "" && utf8.RuneCountInString(d) != 1 {
		problems = append(problems, "schema.csv_delimiter must be a single character")
	}
	if _, err := export.ParseFormat(c.Export.DefaultFormat); err != nil {
		problems = append(problems, "export.default_format must be xlsx or docx")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, "server.port must be between 1 and 65535")
	}
	if c.Server.MaxUploadMB <= 0 {
		problems = append(problems, "server.max_upload_mb must be positive")
	}
	if c.Server.RateLimit <= 0 || c.Server.RateBurst <= 0 {
		problems = append(problems, "server.rate_limit and server.rate_burst must be positive")
	}
	if c.Cache.MaxEntries < 0 || c.Cache.TTLMinutes < 0 {
		problems = append(problems, "cache limits must not be negative")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Schema converts the schema section to the model schema.
func (s SchemaConfig) Schema() model.Schema {
	return model.Schema{
		NameColumn:        s.NameColumn,
		CompanyColumn:     s.CompanyColumn,
		PhaseColumn:       s.PhaseColumn,
		CommentColumn:     s.CommentColumn,
		SignatureColumn:   s.SignatureColumn,
		EffectiveColumn:   s.EffectiveColumn,
		PhaseStartColumn:  s.PhaseStartColumn,
		PhaseEndColumn:    s.PhaseEndColumn,
		DateColumns:       append([]string(nil), s.DateColumns...),
		GeometryNameField: s.GeometryNameField,
	}
}

// TableOptions returns the tabular loader options.
func (c *Config) TableOptions() table.Options {
	opts := table.DefaultOptions()
	opts.Parser = dates.Parser{DayFirst: c.Dates.DayFirst}
	if d, _ := utf8.DecodeRuneInString(c.Schema.CSVDelimiter); d != utf8.RuneError {
		opts.Delimiter = d
	}
	return opts
}

// GeometryOptions returns the geometry loader options.
func (c *Config) GeometryOptions() geometry.Options {
	return geometry.Options{
		ScratchDir: c.Geometry.ScratchDir,
		NameField:  c.Schema.GeometryNameField,
	}
}

// Catalog returns the report catalog: the file at report.catalog_path when
// set, else the built-in sections.
func (c *Config) Catalog() (report.Catalog, error) {
	if c.Report.CatalogPath == "" {
		return report.DefaultCatalog(), nil
	}
	return report.LoadCatalog(c.Report.CatalogPath)
}

// CacheTTL returns the cache entry lifetime.
func (c CacheConfig) CacheTTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
