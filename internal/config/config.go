package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-ini/ini"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.ini"

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Export     ExportConfig     `yaml:"export"`
	Schedule   string           `yaml:"schedule"`
	Storage    StorageConfig    `yaml:"storage"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

type DatabaseConfig struct {
	Type           string `yaml:"type"`
	Host           string `yaml:"host"`
	Port           int    `yaml:"port"`
	Name           string `yaml:"database"`
	User           string `yaml:"user"`
	Password       string `yaml:"password"`
	Path           string `yaml:"path"`
	ConnectTimeout int    `yaml:"connect_timeout"` // seconds
}

// ExportConfig holds defaults for the export run. The table selection keys are
// only consulted by the daemon; one-shot runs take their selection from flags.
type ExportConfig struct {
	OutputDir string `yaml:"output_dir"`
	Tables    string `yaml:"tables"`
	Pattern   string `yaml:"pattern"`
	AllTables bool   `yaml:"all_tables"`
	Verify    bool   `yaml:"verify"`
	Manifest  bool   `yaml:"manifest"`
}

type StorageConfig struct {
	Backend string   `yaml:"backend"` // "", "local" or "s3"
	Path    string   `yaml:"path"`
	Prefix  string   `yaml:"prefix"`
	S3      S3Config `yaml:"s3"`
}

type S3Config struct {
	Bucket    string `yaml:"bucket"`
	Endpoint  string `yaml:"endpoint"`
	Region    string `yaml:"region"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	UseSSL    bool   `yaml:"use_ssl"`
}

type MonitoringConfig struct {
	MetricsPort int    `yaml:"metrics_port"`
	HealthPort  int    `yaml:"health_port"`
	WebhookURL  string `yaml:"webhook_url"`
	BaseURL     string `yaml:"base_url"`
}

// Error reports a settings file that is missing or malformed.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return "config: " + e.Err.Error()
	}
	return "config " + e.Path + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads the settings file at configPath (INI unless the extension is
// .yaml or .yml), applies CSVEXPORT_* environment overrides and validates the
// result. An empty path skips the file and relies on the environment alone.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Database: DatabaseConfig{
			Type:           "mysql",
			ConnectTimeout: 10,
		},
		Export: ExportConfig{
			OutputDir: "output",
		},
		Schedule: "0 2 * * *",
		Monitoring: MonitoringConfig{
			MetricsPort: 9090,
			HealthPort:  8080,
		},
	}

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &Error{Path: configPath, Err: err}
		}
	}

	if err := cfg.loadFromEnv(); err != nil {
		return nil, &Error{Path: configPath, Err: err}
	}

	if err := cfg.validate(); err != nil {
		return nil, &Error{Path: configPath, Err: err}
	}

	return cfg, nil
}

func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := expandVars(data)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(expanded, c); err != nil {
			return fmt.Errorf("failed to parse config file: %w", err)
		}
		return nil
	default:
		return c.loadINI(expanded)
	}
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandVars replaces ${VAR} references with the environment value. A bare $
// is literal.
func expandVars(data []byte) []byte {
	return envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		return []byte(os.Getenv(string(envRef.FindSubmatch(ref)[1])))
	})
}

var requiredDatabaseKeys = []string{"host", "database", "user", "password"}

// iniOptions keeps everything after "=" as the value, including '#', ';',
// surrounding quotes and a trailing backslash. Section and key names are
// case-insensitive.
var iniOptions = ini.LoadOptions{
	Insensitive:             true,
	IgnoreInlineComment:     true,
	IgnoreContinuation:      true,
	PreserveSurroundedQuote: true,
}

func (c *Config) loadINI(data []byte) error {
	f, err := ini.LoadSources(iniOptions, data)
	if err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	db, err := f.GetSection("database")
	if err != nil {
		return errors.New("missing [database] section")
	}

	if t := db.Key("type").String(); t != "" {
		c.Database.Type = t
	}

	if !c.IsSQLite() {
		for _, k := range requiredDatabaseKeys {
			if !db.HasKey(k) {
				return fmt.Errorf("missing required key %q in [database]", k)
			}
		}
	}

	c.Database.Host = db.Key("host").String()
	c.Database.Name = db.Key("database").String()
	c.Database.User = db.Key("user").String()
	c.Database.Password = db.Key("password").String()
	c.Database.Path = db.Key("path").String()

	if db.HasKey("port") {
		port, err := db.Key("port").Int()
		if err != nil {
			return fmt.Errorf("port must be an integer, got %q", db.Key("port").String())
		}
		c.Database.Port = port
	}
	if db.HasKey("connect_timeout") {
		timeout, err := db.Key("connect_timeout").Int()
		if err != nil {
			return fmt.Errorf("connect_timeout must be an integer, got %q", db.Key("connect_timeout").String())
		}
		c.Database.ConnectTimeout = timeout
	}

	exp := f.Section("export")
	c.Export.OutputDir = exp.Key("output_dir").MustString(c.Export.OutputDir)
	c.Export.Tables = exp.Key("tables").String()
	c.Export.Pattern = exp.Key("pattern").String()
	c.Export.AllTables = exp.Key("all_tables").MustBool(false)
	c.Export.Verify = exp.Key("verify").MustBool(false)
	c.Export.Manifest = exp.Key("manifest").MustBool(false)
	c.Schedule = exp.Key("schedule").MustString(c.Schedule)

	st := f.Section("storage")
	c.Storage.Backend = st.Key("backend").String()
	c.Storage.Path = st.Key("path").String()
	c.Storage.Prefix = st.Key("prefix").String()
	c.Storage.S3.Bucket = st.Key("s3_bucket").String()
	c.Storage.S3.Endpoint = st.Key("s3_endpoint").String()
	c.Storage.S3.Region = st.Key("s3_region").String()
	c.Storage.S3.AccessKey = st.Key("s3_access_key").String()
	c.Storage.S3.SecretKey = st.Key("s3_secret_key").String()
	c.Storage.S3.UseSSL = st.Key("s3_use_ssl").MustBool(false)

	mon := f.Section("monitoring")
	c.Monitoring.MetricsPort = mon.Key("metrics_port").MustInt(c.Monitoring.MetricsPort)
	c.Monitoring.HealthPort = mon.Key("health_port").MustInt(c.Monitoring.HealthPort)
	c.Monitoring.WebhookURL = mon.Key("webhook_url").String()
	c.Monitoring.BaseURL = mon.Key("base_url").String()

	return nil
}

func (c *Config) loadFromEnv() error {
	if v := os.Getenv("CSVEXPORT_DB_TYPE"); v != "" {
		c.Database.Type = v
	}
	if v := os.Getenv("CSVEXPORT_DB_HOST"); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv("CSVEXPORT_DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("CSVEXPORT_DB_PORT must be an integer, got %q", v)
		}
		c.Database.Port = port
	}
	if v := os.Getenv("CSVEXPORT_DB_NAME"); v != "" {
		c.Database.Name = v
	}
	if v := os.Getenv("CSVEXPORT_DB_USER"); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv("CSVEXPORT_DB_PASSWORD"); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv("CSVEXPORT_DB_PATH"); v != "" {
		c.Database.Path = v
	}

	if v := os.Getenv("CSVEXPORT_OUTPUT_DIR"); v != "" {
		c.Export.OutputDir = v
	}
	if v := os.Getenv("CSVEXPORT_SCHEDULE"); v != "" {
		c.Schedule = v
	}

	if v := os.Getenv("CSVEXPORT_STORAGE_BACKEND"); v != "" {
		c.Storage.Backend = v
	}
	if v := os.Getenv("CSVEXPORT_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("CSVEXPORT_S3_BUCKET"); v != "" {
		c.Storage.S3.Bucket = v
	}
	if v := os.Getenv("CSVEXPORT_S3_ENDPOINT"); v != "" {
		c.Storage.S3.Endpoint = v
	}
	if v := os.Getenv("CSVEXPORT_S3_ACCESS_KEY"); v != "" {
		c.Storage.S3.AccessKey = v
	}
	if v := os.Getenv("CSVEXPORT_S3_SECRET_KEY"); v != "" {
		c.Storage.S3.SecretKey = v
	}

	if v := os.Getenv("CSVEXPORT_WEBHOOK_URL"); v != "" {
		c.Monitoring.WebhookURL = v
	}

	return nil
}

func (c *Config) validate() error {
	switch strings.ToLower(c.Database.Type) {
	case "mysql", "mariadb":
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if err := c.requireServerKeys(); err != nil {
			return err
		}
	case "postgres", "postgresql", "pg":
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if err := c.requireServerKeys(); err != nil {
			return err
		}
	case "sqlite", "sqlite3":
		if c.Database.Path == "" && c.Database.Name == "" {
			return errors.New("database path is required for SQLite")
		}
	default:
		return fmt.Errorf("unsupported database type: %s (supported: mysql, postgres, sqlite)", c.Database.Type)
	}

	if c.Database.Port < 0 || c.Database.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Database.Port)
	}

	switch c.Storage.Backend {
	case "", "none":
	case "local":
		if c.Storage.Path == "" {
			return errors.New("storage path is required when using local storage")
		}
	case "s3":
		if c.Storage.S3.Bucket == "" {
			return errors.New("S3 bucket is required when using S3 storage")
		}
		if c.Storage.S3.AccessKey == "" || c.Storage.S3.SecretKey == "" {
			return errors.New("S3 access key and secret key are required")
		}
	default:
		return errors.New("storage backend must be 'local' or 's3'")
	}

	return nil
}

func (c *Config) requireServerKeys() error {
	if c.Database.Host == "" {
		return errors.New("database host is required")
	}
	if c.Database.Name == "" {
		return errors.New("database name is required")
	}
	if c.Database.User == "" {
		return errors.New("database user is required")
	}
	return nil
}

func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Database.ConnectTimeout) * time.Second
}

func (c *Config) IsSQLite() bool {
	t := strings.ToLower(c.Database.Type)
	return t == "sqlite" || t == "sqlite3"
}

func (c *Config) MirrorEnabled() bool {
	return c.Storage.Backend != "" && c.Storage.Backend != "none"
}
