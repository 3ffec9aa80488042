// Package config loads engine settings from JSON, YAML or INI files and opens the matching
// provider.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/mirrortom/dbmo"
	"github.com/mirrortom/dbmo/drivers/duckdb"
	"github.com/mirrortom/dbmo/drivers/mysql"
	"github.com/mirrortom/dbmo/drivers/oracle"
	"github.com/mirrortom/dbmo/drivers/postgres"
	"github.com/mirrortom/dbmo/drivers/sqlite"
	"github.com/mirrortom/dbmo/drivers/sqlite3"
	"github.com/mirrortom/dbmo/drivers/sqlserver"
	"gopkg.in/ini.v1"
	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config 数据库连接配置
type Config struct {
	Provider     string `json:"provider" yaml:"provider"`
	ConnString   string `json:"connString" yaml:"connString"`
	Prefix       string `json:"prefix" yaml:"prefix"`
	IdentPattern string `json:"identPattern" yaml:"identPattern"`
	Verbose      bool   `json:"verbose" yaml:"verbose"`

	// 连接池
	MaxOpen         int           `json:"maxOpen" yaml:"maxOpen"`
	MaxIdle         int           `json:"maxIdle" yaml:"maxIdle"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" yaml:"connMaxLifetime"`

	ParseCacheSize int `json:"parseCacheSize" yaml:"parseCacheSize"`

	// 日志
	LogLevel string `json:"logLevel" yaml:"logLevel"`
	LogFile  string `json:"logFile" yaml:"logFile"`
}

// fileConfig is the on-disk shape; durations may be written as "30s" or as seconds.
type fileConfig struct {
	Provider        string `json:"provider" yaml:"provider"`
	ConnString      string `json:"connString" yaml:"connString"`
	Prefix          string `json:"prefix" yaml:"prefix"`
	IdentPattern    string `json:"identPattern" yaml:"identPattern"`
	Verbose         bool   `json:"verbose" yaml:"verbose"`
	MaxOpen         int    `json:"maxOpen" yaml:"maxOpen"`
	MaxIdle         int    `json:"maxIdle" yaml:"maxIdle"`
	ConnMaxLifetime any    `json:"connMaxLifetime" yaml:"connMaxLifetime"`
	ParseCacheSize  *int   `json:"parseCacheSize" yaml:"parseCacheSize"`
	LogLevel        string `json:"logLevel" yaml:"logLevel"`
	LogFile         string `json:"logFile" yaml:"logFile"`
}

func (f fileConfig) config() (*Config, error) {
	c := &Config{
		Provider:       f.Provider,
		ConnString:     f.ConnString,
		Prefix:         f.Prefix,
		IdentPattern:   f.IdentPattern,
		Verbose:        f.Verbose,
		MaxOpen:        f.MaxOpen,
		MaxIdle:        f.MaxIdle,
		ParseCacheSize: dbmo.DefaultParseCacheSize,
		LogLevel:       f.LogLevel,
		LogFile:        f.LogFile,
	}
	if f.ParseCacheSize != nil {
		c.ParseCacheSize = *f.ParseCacheSize
	}
	if f.ConnMaxLifetime != nil {
		d, err := parseDuration(fmt.Sprint(f.ConnMaxLifetime))
		if err != nil {
			return nil, err
		}
		c.ConnMaxLifetime = d
	}
	return c, nil
}

// Load reads path and dispatches on its extension: .json, .yaml / .yml or .ini.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s not found: %w", path, err)
	}
	var c *Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		c, err = ParseJSON(data)
	case ".yaml", ".yml":
		c, err = ParseYAML(data)
	case ".ini", ".cfg", ".conf":
		c, err = ParseINI(data)
	default:
		return nil, fmt.Errorf("%w: unknown config format %q", ErrInvalid, filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return c, nil
}

func ParseJSON(data []byte) (*Config, error) {
	var f fileConfig
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.config()
}

func ParseYAML(data []byte) (*Config, error) {
	var f fileConfig
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f.config()
}

// ParseINI reads key=value lines. Lines starting with # or ; are comments, surrounding
// whitespace is trimmed and quotes around a value are dropped. Keys may live in the default
// section or in a [database] section.
func ParseINI(data []byte) (*Config, error) {
	file, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:               true,
		IgnoreInlineComment:       true,
		UnescapeValueDoubleQuotes: true,
	}, data)
	if err != nil {
		return nil, err
	}
	sec := file.Section("")
	if s, err := file.GetSection("database"); err == nil {
		sec = s
	}
	get := func(key string) string {
		return strings.Trim(strings.TrimSpace(sec.Key(strings.ToLower(key)).String()), `"`)
	}

	c := &Config{
		Provider:       get("provider"),
		ConnString:     get("connString"),
		Prefix:         get("prefix"),
		IdentPattern:   get("identPattern"),
		ParseCacheSize: dbmo.DefaultParseCacheSize,
		LogLevel:       get("logLevel"),
		LogFile:        get("logFile"),
	}
	if v := get("verbose"); v != "" {
		if c.Verbose, err = dbmo.Convert.ToBoolWithError(v); err != nil {
			return nil, fmt.Errorf("%w: verbose: %v", ErrInvalid, err)
		}
	}
	for key, dst := range map[string]*int{"maxOpen": &c.MaxOpen, "maxIdle": &c.MaxIdle, "parseCacheSize": &c.ParseCacheSize} {
		v := get(key)
		if v == "" {
			continue
		}
		n, err := dbmo.Convert.ToIntWithError(v)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err)
		}
		*dst = n
	}
	if v := get("connMaxLifetime"); v != "" {
		if c.ConnMaxLifetime, err = parseDuration(v); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// parseDuration accepts Go duration text ("90s", "5m") or a plain number of seconds.
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if n, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(n * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%w: connMaxLifetime %q", ErrInvalid, s)
	}
	return d, nil
}

// Validate checks the fields Open needs.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("%w: nil config", ErrInvalid)
	}
	if _, ok := providers[strings.ToLower(c.Provider)]; !ok {
		return fmt.Errorf("%w: unknown provider %q", ErrInvalid, c.Provider)
	}
	if strings.TrimSpace(c.ConnString) == "" {
		return fmt.Errorf("%w: connString is empty", ErrInvalid)
	}
	if c.MaxOpen < 0 || c.MaxIdle < 0 {
		return fmt.Errorf("%w: pool sizes must not be negative", ErrInvalid)
	}
	if _, err := c.Syntax(); err != nil {
		return err
	}
	return nil
}

// Syntax returns the placeholder syntax described by Prefix and IdentPattern, falling back to
// the provider's own syntax for an empty Prefix.
func (c *Config) Syntax() (dbmo.Syntax, error) {
	if c.Prefix == "" {
		if f, ok := providers[strings.ToLower(c.Provider)]; ok {
			return f().Syntax(), nil
		}
		return dbmo.AtSyntax, nil
	}
	if utf8.RuneCountInString(c.Prefix) != 1 {
		return dbmo.Syntax{}, fmt.Errorf("%w: prefix must be a single character, got %q", ErrInvalid, c.Prefix)
	}
	r, _ := utf8.DecodeRuneInString(c.Prefix)
	syn, err := dbmo.NewSyntax(r, c.IdentPattern)
	if err != nil {
		return dbmo.Syntax{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return syn, nil
}

// Options converts the engine related settings.
func (c *Config) Options() []dbmo.Option {
	return []dbmo.Option{
		dbmo.WithVerbose(c.Verbose),
		dbmo.WithPool(c.MaxOpen, c.MaxIdle),
		dbmo.WithConnMaxLifetime(c.ConnMaxLifetime),
		dbmo.WithParseCacheSize(c.ParseCacheSize),
	}
}

var providers = map[string]func() dbmo.Provider{
	sqlite.Name:    func() dbmo.Provider { return sqlite.New() },
	sqlite3.Name:   sqlite3.New,
	mysql.Name:     mysql.New,
	postgres.Name:  postgres.New,
	sqlserver.Name: sqlserver.New,
	oracle.Name:    oracle.New,
	duckdb.Name:    duckdb.New,
}

// NewProvider builds the provider named by c.Provider. A custom Prefix is honoured by providers
// that accept one; others reject a prefix that differs from their own.
func (c *Config) NewProvider() (dbmo.Provider, error) {
	name := strings.ToLower(c.Provider)
	f, ok := providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalid, c.Provider)
	}
	if c.Prefix == "" {
		return f(), nil
	}
	syn, err := c.Syntax()
	if err != nil {
		return nil, err
	}
	if name == sqlite.Name {
		return sqlite.New(sqlite.WithSyntax(syn)), nil
	}
	p := f()
	if p.Syntax().Prefix != syn.Prefix || syn.IdentPattern != dbmo.DefaultIdentPattern {
		return nil, fmt.Errorf("%w: provider %s does not accept placeholder syntax %s", ErrInvalid, name, syn)
	}
	return p, nil
}

// Open validates c, applies its logging settings and returns an engine. The connection is made
// lazily by the first command.
func Open(c *Config, extra ...dbmo.Option) (*dbmo.Engine, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	p, err := c.NewProvider()
	if err != nil {
		return nil, err
	}
	switch {
	case c.LogFile != "":
		dbmo.InitLoggerWithFile(c.levelOrDefault(), c.LogFile)
	case c.LogLevel != "":
		dbmo.InitLogger(c.LogLevel)
	}
	return dbmo.New(p, c.ConnString, append(c.Options(), extra...)...)
}

func (c *Config) levelOrDefault() string {
	if c.LogLevel == "" {
		return "info"
	}
	return c.LogLevel
}
