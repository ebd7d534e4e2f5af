package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

const (
	OSConfigPath      = "CONFIG_PATH"
	DefaultConfigName = "config.yaml"
	TypeYaml          = "yaml"
	EnvPrefix         = "TASKBOARD"

	ServerPort = "server.port"

	DatabaseURL         = "database.url"
	DatabaseSQLitePath  = "database.sqlite_path"
	DatabaseForceSQLite = "database.force_sqlite"

	LogLevel        = "log.level"
	LogFormat       = "log.format"
	LogFile         = "log.file"
	LogMaxSizeMB    = "log.max_size_mb"
	LogMaxBackups   = "log.max_backups"
	LogMaxAgeDays   = "log.max_age_days"
	LogReportCaller = "log.report_caller"

	DashboardTimezone = "dashboard.timezone"
	MemoLimit         = "memo.limit"
)

// legacyEnv maps keys to the unprefixed variables earlier deployments used.
// POSTGRES_URL is consulted after DATABASE_URL.
var legacyEnv = map[string][]string{
	ServerPort:          {"PORT"},
	DatabaseURL:         {"DATABASE_URL", "POSTGRES_URL"},
	DatabaseSQLitePath:  {"SQLITE_DB_PATH"},
	DatabaseForceSQLite: {"FORCE_SQLITE"},
}

// Config is the resolved runtime configuration.
type Config struct {
	Port string

	DatabaseURL string
	SQLitePath  string
	ForceSQLite bool

	Log Log

	Location  *time.Location
	MemoLimit int

	v *viper.Viper
}

// Log configures logrus output and file rotation.
type Log struct {
	Level        string
	Format       string
	File         string
	MaxSizeMB    int
	MaxBackups   int
	MaxAgeDays   int
	ReportCaller bool
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(ServerPort, "8080")
	v.SetDefault(DatabaseURL, "")
	v.SetDefault(DatabaseSQLitePath, filepath.Join("data", "tasks.db"))
	v.SetDefault(DatabaseForceSQLite, false)
	v.SetDefault(LogLevel, "info")
	v.SetDefault(LogFormat, "json")
	v.SetDefault(LogFile, "")
	v.SetDefault(LogMaxSizeMB, 50)
	v.SetDefault(LogMaxBackups, 3)
	v.SetDefault(LogMaxAgeDays, 28)
	v.SetDefault(LogReportCaller, false)
	v.SetDefault(DashboardTimezone, "UTC")
	v.SetDefault(MemoLimit, 50)
}

// ConfigFile returns the config file to read: explicit wins, then
// $CONFIG_PATH/config.yaml, then ./config.yaml. The file need not exist.
func ConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if dir := os.Getenv(OSConfigPath); dir != "" {
		if strings.HasSuffix(dir, ".yaml") || strings.HasSuffix(dir, ".yml") {
			return dir
		}
		return filepath.Join(dir, DefaultConfigName)
	}
	return filepath.Join(".", DefaultConfigName)
}

// Load reads path (see ConfigFile) merged with defaults and environment.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType(TypeYaml)
	v.SetConfigFile(ConfigFile(path))
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config %s: %w", v.ConfigFileUsed(), err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key, envName(key)}, names...)...); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", key, err)
		}
	}

	return fromViper(v)
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
}

func fromViper(v *viper.Viper) (*Config, error) {
	loc, err := time.LoadLocation(v.GetString(DashboardTimezone))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", DashboardTimezone, err)
	}
	return &Config{
		Port:        v.GetString(ServerPort),
		DatabaseURL: v.GetString(DatabaseURL),
		SQLitePath:  v.GetString(DatabaseSQLitePath),
		ForceSQLite: v.GetBool(DatabaseForceSQLite),
		Log: Log{
			Level:        v.GetString(LogLevel),
			Format:       v.GetString(LogFormat),
			File:         v.GetString(LogFile),
			MaxSizeMB:    v.GetInt(LogMaxSizeMB),
			MaxBackups:   v.GetInt(LogMaxBackups),
			MaxAgeDays:   v.GetInt(LogMaxAgeDays),
			ReportCaller: v.GetBool(LogReportCaller),
		},
		Location:  loc,
		MemoLimit: v.GetInt(MemoLimit),
		v:         v,
	}, nil
}

// Watch re-reads the config file whenever it changes and passes the result
// to onChange. Invalid intermediate states are reported through onError.
func (c *Config) Watch(onChange func(*Config), onError func(error)) {
	if c.v == nil {
		return
	}
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		next, err := fromViper(c.v)
		if err != nil {
			if onError != nil {
				onError(fmt.Errorf("reload %s: %w", e.Name, err))
			}
			return
		}
		onChange(next)
	})
	c.v.WatchConfig()
}

// Settings returns every resolved key.
func (c *Config) Settings() map[string]any {
	if c.v == nil {
		return nil
	}
	return c.v.AllSettings()
}
