package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// SysConfig system level configuration
type SysConfig struct {
	Appid    string `yaml:"appid" json:"appid"`
	Location string `yaml:"location" json:"location"`
	Workdir  string `yaml:"workdir" json:"workdir"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

// WebConfig web server configuration
type WebConfig struct {
	Host      string `yaml:"host" json:"host"`
	Port      int    `yaml:"port" json:"port"`
	Secret    string `yaml:"secret" json:"secret"`
	JwtExpire int    `yaml:"jwt_expire" json:"jwt_expire"` // hours
}

// DBConfig database configuration
type DBConfig struct {
	Type     string `yaml:"type" json:"type"` // postgres | sqlite
	Host     string `yaml:"host" json:"host"`
	Port     int    `yaml:"port" json:"port"`
	Name     string `yaml:"name" json:"name"`
	User     string `yaml:"user" json:"user"`
	Passwd   string `yaml:"passwd" json:"passwd"`
	MaxConn  int    `yaml:"max_conn" json:"max_conn"`
	IdleConn int    `yaml:"idle_conn" json:"idle_conn"`
}

// LogConfig logger configuration
type LogConfig struct {
	Mode       string `yaml:"mode" json:"mode"` // development | production
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

// SessionConfig session manager tunables.
type SessionConfig struct {
	// TeardownTimeout bounds how long disconnect/logout wait for the
	// protocol client to release resources before cleanup proceeds.
	TeardownTimeout time.Duration `yaml:"teardown_timeout" json:"teardown_timeout"`
	// QRWindow is the caller-facing polling window after which an
	// unconsumed QR challenge should be considered abandoned. The core
	// does not expire challenges itself.
	QRWindow time.Duration `yaml:"qr_window" json:"qr_window"`
	// AutoReconnect enables a single delayed reconnect attempt after an
	// unsolicited disconnect notification.
	AutoReconnect      bool          `yaml:"auto_reconnect" json:"auto_reconnect"`
	AutoReconnectDelay time.Duration `yaml:"auto_reconnect_delay" json:"auto_reconnect_delay"`
	// ConnectOnBoot reconnects instances whose persisted status was
	// Connected when the process last stopped.
	ConnectOnBoot bool `yaml:"connect_on_boot" json:"connect_on_boot"`
	// JournalRetention is how long journaled events are kept before the
	// purge job removes them.
	JournalRetention time.Duration `yaml:"journal_retention" json:"journal_retention"`
}

// WebhookConfig webhook delivery tunables.
type WebhookConfig struct {
	Workers      int           `yaml:"workers" json:"workers"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	Timeout      time.Duration `yaml:"timeout" json:"timeout"`
	DrainEvery   time.Duration `yaml:"drain_every" json:"drain_every"`
	Retention    time.Duration `yaml:"retention" json:"retention"`
	DrainBatch   int           `yaml:"drain_batch" json:"drain_batch"`
	RetryBackoff time.Duration `yaml:"retry_backoff" json:"retry_backoff"`
}

type AppConfig struct {
	System   SysConfig     `yaml:"system" json:"system"`
	Web      WebConfig     `yaml:"web" json:"web"`
	Database DBConfig      `yaml:"database" json:"database"`
	Logger   LogConfig     `yaml:"logger" json:"logger"`
	Session  SessionConfig `yaml:"session" json:"session"`
	Webhook  WebhookConfig `yaml:"webhook" json:"webhook"`
}

func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		System: SysConfig{
			Appid:    "wagate",
			Location: "Asia/Shanghai",
			Workdir:  "/var/wagate",
			Debug:    true,
		},
		Web: WebConfig{
			Host:      "0.0.0.0",
			Port:      1899,
			Secret:    "9b6de5cc-wagate-1ee6-a432a47b",
			JwtExpire: 24,
		},
		Database: DBConfig{
			Type:     "postgres",
			Host:     "127.0.0.1",
			Port:     5432,
			Name:     "wagate",
			User:     "postgres",
			Passwd:   "wagate",
			MaxConn:  100,
			IdleConn: 10,
		},
		Logger: LogConfig{
			Mode:       "development",
			FileEnable: true,
			Filename:   "/var/wagate/wagate.log",
		},
		Session: SessionConfig{
			TeardownTimeout:    10 * time.Second,
			QRWindow:           2 * time.Minute,
			AutoReconnect:      false,
			AutoReconnectDelay: 15 * time.Second,
			ConnectOnBoot:      false,
			JournalRetention:   72 * time.Hour,
		},
		Webhook: WebhookConfig{
			Workers:      8,
			MaxRetries:   3,
			Timeout:      15 * time.Second,
			DrainEvery:   5 * time.Second,
			Retention:    72 * time.Hour,
			DrainBatch:   100,
			RetryBackoff: 30 * time.Second,
		},
	}
}

// LoadConfig reads the yaml config file and applies environment
// overrides. A missing file yields the defaults.
func LoadConfig(cfile string) *AppConfig {
	cfg := DefaultAppConfig()
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			_ = yaml.Unmarshal(data, cfg)
		}
	}
	setEnvValue("WAGATE_SYSTEM_WORKDIR", &cfg.System.Workdir)
	setEnvValue("WAGATE_WEB_HOST", &cfg.Web.Host)
	setEnvValue("WAGATE_WEB_SECRET", &cfg.Web.Secret)
	setEnvIntValue("WAGATE_WEB_PORT", &cfg.Web.Port)
	setEnvValue("WAGATE_DB_TYPE", &cfg.Database.Type)
	setEnvValue("WAGATE_DB_HOST", &cfg.Database.Host)
	setEnvIntValue("WAGATE_DB_PORT", &cfg.Database.Port)
	setEnvValue("WAGATE_DB_NAME", &cfg.Database.Name)
	setEnvValue("WAGATE_DB_USER", &cfg.Database.User)
	setEnvValue("WAGATE_DB_PWD", &cfg.Database.Passwd)
	setEnvValue("WAGATE_LOGGER_MODE", &cfg.Logger.Mode)
	return cfg
}

// SessionDir returns the root directory holding per-instance
// credential material.
func (c *AppConfig) SessionDir() string {
	return filepath.Join(c.System.Workdir, "sessions")
}

// JournalFile returns the bbolt event journal path.
func (c *AppConfig) JournalFile() string {
	return filepath.Join(c.System.Workdir, "events.db")
}

func setEnvValue(name string, f *string) {
	if v := os.Getenv(name); v != "" {
		*f = v
	}
}

func setEnvIntValue(name string, f *int) {
	if v := os.Getenv(name); v != "" {
		*f = cast.ToInt(v)
	}
}
