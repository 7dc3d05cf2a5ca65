package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	gosync "sync"

	"github.com/spf13/viper"
)

// DatabaseConfig locates the SQLite database file.
type DatabaseConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MailboxConfig holds the single mailbox the scanner reads and the SMTP
// relay used for outbound sign requests.
type MailboxConfig struct {
	// Account is the mailbox login and the From address of outbound mail.
	// An empty account means email is not configured.
	Account string `mapstructure:"account" yaml:"account"`

	IMAPHost string `mapstructure:"imap_host" yaml:"imap_host"`
	IMAPPort int    `mapstructure:"imap_port" yaml:"imap_port"`
	IMAPTLS  bool   `mapstructure:"imap_tls" yaml:"imap_tls"`
	Folder   string `mapstructure:"folder" yaml:"folder"`

	SMTPHost string `mapstructure:"smtp_host" yaml:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" yaml:"smtp_port"`
	SMTPTLS  bool   `mapstructure:"smtp_tls" yaml:"smtp_tls"`

	// LastUID is the scan watermark: the highest UID already processed.
	LastUID uint32 `mapstructure:"last_uid" yaml:"last_uid"`
}

// Configured reports whether an account has been entered.
func (m MailboxConfig) Configured() bool {
	return strings.TrimSpace(m.Account) != ""
}

// PolicyConfig holds signature matching policy flags.
type PolicyConfig struct {
	RequireFromMatch bool `mapstructure:"require_from_match" yaml:"require_from_match"`
}

// ScanConfig controls background scanning in the terminal UI.
type ScanConfig struct {
	PollIntervalSec int `mapstructure:"poll_interval_sec" yaml:"poll_interval_sec"`
}

// LoggingConfig selects the log level, encoding, and destination.
type LoggingConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
	Output string `mapstructure:"output" yaml:"output"`
}

// ReportConfig holds where evidence reports are written.
type ReportConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Mailbox  MailboxConfig  `mapstructure:"mailbox" yaml:"mailbox"`
	Policy   PolicyConfig   `mapstructure:"policy" yaml:"policy"`
	Scan     ScanConfig     `mapstructure:"scan" yaml:"scan"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
	Report   ReportConfig   `mapstructure:"report" yaml:"report"`
}

// Clone returns a copy that shares no state with c.
func (c *AppConfig) Clone() *AppConfig {
	cp := *c
	return &cp
}

// DefaultConfigDir returns ~/.config/certledger.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "certledger")
}

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/certledger/config.yaml.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() *AppConfig {
	dir := DefaultConfigDir()
	return &AppConfig{
		Database: DatabaseConfig{
			Path: filepath.Join(dir, "certledger.db"),
		},
		Mailbox: MailboxConfig{
			IMAPHost: "imap.gmail.com",
			IMAPPort: 993,
			IMAPTLS:  true,
			Folder:   "INBOX",
			SMTPHost: "smtp.gmail.com",
			SMTPPort: 587,
			SMTPTLS:  false,
		},
		Policy: PolicyConfig{
			RequireFromMatch: true,
		},
		Scan: ScanConfig{
			PollIntervalSec: 300,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
			Output: filepath.Join(dir, "certledger.log"),
		},
		Report: ReportConfig{
			Dir: filepath.Join(dir, "reports"),
		},
	}
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns a default configuration.
func LoadConfig(path string) (*AppConfig, error) {
	def := DefaultAppConfig()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	// Set defaults so missing keys resolve to sensible values.
	v.SetDefault("database.path", def.Database.Path)
	v.SetDefault("mailbox.imap_host", def.Mailbox.IMAPHost)
	v.SetDefault("mailbox.imap_port", def.Mailbox.IMAPPort)
	v.SetDefault("mailbox.imap_tls", def.Mailbox.IMAPTLS)
	v.SetDefault("mailbox.folder", def.Mailbox.Folder)
	v.SetDefault("mailbox.smtp_host", def.Mailbox.SMTPHost)
	v.SetDefault("mailbox.smtp_port", def.Mailbox.SMTPPort)
	v.SetDefault("mailbox.smtp_tls", def.Mailbox.SMTPTLS)
	v.SetDefault("mailbox.last_uid", 0)
	v.SetDefault("scan.poll_interval_sec", def.Scan.PollIntervalSec)
	v.SetDefault("logging.level", def.Logging.Level)
	v.SetDefault("logging.format", def.Logging.Format)
	v.SetDefault("logging.output", def.Logging.Output)
	v.SetDefault("report.dir", def.Report.Dir)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *fs.PathError
		if errors.As(err, &pathErr) {
			return def, nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return def, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := DefaultAppConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	// Viper unmarshals a missing bool as false; the policy defaults to on
	// unless the file says otherwise.
	if !v.IsSet("policy.require_from_match") {
		cfg.Policy.RequireFromMatch = true
	}
	if cfg.Scan.PollIntervalSec <= 0 {
		cfg.Scan.PollIntervalSec = def.Scan.PollIntervalSec
	}
	if strings.TrimSpace(cfg.Mailbox.Folder) == "" {
		cfg.Mailbox.Folder = def.Mailbox.Folder
	}

	return cfg, nil
}

// SaveConfig writes the given configuration to a YAML file at path,
// creating parent directories if needed. The file is replaced atomically
// so a crash never leaves a half-written watermark behind.
func SaveConfig(path string, cfg *AppConfig) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	ext := filepath.Ext(path)
	if ext == "" {
		ext = ".yaml"
	}
	tmp := strings.TrimSuffix(path, filepath.Ext(path)) + ".tmp" + ext

	v := viper.New()
	v.SetConfigType("yaml")

	v.Set("database", cfg.Database)
	v.Set("mailbox", cfg.Mailbox)
	v.Set("policy", cfg.Policy)
	v.Set("scan", cfg.Scan)
	v.Set("logging", cfg.Logging)
	v.Set("report", cfg.Report)

	if err := v.WriteConfigAs(tmp); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("writing config to %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replacing config %s: %w", path, err)
	}

	return nil
}

// FileConfigStore loads and saves the configuration record at Path.
type FileConfigStore struct {
	Path string
}

// Load reads the configuration file.
func (s FileConfigStore) Load() (*AppConfig, error) {
	return LoadConfig(s.Path)
}

// Save replaces the configuration file.
func (s FileConfigStore) Save(cfg *AppConfig) error {
	return SaveConfig(s.Path, cfg)
}

// MemoryConfigStore keeps the configuration in memory. It backs offline
// replays and tests, where the on-disk watermark must stay untouched.
type MemoryConfigStore struct {
	mu  gosync.Mutex
	cfg *AppConfig
}

// NewMemoryConfigStore returns a store seeded with a copy of cfg.
func NewMemoryConfigStore(cfg *AppConfig) *MemoryConfigStore {
	return &MemoryConfigStore{cfg: cfg.Clone()}
}

// Load returns a copy of the held configuration.
func (s *MemoryConfigStore) Load() (*AppConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.Clone(), nil
}

// Save replaces the held configuration with a copy of cfg.
func (s *MemoryConfigStore) Save(cfg *AppConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg.Clone()
	return nil
}
