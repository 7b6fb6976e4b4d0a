package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"DecreeWatcher/internal/domain"
)

const (
	defaultTimezone     = "America/Sao_Paulo"
	defaultSearchTerm   = "46930"
	defaultScheduleTime = "11:30"
	defaultPortalURL    = "https://www.ioerj.com.br/portal/modules/conteudoonline/busca_do.php?acao=busca"
	configPathEnv       = "DECREE_WATCHER_CONFIG"
	envFileEnv          = "ENV_FILE"
)

// Config holds high-level settings required across the application.
type Config struct {
	Search        SearchConfig       `yaml:"search"`
	Source        SourceConfig       `yaml:"source"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Calendar      CalendarConfig     `yaml:"calendar"`
	Database      DatabaseConfig     `yaml:"database"`
	Notifications NotificationConfig `yaml:"notifications"`
	Logging       LoggingConfig      `yaml:"logging"`
	Metrics       MetricsConfig      `yaml:"metrics"`
}

// SearchConfig names what is watched.
type SearchConfig struct {
	Term string `yaml:"term"`
	// Headless is accepted for compatibility with browser-driven deployments; the HTTP scanner ignores it.
	Headless *bool `yaml:"headless"`
}

// SourceConfig selects the scanner strategy and the portal endpoint.
type SourceConfig struct {
	Scanner string            `yaml:"scanner"`
	URL     string            `yaml:"url"`
	Timeout time.Duration     `yaml:"timeout"`
	Options map[string]string `yaml:"options"`
}

// SchedulerConfig defines when the pipeline should run.
type SchedulerConfig struct {
	// Time is the daily local trigger, HH:MM.
	Time       string         `yaml:"time"`
	Timezone   string         `yaml:"timezone"`
	RunTimeout time.Duration  `yaml:"runTimeout"`
	PollSpec   string         `yaml:"pollSpec"`
	location   *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Trigger parses Time into hour and minute.
func (s SchedulerConfig) Trigger() (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s.Time))
	if err != nil {
		return 0, 0, fmt.Errorf("schedule time %q is not HH:MM", s.Time)
	}
	return t.Hour(), t.Minute(), nil
}

// CalendarConfig selects the holiday sets.
type CalendarConfig struct {
	Region         string   `yaml:"region"`
	CustomHolidays []string `yaml:"customHolidays"`
}

// DatabaseConfig describes the SQL connection, either as a DSN or as discrete parts.
type DatabaseConfig struct {
	Driver      string `yaml:"driver"`
	DSN         string `yaml:"dsn"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Name        string `yaml:"name"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	SSLMode     string `yaml:"sslMode"`
	SQLitePath  string `yaml:"sqlitePath"`
	AutoMigrate *bool  `yaml:"autoMigrate"`
}

// IsSQLite reports whether the sqlite3 driver is selected.
func (d DatabaseConfig) IsSQLite() bool {
	switch strings.ToLower(d.Driver) {
	case "sqlite", "sqlite3":
		return true
	}
	return false
}

// ConnString returns the driver-specific data source name.
func (d DatabaseConfig) ConnString() string {
	if d.IsSQLite() {
		if d.DSN != "" {
			return d.DSN
		}
		return "file:" + d.SQLitePath + "?_busy_timeout=5000"
	}
	if d.DSN != "" {
		return d.DSN
	}
	host, port := d.Host, d.Port
	if host == "" {
		host = "localhost"
	}
	if port <= 0 {
		port = 5432
	}

	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + d.Name,
	}
	if d.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {d.SSLMode}}.Encode()
	}
	return u.String()
}

// MigrateOnStart reports whether migrations run when the app starts.
func (d DatabaseConfig) MigrateOnStart() bool {
	return d.AutoMigrate == nil || *d.AutoMigrate
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Email EmailConfig `yaml:"email"`
}

// EmailConfig wires all data required to send the digest.
type EmailConfig struct {
	Host       string        `yaml:"host"`
	Port       int           `yaml:"port"`
	User       string        `yaml:"user"`
	Password   string        `yaml:"password"`
	From       string        `yaml:"from"`
	Recipients []string      `yaml:"recipients"`
	Timeout    time.Duration `yaml:"timeout"`
}

// LoggingConfig controls the slog handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file"`
}

// MetricsConfig enables the Prometheus endpoint when Addr is set.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Scope selects which settings a command needs validated.
type Scope int

const (
	// ScopeCalendar covers the search term, trigger, timezone and holidays.
	ScopeCalendar Scope = iota
	// ScopeStorage adds the database connection.
	ScopeStorage
	// ScopeAll adds the mail relay and recipients.
	ScopeAll
)

// Load reads YAML configuration (if present), .env files and environment overrides, then validates everything.
func Load() (Config, error) {
	return LoadScope(ScopeAll)
}

// LoadScope is Load validating only what scope needs.
func LoadScope(scope Scope) (Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("%w: read %s: %w", domain.ErrInvalidConfig, path, err)
		}
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %w", domain.ErrInvalidConfig, path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	}

	if err := loadDotEnv(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	if err := cfg.bindTimezone(); err != nil {
		return Config{}, fmt.Errorf("%w: %w", domain.ErrInvalidConfig, err)
	}
	if err := cfg.ValidateScope(scope); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadDotEnv never overrides variables already present in the environment,
// so the first file that sets a key wins.
func loadDotEnv() error {
	files := []string{".env.local", ".env"}
	if path := os.Getenv(envFileEnv); path != "" {
		files = []string{path}
	}

	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	var errs []error

	setString(&c.Search.Term, "SEARCH_TERM")
	if v, ok, err := envBool("HEADLESS"); err != nil {
		errs = append(errs, err)
	} else if ok {
		c.Search.Headless = &v
	}

	setString(&c.Source.URL, "PORTAL_URL")
	setString(&c.Source.Scanner, "SCANNER")
	errs = append(errs, setDuration(&c.Source.Timeout, "FETCH_TIMEOUT"))

	setString(&c.Scheduler.Timezone, "TIMEZONE")
	setString(&c.Scheduler.Timezone, "TZ_NAME")
	setString(&c.Scheduler.Time, "SCHEDULE_TIME")
	errs = append(errs, setDuration(&c.Scheduler.RunTimeout, "RUN_TIMEOUT"))

	setString(&c.Calendar.Region, "HOLIDAY_REGION")
	if v := os.Getenv("CUSTOM_HOLIDAYS"); v != "" {
		c.Calendar.CustomHolidays = splitList(v)
	}

	setString(&c.Database.Driver, "DATABASE_DRIVER")
	setString(&c.Database.DSN, "POSTGRES_DSN")
	setString(&c.Database.Host, "POSTGRES_HOST")
	errs = append(errs, setInt(&c.Database.Port, "POSTGRES_PORT"))
	setString(&c.Database.Name, "POSTGRES_DB")
	setString(&c.Database.User, "POSTGRES_USER")
	setString(&c.Database.Password, "POSTGRES_PASSWORD")
	setString(&c.Database.SSLMode, "POSTGRES_SSLMODE")
	setString(&c.Database.SQLitePath, "SQLITE_PATH")
	if v, ok, err := envBool("DB_AUTO_MIGRATE"); err != nil {
		errs = append(errs, err)
	} else if ok {
		c.Database.AutoMigrate = &v
	}

	email := &c.Notifications.Email
	setString(&email.User, "EMAIL_USER")
	setString(&email.Password, "EMAIL_PASSWORD")
	setString(&email.From, "EMAIL_FROM")
	if v := os.Getenv("EMAIL_RECIPIENTS"); v != "" {
		email.Recipients = splitList(v)
	}
	setString(&email.Host, "SMTP_HOST")
	errs = append(errs, setInt(&email.Port, "SMTP_PORT"))
	errs = append(errs, setDuration(&email.Timeout, "SMTP_TIMEOUT"))

	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Format, "LOG_FORMAT")
	setString(&c.Logging.File, "LOG_FILE")
	setString(&c.Metrics.Addr, "METRICS_ADDR")

	return errors.Join(errs...)
}

func (c *Config) bindTimezone() error {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return fmt.Errorf("unknown timezone %q: %w", tz, err)
	}
	c.Scheduler.location = loc
	return nil
}

// Validate reports every problem at once, wrapped in domain.ErrInvalidConfig.
func (c Config) Validate() error {
	return c.ValidateScope(ScopeAll)
}

// ValidateScope checks the settings scope needs.
func (c Config) ValidateScope(scope Scope) error {
	var problems []string

	if strings.TrimSpace(c.Search.Term) == "" {
		problems = append(problems, "search term is empty")
	}
	if _, _, err := c.Scheduler.Trigger(); err != nil {
		problems = append(problems, err.Error())
	}
	for _, d := range c.Calendar.CustomHolidays {
		if _, err := time.Parse(domain.ISODateLayout, d); err != nil {
			problems = append(problems, fmt.Sprintf("custom holiday %q is not YYYY-MM-DD", d))
		}
	}

	if scope >= ScopeStorage {
		problems = append(problems, c.Database.problems()...)
	}
	if scope >= ScopeAll {
		problems = append(problems, c.Notifications.Email.problems()...)
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", domain.ErrInvalidConfig, strings.Join(problems, "; "))
}

func (d DatabaseConfig) problems() []string {
	if d.IsSQLite() {
		if d.DSN == "" && d.SQLitePath == "" {
			return []string{"sqlite path is empty"}
		}
		return nil
	}
	if d.DSN == "" && d.Name == "" {
		return []string{"database connection is not configured (POSTGRES_DSN or POSTGRES_DB)"}
	}
	return nil
}

func (e EmailConfig) problems() []string {
	var problems []string
	if len(e.Recipients) == 0 {
		problems = append(problems, "no email recipients")
	}
	if e.User == "" || e.Password == "" {
		problems = append(problems, "smtp credentials are missing (EMAIL_USER, EMAIL_PASSWORD)")
	}
	if e.Host == "" || e.Port <= 0 {
		problems = append(problems, "smtp host/port are missing")
	}
	return problems
}

func mergeConfig(base, override Config) Config {
	if override.Search.Term != "" {
		base.Search.Term = override.Search.Term
	}
	if override.Search.Headless != nil {
		base.Search.Headless = override.Search.Headless
	}

	if override.Source.Scanner != "" {
		base.Source.Scanner = override.Source.Scanner
	}
	if override.Source.URL != "" {
		base.Source.URL = override.Source.URL
	}
	if override.Source.Timeout > 0 {
		base.Source.Timeout = override.Source.Timeout
	}
	if len(override.Source.Options) > 0 {
		base.Source.Options = override.Source.Options
	}

	if override.Scheduler.Time != "" {
		base.Scheduler.Time = override.Scheduler.Time
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}
	if override.Scheduler.RunTimeout > 0 {
		base.Scheduler.RunTimeout = override.Scheduler.RunTimeout
	}
	if override.Scheduler.PollSpec != "" {
		base.Scheduler.PollSpec = override.Scheduler.PollSpec
	}

	if override.Calendar.Region != "" {
		base.Calendar.Region = override.Calendar.Region
	}
	if len(override.Calendar.CustomHolidays) > 0 {
		base.Calendar.CustomHolidays = override.Calendar.CustomHolidays
	}

	base.Database = mergeDatabase(base.Database, override.Database)

	email, over := &base.Notifications.Email, override.Notifications.Email
	if over.Host != "" {
		email.Host = over.Host
	}
	if over.Port > 0 {
		email.Port = over.Port
	}
	if over.User != "" {
		email.User = over.User
	}
	if over.Password != "" {
		email.Password = over.Password
	}
	if over.From != "" {
		email.From = over.From
	}
	if len(over.Recipients) > 0 {
		email.Recipients = over.Recipients
	}
	if over.Timeout > 0 {
		email.Timeout = over.Timeout
	}

	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
	}
	if override.Metrics.Addr != "" {
		base.Metrics.Addr = override.Metrics.Addr
	}

	return base
}

func mergeDatabase(base, override DatabaseConfig) DatabaseConfig {
	if override.Driver != "" {
		base.Driver = override.Driver
	}
	if override.DSN != "" {
		base.DSN = override.DSN
	}
	if override.Host != "" {
		base.Host = override.Host
	}
	if override.Port > 0 {
		base.Port = override.Port
	}
	if override.Name != "" {
		base.Name = override.Name
	}
	if override.User != "" {
		base.User = override.User
	}
	if override.Password != "" {
		base.Password = override.Password
	}
	if override.SSLMode != "" {
		base.SSLMode = override.SSLMode
	}
	if override.SQLitePath != "" {
		base.SQLitePath = override.SQLitePath
	}
	if override.AutoMigrate != nil {
		base.AutoMigrate = override.AutoMigrate
	}
	return base
}

func defaultConfig() Config {
	headless := true
	return Config{
		Search: SearchConfig{Term: defaultSearchTerm, Headless: &headless},
		Source: SourceConfig{Scanner: "ioerj", URL: defaultPortalURL, Timeout: 30 * time.Second},
		Scheduler: SchedulerConfig{
			Time:       defaultScheduleTime,
			Timezone:   defaultTimezone,
			RunTimeout: 10 * time.Minute,
			PollSpec:   "* * * * *",
		},
		Database: DatabaseConfig{
			Driver:     "postgres",
			Host:       "localhost",
			Port:       5432,
			SSLMode:    "disable",
			SQLitePath: "decreewatcher.db",
		},
		Notifications: NotificationConfig{
			Email: EmailConfig{Host: "smtp.gmail.com", Port: 587, Timeout: 30 * time.Second},
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s=%q is not an integer", key, v)
	}
	*dst = n
	return nil
}

// setDuration accepts Go durations ("45s") and bare seconds ("45").
func setDuration(dst *time.Duration, key string) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s=%q is not a duration", key, v)
	}
	*dst = d
	return nil
}

func envBool(key string) (bool, bool, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false, fmt.Errorf("%s=%q is not a boolean", key, v)
	}
	return b, true, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
