package config

import (
	"fmt"
	"strings"
	"time"

	"alertmtl.app/errors"
	"github.com/kelseyhightower/envconfig"
)

// Config represents the application configuration structure
type Config struct {
	Server     ServerConfig    `split_words:"true"`
	Database   DatabaseConfig  `split_words:"true"`
	Cache      CacheConfig     `split_words:"true"`
	Montreal   MontrealConfig  `split_words:"true"`
	Quebec     QuebecConfig    `split_words:"true"`
	Alerts     AlertsConfig    `split_words:"true"`
	Geobase    GeobaseConfig   `split_words:"true"`
	Email      EmailConfig     `split_words:"true"`
	Scheduler  SchedulerConfig `split_words:"true"`
	AdminToken string          `envconfig:"ADMIN_TOKEN" default:"dev-admin-token"`
	AppBaseURL string          `envconfig:"APP_URL" default:"http://localhost:8080"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port int `envconfig:"SERVER_PORT" default:"8080"`
}

// DatabaseConfig contains database connection settings
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD" default:"postgres"`
	Name     string `envconfig:"DB_NAME" default:"alertmtl"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

// GetDSN returns a formatted database connection string
func (c DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// CacheConfig contains snapshot cache backend settings
type CacheConfig struct {
	Type          string `envconfig:"CACHE_TYPE" default:"memory"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// MontrealConfig contains settings for the planif-neige status provider
type MontrealConfig struct {
	BaseURL        string `envconfig:"PLANIF_NEIGE_URL" default:"https://servicesenligne2.ville.montreal.qc.ca/api/infoneige"`
	RefreshSeconds int    `envconfig:"PLANIF_NEIGE_REFRESH_SECONDS" default:"300"`
	TimeoutSeconds int    `envconfig:"PLANIF_NEIGE_TIMEOUT_SECONDS" default:"30"`
	PollMinutes    int    `envconfig:"MONTREAL_POLL_MINUTES" default:"10"`
}

// RefreshInterval returns the minimum time between upstream calls
func (m MontrealConfig) RefreshInterval() time.Duration {
	return time.Duration(m.RefreshSeconds) * time.Second
}

// QuebecConfig contains settings for the Quebec City snow-operations provider
type QuebecConfig struct {
	BaseURL        string `envconfig:"QUEBEC_SNOW_URL" default:"https://carte.ville.quebec.qc.ca/arcgis/rest/services/CI/Deneigement/MapServer/2/query"`
	RefreshSeconds int    `envconfig:"QUEBEC_REFRESH_SECONDS" default:"60"`
	TimeoutSeconds int    `envconfig:"QUEBEC_TIMEOUT_SECONDS" default:"10"`
	PollMinutes    int    `envconfig:"QUEBEC_POLL_MINUTES" default:"10"`
	SearchRadiusM  int    `envconfig:"QUEBEC_SEARCH_RADIUS_M" default:"200"`
	MaxRadiusM     int    `envconfig:"QUEBEC_MAX_RADIUS_M" default:"500"`
}

// RefreshInterval returns the minimum time between upstream calls
func (q QuebecConfig) RefreshInterval() time.Duration {
	return time.Duration(q.RefreshSeconds) * time.Second
}

// AlertsConfig contains dispatch and retention tuning
type AlertsConfig struct {
	StaleFactor       int `envconfig:"ALERTS_STALE_FACTOR" default:"3"`
	TransitionLogSize int `envconfig:"ALERTS_TRANSITION_LOG_SIZE" default:"20"`
	RetentionDays     int `envconfig:"ALERTS_RETENTION_DAYS" default:"90"`
}

// GeobaseConfig contains settings for the Montreal street-segment dataset
type GeobaseConfig struct {
	CSVURL         string `envconfig:"GEOBASE_CSV_URL" default:"https://donnees.montreal.ca/dataset/984f7a68-ab34-4092-9204-4bdfcca767c5/resource/9d3d60d8-4e7f-493e-b7a6-6e89c19aee93/download/geobase-double.csv"`
	CacheDays      int    `envconfig:"GEOBASE_CACHE_DAYS" default:"7"`
	TimeoutSeconds int    `envconfig:"GEOBASE_TIMEOUT_SECONDS" default:"120"`
	RefreshCron    string `envconfig:"GEOBASE_REFRESH_CRON" default:"0 4 * * 1"`
}

// EmailConfig contains email server and sending settings
type EmailConfig struct {
	SMTPHost     string `envconfig:"EMAIL_SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort     int    `envconfig:"EMAIL_SMTP_PORT" default:"587"`
	SMTPUsername string `envconfig:"EMAIL_SMTP_USERNAME" required:"true"`
	SMTPPassword string `envconfig:"EMAIL_SMTP_PASSWORD" required:"true"`
	FromName     string `envconfig:"EMAIL_FROM_NAME" default:"Alert MTL"`
	FromAddress  string `envconfig:"EMAIL_FROM_ADDRESS" default:"alerts@alertmtl.app"`
}

// SchedulerConfig contains settings for the background check cycles
type SchedulerConfig struct {
	WasteCron   string `envconfig:"WASTE_CHECK_CRON" default:"0 18 * * *"`
	CleanupCron string `envconfig:"CLEANUP_CRON" default:"30 3 * * *"`
	Timezone    string `envconfig:"SCHEDULER_TIMEZONE" default:"America/Toronto"`
}

// LoadConfig loads and validates application configuration from environment variables
func LoadConfig() (*Config, error) {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		return nil, errors.NewConfigurationError("error processing config", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := c.Cache.Validate(); err != nil {
		return err
	}
	if err := c.Montreal.Validate(); err != nil {
		return err
	}
	if err := c.Quebec.Validate(); err != nil {
		return err
	}
	if err := c.Alerts.Validate(); err != nil {
		return err
	}
	if err := c.Geobase.Validate(); err != nil {
		return err
	}
	if err := c.Email.Validate(); err != nil {
		return err
	}
	if err := c.Scheduler.Validate(); err != nil {
		return err
	}
	if c.AdminToken == "" {
		return errors.NewConfigurationError("ADMIN_TOKEN cannot be empty", nil)
	}
	if err := c.validateAppBaseURL(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateAppBaseURL() error {
	if c.AppBaseURL == "" {
		return errors.NewConfigurationError("APP_URL cannot be empty", nil)
	}
	if !strings.HasPrefix(c.AppBaseURL, "http://") && !strings.HasPrefix(c.AppBaseURL, "https://") {
		return errors.NewConfigurationError("APP_URL must start with http:// or https://", nil)
	}
	return nil
}

// Validate checks server configuration
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return errors.NewConfigurationError("SERVER_PORT must be between 1 and 65535", nil)
	}
	return nil
}

// ValidateSSLMode validates the SSL mode configuration
func (d *DatabaseConfig) ValidateSSLMode() error {
	validSSLModes := []string{"disable", "require", "verify-ca", "verify-full"}
	for _, mode := range validSSLModes {
		if d.SSLMode == mode {
			return nil
		}
	}
	return errors.NewConfigurationError(
		fmt.Sprintf("DB_SSL_MODE must be one of: %s", strings.Join(validSSLModes, ", ")), nil)
}

// Validate checks database configuration
func (d *DatabaseConfig) Validate() error {
	if d.Host == "" {
		return errors.NewConfigurationError("DB_HOST cannot be empty", nil)
	}
	if d.Port < 1 || d.Port > 65535 {
		return errors.NewConfigurationError("DB_PORT must be between 1 and 65535", nil)
	}
	if d.User == "" {
		return errors.NewConfigurationError("DB_USER cannot be empty", nil)
	}
	if d.Name == "" {
		return errors.NewConfigurationError("DB_NAME cannot be empty", nil)
	}
	if err := d.ValidateSSLMode(); err != nil {
		return err
	}
	return nil
}

// Validate checks cache configuration
func (c *CacheConfig) Validate() error {
	if c.Type != "memory" && c.Type != "redis" {
		return errors.NewConfigurationError("CACHE_TYPE must be memory or redis", nil)
	}
	if c.Type == "redis" && c.RedisAddr == "" {
		return errors.NewConfigurationError("REDIS_ADDR cannot be empty when CACHE_TYPE is redis", nil)
	}
	return nil
}

// Validate checks Montreal provider configuration
func (m *MontrealConfig) Validate() error {
	if m.BaseURL == "" {
		return errors.NewConfigurationError("PLANIF_NEIGE_URL cannot be empty", nil)
	}
	if !strings.HasPrefix(m.BaseURL, "http://") && !strings.HasPrefix(m.BaseURL, "https://") {
		return errors.NewConfigurationError("PLANIF_NEIGE_URL must start with http:// or https://", nil)
	}
	if m.RefreshSeconds < 1 {
		return errors.NewConfigurationError("PLANIF_NEIGE_REFRESH_SECONDS must be at least 1", nil)
	}
	if m.TimeoutSeconds < 1 {
		return errors.NewConfigurationError("PLANIF_NEIGE_TIMEOUT_SECONDS must be at least 1", nil)
	}
	if m.PollMinutes < 1 {
		return errors.NewConfigurationError("MONTREAL_POLL_MINUTES must be at least 1", nil)
	}
	return nil
}

// Validate checks Quebec provider configuration
func (q *QuebecConfig) Validate() error {
	if q.BaseURL == "" {
		return errors.NewConfigurationError("QUEBEC_SNOW_URL cannot be empty", nil)
	}
	if !strings.HasPrefix(q.BaseURL, "http://") && !strings.HasPrefix(q.BaseURL, "https://") {
		return errors.NewConfigurationError("QUEBEC_SNOW_URL must start with http:// or https://", nil)
	}
	if q.RefreshSeconds < 1 {
		return errors.NewConfigurationError("QUEBEC_REFRESH_SECONDS must be at least 1", nil)
	}
	if q.TimeoutSeconds < 1 {
		return errors.NewConfigurationError("QUEBEC_TIMEOUT_SECONDS must be at least 1", nil)
	}
	if q.PollMinutes < 1 {
		return errors.NewConfigurationError("QUEBEC_POLL_MINUTES must be at least 1", nil)
	}
	if q.SearchRadiusM < 1 || q.MaxRadiusM < q.SearchRadiusM {
		return errors.NewConfigurationError("QUEBEC_MAX_RADIUS_M must be at least QUEBEC_SEARCH_RADIUS_M", nil)
	}
	return nil
}

// Validate checks alert dispatch configuration
func (a *AlertsConfig) Validate() error {
	if a.StaleFactor < 1 {
		return errors.NewConfigurationError("ALERTS_STALE_FACTOR must be at least 1", nil)
	}
	if a.TransitionLogSize < 1 {
		return errors.NewConfigurationError("ALERTS_TRANSITION_LOG_SIZE must be at least 1", nil)
	}
	if a.RetentionDays < 1 {
		return errors.NewConfigurationError("ALERTS_RETENTION_DAYS must be at least 1", nil)
	}
	return nil
}

// Validate checks geobase configuration
func (g *GeobaseConfig) Validate() error {
	if g.CSVURL == "" {
		return errors.NewConfigurationError("GEOBASE_CSV_URL cannot be empty", nil)
	}
	if !strings.HasPrefix(g.CSVURL, "http://") && !strings.HasPrefix(g.CSVURL, "https://") {
		return errors.NewConfigurationError("GEOBASE_CSV_URL must start with http:// or https://", nil)
	}
	if g.CacheDays < 1 {
		return errors.NewConfigurationError("GEOBASE_CACHE_DAYS must be at least 1", nil)
	}
	if g.TimeoutSeconds < 1 {
		return errors.NewConfigurationError("GEOBASE_TIMEOUT_SECONDS must be at least 1", nil)
	}
	if g.RefreshCron == "" {
		return errors.NewConfigurationError("GEOBASE_REFRESH_CRON cannot be empty", nil)
	}
	return nil
}

// Validate checks email configuration
func (e *EmailConfig) Validate() error {
	if e.SMTPHost == "" {
		return errors.NewConfigurationError("EMAIL_SMTP_HOST cannot be empty", nil)
	}
	if e.SMTPPort < 1 || e.SMTPPort > 65535 {
		return errors.NewConfigurationError("EMAIL_SMTP_PORT must be between 1 and 65535", nil)
	}
	if e.SMTPUsername == "" {
		return errors.NewConfigurationError("EMAIL_SMTP_USERNAME is required", nil)
	}
	if e.SMTPPassword == "" {
		return errors.NewConfigurationError("EMAIL_SMTP_PASSWORD is required", nil)
	}
	if e.FromName == "" {
		return errors.NewConfigurationError("EMAIL_FROM_NAME cannot be empty", nil)
	}
	if e.FromAddress == "" {
		return errors.NewConfigurationError("EMAIL_FROM_ADDRESS cannot be empty", nil)
	}
	if !strings.Contains(e.FromAddress, "@") {
		return errors.NewConfigurationError("EMAIL_FROM_ADDRESS must be a valid email address", nil)
	}
	return nil
}

// Validate checks scheduler configuration
func (s *SchedulerConfig) Validate() error {
	if s.WasteCron == "" {
		return errors.NewConfigurationError("WASTE_CHECK_CRON cannot be empty", nil)
	}
	if s.CleanupCron == "" {
		return errors.NewConfigurationError("CLEANUP_CRON cannot be empty", nil)
	}
	if s.Timezone == "" {
		return errors.NewConfigurationError("SCHEDULER_TIMEZONE cannot be empty", nil)
	}
	if _, err := time.LoadLocation(s.Timezone); err != nil {
		return errors.NewConfigurationError("SCHEDULER_TIMEZONE is not a valid IANA timezone", err)
	}
	return nil
}
