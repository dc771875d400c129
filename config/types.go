package config

import "time"

type AppConfig struct {
	DBDriver     string             `yaml:"db_driver" env:"VIGIL_DB_DRIVER" env-default:"sqlite"`
	DBURL        string             `yaml:"db_url" env:"VIGIL_DB_URL"`
	DBPath       string             `yaml:"db_path" env:"VIGIL_DB_PATH" env-default:"data/vigil.db"`
	ListenAddr   string             `yaml:"listen_addr" env:"VIGIL_LISTEN_ADDR" env-default:"0.0.0.0:8080"`
	SessionTTL   time.Duration      `yaml:"session_ttl" env:"VIGIL_SESSION_TTL" env-default:"3h"`
	AppEnv       string             `yaml:"app_env" env:"VIGIL_APP_ENV"`
	Debug        bool               `yaml:"debug" env:"VIGIL_DEBUG" env-default:"false"`
	Oracle       OracleConfig       `yaml:"oracle"`
	Calibration  CalibrationConfig  `yaml:"calibration"`
	Distribution DistributionConfig `yaml:"distribution"`
	Maintenance  MaintenanceConfig  `yaml:"maintenance"`
}

type OracleConfig struct {
	BaseURL         string `yaml:"base_url" env:"VIGIL_ORACLE_BASE_URL"`
	TimeoutSec      int    `yaml:"timeout_sec" env:"VIGIL_ORACLE_TIMEOUT_SEC" env-default:"5"`
	WriteTimeoutSec int    `yaml:"write_timeout_sec" env:"VIGIL_ORACLE_WRITE_TIMEOUT_SEC" env-default:"10"`
}

func (c OracleConfig) Timeout() time.Duration {
	sec := c.TimeoutSec
	if sec <= 0 {
		sec = 5
	}
	if sec > 30 {
		sec = 30
	}
	return time.Duration(sec) * time.Second
}

// WriteTimeout bounds the asynchronous persistence of a produced prediction.
func (c OracleConfig) WriteTimeout() time.Duration {
	sec := c.WriteTimeoutSec
	if sec <= 0 {
		sec = 10
	}
	return time.Duration(sec) * time.Second
}

type CalibrationConfig struct {
	UnknownPenalty      float64 `yaml:"unknown_penalty" env:"VIGIL_CAL_UNKNOWN_PENALTY" env-default:"0.15"`
	ConfidenceFloor     float64 `yaml:"confidence_floor" env:"VIGIL_CAL_CONFIDENCE_FLOOR" env-default:"0.30"`
	ShortTextWords      int     `yaml:"short_text_words" env:"VIGIL_CAL_SHORT_TEXT_WORDS" env-default:"8"`
	UnknownRatioLimit   float64 `yaml:"unknown_ratio_limit" env:"VIGIL_CAL_UNKNOWN_RATIO_LIMIT" env-default:"0.30"`
	CaveatUnknownFields int     `yaml:"caveat_unknown_fields" env:"VIGIL_CAL_CAVEAT_UNKNOWN_FIELDS" env-default:"3"`
}

type DistributionConfig struct {
	RecentLimit      int `yaml:"recent_limit" env:"VIGIL_DIST_RECENT_LIMIT" env-default:"10"`
	SubscriberBuffer int `yaml:"subscriber_buffer" env:"VIGIL_DIST_SUBSCRIBER_BUFFER" env-default:"64"`
}

func (c DistributionConfig) EffectiveRecentLimit() int {
	if c.RecentLimit <= 0 {
		return 10
	}
	return c.RecentLimit
}

func (c DistributionConfig) EffectiveSubscriberBuffer() int {
	if c.SubscriberBuffer <= 0 {
		return 64
	}
	return c.SubscriberBuffer
}

type MaintenanceConfig struct {
	Enabled           bool   `yaml:"enabled" env:"VIGIL_MAINT_ENABLED" env-default:"true"`
	ResolveSpec       string `yaml:"resolve_spec" env:"VIGIL_MAINT_RESOLVE_SPEC" env-default:"@every 30s"`
	RetentionSpec     string `yaml:"retention_spec" env:"VIGIL_MAINT_RETENTION_SPEC" env-default:"@every 1h"`
	RetentionDays     int    `yaml:"retention_days" env:"VIGIL_MAINT_RETENTION_DAYS" env-default:"30"`
	ResolveIntervalMS int    `yaml:"resolve_interval_ms" env:"VIGIL_MAINT_RESOLVE_INTERVAL_MS" env-default:"750"`
}

// ResolveInterval is the cadence of the inline server-time resolver; the cron
// sweep in ResolveSpec is only the safety net for aged rows.
func (c MaintenanceConfig) ResolveInterval() time.Duration {
	ms := c.ResolveIntervalMS
	if ms <= 0 {
		ms = 750
	}
	return time.Duration(ms) * time.Millisecond
}

const maxSessionTTL = 12 * time.Hour

func (c *AppConfig) EffectiveSessionTTL() time.Duration {
	ttl := 3 * time.Hour
	if c != nil && c.SessionTTL > 0 {
		ttl = c.SessionTTL
	}
	if ttl > maxSessionTTL {
		return maxSessionTTL
	}
	return ttl
}
