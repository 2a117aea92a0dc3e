package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Logging       LoggingConfig       `mapstructure:"logging"`
	Classifier    ClassifierConfig    `mapstructure:"classifier"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Events        EventsConfig        `mapstructure:"events"`
	MCP           MCPConfig           `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout"`
	TLSEnabled   bool          `mapstructure:"tls_enabled"`
	CertFile     string        `mapstructure:"cert_file"`
	KeyFile      string        `mapstructure:"key_file"`
	CORSOrigins  []string      `mapstructure:"cors_origins"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// CacheConfig represents cache configuration
type CacheConfig struct {
	RedisURL       string        `mapstructure:"redis_url"`
	DefaultTTL     time.Duration `mapstructure:"default_ttl"`
	MaxRetries     int           `mapstructure:"max_retries"`
	PoolSize       int           `mapstructure:"pool_size"`
	PoolTimeout    time.Duration `mapstructure:"pool_timeout"`
	TemplateLRUCap int           `mapstructure:"template_lru_cap"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Format   string `mapstructure:"format"`
	Output   string `mapstructure:"output"`
	Filename string `mapstructure:"filename"`
}

// ClassifierConfig tunes the flagging service around the pure classifier.
type ClassifierConfig struct {
	MemoSize         int  `mapstructure:"memo_size"`
	CriticalEscalate bool `mapstructure:"critical_escalate"`
}

// NotificationsConfig controls WhatsApp "report ready" messages.
type NotificationsConfig struct {
	Enabled          bool          `mapstructure:"enabled"`
	WhatsAppStoreURL string        `mapstructure:"whatsapp_store_url"`
	DefaultRegion    string        `mapstructure:"default_region"` // country calling code, e.g. "91"
	RatePerMinute    int           `mapstructure:"rate_per_minute"`
	Burst            int           `mapstructure:"burst"`
	SendTimeout      time.Duration `mapstructure:"send_timeout"`
	LabName          string        `mapstructure:"lab_name"`
}

// EventsConfig configures fan-out of report lifecycle events. AMQPURL is
// optional; without it events only reach WebSocket subscribers.
type EventsConfig struct {
	AMQPURL          string `mapstructure:"amqp_url"`
	Exchange         string `mapstructure:"exchange"`
	RoutingKey       string `mapstructure:"routing_key"`
	SubscriberBuffer int    `mapstructure:"subscriber_buffer"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName    string        `mapstructure:"server_name"`
	ServerVersion string        `mapstructure:"server_version"`
	EnableCaching bool          `mapstructure:"enable_caching"`
	ToolCacheTTL  time.Duration `mapstructure:"tool_cache_ttl"`
	ToolRateLimit float64       `mapstructure:"tool_rate_limit"` // calls per second, 0 disables
	LabID         string        `mapstructure:"lab_id"`          // applied to reports saved without one
	ExportDir     string        `mapstructure:"export_dir"`
}
