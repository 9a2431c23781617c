package types

import (
	"time"
)

// Mode constants for gateway operation
const (
	ModeLocal  = "local"  // In-memory store, SQLite mirror
	ModeRemote = "remote" // Postgres, Elasticsearch, Redis
)

// Search backends
const (
	SearchBackendSQLite        = "sqlite"
	SearchBackendElasticsearch = "elasticsearch"
)

// AppConfig is the root configuration for the facility gateway
type AppConfig struct {
	Mode       string `key:"mode" json:"mode"` // "local" or "remote"
	DebugMode  bool   `key:"debugMode" json:"debug_mode"`
	PrettyLogs bool   `key:"prettyLogs" json:"pretty_logs"`

	Database DatabaseConfig `key:"database" json:"database"`
	Search   SearchConfig   `key:"search" json:"search"`
	Gateway  GatewayConfig  `key:"gateway" json:"gateway"`
}

// IsLocalMode returns true if running in local mode (no Redis/Postgres)
func (c *AppConfig) IsLocalMode() bool {
	return c.Mode == ModeLocal
}

// ----------------------------------------------------------------------------
// Database Configuration
// ----------------------------------------------------------------------------

type DatabaseConfig struct {
	Redis    RedisConfig    `key:"redis" json:"redis"`
	Postgres PostgresConfig `key:"postgres" json:"postgres"`
}

type RedisMode string

const (
	RedisModeSingle  RedisMode = "single"
	RedisModeCluster RedisMode = "cluster"
)

type RedisConfig struct {
	Mode            RedisMode     `key:"mode" json:"mode"`
	Addrs           []string      `key:"addrs" json:"addrs"`
	Username        string        `key:"username" json:"username"`
	Password        string        `key:"password" json:"password"`
	ClientName      string        `key:"clientName" json:"client_name"`
	EnableTLS       bool          `key:"enableTLS" json:"enable_tls"`
	PoolSize        int           `key:"poolSize" json:"pool_size"`
	MinIdleConns    int           `key:"minIdleConns" json:"min_idle_conns"`
	ConnMaxIdleTime time.Duration `key:"connMaxIdleTime" json:"conn_max_idle_time"`
	DialTimeout     time.Duration `key:"dialTimeout" json:"dial_timeout"`
	ReadTimeout     time.Duration `key:"readTimeout" json:"read_timeout"`
	WriteTimeout    time.Duration `key:"writeTimeout" json:"write_timeout"`
	MaxRetries      int           `key:"maxRetries" json:"max_retries"`
}

type PostgresConfig struct {
	Host            string        `key:"host" json:"host"`
	Port            int           `key:"port" json:"port"`
	User            string        `key:"user" json:"user"`
	Password        string        `key:"password" json:"password"`
	Database        string        `key:"database" json:"database"`
	SSLMode         string        `key:"sslMode" json:"ssl_mode"`
	MaxOpenConns    int           `key:"maxOpenConns" json:"max_open_conns"`
	MaxIdleConns    int           `key:"maxIdleConns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `key:"connMaxLifetime" json:"conn_max_lifetime"`
}

// ----------------------------------------------------------------------------
// Search Configuration
// ----------------------------------------------------------------------------

type SearchConfig struct {
	Backend       string              `key:"backend" json:"backend"` // "sqlite" or "elasticsearch"
	Elasticsearch ElasticsearchConfig `key:"elasticsearch" json:"elasticsearch"`
	SQLite        SQLiteConfig        `key:"sqlite" json:"sqlite"`
}

type ElasticsearchConfig struct {
	URL         string        `key:"url" json:"url"`
	IndexPrefix string        `key:"indexPrefix" json:"index_prefix"`
	Username    string        `key:"username" json:"username"`
	Password    string        `key:"password" json:"password"`
	Timeout     time.Duration `key:"timeout" json:"timeout"`
}

type SQLiteConfig struct {
	Path string `key:"path" json:"path"` // ":memory:" for an ephemeral index
}

// ----------------------------------------------------------------------------
// Gateway Configuration
// ----------------------------------------------------------------------------

type GatewayConfig struct {
	HTTP            HTTPConfig    `key:"http" json:"http"`
	ShutdownTimeout time.Duration `key:"shutdownTimeout" json:"shutdown_timeout"`
	AuthToken       string        `key:"authToken" json:"auth_token"`
}

type HTTPConfig struct {
	Host             string     `key:"host" json:"host"`
	Port             int        `key:"port" json:"port"`
	EnablePrettyLogs bool       `key:"enablePrettyLogs" json:"enable_pretty_logs"`
	CORS             CORSConfig `key:"cors" json:"cors"`
}

type CORSConfig struct {
	AllowedOrigins []string `key:"allowOrigins" json:"allow_origins"`
	AllowedMethods []string `key:"allowMethods" json:"allow_methods"`
	AllowedHeaders []string `key:"allowHeaders" json:"allow_headers"`
}
