package storage

// StorageConfig contains configuration for message storage backends
type StorageConfig struct {
	// Type specifies the storage backend type (memory, sqlite, postgres, redis, jsonl)
	Type string `yaml:"type" mapstructure:"type"`

	// SQLite specific configuration
	SQLite SQLiteConfig `yaml:"sqlite,omitempty" mapstructure:"sqlite"`

	// Postgres specific configuration
	Postgres PostgresConfig `yaml:"postgres,omitempty" mapstructure:"postgres"`

	// Redis specific configuration
	Redis RedisConfig `yaml:"redis,omitempty" mapstructure:"redis"`

	// Jsonl specific configuration
	Jsonl JsonlConfig `yaml:"jsonl,omitempty" mapstructure:"jsonl"`
}

// SQLiteConfig contains SQLite-specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// PostgresConfig contains Postgres-specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Database string `yaml:"database" mapstructure:"database"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	SSLMode  string `yaml:"ssl_mode" mapstructure:"ssl_mode"`
}

// RedisConfig contains Redis-specific configuration
type RedisConfig struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	Database int    `yaml:"database" mapstructure:"database"`
	Password string `yaml:"password,omitempty" mapstructure:"password"`
	Username string `yaml:"username,omitempty" mapstructure:"username"`
	TTL      int    `yaml:"ttl,omitempty" mapstructure:"ttl"` // TTL in seconds, 0 means no expiration
}

// JsonlConfig contains JSONL file storage configuration
type JsonlConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}
