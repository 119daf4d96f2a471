package config

import "time"

// Transcode definition transcode_service YAML structure
type Transcode struct {
	Port string `mapstructure:"port"`
	IP   string `mapstructure:"ip"`

	Mongo ServiceDBConfig `mapstructure:"mongo"`
	Redis RedisConfig     `mapstructure:"redis"`
	MinIO MinIOConfig     `mapstructure:"minio"`
	Kafka KafkaConfig     `mapstructure:"kafka"`

	Pool  PoolConfig  `mapstructure:"pool"`
	Cache CacheConfig `mapstructure:"cache"`
}

// ServiceDBConfig definition db setting
type ServiceDBConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
}

// MinIOConfig definition minio setting
type MinIOConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	BucketName    string `mapstructure:"bucket_name"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// KafkaConfig definition kafka setting（user activity topic）
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	Topic         string   `mapstructure:"topic"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// PoolConfig definition transcode worker pool setting
type PoolConfig struct {
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueDepth    int           `mapstructure:"queue_depth"`
	JobTimeout    time.Duration `mapstructure:"job_timeout"`
}

// CacheConfig definition progress cache TTL setting
type CacheConfig struct {
	ProgressTTL time.Duration `mapstructure:"progress_ttl"`
	FileListTTL time.Duration `mapstructure:"file_list_ttl"`
}
