package conf

import (
	"time"

	"github.com/krisalay/api-cache/queue"
	"github.com/krisalay/api-cache/storage"
	"github.com/krisalay/api-cache/store"
	"github.com/krisalay/api-cache/types"
	"github.com/krisalay/api-cache/writepolicy"
)

const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendFS     = "fs"

	WriteThrough = "through"
	WriteBack    = "back"
)

type LogConfig struct {
	Level      string `json:"level" env:"LEVEL"`
	Format     string `json:"format" env:"FORMAT"`
	File       string `json:"file" env:"FILE"`
	MaxSize    int    `json:"max_size" env:"MAX_SIZE"`
	MaxBackups int    `json:"max_backups" env:"MAX_BACKUPS"`
	MaxAge     int    `json:"max_age" env:"MAX_AGE"`
	Compress   bool   `json:"compress" env:"COMPRESS"`
}

type QueueConfig struct {
	Enable      bool          `json:"enable" env:"ENABLE"`
	Concurrency int           `json:"concurrency" env:"CONCURRENCY"`
	Timeout     time.Duration `json:"timeout" env:"TIMEOUT"`
	Rate        float64       `json:"rate" env:"RATE"`
	Burst       int           `json:"burst" env:"BURST"`
	Retries     uint          `json:"retries" env:"RETRIES"`
}

type Config struct {
	Backend string `json:"backend" env:"BACKEND"`

	// DataPath is the bolt file or the fs directory.
	DataPath string `json:"data_path" env:"DATA_PATH"`
	Bucket   string `json:"bucket" env:"BUCKET"`

	KeyPrefix       string        `json:"key_prefix" env:"KEY_PREFIX"`
	DefaultTTL      time.Duration `json:"default_ttl" env:"DEFAULT_TTL"`
	Shards          int           `json:"shards" env:"SHARDS"`
	WriteMode       string        `json:"write_mode" env:"WRITE_MODE"`
	WriteBackBuffer int           `json:"write_back_buffer" env:"WRITE_BACK_BUFFER"`
	ScanPersisted   bool          `json:"scan_persisted" env:"SCAN_PERSISTED"`
	Metrics         bool          `json:"metrics" env:"METRICS"`

	Queue QueueConfig `json:"queue" envPrefix:"QUEUE_"`
	Log   LogConfig   `json:"log" envPrefix:"LOG_"`
}

func DefaultConfig() *Config {
	return &Config{
		Backend:         BackendBolt,
		DataPath:        "data/api_cache.db",
		Bucket:          storage.DefaultBucket,
		KeyPrefix:       store.DefaultPrefix,
		DefaultTTL:      types.DefaultTTL,
		Shards:          store.DefaultShards,
		WriteMode:       WriteThrough,
		WriteBackBuffer: writepolicy.DefaultWriteBackLimit,
		Queue: QueueConfig{
			Concurrency: queue.DefaultConcurrency,
			Timeout:     queue.DefaultTimeout,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSize:    50,
			MaxBackups: 5,
			MaxAge:     28,
		},
	}
}
