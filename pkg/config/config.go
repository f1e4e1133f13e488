package config

import (
	"context"
	"time"

	"github.com/sethvargo/go-envconfig"

	"sproutd/pkg/s3"
)

// Config holds runtime configuration for the sproutd server and tools.
type Config struct {
	Addr           string        `env:"ADDR,default=:8080"`
	DBDSN          string        `env:"DB_DSN,required"`
	NATSURL        string        `env:"NATS_URL"`
	OTLPEndpoint   string        `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	AllowedOrigins []string      `env:"CORS_ALLOWED_ORIGINS,default=*"`
	UserTokenTTL   time.Duration `env:"USER_TOKEN_TTL,default=720h"`

	// Measurement archiving for nodes that opted in. Archiving stays off
	// until an S3 endpoint is configured.
	ArchiveBucket    string        `env:"ARCHIVE_BUCKET,default=sproutd-archive"`
	ArchiveRetention time.Duration `env:"ARCHIVE_RETENTION,default=2160h"`
	ArchiveInterval  time.Duration `env:"ARCHIVE_INTERVAL,default=24h"`

	S3Endpoint       string `env:"S3_ENDPOINT"`
	S3AccessKey      string `env:"S3_ACCESS_KEY"`
	S3SecretKey      string `env:"S3_SECRET_KEY"`
	S3Region         string `env:"S3_REGION,default=us-east-1"`
	S3DisableTLS     bool   `env:"S3_DISABLE_TLS,default=false"`
	S3ForcePathStyle bool   `env:"S3_FORCE_PATH_STYLE,default=true"`
}

// S3 maps the object-storage fields onto the s3 package's settings.
func (c Config) S3() s3.Config {
	return s3.Config{
		Endpoint:       c.S3Endpoint,
		AccessKey:      c.S3AccessKey,
		SecretKey:      c.S3SecretKey,
		Region:         c.S3Region,
		DisableTLS:     c.S3DisableTLS,
		ForcePathStyle: c.S3ForcePathStyle,
	}
}

// Load returns a Config populated from environment variables.
func Load(ctx context.Context) (Config, error) {
	var cfg Config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
