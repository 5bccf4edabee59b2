// Package config builds the staging engine's collaborators from environment
// configuration, following the same env-tag pattern the server binaries use.
package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/khunglong92/staged-content/pkg/stagedcontent"
	"github.com/khunglong92/staged-content/pkg/stagedcontent/entityapi"
	fsgateway "github.com/khunglong92/staged-content/pkg/stagedcontent/gateway/fs"
	memorygateway "github.com/khunglong92/staged-content/pkg/stagedcontent/gateway/memory"
	s3gateway "github.com/khunglong92/staged-content/pkg/stagedcontent/gateway/s3"
	memoryrepo "github.com/khunglong92/staged-content/pkg/stagedcontent/repo/memory"
	postgresrepo "github.com/khunglong92/staged-content/pkg/stagedcontent/repo/postgres"
)

// ServerConfig represents configuration for the stage server
type ServerConfig struct {
	Port        string `env:"PORT" env-default:"8080"`
	Environment string `env:"ENVIRONMENT" env-default:"development"`

	// Gateway configuration
	GatewayType string `env:"GATEWAY_TYPE" env-default:"memory"` // "memory", "fs", "s3"
	FS          FSConfig
	S3          S3Config

	// Entity backend configuration. A backend URL selects the HTTP client, a
	// database URL selects the postgres store, otherwise the in-memory store
	// is used.
	EntityBackendURL string `env:"ENTITY_BACKEND_URL" env-default:""`
	DatabaseURL      string `env:"DATABASE_URL" env-default:""`

	// Auth
	JWTSecret string `env:"JWT_SECRET" env-default:""`
}

// FSConfig configures the filesystem gateway
type FSConfig struct {
	BaseDir   string `env:"FS_BASE_DIR" env-default:"./data/storage"`
	URLPrefix string `env:"FS_URL_PREFIX" env-default:""`
}

// S3Config configures the S3 gateway
type S3Config struct {
	Endpoint        string `env:"AWS_S3_ENDPOINT" env-default:""`
	AccessKeyID     string `env:"AWS_ACCESS_KEY_ID" env-default:""`
	SecretAccessKey string `env:"AWS_SECRET_ACCESS_KEY" env-default:""`
	Bucket          string `env:"AWS_S3_BUCKET" env-default:""`
	Region          string `env:"AWS_S3_REGION" env-default:"us-east-1"`
	UseSSL          bool   `env:"AWS_S3_USE_SSL" env-default:"true"`
	UsePathStyle    bool   `env:"AWS_S3_USE_PATH_STYLE" env-default:"false"`
	PresignDuration int    `env:"AWS_S3_PRESIGN_DURATION" env-default:"3600"`
}

// Load reads configuration from the environment.
func Load() (*ServerConfig, error) {
	var cfg ServerConfig
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate validates the server configuration
func (c *ServerConfig) Validate() error {
	if c.Port == "" {
		return errors.New("port is required")
	}
	switch c.GatewayType {
	case "memory", "fs", "s3":
	default:
		return fmt.Errorf("unsupported gateway type: %s", c.GatewayType)
	}
	if c.GatewayType == "s3" && c.S3.Bucket == "" {
		return errors.New("bucket is required when using the s3 gateway")
	}
	return nil
}

// BuildGateway creates the configured object store gateway.
func (c *ServerConfig) BuildGateway() (stagedcontent.Gateway, error) {
	switch c.GatewayType {
	case "memory":
		return memorygateway.New(), nil

	case "fs":
		return fsgateway.New(fsgateway.Config{
			BaseDir:   c.FS.BaseDir,
			URLPrefix: c.FS.URLPrefix,
		})

	case "s3":
		return s3gateway.New(s3gateway.Config{
			Endpoint:        c.S3.Endpoint,
			AccessKeyID:     c.S3.AccessKeyID,
			SecretAccessKey: c.S3.SecretAccessKey,
			Bucket:          c.S3.Bucket,
			Region:          c.S3.Region,
			UseSSL:          c.S3.UseSSL,
			UsePathStyle:    c.S3.UsePathStyle,
			PresignDuration: c.S3.PresignDuration,
		})

	default:
		return nil, fmt.Errorf("unsupported gateway type: %s", c.GatewayType)
	}
}

// BuildEntityAPI creates the entity backend. Precedence: the HTTP client when
// a backend URL is configured, the postgres store when a database URL is
// configured, otherwise an in-memory store. The local stores purge ledgered
// keys against the gateway.
func (c *ServerConfig) BuildEntityAPI(ctx context.Context, gateway stagedcontent.Gateway) (stagedcontent.EntityAPI, error) {
	if c.EntityBackendURL != "" {
		return entityapi.New(c.EntityBackendURL), nil
	}
	if c.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, c.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		return postgresrepo.NewWithPool(pool, gateway), nil
	}
	return memoryrepo.New(gateway), nil
}
