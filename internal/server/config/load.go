package config

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix namespaces the environment variables read by Load.
const EnvPrefix = "VIDTUBE_"

// ConfigFlag names the flag holding the optional YAML file path.
const ConfigFlag = "config"

// RegisterFlags declares every configuration flag on fs. Flag names use
// dashes; they map onto the underscore keys of Config.
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.String("http-addr", d.HTTPAddr, "HTTP listen address")
	fs.String("grpc-addr", d.GRPCAddr, "gRPC listen address")
	fs.String("environment", d.Environment, "development or production")
	fs.String("log-format", d.LogFormat, "log format: json or text")
	fs.String("database-dsn", d.DatabaseDSN, "PostgreSQL DSN")
	fs.Bool("auto-migrate", d.AutoMigrate, "apply migrations on start")
	fs.String("access-token-secret", "", "HMAC secret for access tokens")
	fs.String("refresh-token-secret", "", "HMAC secret for refresh tokens")
	fs.Duration("access-token-ttl", d.AccessTokenTTL, "access token lifetime")
	fs.Duration("refresh-token-ttl", d.RefreshTokenTTL, "refresh token lifetime")
	fs.Int("bcrypt-cost", d.BcryptCost, "bcrypt work factor")
	fs.Int64("max-upload-bytes", d.MaxUploadBytes, "registration request body limit")
	fs.String("cookie-domain", "", "cookie domain (production only)")
	fs.String("cookie-prefix", "", "cookie name prefix")
	fs.String("s3-bucket", d.S3Bucket, "S3 bucket for media")
	fs.String("s3-region", d.S3Region, "S3 region")
	fs.String("s3-base-endpoint", d.S3BaseEndpoint, "S3 endpoint")
	fs.String("s3-public-url", "", "public URL prefix for stored media")
}

// Load builds a Config from defaults, the YAML file named by --config, the
// environment and finally the flags explicitly set on fs.
func Load(fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	k := koanf.New(".")

	if path, _ := fs.GetString(ConfigFlag); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	// Only flags the user actually set override earlier layers.
	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
		if !f.Changed || f.Name == ConfigFlag {
			return "", nil
		}
		return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
	}), nil); err != nil {
		return nil, fmt.Errorf("load flags: %w", err)
	}

	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}
