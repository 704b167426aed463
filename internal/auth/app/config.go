package app

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	authhttp "github.com/aussiebroadwan/farmportal/internal/auth/http"
	"github.com/aussiebroadwan/farmportal/pkg/jwtx"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the service configuration. Every key can be set in the YAML
// file or through the environment, with dots replaced by underscores:
// auth.secret is AUTH_SECRET, ratelimit.login.burst is RATELIMIT_LOGIN_BURST.
type Config struct {
	Auth       AuthConfig       `mapstructure:"auth"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Revocation RevocationConfig `mapstructure:"revocation"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Seed       SeedConfig       `mapstructure:"seed"`
	RateLimit  authhttp.Limits  `mapstructure:"ratelimit"`

	Env                  string        `mapstructure:"env" validate:"oneof=dev staging prod"`
	Port                 int           `mapstructure:"port" validate:"min=1,max=65535"`
	ShutdownGracePeriod  time.Duration `mapstructure:"shutdown_grace_period" validate:"gt=0"`
	HousekeepingInterval time.Duration `mapstructure:"housekeeping_interval" validate:"gt=0"`
}

type AuthConfig struct {
	// Secret is the HMAC signing secret. SecretFile is read instead when
	// Secret is empty.
	Secret     string `mapstructure:"secret"`
	SecretFile string `mapstructure:"secret_file"`

	Issuer     string        `mapstructure:"issuer"`
	TOTPIssuer string        `mapstructure:"totp_issuer" validate:"required"`
	AccessTTL  time.Duration `mapstructure:"access_ttl" validate:"gte=1s"`
	RefreshTTL time.Duration `mapstructure:"refresh_ttl" validate:"gtefield=AccessTTL"`

	PepperFile    string `mapstructure:"pepper_file" validate:"required"`
	MasterKeyFile string `mapstructure:"master_key_file"`
}

type DatabaseConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=sqlite postgres"`
	File   string `mapstructure:"file" validate:"required_if=Driver sqlite"`
	URL    string `mapstructure:"url" validate:"required_if=Driver postgres"`
}

type RevocationConfig struct {
	// Backend is where revoked token ids live: the directory database
	// ("sql"), redis, or nowhere ("none", logout becomes a no-op).
	Backend string `mapstructure:"backend" validate:"oneof=sql redis none"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

type SeedConfig struct {
	// Demo creates the demo farmer when the directory is empty.
	Demo bool `mapstructure:"demo"`
}

// ErrNoSigningSecret is returned when neither auth.secret nor
// auth.secret_file is set.
var ErrNoSigningSecret = errors.New("app: auth.secret or auth.secret_file is required")

func setDefaults(v *viper.Viper) {
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.secret_file", "")
	v.SetDefault("auth.issuer", "farmportal-auth")
	v.SetDefault("auth.totp_issuer", "Farmer Portal")
	v.SetDefault("auth.access_ttl", jwtx.AccessTokenTTL)
	v.SetDefault("auth.refresh_ttl", jwtx.RefreshTokenTTL)
	v.SetDefault("auth.pepper_file", "pepper")
	v.SetDefault("auth.master_key_file", "")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.file", "auth.db")
	v.SetDefault("database.url", "")

	v.SetDefault("revocation.backend", "sql")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("env", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("port", 8080)
	v.SetDefault("shutdown_grace_period", 10*time.Second)
	v.SetDefault("housekeeping_interval", time.Hour)
	v.SetDefault("seed.demo", false)

	limits := authhttp.DefaultLimits()
	for name, l := range map[string]struct {
		requests, burst int
		window          time.Duration
	}{
		"login":   {limits.Login.Requests, limits.Login.Burst, limits.Login.Window},
		"token":   {limits.Token.Requests, limits.Token.Burst, limits.Token.Window},
		"session": {limits.Session.Requests, limits.Session.Burst, limits.Session.Window},
		"probe":   {limits.Probe.Requests, limits.Probe.Burst, limits.Probe.Window},
	} {
		v.SetDefault("ratelimit."+name+".requests", l.requests)
		v.SetDefault("ratelimit."+name+".burst", l.burst)
		v.SetDefault("ratelimit."+name+".window", l.window)
	}
}

// LoadConfig reads the optional YAML file at path, applies environment
// overrides and validates the result.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks struct tags and the rules that span sections.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return err
	}

	if c.Auth.Secret == "" && c.Auth.SecretFile == "" {
		return ErrNoSigningSecret
	}
	if c.Auth.Secret != "" && len(c.Auth.Secret) < jwtx.MinSecretLength {
		return jwtx.ErrWeakSecret
	}
	if c.Revocation.Backend == "redis" && c.Redis.Addr == "" {
		return errors.New("redis.addr is required when revocation.backend is redis")
	}
	return nil
}

// SigningSecret returns the HMAC secret, reading auth.secret_file when the
// secret is not set inline.
func (c *Config) SigningSecret() ([]byte, error) {
	if c.Auth.Secret != "" {
		return []byte(c.Auth.Secret), nil
	}
	if c.Auth.SecretFile == "" {
		return nil, ErrNoSigningSecret
	}

	data, err := os.ReadFile(c.Auth.SecretFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read signing secret: %w", err)
	}
	secret := []byte(strings.TrimSpace(string(data)))
	if len(secret) < jwtx.MinSecretLength {
		return nil, jwtx.ErrWeakSecret
	}
	return secret, nil
}
