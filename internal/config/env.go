package config

import (
	stderrors "errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/vango-dev/vstore/internal/errors"
)

// EnvPrefix prefixes every environment variable read by NewViper.
const EnvPrefix = "vstore"

// legacyEnv maps config keys to conventional unprefixed variable names,
// checked after VSTORE_*.
var legacyEnv = map[string]string{
	"server.revalidate_token": "REVALIDATION_TOKEN",
	"mail.host":               "EMAIL_SERVER_HOST",
	"mail.port":               "EMAIL_SERVER_PORT",
	"mail.user":               "EMAIL_SERVER_USER",
	"mail.password":           "EMAIL_SERVER_PASSWORD",
	"mail.from":               "EMAIL_FROM",
	"mail.admin":              "ADMIN_EMAIL",
}

// LoadEnvFiles loads .env.local and then .env from dir into the process
// environment. Variables already set are kept, so .env.local wins over
// .env and the real environment wins over both. Missing files are skipped.
func LoadEnvFiles(dir string) error {
	for _, name := range []string{".env.local", ".env"} {
		path := filepath.Join(dir, name)
		if err := godotenv.Load(path); err != nil {
			if stderrors.Is(err, fs.ErrNotExist) {
				continue
			}
			return errors.New("E105").WithSubject(path).Wrap(err)
		}
	}
	return nil
}

// NewViper returns a viper instance reading VSTORE_* variables, e.g.
// VSTORE_STORAGE_BACKEND for storage.backend, plus the legacy names.
func NewViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, env := range legacyEnv {
		prefixed := strings.ToUpper(EnvPrefix + "_" + strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}
	return v
}

// Apply overrides c with every key set in v (environment or changed flag)
// and re-applies defaults.
func (c *Config) Apply(v *viper.Viper) error {
	var errs []error
	str := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}
	boolean := func(key string, dst *bool) {
		if v.IsSet(key) {
			*dst = v.GetBool(key)
		}
	}
	integer := func(key string, dst *int) {
		if v.IsSet(key) {
			*dst = v.GetInt(key)
		}
	}
	duration := func(key string, dst *Duration) {
		if !v.IsSet(key) {
			return
		}
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
			return
		}
		dst.Duration = d
	}

	str("server.address", &c.Server.Address)
	str("server.revalidate_token", &c.Server.RevalidateToken)
	boolean("server.metrics", &c.Server.Metrics)

	str("storage.backend", &c.Storage.Backend)
	str("storage.dir", &c.Storage.Dir)
	str("storage.dsn", &c.Storage.DSN)
	str("storage.table", &c.Storage.Table)
	boolean("storage.watch", &c.Storage.Watch)
	duration("storage.timeout", &c.Storage.Timeout)
	str("storage.s3.bucket", &c.Storage.S3.Bucket)
	str("storage.s3.prefix", &c.Storage.S3.Prefix)
	str("storage.s3.region", &c.Storage.S3.Region)
	str("storage.s3.endpoint", &c.Storage.S3.Endpoint)
	str("storage.s3.access_key_id", &c.Storage.S3.AccessKeyID)
	str("storage.s3.secret_access_key", &c.Storage.S3.SecretAccessKey)
	boolean("storage.s3.path_style", &c.Storage.S3.PathStyle)

	str("mail.host", &c.Mail.Host)
	integer("mail.port", &c.Mail.Port)
	str("mail.user", &c.Mail.User)
	str("mail.password", &c.Mail.Password)
	str("mail.from", &c.Mail.From)
	str("mail.admin", &c.Mail.Admin)
	boolean("mail.implicit_tls", &c.Mail.ImplicitTLS)

	str("log.level", &c.Log.Level)
	str("log.format", &c.Log.Format)
	duration("demo.latency", &c.Demo.Latency)

	if len(errs) > 0 {
		return errors.New("E104").Wrap(stderrors.Join(errs...))
	}
	c.applyDefaults()
	return nil
}

// Resolve builds the effective configuration: the config file (path, or
// the one found in dir), then .env files in dir, then v.
func Resolve(dir, path string, v *viper.Viper) (*Config, error) {
	var (
		cfg *Config
		err error
	)
	if path != "" {
		cfg, err = LoadFile(path)
	} else {
		cfg, err = Load(dir)
	}
	if err != nil {
		return nil, err
	}
	if err := LoadEnvFiles(dir); err != nil {
		return nil, err
	}
	if v == nil {
		v = NewViper()
	}
	if err := cfg.Apply(v); err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}
