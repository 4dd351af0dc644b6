package app

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/samber/oops"
	"github.com/spf13/viper"
)

const EnvPrefix = "ADMINGUARD"

type Config struct {
	HTTP            HTTPConfig    `mapstructure:"http"`
	Log             LogConfig     `mapstructure:"log"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	Policy          PolicyConfig  `mapstructure:"policy"`
	Auth            AuthConfig    `mapstructure:"auth"`
	Ability         AbilityConfig `mapstructure:"ability"`
	Storage         StorageConfig `mapstructure:"storage"`
	Models          []ModelConfig `mapstructure:"models"`
	// Widgets are dashboard entries shown to users allowed to read them.
	Widgets []string `mapstructure:"widgets"`
}

type HTTPConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type PolicyConfig struct {
	File     string        `mapstructure:"file"`
	Debounce time.Duration `mapstructure:"debounce"`
	Interval time.Duration `mapstructure:"interval"`
}

type AuthConfig struct {
	// TokenFile enables bearer authentication. Empty means every request is anonymous.
	TokenFile         string `mapstructure:"token_file"`
	CurrentUserMethod string `mapstructure:"current_user_method"`
}

type AbilityConfig struct {
	Class string `mapstructure:"class"`
	// ACLModel and ACLPolicy register the casbin backed "ACL" class.
	ACLModel  string `mapstructure:"acl_model"`
	ACLPolicy string `mapstructure:"acl_policy"`
}

type StorageConfig struct {
	Path       string `mapstructure:"path"`
	SchemaFile string `mapstructure:"schema_file"`
}

type ModelConfig struct {
	Name       string `mapstructure:"name"`
	Table      string `mapstructure:"table"`
	PrimaryKey string `mapstructure:"primary_key"`
	// Label is the display name, the lower-cased name when empty.
	Label string `mapstructure:"label"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", "0.0.0.0:8080")
	v.SetDefault("http.read_timeout", 10*time.Second)
	v.SetDefault("http.write_timeout", 10*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("policy.file", "")
	v.SetDefault("policy.debounce", 200*time.Millisecond)
	v.SetDefault("policy.interval", 30*time.Second)
	v.SetDefault("auth.token_file", "")
	v.SetDefault("auth.current_user_method", "current_user")
	v.SetDefault("ability.class", "Ability")
	v.SetDefault("ability.acl_model", "")
	v.SetDefault("ability.acl_policy", "")
	v.SetDefault("storage.path", "adminguard.sqlite")
	v.SetDefault("storage.schema_file", "")
	v.SetDefault("models", []any{})
	v.SetDefault("widgets", []string{})
}

// LoadConfig reads configFile (optional), a .env file in the working
// directory (optional) and ADMINGUARD_* environment variables, in increasing
// precedence.
func LoadConfig(configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, oops.Code("CONFIG_INVALID").With("file", ".env").Wrapf(err, "load env file")
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, oops.Code("CONFIG_INVALID").With("file", configFile).Wrapf(err, "read config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.Policy.File == "" {
		return oops.Code("CONFIG_INVALID").With("key", "policy.file").Errorf("policy file is required")
	}
	if c.Storage.Path == "" {
		return oops.Code("CONFIG_INVALID").With("key", "storage.path").Errorf("storage path is required")
	}
	if (c.Ability.ACLModel == "") != (c.Ability.ACLPolicy == "") {
		return oops.Code("CONFIG_INVALID").With("key", "ability.acl_model").Errorf("acl model and policy must be set together")
	}
	seen := map[string]bool{}
	for i, m := range c.Models {
		if m.Name == "" || m.Table == "" {
			return oops.Code("CONFIG_INVALID").With("key", "models").With("index", i).Errorf("model needs name and table")
		}
		key := strings.ToLower(m.Name)
		if seen[key] {
			return oops.Code("CONFIG_INVALID").With("key", "models").With("model", m.Name).Errorf("duplicate model")
		}
		seen[key] = true
	}
	return nil
}
