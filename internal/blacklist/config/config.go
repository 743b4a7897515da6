package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is stripped from environment variable names before they are
// matched against koanf keys.
const EnvPrefix = "BLACKLIST_"

// AppConfig holds configuration values parsed from environment variables.
type AppConfig struct {
	// Env is the runtime environment, either "dev" or "prod".
	Env string `koanf:"env" validate:"required,oneof=dev prod"`

	// LogLevel controls log verbosity: "debug", "info", "warn", or "error".
	LogLevel string `koanf:"log_level" validate:"required,oneof=debug info warn error"`

	// DBPath is the bbolt file holding every record collection.
	DBPath string `koanf:"db_path" validate:"required"`

	// ActorID is the integration actor id the engine attributes its own writes to.
	ActorID string `koanf:"actor_id" validate:"required"`

	// Threshold is the number of open recommendations that blacklists a phone.
	Threshold int `koanf:"threshold" validate:"gte=1"`

	// ReasonCode and ReasonName describe the type promoted entries are filed under.
	ReasonCode string `koanf:"reason_code" validate:"required"`
	ReasonName string `koanf:"reason_name" validate:"required"`

	// BlockTime is the promoted type's block duration in seconds.
	BlockTime int64 `koanf:"block_time" validate:"gte=0"`

	SweepInterval time.Duration `koanf:"sweep_interval" validate:"gt=0"`
	TickInterval  time.Duration `koanf:"tick_interval" validate:"gt=0"`

	// CacheSize bounds the phone decision cache; 0 disables it.
	CacheSize int `koanf:"cache_size" validate:"gte=0"`

	// UserCacheSize bounds the user directory cache; 0 disables it.
	UserCacheSize int `koanf:"user_cache_size" validate:"gte=0"`

	// BloomFPRate is the target false-positive rate of the phone bloom filter.
	BloomFPRate float64 `koanf:"bloom_fp_rate" validate:"gt=0,lt=1"`

	// MetricsAddr is the host:port serving /metrics. Empty disables the endpoint.
	MetricsAddr string `koanf:"metrics_addr" validate:"omitempty,listen_addr"`

	// ImportFile is an optional newline-delimited phone list blacklisted at
	// startup under ImportTypeCode on behalf of ImportUserID.
	ImportFile     string `koanf:"import_file"`
	ImportTypeCode string `koanf:"import_type_code" validate:"required_with=ImportFile"`
	ImportUserID   string `koanf:"import_user_id" validate:"required_with=ImportFile"`
}

// DEFAULT_APP_CONFIG defines the default application configuration settings
// for the blacklist service.
var DEFAULT_APP_CONFIG = AppConfig{
	Env:            "prod",
	LogLevel:       "info",
	DBPath:         "/var/lib/rr-blacklist/records.db",
	ActorID:        "rr-blacklist",
	Threshold:      5,
	ReasonCode:     "recommendation-threshold",
	ReasonName:     "By recommendation threshold",
	BlockTime:      86400,
	SweepInterval:  time.Hour,
	TickInterval:   time.Minute,
	CacheSize:      10000,
	UserCacheSize:  1000,
	BloomFPRate:    0.01,
	MetricsAddr:    "",
	ImportFile:     "",
	ImportTypeCode: "imported",
	ImportUserID:   "",
}

// validListenAddr accepts "host:port" and ":port" with a port in 1-65535.
func validListenAddr(fl validator.FieldLevel) bool {
	_, port, err := net.SplitHostPort(fl.Field().String())
	if err != nil || port == "" {
		return false
	}
	portNum, err := strconv.ParseUint(port, 10, 16)
	return err == nil && portNum > 0
}

// envLoader loads environment variables with the prefix "BLACKLIST_",
// lowercasing the keys and removing the prefix. Values are kept whole since
// names such as reason_name may contain spaces. Replaced in tests.
var envLoader = func(k *koanf.Koanf) error {
	return k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
			return key, strings.TrimSpace(value)
		},
	}), nil)
}

// defaultLoader loads DEFAULT_APP_CONFIG through the structs provider.
var defaultLoader = func(k *koanf.Koanf) error {
	return k.Load(structs.Provider(DEFAULT_APP_CONFIG, "koanf"), nil)
}

// registerValidation registers the "listen_addr" tag.
var registerValidation = func(v *validator.Validate) error {
	return v.RegisterValidation("listen_addr", validListenAddr)
}

// Load parses environment variables and returns an AppConfig instance.
// It applies default values and runs validation automatically.
func Load() (*AppConfig, error) {
	k := koanf.New(".")

	err := defaultLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading default config: %w", err)
	}

	err = envLoader(k)
	if err != nil {
		return nil, fmt.Errorf("error loading env: %w", err)
	}

	var cfg AppConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling config: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	err = registerValidation(validate)
	if err != nil {
		return nil, fmt.Errorf("error registering validation: %w", err)
	}

	err = validate.Struct(&cfg)
	if err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	return &cfg, nil
}
