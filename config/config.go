package config

import (
	"encoding/hex"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"github.com/outofforest/sst/integrity"
	"github.com/outofforest/sst/persistence"
)

// EnvPrefix is the prefix of environment variables overriding configuration keys.
// Key `geometry.blockSize` is overridden by `SST_GEOMETRY_BLOCKSIZE`.
const EnvPrefix = "SST"

// Device configures the device file.
type Device struct {
	Path string `mapstructure:"path"`
	// Size is used only when the file is created.
	Size int64 `mapstructure:"size"`
}

// Geometry configures the layout of the device.
type Geometry struct {
	BlockSize  int64  `mapstructure:"blockSize"`
	MaxObjects uint64 `mapstructure:"maxObjects"`
}

// Policy configures which metadata operations are available without token.
type Policy struct {
	PublicInfo       bool `mapstructure:"publicInfo"`
	PublicAttributes bool `mapstructure:"publicAttributes"`
}

// Integrity configures the integrity collaborator.
type Integrity struct {
	// Key is hex-encoded key of the authenticator.
	Key string `mapstructure:"key"`
}

// Log configures the logger.
type Log struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// Config is the configuration of the secure storage.
type Config struct {
	Device        Device    `mapstructure:"device"`
	Geometry      Geometry  `mapstructure:"geometry"`
	CommitRetries int       `mapstructure:"commitRetries"`
	Policy        Policy    `mapstructure:"policy"`
	Integrity     Integrity `mapstructure:"integrity"`
	Log           Log       `mapstructure:"log"`
}

// Default returns the default configuration. Device path and integrity key have no defaults.
func Default() Config {
	return Config{
		Device: Device{
			Size: 4 * 1024 * 1024,
		},
		Geometry: Geometry{
			BlockSize:  4096,
			MaxObjects: 64,
		},
		CommitRetries: 3,
		Log: Log{
			Level: zerolog.InfoLevel.String(),
		},
	}
}

// Load reads configuration from the YAML file and environment. Empty path means environment only.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, errors.Wrapf(err, "reading config file %q failed", path)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, errors.Wrap(err, "decoding config failed")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects inconsistent configuration.
func (c Config) Validate() error {
	if c.Device.Path == "" {
		return errors.New("device path is not set")
	}
	if c.Device.Size < 0 {
		return errors.Errorf("invalid device size: %d", c.Device.Size)
	}
	if c.Geometry.BlockSize < persistence.MinBlockSize || c.Geometry.BlockSize&(c.Geometry.BlockSize-1) != 0 {
		return errors.Errorf("block size must be a power of two not smaller than %d, provided: %d",
			persistence.MinBlockSize, c.Geometry.BlockSize)
	}
	if c.Geometry.MaxObjects == 0 {
		return errors.New("maximum number of objects must be greater than zero")
	}
	if c.CommitRetries <= 0 {
		return errors.Errorf("invalid number of commit retries: %d", c.CommitRetries)
	}
	key, err := c.IntegrityKey()
	if err != nil {
		return err
	}
	if len(key) < integrity.MinKeySize || len(key) > integrity.MaxKeySize {
		return errors.Errorf("integrity key must be between %d and %d bytes, provided: %d",
			integrity.MinKeySize, integrity.MaxKeySize, len(key))
	}
	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return errors.Wrapf(err, "invalid log level %q", c.Log.Level)
	}
	return nil
}

// IntegrityKey returns the decoded integrity key.
func (c Config) IntegrityKey() ([]byte, error) {
	if c.Integrity.Key == "" {
		return nil, errors.New("integrity key is not set")
	}
	key, err := hex.DecodeString(c.Integrity.Key)
	if err != nil {
		return nil, errors.Wrap(err, "integrity key is not a valid hex string")
	}
	return key, nil
}

// Logger builds the logger writing to w. Nil writer means stderr.
func (c Config) Logger(w io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(c.Log.Level)
	if err != nil {
		return zerolog.Nop(), errors.Wrapf(err, "invalid log level %q", c.Log.Level)
	}
	if w == nil {
		w = os.Stderr
	}
	if !c.Log.JSON {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("device.path", cfg.Device.Path)
	v.SetDefault("device.size", cfg.Device.Size)
	v.SetDefault("geometry.blockSize", cfg.Geometry.BlockSize)
	v.SetDefault("geometry.maxObjects", cfg.Geometry.MaxObjects)
	v.SetDefault("commitRetries", cfg.CommitRetries)
	v.SetDefault("policy.publicInfo", cfg.Policy.PublicInfo)
	v.SetDefault("policy.publicAttributes", cfg.Policy.PublicAttributes)
	v.SetDefault("integrity.key", cfg.Integrity.Key)
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.json", cfg.Log.JSON)
}
