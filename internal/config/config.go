package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
)

const DefaultPath = "config.yaml"

const defaultMSBLimit = 16

type Search struct {
	MSBLimit int `yaml:"msb_limit" env:"MFKEY_MSB_LIMIT" env-default:"16" validate:"oneof=1 2 4 8 16 32 64 128 256" env-description:"bucket width, must divide 256"`
	Workers  int `yaml:"workers" env:"MFKEY_WORKERS" env-default:"0" validate:"gte=0" env-description:"buckets searched at once; 0 for GOMAXPROCS, or 1 with a memory backend and msb_limit below 16"`
	// SessionTimeout of zero disables the limit.
	SessionTimeout time.Duration `yaml:"session_timeout" env:"MFKEY_SESSION_TIMEOUT" env-default:"0s" validate:"gte=0" env-description:"upper bound on one session's search"`
}

type Storage struct {
	Backend    string `yaml:"backend" env:"MFKEY_STORAGE_BACKEND" env-default:"memory" validate:"oneof=memory file" env-description:"candidate table backend"`
	ScratchDir string `yaml:"scratch_dir" env:"MFKEY_SCRATCH_DIR" env-description:"directory for file backed tables, system temp dir when unset"`
}

type Logger struct {
	Level string `yaml:"level" env:"MFKEY_LOG_LEVEL" env-default:"info" validate:"oneof=debug info warn error"`
	Path  string `yaml:"path" env:"MFKEY_LOG_PATH" env-description:"rotated JSON log, unset to disable"`
}

type Metrics struct {
	Addr string `yaml:"addr" env:"MFKEY_METRICS_ADDR" env-description:"listen address for /metrics, empty to disable"`
}

type Profile struct {
	Dir string `yaml:"dir" env:"MFKEY_PROFILE_DIR" env-description:"write CPU and heap profiles here, unset to disable"`
}

type Config struct {
	LogFile  string  `yaml:"log_file" env:"MFKEY_CAPTURE_LOG" env-default:".mfkey32.log" validate:"required" env-description:"capture log read when no argument is given"`
	Progress bool    `yaml:"progress" env:"MFKEY_PROGRESS" env-description:"draw a progress bar on stderr"`
	Search   Search  `yaml:"search"`
	Storage  Storage `yaml:"storage"`
	Logger   Logger  `yaml:"logger"`
	Metrics  Metrics `yaml:"metrics"`
	Profile  Profile `yaml:"profile"`
}

// Load reads the YAML file at path with environment overrides. A missing file
// is not an error: the configuration then comes from the environment and
// defaults alone.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	_, err := os.Stat(path)
	switch {
	case path == "" || errors.Is(err, fs.ErrNotExist):
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("read env: %w", err)
		}
	case err != nil:
		return nil, fmt.Errorf("stat config: %w", err)
	default:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// WorkerCount resolves search.workers for the partitioner, where 0 means
// GOMAXPROCS. Every worker holds one bucket's tables in memory, so a memory
// backend with buckets narrowed below the default searches one bucket at a
// time unless workers is set explicitly.
func (c *Config) WorkerCount() int {
	if c.Search.Workers > 0 {
		return c.Search.Workers
	}
	if c.Storage.Backend == "memory" && c.Search.MSBLimit < defaultMSBLimit {
		return 1
	}
	return 0
}

// Usage prints the environment variables Load understands after running the
// given usage funcs.
func Usage(w io.Writer, header string, usageFuncs ...func()) func() {
	return cleanenv.FUsage(w, &Config{}, &header, usageFuncs...)
}
