package config

import (
	"fmt"
	"log"
	"os"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"sigs.k8s.io/yaml"
)

const (
	DefaultInterpreter = "/bin/bash"
	DefaultPrompt      = "smash"
	DefaultMaxDepth    = 32

	envInterpreter = "SMASH_INTERPRETER"
	envPrompt      = "SMASH_PROMPT"
	envMaxDepth    = "SMASH_MAX_DEPTH"
	envLogFile     = "SMASH_LOG_FILE"
	envColor       = "SMASH_COLOR"
)

// Config holds the shell's tunables.
type Config struct {
	// Interpreter runs every external command as "<interpreter> -c <line>".
	Interpreter string `json:"interpreter" validate:"required"`
	// Prompt is the default prompt text; chprompt without arguments restores it.
	Prompt string `json:"prompt" validate:"required"`
	// MaxDepth bounds nested dispatch through pipes and redirections.
	MaxDepth int `json:"max_depth" validate:"gte=1,lte=1024"`
	// LogFile receives debug logs. Empty disables them.
	LogFile string `json:"log_file,omitempty"`
	// Color styles the prompt and errors when attached to a terminal.
	Color bool `json:"color"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Interpreter: DefaultInterpreter,
		Prompt:      DefaultPrompt,
		MaxDepth:    DefaultMaxDepth,
		Color:       true,
	}
}

// Load builds a Config from an optional YAML or JSON file plus environment overrides.
func Load(fs afero.Fs, path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(fs, path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := Validate(cfg); err != nil {
		return cfg, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks cfg against its field constraints.
func Validate(cfg Config) error {
	return newValidator().Struct(cfg)
}

func newValidator() *validator.Validate {
	v := validator.New()
	// Report fields by the names used in the config file.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func loadFromFile(fs afero.Fs, path string, cfg *Config) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return err
	}
	// Keys missing from the file keep the values already in cfg.
	return yaml.UnmarshalStrict(data, cfg)
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv(envInterpreter); v != "" {
		cfg.Interpreter = v
	}
	if v := os.Getenv(envPrompt); v != "" {
		cfg.Prompt = v
	}
	if v := os.Getenv(envMaxDepth); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxDepth = n
		} else if err != nil {
			log.Printf("invalid %s value %q: %v", envMaxDepth, v, err)
		} else {
			log.Printf("invalid %s value %q: must be > 0", envMaxDepth, v)
		}
	}
	if v := os.Getenv(envLogFile); v != "" {
		cfg.LogFile = v
	}
	if v := os.Getenv(envColor); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Color = b
		} else {
			log.Printf("invalid %s value %q: %v", envColor, v, err)
		}
	}
}

// Environ renders cfg as the environment overrides that reproduce it, so a
// re-executed shell ends up with the same settings.
func Environ(cfg Config) []string {
	env := []string{
		envInterpreter + "=" + cfg.Interpreter,
		envPrompt + "=" + cfg.Prompt,
		envMaxDepth + "=" + strconv.Itoa(cfg.MaxDepth),
		envColor + "=" + strconv.FormatBool(cfg.Color),
	}
	if cfg.LogFile != "" {
		env = append(env, envLogFile+"="+cfg.LogFile)
	}
	return env
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
