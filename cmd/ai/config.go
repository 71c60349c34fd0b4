package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/samcharles93/ai/internal/inference"
)

const envPrefix = "AI_CLI_"

// Config represents the configuration file (~/.config/ai/config.yaml).
// Pointer fields distinguish "not set" from zero values. Every field can be
// overridden by an AI_CLI_<YAML_KEY> environment variable.
type Config struct {
	// Model
	Tokenizer  string `yaml:"tokenizer"`
	ModelKind  string `yaml:"model_kind"`
	Hidden     *int64 `yaml:"hidden"`
	ModelSeed  *int64 `yaml:"model_seed"`
	MaxContext *int64 `yaml:"max_context"`

	// Sampling defaults
	Temperature   *float64 `yaml:"temperature"`
	TopP          *float64 `yaml:"top_p"`
	Seed          *uint64  `yaml:"seed"`
	SampleLen     *int     `yaml:"sample_len"`
	RepeatPenalty *float64 `yaml:"repeat_penalty"`
	RepeatLastN   *int     `yaml:"repeat_last_n"`
	StopToken     string   `yaml:"stop_token"`

	// Output
	VerbosePrompt *bool  `yaml:"verbose_prompt"`
	EchoPrompt    *bool  `yaml:"echo_prompt"`
	StreamMode    string `yaml:"stream_mode"`
	LogLevel      string `yaml:"log_level"`
	LogFormat     string `yaml:"log_format"`

	// Server
	ServerAddress string `yaml:"server_address"`
}

func configPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "ai", "config.yaml")
}

// LoadConfig reads path, or the default location when path is empty, and
// applies environment overrides. A missing default file is not an error.
func LoadConfig(path string, lookup func(string) (string, bool)) (Config, error) {
	var cfg Config
	explicit := path != ""
	if !explicit {
		path = configPath()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, fs.ErrNotExist) && !explicit:
		default:
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	if err := applyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// applyEnv decodes each AI_CLI_* variable with the YAML decoder, so that
// values follow the same syntax as the file.
func applyEnv(cfg *Config, lookup func(string) (string, bool)) error {
	if lookup == nil {
		return nil
	}
	rv := reflect.ValueOf(cfg).Elem()
	rt := rv.Type()
	for i := range rt.NumField() {
		key := rt.Field(i).Tag.Get("yaml")
		if key == "" {
			continue
		}
		name := envPrefix + strings.ToUpper(key)
		val, ok := lookup(name)
		if !ok || val == "" {
			continue
		}
		field := rv.Field(i)
		if field.Kind() == reflect.String {
			field.SetString(val)
			continue
		}
		if err := yaml.Unmarshal([]byte(val), field.Addr().Interface()); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// requestDefaults turns the file and environment values into the lower layer
// of request options.
func (c Config) requestDefaults() inference.RequestOptions {
	opts := inference.RequestOptions{
		MaxNewTokens:  c.SampleLen,
		Seed:          c.Seed,
		Temperature:   c.Temperature,
		TopP:          c.TopP,
		RepeatPenalty: c.RepeatPenalty,
		RepeatLastN:   c.RepeatLastN,
		EchoPrompt:    c.EchoPrompt,
	}
	if c.StopToken != "" {
		stop := c.StopToken
		opts.StopToken = &stop
	}
	return opts
}

// applyModelConfig applies config values to the shared model flags that were
// not explicitly set.
func applyModelConfig(c *cli.Command, cfg Config) {
	if cfg.Tokenizer != "" && !c.IsSet("tokenizer") {
		tokenizerSpec = cfg.Tokenizer
	}
	if cfg.ModelKind != "" && !c.IsSet("model-kind") {
		modelKind = cfg.ModelKind
	}
	if cfg.Hidden != nil && !c.IsSet("hidden") {
		hiddenSize = *cfg.Hidden
	}
	if cfg.ModelSeed != nil && !c.IsSet("model-seed") {
		modelSeed = *cfg.ModelSeed
	}
	if cfg.MaxContext != nil && !c.IsSet("max-context") {
		maxContext = *cfg.MaxContext
	}
}

func applyLoggingConfig(c *cli.Command, cfg Config) {
	if cfg.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = cfg.LogLevel
	}
	if cfg.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = cfg.LogFormat
	}
}
