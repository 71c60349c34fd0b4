package main

import "github.com/urfave/cli/v3"

var (
	configFile    string
	tokenizerSpec string
	modelKind     string
	hiddenSize    int64
	modelSeed     int64
	maxContext    int64
	logLevel      string
	logFormat     string
	debug         bool
)

func commonModelFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "tokenizer",
			Usage:       "tiktoken encoding name (r50k_base, p50k_base, cl100k_base) or path to tokenizer.json",
			Value:       "r50k_base",
			Destination: &tokenizerSpec,
		},
		&cli.StringFlag{
			Name:        "model-kind",
			Usage:       "sequence model variant (recurrent, positional)",
			Value:       "recurrent",
			Destination: &modelKind,
		},
		&cli.Int64Flag{
			Name:        "hidden",
			Usage:       "hidden size of the seeded model",
			Value:       32,
			Destination: &hiddenSize,
		},
		&cli.Int64Flag{
			Name:        "model-seed",
			Usage:       "seed for the model weights",
			Value:       1,
			Destination: &modelSeed,
		},
		&cli.Int64Flag{
			Name:        "max-context",
			Aliases:     []string{"max-ctx", "ctx", "c"},
			Usage:       "max context length of the positional model",
			Value:       2048,
			Destination: &maxContext,
		},
	}
}

func loggingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "config",
			Usage:       "path to config.yaml (default $XDG_CONFIG_HOME/ai/config.yaml)",
			Destination: &configFile,
		},
		&cli.StringFlag{
			Name:        "log-level",
			Usage:       "log level (debug, info, warn, error)",
			Value:       "error",
			Destination: &logLevel,
		},
		&cli.StringFlag{
			Name:        "log-format",
			Usage:       "log format (pretty, json, text)",
			Value:       "pretty",
			Destination: &logFormat,
		},
		&cli.BoolFlag{
			Name:        "debug",
			Usage:       "enable debug logging (shorthand for --log-level=debug)",
			Destination: &debug,
		},
	}
}
