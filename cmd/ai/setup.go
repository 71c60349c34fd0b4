package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ai/internal/inference"
	"github.com/samcharles93/ai/internal/logger"
	"github.com/samcharles93/ai/internal/model"
	"github.com/samcharles93/ai/internal/tokenizer"
)

// setup loads the config file, resolves flags against it and attaches the
// logger to ctx. Every action starts here.
func setup(ctx context.Context, c *cli.Command) (context.Context, Config, error) {
	cfg, err := LoadConfig(configFile, os.LookupEnv)
	if err != nil {
		return ctx, cfg, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	applyLoggingConfig(c, cfg)
	applyModelConfig(c, cfg)

	log, err := newLogger(os.Stderr)
	if err != nil {
		return ctx, cfg, cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	return logger.WithContext(ctx, log), cfg, nil
}

func newLogger(w io.Writer) (logger.Logger, error) {
	level, err := logger.ParseLevel(logLevel)
	if err != nil {
		return nil, err
	}
	if debug {
		level = slog.LevelDebug
	}
	format, err := logger.ParseFormat(logFormat)
	if err != nil {
		return nil, err
	}
	return logger.NewWithOptions(logger.Options{
		Level:     level,
		Format:    format,
		Writer:    w,
		AddSource: debug && format != logger.FormatPretty,
	})
}

// loadTokenizer accepts a tiktoken encoding name or a path to a
// tokenizer.json. A tokenizer_config.json next to it is picked up.
func loadTokenizer(spec string) (tokenizer.Tokenizer, string, error) {
	switch spec {
	case "", tokenizer.EncodingR50kBase, tokenizer.EncodingP50kBase, tokenizer.EncodingCL100kBase:
		if spec == "" {
			spec = tokenizer.EncodingR50kBase
		}
		tok, err := tokenizer.NewTikToken(spec)
		if err != nil {
			return nil, "", err
		}
		return tok, spec, nil
	}

	path := spec
	if st, err := os.Stat(path); err == nil && st.IsDir() {
		path = filepath.Join(path, "tokenizer.json")
	}
	tokJSON, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("read tokenizer.json: %w", err)
	}
	tokCfg, err := os.ReadFile(filepath.Join(filepath.Dir(path), "tokenizer_config.json"))
	if err != nil {
		tokCfg = nil
	}
	tok, err := tokenizer.LoadHFTokenizerBytes(tokJSON, tokCfg)
	if err != nil {
		return nil, "", fmt.Errorf("load tokenizer.json: %w", err)
	}
	return tok, path, nil
}

func newModel(tok tokenizer.Tokenizer) (inference.SequenceModel, string, error) {
	kind := model.Kind(strings.ToLower(modelKind))
	m, err := model.New(kind, model.Config{
		Vocab:      tok.VocabSize(),
		Hidden:     int(hiddenSize),
		Seed:       modelSeed,
		MaxContext: int(maxContext),
	})
	if err != nil {
		return nil, "", err
	}
	if kind == "" {
		kind = model.KindRecurrent
	}
	return m, fmt.Sprintf("%s-h%d-s%d", kind, hiddenSize, modelSeed), nil
}
