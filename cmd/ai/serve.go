package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/henvic/httpretty"
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ai/internal/api"
	"github.com/samcharles93/ai/internal/inference"
	"github.com/samcharles93/ai/internal/logger"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		traceHTTP   bool
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the generation API (POST /v1/generate)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.BoolFlag{
				Name:        "trace-http",
				Usage:       "dump requests and responses to stderr",
				Destination: &traceHTTP,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			ctx, cfg, err := setup(ctx, cmd)
			if err != nil {
				return err
			}
			log := logger.FromContext(ctx)
			if cfg.ServerAddress != "" && !cmd.IsSet("addr") {
				addr = cfg.ServerAddress
			}

			tok, tokName, err := loadTokenizer(tokenizerSpec)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			m, modelName, err := newModel(tok)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			defaults := cfg.requestDefaults()
			overrides := requestOptions(cmd)
			mergeOptions(&defaults, overrides)
			if defaults.EchoPrompt == nil {
				// clients already have their prompt
				echo := false
				defaults.EchoPrompt = &echo
			}
			if err := inference.ResolveRequest(inference.RequestOptions{}, defaults).Validate(); err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}

			service := api.NewService(m, tok, api.ServiceOptions{
				ModelName:     modelName,
				TokenizerName: tokName,
				Defaults:      defaults,
				Log:           log,
			})
			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			api.NewServer(service).Register(e)

			var handler http.Handler = e
			if traceHTTP {
				handler = newHTTPTracer().Middleware(handler)
			}

			log.Info("starting server", "address", addr, "model", modelName, "tokenizer", tokName)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, handler)
		},
	}
}

func newHTTPTracer() *httpretty.Logger {
	l := &httpretty.Logger{
		Time:           true,
		RequestHeader:  true,
		RequestBody:    true,
		ResponseHeader: true,
		ResponseBody:   true,
		Colors:         isTerminal(os.Stderr),
		Formatters:     []httpretty.Formatter{&httpretty.JSONFormatter{}},
	}
	l.SetOutput(os.Stderr)
	return l
}

// mergeOptions overlays the non-nil fields of src onto dst.
func mergeOptions(dst *inference.RequestOptions, src inference.RequestOptions) {
	if src.MaxNewTokens != nil {
		dst.MaxNewTokens = src.MaxNewTokens
	}
	if src.Seed != nil {
		dst.Seed = src.Seed
	}
	if src.Temperature != nil {
		dst.Temperature = src.Temperature
	}
	if src.TopP != nil {
		dst.TopP = src.TopP
	}
	if src.RepeatPenalty != nil {
		dst.RepeatPenalty = src.RepeatPenalty
	}
	if src.RepeatLastN != nil {
		dst.RepeatLastN = src.RepeatLastN
	}
	if src.StopToken != nil {
		dst.StopToken = src.StopToken
	}
	if src.EchoPrompt != nil {
		dst.EchoPrompt = src.EchoPrompt
	}
}
