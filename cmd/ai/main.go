package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ai/internal/version"
)

func main() {
	app := &cli.Command{
		Name:      "ai",
		Usage:     "Generate text, such as bash one-liners, with a local sequence model",
		ArgsUsage: "[prompt words...]",
		Version:   version.String(),
		Flags:     append(append(loggingFlags(), commonModelFlags()...), runFlags()...),
		Action:    runAction,
		Commands: []*cli.Command{
			serveCmd(),
			tokensCmd(),
			versionCmd(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := app.Run(ctx, os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
