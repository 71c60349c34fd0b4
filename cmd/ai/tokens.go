package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ai/internal/tokenizer"
)

func tokensCmd() *cli.Command {
	var pieces bool

	return &cli.Command{
		Name:      "tokens",
		Usage:     "Encode text and print the token ids",
		ArgsUsage: "[text...]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "pieces",
				Usage:       "print one 'id -> piece' line per token",
				Destination: &pieces,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if _, _, err := setup(ctx, cmd); err != nil {
				return err
			}
			text := strings.Join(cmd.Args().Slice(), " ")
			if text == "" {
				data, err := io.ReadAll(os.Stdin)
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: read stdin: %v", err), 1)
				}
				text = string(data)
			}
			tok, _, err := loadTokenizer(tokenizerSpec)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: %v", err), 1)
			}
			ids, err := tok.Encode(text)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: encode: %v", err), 1)
			}
			if pieces {
				return printPromptTokens(os.Stdout, tok, ids)
			}
			_, err = fmt.Fprintf(os.Stdout, "%d tokens: %s\n", len(ids), joinIDs(ids))
			return err
		},
	}
}

func joinIDs(ids []tokenizer.TokenID) string {
	var b strings.Builder
	for i, id := range ids {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%d", id)
	}
	return b.String()
}
