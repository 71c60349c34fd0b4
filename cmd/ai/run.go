package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/ai/internal/inference"
	"github.com/samcharles93/ai/internal/logger"
	"github.com/samcharles93/ai/internal/tokenizer"
)

type runOptions struct {
	prompt        string
	system        bool
	sampleLen     int64
	temperature   float64
	topP          float64
	seed          uint64
	repeatPenalty float64
	repeatLastN   int64
	stopToken     string
	echoPrompt    bool
	verbosePrompt bool
	streamMode    string
	raw           bool
	timeout       time.Duration
	showStats     bool
}

var runOpts runOptions

// runFlags are declared on the root command, so serve shares the sampling
// flags as its request defaults.
func runFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "prompt",
			Aliases:     []string{"p"},
			Usage:       "prompt text, prepended to any positional words",
			Destination: &runOpts.prompt,
		},
		&cli.BoolFlag{
			Name:        "system",
			Usage:       "wrap the prompt in the bash one-liner system prompt",
			Destination: &runOpts.system,
		},
		&cli.Int64Flag{
			Name:        "sample-len",
			Aliases:     []string{"n", "max-tokens"},
			Usage:       "maximum number of tokens to generate",
			Value:       inference.DefaultMaxNewTokens,
			Destination: &runOpts.sampleLen,
		},
		&cli.Float64Flag{
			Name:        "temperature",
			Aliases:     []string{"temp", "t"},
			Usage:       "sampling temperature (0 = arg-max)",
			Value:       inference.DefaultTemperature,
			Destination: &runOpts.temperature,
		},
		&cli.Float64Flag{
			Name:        "top-p",
			Aliases:     []string{"top_p"},
			Usage:       "nucleus sampling cutoff",
			Value:       inference.DefaultTopP,
			Destination: &runOpts.topP,
		},
		&cli.Uint64Flag{
			Name:        "seed",
			Usage:       "sampling RNG seed (default random)",
			Destination: &runOpts.seed,
		},
		&cli.Float64Flag{
			Name:        "repeat-penalty",
			Aliases:     []string{"repeat_penalty"},
			Usage:       "repetition penalty (1.0 = disabled)",
			Value:       inference.DefaultRepeatPenalty,
			Destination: &runOpts.repeatPenalty,
		},
		&cli.Int64Flag{
			Name:        "repeat-last-n",
			Aliases:     []string{"repeat_last_n"},
			Usage:       "last n tokens to penalize",
			Value:       inference.DefaultRepeatLastN,
			Destination: &runOpts.repeatLastN,
		},
		&cli.StringFlag{
			Name:        "stop-token",
			Usage:       "vocabulary literal that ends generation",
			Value:       inference.DefaultStopToken,
			Destination: &runOpts.stopToken,
		},
		&cli.BoolFlag{
			Name:        "echo-prompt",
			Usage:       "print the prompt before the generated text",
			Value:       true,
			Destination: &runOpts.echoPrompt,
		},
		&cli.BoolFlag{
			Name:        "verbose-prompt",
			Usage:       "print prompt token ids and pieces before generating",
			Destination: &runOpts.verbosePrompt,
		},
		&cli.StringFlag{
			Name:        "stream-mode",
			Usage:       "output mode (instant, smooth, quiet)",
			Value:       string(StreamInstant),
			Destination: &runOpts.streamMode,
		},
		&cli.BoolFlag{
			Name:        "raw",
			Usage:       "escape control characters in the output",
			Destination: &runOpts.raw,
		},
		&cli.DurationFlag{
			Name:        "timeout",
			Usage:       "abort a generation after this long (0 = no limit)",
			Destination: &runOpts.timeout,
		},
		&cli.BoolFlag{
			Name:        "stats",
			Usage:       "print token count and throughput to stderr",
			Value:       true,
			Destination: &runOpts.showStats,
		},
	}
}

// requestOptions collects only the flags given on the command line, so that
// config values underneath still apply.
func requestOptions(c *cli.Command) inference.RequestOptions {
	var opts inference.RequestOptions
	if c.IsSet("sample-len") {
		n := int(runOpts.sampleLen)
		opts.MaxNewTokens = &n
	}
	if c.IsSet("temperature") {
		v := runOpts.temperature
		opts.Temperature = &v
	}
	if c.IsSet("top-p") {
		v := runOpts.topP
		opts.TopP = &v
	}
	if c.IsSet("seed") {
		v := runOpts.seed
		opts.Seed = &v
	}
	if c.IsSet("repeat-penalty") {
		v := runOpts.repeatPenalty
		opts.RepeatPenalty = &v
	}
	if c.IsSet("repeat-last-n") {
		n := int(runOpts.repeatLastN)
		opts.RepeatLastN = &n
	}
	if c.IsSet("stop-token") {
		v := runOpts.stopToken
		opts.StopToken = &v
	}
	if c.IsSet("echo-prompt") {
		v := runOpts.echoPrompt
		opts.EchoPrompt = &v
	}
	return opts
}

func runAction(ctx context.Context, c *cli.Command) error {
	ctx, cfg, err := setup(ctx, c)
	if err != nil {
		return err
	}
	log := logger.FromContext(ctx)

	modeName := runOpts.streamMode
	if cfg.StreamMode != "" && !c.IsSet("stream-mode") {
		modeName = cfg.StreamMode
	}
	mode, err := parseStreamMode(modeName)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	verbose := runOpts.verbosePrompt
	if cfg.VerbosePrompt != nil && !c.IsSet("verbose-prompt") {
		verbose = *cfg.VerbosePrompt
	}

	loadStart := time.Now()
	tok, tokName, err := loadTokenizer(tokenizerSpec)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	m, modelName, err := newModel(tok)
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	log.Info("model ready", "model", modelName, "tokenizer", tokName,
		"vocab", tok.VocabSize(), "elapsed", time.Since(loadStart))

	r := &runner{
		model:     m,
		tok:       tok,
		log:       log,
		mode:      mode,
		raw:       runOpts.raw,
		verbose:   verbose,
		timeout:   runOpts.timeout,
		showStats: runOpts.showStats,
		in:        os.Stdin,
		out:       os.Stdout,
		errOut:    os.Stderr,
	}
	opts, defaults := requestOptions(c), cfg.requestDefaults()

	words := c.Args().Slice()
	if runOpts.prompt != "" {
		words = append([]string{runOpts.prompt}, words...)
	}
	prompt := buildPrompt(words, runOpts.system)
	if prompt == "" && !isTerminal(os.Stdin) {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return cli.Exit(fmt.Sprintf("error: read stdin: %v", err), 1)
		}
		prompt = buildPrompt([]string{string(data)}, runOpts.system)
	}
	if prompt == "" {
		return r.interactive(ctx, opts, defaults, runOpts.system)
	}
	return r.generate(ctx, prompt, inference.ResolveRequest(opts, defaults))
}

// runner holds what stays fixed across the runs of one invocation.
type runner struct {
	model     inference.SequenceModel
	tok       tokenizer.Tokenizer
	log       logger.Logger
	mode      StreamMode
	raw       bool
	verbose   bool
	timeout   time.Duration
	showStats bool

	in     io.Reader
	out    io.Writer
	errOut io.Writer
}

func (r *runner) generate(ctx context.Context, prompt string, req inference.Request) error {
	if err := req.Validate(); err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), 1)
	}
	log := r.log.With("run", uuid.NewString())
	log.Debug("request", "seed", req.Seed, "max_new_tokens", req.MaxNewTokens,
		"repeat_penalty", req.RepeatPenalty, "repeat_last_n", req.RepeatLastN, "stop", req.StopToken)

	if r.verbose {
		ids, err := r.tok.Encode(prompt)
		if err != nil {
			return cli.Exit(fmt.Sprintf("error: encode prompt: %v", err), 1)
		}
		if err := printPromptTokens(r.out, r.tok, ids); err != nil {
			return err
		}
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	sink := newOutputSink(r.mode, r.raw, r.out)
	g := inference.NewGenerator(r.model, r.tok, req)
	g.Log = log
	stats, err := g.Generate(ctx, prompt, req.MaxNewTokens, sink)
	err = errors.Join(err, sink.Close())
	_, _ = fmt.Fprintln(r.out)

	if r.showStats && stats.State != inference.StateIdle {
		printStats(r.errOut, stats)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return cli.Exit(fmt.Sprintf("error: generation timed out after %s", r.timeout), 1)
	case errors.Is(err, context.Canceled):
		return cli.Exit("generation cancelled", 130)
	default:
		return cli.Exit(fmt.Sprintf("error: generation: %v", err), 1)
	}
}

// interactive runs one independent generation per input line.
func (r *runner) interactive(ctx context.Context, opts, defaults inference.RequestOptions, system bool) error {
	_, _ = fmt.Fprintln(r.errOut, "Interactive mode. Type /exit to quit.")
	sc := bufio.NewScanner(r.in)
	for ctx.Err() == nil {
		_, _ = fmt.Fprint(r.errOut, "> ")
		if !sc.Scan() {
			break
		}
		line := strings.TrimSpace(sc.Text())
		if line == "/exit" {
			break
		}
		if line == "" {
			continue
		}
		if err := r.generate(ctx, buildPrompt([]string{line}, system), inference.ResolveRequest(opts, defaults)); err != nil {
			_, _ = fmt.Fprintln(r.errOut, err)
		}
	}
	return sc.Err()
}
