package inference

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/samcharles93/ai/internal/logger"
	"github.com/samcharles93/ai/internal/logits"
	"github.com/samcharles93/ai/internal/tokenizer"
)

// historyPrealloc caps the capacity reserved up front for generated tokens.
const historyPrealloc = 1024

// Generator drives a SequenceModel one token at a time and streams the
// decoded text to a Sink. A Generator is not safe for concurrent runs when
// the model keeps a shared cache; callers serialize whole runs.
type Generator struct {
	Model     SequenceModel
	Tokenizer tokenizer.Tokenizer
	Sampler   *logits.Sampler
	Penalty   logits.PenaltyConfig

	// StopToken is the vocabulary literal that ends generation.
	// Empty means DefaultStopToken.
	StopToken string
	// OmitPrompt skips writing the prompt text before generated text.
	OmitPrompt bool
	// Log overrides the logger carried by the run context.
	Log logger.Logger
}

// Generate encodes prompt and runs the decode loop. The prompt string is
// written to sink verbatim.
func (g *Generator) Generate(ctx context.Context, prompt string, maxNewTokens int, sink Sink) (Stats, error) {
	stats := Stats{State: StateIdle}
	if prompt == "" {
		stats.State = StateFailed
		return stats, ErrEmptyPrompt
	}
	stop, err := ResolveStopToken(g.Tokenizer, g.StopToken)
	if err != nil {
		stats.State = StateFailed
		return stats, err
	}
	ids, err := safeEncode(g.Tokenizer, prompt)
	if err != nil {
		stats.State = StateFailed
		return stats, fmt.Errorf("encode prompt: %w", err)
	}
	if len(ids) == 0 {
		stats.State = StateFailed
		return stats, ErrEmptyPrompt
	}
	return g.run(ctx, ids, prompt, stop, maxNewTokens, sink)
}

// Run generates up to maxNewTokens tokens after prompt. The decode of the
// prompt ids is written to sink first.
func (g *Generator) Run(ctx context.Context, prompt []tokenizer.TokenID, maxNewTokens int, sink Sink) (Stats, error) {
	stats := Stats{State: StateIdle}
	if len(prompt) == 0 {
		stats.State = StateFailed
		return stats, ErrEmptyPrompt
	}
	stop, err := ResolveStopToken(g.Tokenizer, g.StopToken)
	if err != nil {
		stats.State = StateFailed
		return stats, err
	}
	text, err := g.Tokenizer.Decode(prompt)
	if err != nil {
		stats.State = StateFailed
		return stats, stepError(PromptStep, ErrDecode, err)
	}
	return g.run(ctx, prompt, text, stop, maxNewTokens, sink)
}

func (g *Generator) run(ctx context.Context, prompt []tokenizer.TokenID, promptText string, stop tokenizer.TokenID, maxNewTokens int, sink Sink) (Stats, error) {
	log := g.Log
	if log == nil {
		log = logger.FromContext(ctx)
	}
	stats := Stats{State: StateIdle, PromptTokens: len(prompt)}

	fail := func(start time.Time, err error) (Stats, error) {
		stats.State = StateFailed
		stats.finish(start)
		log.Debug("generation failed", "tokens", stats.TokensGenerated, "error", err)
		return stats, err
	}

	if r, ok := g.Model.(Resetter); ok {
		if err := safeReset(r); err != nil {
			return fail(time.Now(), stepError(PromptStep, ErrModelForward, err))
		}
	}

	if !g.OmitPrompt && promptText != "" {
		if _, err := sink.WriteString(promptText); err != nil {
			return fail(time.Now(), stepError(PromptStep, ErrSink, err))
		}
	}

	// the budget may be far larger than any run reaches; append grows past this
	history := make([]tokenizer.TokenID, len(prompt), len(prompt)+min(max(maxNewTokens, 0), historyPrealloc))
	copy(history, prompt)
	out := tokenizer.NewOutputStream(g.Tokenizer)
	pos := 0
	step := 0

	start := time.Now()
	stats.State = StatePriming
	for ; step < maxNewTokens; step++ {
		if err := ctx.Err(); err != nil {
			return fail(start, fmt.Errorf("step %d: %w", step, err))
		}

		window := history
		if step > 0 {
			window = history[len(history)-1:]
		}

		scores, err := safeForward(g.Model, window, pos)
		if err != nil {
			return fail(start, stepError(step, ErrModelForward, err))
		}

		if g.Penalty.Enabled() {
			if err := logits.ApplyRepeatPenalty(scores, g.Penalty.Factor, g.Penalty.Window(history)); err != nil {
				return fail(start, stepError(step, ErrPenalty, err))
			}
		}

		next, err := safeSample(g.Sampler, scores)
		if err != nil {
			return fail(start, stepError(step, ErrSampling, err))
		}
		history = append(history, next)
		stats.TokensGenerated++
		log.Debug("sampled token", "step", step, "pos", pos, "window", len(window), "token", next)

		if next == stop {
			stats.State = StateStopped
			break
		}

		frag, err := out.Next(next)
		if err != nil {
			return fail(start, stepError(step, ErrDecode, err))
		}
		if frag != "" {
			if _, err := sink.WriteString(frag); err != nil {
				return fail(start, stepError(step, ErrSink, err))
			}
		}

		pos += len(window)
		stats.State = StateDecoding
	}
	if stats.State != StateStopped {
		stats.State = StateExhausted
	}

	rest, err := out.Flush()
	if err != nil {
		return fail(start, stepError(step, ErrDecode, err))
	}
	if rest != "" {
		if _, err := sink.WriteString(rest); err != nil {
			return fail(start, stepError(step, ErrSink, err))
		}
	}
	if err := sink.Flush(); err != nil {
		return fail(start, stepError(step, ErrSink, err))
	}

	stats.finish(start)
	log.Info(fmt.Sprintf("%d tokens generated (%.2f token/s)", stats.TokensGenerated, stats.TPS),
		"state", stats.State.String())
	return stats, nil
}

// The model, sampler and codec are pluggable; a panic in one of them is
// reported as an error of the step that triggered it.

func safeForward(m SequenceModel, window []tokenizer.TokenID, pos int) (out []float32, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Forward: %v", rec)
		}
	}()
	// the model must not observe later appends to history
	return m.Forward(slices.Clip(window), pos)
}

func safeSample(s *logits.Sampler, scores []float32) (id tokenizer.TokenID, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Sample: %v", rec)
		}
	}()
	return s.Sample(scores)
}

func safeReset(r Resetter) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Reset: %v", rec)
		}
	}()
	r.Reset()
	return nil
}

func safeEncode(tok tokenizer.Tokenizer, text string) (ids []tokenizer.TokenID, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in Encode: %v", rec)
		}
	}()
	return tok.Encode(text)
}
