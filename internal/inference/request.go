package inference

import (
	"fmt"
	"math/rand/v2"

	"github.com/samcharles93/ai/internal/logits"
	"github.com/samcharles93/ai/internal/tokenizer"
)

// Defaults used when neither the caller nor the config sets a value.
const (
	DefaultMaxNewTokens  = 100
	DefaultTemperature   = 0.8
	DefaultTopP          = 0.9
	DefaultRepeatPenalty = 1.1
	DefaultRepeatLastN   = 64
)

// RequestOptions carries per-request overrides. Nil fields fall back to the
// defaults passed to ResolveRequest.
type RequestOptions struct {
	MaxNewTokens  *int
	Seed          *uint64
	Temperature   *float64
	TopP          *float64
	RepeatPenalty *float64
	RepeatLastN   *int
	StopToken     *string
	EchoPrompt    *bool
}

// Request is a fully resolved generation request.
type Request struct {
	MaxNewTokens int
	Seed         uint64
	// Temperature and TopP stay optional: nil means arg-max and no nucleus.
	Temperature   *float64
	TopP          *float64
	RepeatPenalty float64
	RepeatLastN   int
	StopToken     string
	EchoPrompt    bool
}

// ResolveRequest layers opts over defaults over the built-in defaults. A
// missing seed is drawn at random here so that the run itself stays
// deterministic given its Request.
func ResolveRequest(opts, defaults RequestOptions) Request {
	temp, topP := DefaultTemperature, DefaultTopP
	req := Request{
		MaxNewTokens:  DefaultMaxNewTokens,
		Temperature:   &temp,
		TopP:          &topP,
		RepeatPenalty: DefaultRepeatPenalty,
		RepeatLastN:   DefaultRepeatLastN,
		StopToken:     DefaultStopToken,
		EchoPrompt:    true,
	}
	for _, o := range []RequestOptions{defaults, opts} {
		if o.MaxNewTokens != nil {
			req.MaxNewTokens = *o.MaxNewTokens
		}
		if o.Seed != nil {
			req.Seed = *o.Seed
		}
		if o.Temperature != nil {
			v := *o.Temperature
			req.Temperature = &v
		}
		if o.TopP != nil {
			v := *o.TopP
			req.TopP = &v
		}
		if o.RepeatPenalty != nil {
			req.RepeatPenalty = *o.RepeatPenalty
		}
		if o.RepeatLastN != nil {
			req.RepeatLastN = *o.RepeatLastN
		}
		if o.StopToken != nil && *o.StopToken != "" {
			req.StopToken = *o.StopToken
		}
		if o.EchoPrompt != nil {
			req.EchoPrompt = *o.EchoPrompt
		}
	}
	if opts.Seed == nil && defaults.Seed == nil {
		req.Seed = rand.Uint64()
	}
	return req
}

// Validate rejects values the decode loop cannot honor.
func (r Request) Validate() error {
	if r.MaxNewTokens < 0 {
		return fmt.Errorf("max new tokens must be >= 0, got %d", r.MaxNewTokens)
	}
	if r.Temperature != nil && *r.Temperature < 0 {
		return fmt.Errorf("temperature must be >= 0, got %v", *r.Temperature)
	}
	if r.TopP != nil && (*r.TopP < 0 || *r.TopP > 1) {
		return fmt.Errorf("top-p must be within [0, 1], got %v", *r.TopP)
	}
	if r.RepeatPenalty <= 0 {
		return fmt.Errorf("repeat penalty must be > 0, got %v", r.RepeatPenalty)
	}
	if r.RepeatLastN < 0 {
		return fmt.Errorf("repeat last n must be >= 0, got %d", r.RepeatLastN)
	}
	return nil
}

func (r Request) SamplerConfig() logits.SamplerConfig {
	return logits.SamplerConfig{Seed: r.Seed, Temperature: r.Temperature, TopP: r.TopP}
}

func (r Request) PenaltyConfig() logits.PenaltyConfig {
	return logits.PenaltyConfig{Factor: float32(r.RepeatPenalty), LastN: r.RepeatLastN}
}

// NewGenerator wires a Generator for one resolved request.
func NewGenerator(m SequenceModel, tok tokenizer.Tokenizer, req Request) *Generator {
	return &Generator{
		Model:      m,
		Tokenizer:  tok,
		Sampler:    logits.NewSampler(req.SamplerConfig()),
		Penalty:    req.PenaltyConfig(),
		StopToken:  req.StopToken,
		OmitPrompt: !req.EchoPrompt,
	}
}
