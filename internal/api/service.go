package api

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samcharles93/ai/internal/inference"
	"github.com/samcharles93/ai/internal/logger"
	"github.com/samcharles93/ai/internal/tokenizer"
)

// Service runs generation requests against one shared model. Runs are
// serialized because the model keeps a single cache.
type Service struct {
	model     inference.SequenceModel
	tok       tokenizer.Tokenizer
	defaults  inference.RequestOptions
	modelName string
	tokName   string
	log       logger.Logger
	clock     func() time.Time

	mu sync.Mutex
}

type ServiceOptions struct {
	// ModelName and TokenizerName are reported by GET /v1/model.
	ModelName     string
	TokenizerName string
	Defaults      inference.RequestOptions
	Log           logger.Logger
}

func NewService(m inference.SequenceModel, tok tokenizer.Tokenizer, opts ServiceOptions) *Service {
	log := opts.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Service{
		model:     m,
		tok:       tok,
		defaults:  opts.Defaults,
		modelName: opts.ModelName,
		tokName:   opts.TokenizerName,
		log:       log,
		clock:     time.Now,
	}
}

// Resolve checks req against the server defaults without running anything,
// so that errors can still be reported as a plain JSON response.
func (s *Service) Resolve(req GenerateRequest) (inference.Request, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return inference.Request{}, newInvalidRequest("prompt is required")
	}
	r := inference.ResolveRequest(req.options(), s.defaults)
	if err := r.Validate(); err != nil {
		return r, newInvalidRequest(err.Error())
	}
	if _, err := inference.ResolveStopToken(s.tok, r.StopToken); err != nil {
		return r, newInvalidRequest(err.Error())
	}
	return r, nil
}

// Generate runs one resolved request, writing text to sink as it is produced.
func (s *Service) Generate(ctx context.Context, id, prompt string, r inference.Request, sink inference.Sink) (GenerateResponse, error) {
	resp := GenerateResponse{
		ID:      id,
		Object:  "generation",
		Created: s.clock().Unix(),
		Model:   s.modelName,
		Seed:    r.Seed,
	}

	log := s.log.With("id", id)
	s.mu.Lock()
	defer s.mu.Unlock()

	g := inference.NewGenerator(s.model, s.tok, r)
	g.Log = log
	stats, err := g.Generate(ctx, prompt, r.MaxNewTokens, sink)
	resp.FinishReason = finishReason(stats.State)
	resp.Usage = Usage{
		PromptTokens:     stats.PromptTokens,
		CompletionTokens: stats.TokensGenerated,
		DurationMS:       stats.Duration.Milliseconds(),
		TokensPerSecond:  stats.TPS,
	}
	if err != nil {
		log.Warn("generation failed", "error", err)
		return resp, err
	}
	return resp, nil
}

func (s *Service) Info() ModelInfo {
	stop := inference.DefaultStopToken
	if s.defaults.StopToken != nil && *s.defaults.StopToken != "" {
		stop = *s.defaults.StopToken
	}
	return ModelInfo{
		Model:     s.modelName,
		Tokenizer: s.tokName,
		VocabSize: s.tok.VocabSize(),
		StopToken: stop,
	}
}
