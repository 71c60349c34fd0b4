package api

import "github.com/samcharles93/ai/internal/inference"

// GenerateRequest is the body of POST /v1/generate. Omitted fields take the
// server defaults.
type GenerateRequest struct {
	Prompt        string   `json:"prompt"`
	MaxTokens     *int     `json:"max_tokens,omitempty"`
	Seed          *uint64  `json:"seed,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
	TopP          *float64 `json:"top_p,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
	RepeatLastN   *int     `json:"repeat_last_n,omitempty"`
	Stop          *string  `json:"stop,omitempty"`
	Echo          *bool    `json:"echo,omitempty"`
	Stream        bool     `json:"stream,omitempty"`
}

func (r GenerateRequest) options() inference.RequestOptions {
	return inference.RequestOptions{
		MaxNewTokens:  r.MaxTokens,
		Seed:          r.Seed,
		Temperature:   r.Temperature,
		TopP:          r.TopP,
		RepeatPenalty: r.RepeatPenalty,
		RepeatLastN:   r.RepeatLastN,
		StopToken:     r.Stop,
		EchoPrompt:    r.Echo,
	}
}

type GenerateResponse struct {
	ID           string `json:"id"`
	Object       string `json:"object"`
	Created      int64  `json:"created"`
	Model        string `json:"model,omitempty"`
	Text         string `json:"text"`
	FinishReason string `json:"finish_reason"`
	Seed         uint64 `json:"seed"`
	Usage        Usage  `json:"usage"`
}

type Usage struct {
	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	DurationMS       int64   `json:"duration_ms"`
	TokensPerSecond  float64 `json:"tokens_per_second"`
}

type ResponseError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Param   string `json:"param,omitempty"`
}

type streamEvent struct {
	Type     string            `json:"type"`
	ID       string            `json:"id"`
	Seq      int               `json:"sequence_number"`
	Delta    string            `json:"delta,omitempty"`
	Response *GenerateResponse `json:"response,omitempty"`
	Error    *ResponseError    `json:"error,omitempty"`
}

type ModelInfo struct {
	Model     string `json:"model"`
	Tokenizer string `json:"tokenizer,omitempty"`
	VocabSize int    `json:"vocab_size"`
	StopToken string `json:"stop_token"`
}

func finishReason(s inference.State) string {
	switch s {
	case inference.StateStopped:
		return "stop"
	case inference.StateExhausted:
		return "length"
	default:
		return s.String()
	}
}
