package inference

import (
	"errors"
	"fmt"

	"github.com/samcharles93/ai/internal/tokenizer"
)

var (
	ErrEmptyPrompt      = errors.New("empty prompt")
	ErrVocabularyLookup = errors.New("stop token not in vocabulary")
	ErrModelForward     = errors.New("model forward")
	ErrPenalty          = errors.New("repeat penalty")
	ErrSampling         = errors.New("sampling")
	ErrDecode           = tokenizer.ErrDecode
	ErrSink             = errors.New("sink")
)

// PromptStep is the Step of errors raised while the prompt is written, before
// the first model call.
const PromptStep = -1

// StepError reports which step of a run failed. errors.Is matches both the
// Kind sentinel and the underlying cause.
type StepError struct {
	Step int
	Kind error
	Err  error
}

func (e *StepError) Error() string {
	if e.Step == PromptStep {
		return fmt.Sprintf("prompt: %v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("step %d: %v: %v", e.Step, e.Kind, e.Err)
}

func (e *StepError) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

func stepError(step int, kind, err error) error {
	return &StepError{Step: step, Kind: kind, Err: err}
}
