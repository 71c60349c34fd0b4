package inference

import (
	"fmt"
	"strings"

	"github.com/samcharles93/ai/internal/tokenizer"
)

// DefaultStopToken ends generation for GPT-2 style vocabularies.
const DefaultStopToken = "<|endoftext|>"

// ResolveStopToken looks literal up in the vocabulary. Surrounding whitespace
// is ignored and an empty literal means DefaultStopToken.
func ResolveStopToken(tok tokenizer.Tokenizer, literal string) (tokenizer.TokenID, error) {
	literal = strings.TrimSpace(literal)
	if literal == "" {
		literal = DefaultStopToken
	}
	id, ok := tok.TokenID(literal)
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrVocabularyLookup, literal)
	}
	return id, nil
}
