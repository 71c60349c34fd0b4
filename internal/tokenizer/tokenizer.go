package tokenizer

import "errors"

// TokenID identifies one vocabulary entry.
type TokenID uint32

// ErrDecode is returned when a token span cannot be rendered as text.
var ErrDecode = errors.New("decode")

// Decoder renders a span of token ids as text.
type Decoder interface {
	Decode(ids []TokenID) (string, error)
}

// Tokenizer is the codec contract used by the generation core and the CLI.
type Tokenizer interface {
	Decoder
	Encode(text string) ([]TokenID, error)
	// TokenID looks up the id of a literal vocabulary entry such as "<|endoftext|>".
	TokenID(literal string) (TokenID, bool)
	VocabSize() int
}
