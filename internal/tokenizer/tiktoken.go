package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// EncodingR50kBase is the GPT-2 byte-level BPE vocabulary used by phi-2.
	EncodingR50kBase = "r50k_base"
	// EncodingP50kBase is the Codex/GPT-3 vocabulary.
	EncodingP50kBase = "p50k_base"
	// EncodingCL100kBase is the GPT-4 vocabulary.
	EncodingCL100kBase = "cl100k_base"
)

// TikToken wraps pkoukk/tiktoken-go. The BPE ranks are fetched and cached by
// the library on first use.
type TikToken struct {
	encoding *tiktoken.Tiktoken
	name     string
}

func NewTikToken(encodingName string) (*TikToken, error) {
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, fmt.Errorf("load tiktoken encoding %q: %w", encodingName, err)
	}
	return &TikToken{encoding: encoding, name: encodingName}, nil
}

// Encode treats special token literals in text as plain text.
func (t *TikToken) Encode(text string) ([]TokenID, error) {
	return toTokenIDs(t.encoding.Encode(text, nil, nil)), nil
}

func (t *TikToken) Decode(ids []TokenID) (string, error) {
	vocab := t.VocabSize()
	ints := make([]int, 0, len(ids))
	for _, id := range ids {
		if int(id) >= vocab {
			return "", fmt.Errorf("%w: token id out of range: %d", ErrDecode, id)
		}
		if t.isSpecial(id) {
			continue
		}
		ints = append(ints, int(id))
	}
	return t.encoding.Decode(ints), nil
}

// TokenID resolves literal to a single id. Special literals are allowed.
func (t *TikToken) TokenID(literal string) (TokenID, bool) {
	if literal == "" {
		return 0, false
	}
	ids := t.encoding.Encode(literal, []string{"all"}, nil)
	if len(ids) != 1 {
		return 0, false
	}
	return TokenID(ids[0]), true
}

func (t *TikToken) VocabSize() int {
	switch t.name {
	case EncodingCL100kBase:
		return 100277
	case EncodingP50kBase:
		return 50281
	default:
		return 50257
	}
}

func (t *TikToken) Name() string { return t.name }

func (t *TikToken) isSpecial(id TokenID) bool {
	switch t.name {
	case EncodingCL100kBase:
		return id >= 100257
	default:
		return id == 50256
	}
}

func toTokenIDs(in []int) []TokenID {
	out := make([]TokenID, len(in))
	for i, id := range in {
		out[i] = TokenID(id)
	}
	return out
}
