package tokenizer

import (
	"errors"
	"fmt"
	"slices"
	"unicode"
	"unicode/utf8"
)

// OutputStream turns a growing list of token ids into text fragments as soon
// as they are stable. The decode of a span is not guaranteed to be the
// concatenation of per-token decodes, so every call re-decodes the suffix
// starting at prevIndex and only compares lengths against the previous decode.
//
// tokens[prevIndex:currentIndex] is the span whose text has already been
// emitted in full; tokens after currentIndex are pending.
type OutputStream struct {
	dec          Decoder
	tokens       []TokenID
	prevIndex    int
	currentIndex int
}

func NewOutputStream(dec Decoder) *OutputStream {
	return &OutputStream{dec: dec}
}

// Next appends id and returns the newly stable text, or "" when the tail is
// still unstable (for example a partial UTF-8 sequence).
func (s *OutputStream) Next(id TokenID) (string, error) {
	prevText, err := s.stableText()
	if err != nil {
		return "", err
	}
	s.tokens = append(s.tokens, id)
	text, err := s.decode(s.tokens[s.prevIndex:])
	if err != nil {
		return "", err
	}
	if len(text) > len(prevText) && endsAlphanumeric(text) {
		s.prevIndex = s.currentIndex
		s.currentIndex = len(s.tokens)
		return text[len(prevText):], nil
	}
	return "", nil
}

// Flush returns whatever text is still pending. It is meant for end of
// stream, once no more tokens will arrive.
func (s *OutputStream) Flush() (string, error) {
	prevText, err := s.stableText()
	if err != nil {
		return "", err
	}
	text, err := s.decode(s.tokens[s.prevIndex:])
	if err != nil {
		return "", err
	}
	if len(text) > len(prevText) {
		return text[len(prevText):], nil
	}
	return "", nil
}

// DecodeAll decodes every token seen so far.
func (s *OutputStream) DecodeAll() (string, error) {
	return s.decode(s.tokens)
}

// Tokens returns a copy of the history.
func (s *OutputStream) Tokens() []TokenID {
	return slices.Clone(s.tokens)
}

// Reset clears the history so the stream can be reused.
func (s *OutputStream) Reset() {
	s.tokens = s.tokens[:0]
	s.prevIndex = 0
	s.currentIndex = 0
}

func (s *OutputStream) stableText() (string, error) {
	if len(s.tokens) == 0 {
		return "", nil
	}
	return s.decode(s.tokens[s.prevIndex:s.currentIndex])
}

func (s *OutputStream) decode(ids []TokenID) (string, error) {
	text, err := s.dec.Decode(ids)
	if err != nil {
		if errors.Is(err, ErrDecode) {
			return "", err
		}
		return "", fmt.Errorf("%w: %w", ErrDecode, err)
	}
	return text, nil
}

// endsAlphanumeric reports whether the last rune is alphabetic or numeric.
// Alphabetic includes Other_Alphabetic, such as Indic vowel signs.
// A trailing invalid byte sequence decodes to utf8.RuneError, which is neither.
func endsAlphanumeric(text string) bool {
	r, size := utf8.DecodeLastRuneInString(text)
	if r == utf8.RuneError && size <= 1 {
		return false
	}
	return unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.Is(unicode.Other_Alphabetic, r)
}
