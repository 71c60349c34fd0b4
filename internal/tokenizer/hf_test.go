package tokenizer

import (
	"errors"
	"slices"
	"testing"
)

var testTokenizerJSON = []byte(`{
	"model":{
		"type":"BPE",
		"vocab":{
			"H":0,"e":1,"l":2,"o":3,"Ġ":4,"w":5,"r":6,"d":7,
			"He":8,"ll":9,"llo":10,"Ġw":11
		},
		"merges":["H e","l l",["ll","o"],"Ġ w"]
	},
	"added_tokens":[
		{"id":12,"content":"<|endoftext|>","special":true}
	]
}`)

func loadTestTokenizer(t *testing.T) *HFTokenizer {
	t.Helper()
	tok, err := LoadHFTokenizerBytes(testTokenizerJSON, nil)
	if err != nil {
		t.Fatalf("load tokenizer: %v", err)
	}
	return tok
}

func TestHFTokenizerEncodeDecode(t *testing.T) {
	t.Parallel()

	tok := loadTestTokenizer(t)
	ids, err := tok.Encode("Hello world")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := []TokenID{8, 10, 11, 3, 6, 2, 7}
	if !slices.Equal(ids, want) {
		t.Fatalf("unexpected ids: got %v want %v", ids, want)
	}

	text, err := tok.Decode(ids)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if text != "Hello world" {
		t.Fatalf("round trip mismatch: %q", text)
	}
}

func TestHFTokenizerSpecialTokens(t *testing.T) {
	t.Parallel()

	tok := loadTestTokenizer(t)
	id, ok := tok.TokenID("<|endoftext|>")
	if !ok || id != 12 {
		t.Fatalf("unexpected stop token lookup: %d %v", id, ok)
	}
	if _, ok := tok.TokenID("<|missing|>"); ok {
		t.Fatalf("expected lookup of unknown literal to fail")
	}

	ids, err := tok.Encode("He<|endoftext|>")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !slices.Equal(ids, []TokenID{8, 12}) {
		t.Fatalf("special literal not kept whole: %v", ids)
	}

	text, err := tok.Decode(ids)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if text != "He" {
		t.Fatalf("special tokens should be skipped on decode, got %q", text)
	}
	if tok.VocabSize() != 13 {
		t.Fatalf("unexpected vocab size: %d", tok.VocabSize())
	}
}

func TestHFTokenizerDecodeOutOfRange(t *testing.T) {
	t.Parallel()

	tok := loadTestTokenizer(t)
	_, err := tok.Decode([]TokenID{8, 13})
	if !errors.Is(err, ErrDecode) {
		t.Fatalf("expected ErrDecode, got %v", err)
	}
}

func TestHFTokenizerUnknownPiece(t *testing.T) {
	t.Parallel()

	tok := loadTestTokenizer(t)
	if _, err := tok.Encode("zzz"); err == nil {
		t.Fatalf("expected error for text outside the vocabulary")
	}
}

func TestLoadHFTokenizerRejectsUnsupportedModel(t *testing.T) {
	t.Parallel()

	_, err := LoadHFTokenizerBytes([]byte(`{"model":{"type":"WordPiece","vocab":{},"merges":[]}}`), nil)
	if err == nil {
		t.Fatalf("expected unsupported tokenizer model error")
	}
}

func TestLoadHFTokenizerBOS(t *testing.T) {
	t.Parallel()

	tok, err := LoadHFTokenizerBytes(testTokenizerJSON, []byte(`{"add_bos_token":true,"bos_token":"<|endoftext|>"}`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	ids, err := tok.Encode("He")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !slices.Equal(ids, []TokenID{12, 8}) {
		t.Fatalf("expected BOS prefix, got %v", ids)
	}
	if tok.BOSID() != 12 || tok.EOSID() != -1 {
		t.Fatalf("unexpected special ids: bos=%d eos=%d", tok.BOSID(), tok.EOSID())
	}
}

func TestTokenLiteralForms(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want string
	}{
		{`"<|endoftext|>"`, "<|endoftext|>"},
		{`{"content":"<s>","lstrip":false}`, "<s>"},
		{`null`, ""},
		{``, ""},
		{`42`, ""},
	}
	for _, tt := range tests {
		if got := tokenLiteral([]byte(tt.raw)); got != tt.want {
			t.Fatalf("tokenLiteral(%s): got %q want %q", tt.raw, got, tt.want)
		}
	}
}
