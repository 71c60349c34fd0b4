package tokenizer

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/goccy/go-json"
)

// HFTokenizer is a byte-level BPE codec loaded from a HuggingFace tokenizer.json.
type HFTokenizer struct {
	encoder      map[string]TokenID
	decoder      []string
	bpeRanks     map[Pair]int
	cache        map[string][]string
	byteEncoder  map[byte]string
	byteDecoder  map[string]byte
	pattern      *regexp.Regexp
	addBOS       bool
	bosID        int
	eosID        int
	unkID        int
	ignoreMerges bool
	special      []string
	specialIDs   map[TokenID]struct{}
}

type hfTokenizerJSON struct {
	Model struct {
		Type         string             `json:"type"`
		Vocab        map[string]TokenID `json:"vocab"`
		Merges       []any              `json:"merges"`
		IgnoreMerges bool               `json:"ignore_merges"`
		UnkToken     string             `json:"unk_token"`
	} `json:"model"`
	PreTokenizer hfPreTokenizer `json:"pre_tokenizer"`
	AddedTokens  []struct {
		ID      TokenID `json:"id"`
		Content string  `json:"content"`
		Special bool    `json:"special"`
	} `json:"added_tokens"`
}

type hfPreTokenizer struct {
	Type          string `json:"type"`
	Pretokenizers []struct {
		Type    string `json:"type"`
		Pattern struct {
			Regex string `json:"Regex"`
		} `json:"pattern"`
	} `json:"pretokenizers"`
}

type hfTokenizerConfig struct {
	AddBOS bool            `json:"add_bos_token"`
	BOS    json.RawMessage `json:"bos_token"`
	EOS    json.RawMessage `json:"eos_token"`
}

// tokenLiteral accepts both the plain string form and the AddedToken object
// form ({"content": "..."}) used by older configs.
func tokenLiteral(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var obj struct {
		Content string `json:"content"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.Content
	}
	return ""
}

// LoadHFTokenizer reads tokenizer.json and an optional tokenizer_config.json.
func LoadHFTokenizer(tokJSON, tokConfig string) (*HFTokenizer, error) {
	data, err := os.ReadFile(tokJSON)
	if err != nil {
		return nil, err
	}
	var cfg []byte
	if tokConfig != "" {
		if raw, err := os.ReadFile(tokConfig); err == nil {
			cfg = raw
		}
	}
	return LoadHFTokenizerBytes(data, cfg)
}

func LoadHFTokenizerBytes(tokJSON []byte, tokConfig []byte) (*HFTokenizer, error) {
	var tj hfTokenizerJSON
	if err := json.Unmarshal(tokJSON, &tj); err != nil {
		return nil, fmt.Errorf("parse tokenizer.json: %w", err)
	}
	if strings.ToUpper(tj.Model.Type) != "BPE" {
		return nil, fmt.Errorf("unsupported tokenizer model: %s", tj.Model.Type)
	}

	encoder := make(map[string]TokenID, len(tj.Model.Vocab)+len(tj.AddedTokens))
	size := 0
	for tok, id := range tj.Model.Vocab {
		encoder[tok] = id
		size = max(size, int(id)+1)
	}
	for _, at := range tj.AddedTokens {
		encoder[at.Content] = at.ID
		size = max(size, int(at.ID)+1)
	}
	decoder := make([]string, size)
	for tok, id := range tj.Model.Vocab {
		decoder[id] = tok
	}
	specialIDs := make(map[TokenID]struct{})
	for _, at := range tj.AddedTokens {
		decoder[at.ID] = at.Content
		if at.Special {
			specialIDs[at.ID] = struct{}{}
		}
	}
	for id, tok := range decoder {
		if isSpecialToken(tok) {
			specialIDs[TokenID(id)] = struct{}{}
		}
	}

	var cfg hfTokenizerConfig
	if len(tokConfig) > 0 {
		if err := json.Unmarshal(tokConfig, &cfg); err != nil {
			return nil, fmt.Errorf("parse tokenizer_config.json: %w", err)
		}
	}

	byteEncoder, byteDecoder := bytesToUnicode()
	tok := &HFTokenizer{
		encoder:      encoder,
		decoder:      decoder,
		bpeRanks:     parseMerges(tj.Model.Merges),
		cache:        make(map[string][]string),
		byteEncoder:  byteEncoder,
		byteDecoder:  byteDecoder,
		pattern:      buildHFPattern(tj.PreTokenizer),
		addBOS:       cfg.AddBOS,
		bosID:        lookupID(encoder, tokenLiteral(cfg.BOS)),
		eosID:        lookupID(encoder, tokenLiteral(cfg.EOS)),
		unkID:        lookupID(encoder, tj.Model.UnkToken),
		ignoreMerges: tj.Model.IgnoreMerges,
		special:      collectSpecials(decoder, specialIDs),
		specialIDs:   specialIDs,
	}
	return tok, nil
}

func lookupID(encoder map[string]TokenID, literal string) int {
	if literal == "" {
		return -1
	}
	if id, ok := encoder[literal]; ok {
		return int(id)
	}
	return -1
}

// parseMerges accepts both "a b" strings and ["a", "b"] pairs.
func parseMerges(merges []any) map[Pair]int {
	ranks := make(map[Pair]int, len(merges))
	rank := 0
	for _, raw := range merges {
		line := ""
		switch v := raw.(type) {
		case string:
			line = v
		case []any:
			if len(v) == 2 {
				a, aok := v[0].(string)
				b, bok := v[1].(string)
				if aok && bok {
					line = a + " " + b
				}
			}
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, " ")
		if len(parts) != 2 {
			continue
		}
		p := Pair{A: parts[0], B: parts[1]}
		if _, ok := ranks[p]; !ok {
			ranks[p] = rank
			rank++
		}
	}
	return ranks
}

func (t *HFTokenizer) Encode(text string) ([]TokenID, error) {
	var ids []TokenID
	if t.addBOS && t.bosID >= 0 {
		ids = append(ids, TokenID(t.bosID))
	}
	for _, part := range splitSpecials(text, t.special) {
		if part.isSpecial {
			ids = append(ids, t.encoder[part.text])
			continue
		}
		for _, word := range t.pattern.FindAllString(part.text, -1) {
			for _, bpeTok := range t.bpe(t.byteEncode(word)) {
				id, ok := t.encoder[bpeTok]
				if !ok {
					if t.unkID >= 0 {
						ids = append(ids, TokenID(t.unkID))
						continue
					}
					return nil, fmt.Errorf("unknown token: %q", bpeTok)
				}
				ids = append(ids, id)
			}
		}
	}
	return ids, nil
}

// Decode renders ids as text, skipping special tokens. Incomplete UTF-8
// sequences are returned as raw bytes.
func (t *HFTokenizer) Decode(ids []TokenID) (string, error) {
	var b []byte
	for _, id := range ids {
		if int(id) >= len(t.decoder) {
			return "", fmt.Errorf("%w: token id out of range: %d", ErrDecode, id)
		}
		if _, ok := t.specialIDs[id]; ok {
			continue
		}
		for _, r := range t.decoder[id] {
			if by, ok := t.byteDecoder[string(r)]; ok {
				b = append(b, by)
			} else {
				b = append(b, string(r)...)
			}
		}
	}
	return string(b), nil
}

func (t *HFTokenizer) TokenID(literal string) (TokenID, bool) {
	id, ok := t.encoder[literal]
	return id, ok
}

func (t *HFTokenizer) VocabSize() int { return len(t.decoder) }
func (t *HFTokenizer) BOSID() int     { return t.bosID }
func (t *HFTokenizer) EOSID() int     { return t.eosID }

// TokenString returns the raw vocabulary entry for id.
func (t *HFTokenizer) TokenString(id TokenID) string {
	if int(id) >= len(t.decoder) {
		return ""
	}
	return t.decoder[id]
}

func (t *HFTokenizer) byteEncode(s string) string {
	var b strings.Builder
	for _, by := range []byte(s) {
		b.WriteString(t.byteEncoder[by])
	}
	return b.String()
}

func (t *HFTokenizer) bpe(token string) []string {
	if v, ok := t.cache[token]; ok {
		return v
	}
	if t.ignoreMerges {
		if _, ok := t.encoder[token]; ok {
			out := []string{token}
			t.cache[token] = out
			return out
		}
	}
	word := splitRunes(token)
	for len(word) > 1 {
		bestRank := int(^uint(0) >> 1)
		bestPair := Pair{}
		found := false
		for p := range getPairs(word) {
			if rank, ok := t.bpeRanks[p]; ok && rank < bestRank {
				bestRank = rank
				bestPair = p
				found = true
			}
		}
		if !found {
			break
		}
		word = mergePair(word, bestPair)
	}
	t.cache[token] = word
	return word
}

func buildHFPattern(pre hfPreTokenizer) *regexp.Regexp {
	// GPT-2 default.
	pat := `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`
	if pre.Type == "Sequence" {
		for _, p := range pre.Pretokenizers {
			if p.Type == "Split" && p.Pattern.Regex != "" {
				pat = p.Pattern.Regex
				break
			}
		}
	}
	// Go regexp has no lookahead; fall back to the llama.cpp rewrite of the llama3 pattern.
	if strings.Contains(pat, "(?!\\S)") || strings.Contains(pat, "(?i:") {
		pat = `(?:'[sS]|'[tT]|'[rR][eE]|'[vV][eE]|'[mM]|'[lL][lL]|'[dD])|[^\r\n\p{L}\p{N}]?\p{L}+|\p{N}{1,3}| ?[^\s\p{L}\p{N}]+[\r\n]*|\s*[\r\n]+|\s+`
	}
	return regexp.MustCompile(pat)
}
