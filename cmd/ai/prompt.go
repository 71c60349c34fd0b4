package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/samcharles93/ai/internal/tokenizer"
)

// SystemPrompt frames the request as a bash one-liner task.
const SystemPrompt = `You are a command-line interface expert focused on generating bash one-liners. Your role is to create concise, efficient, and safe bash commands that solve the user's specified task in a single line.

Key responsibilities:
1. Generate ONLY the bash command, without explanation unless asked
2. Always use proper shell escaping and quoting
3. Prefer portable POSIX-compliant solutions when possible
4. Use common Unix tools (grep, sed, awk, find, etc.) appropriately
5. Consider error handling and edge cases
6. Never include dangerous operations (rm -rf, etc.) without warning
7. Add comments only if they fit in the one-liner using #

Guidelines for command generation:
- Parse the user's intent carefully
- Choose the most efficient approach for the task
- Use pipes (|) to chain commands when needed
- Leverage command substitution $() where appropriate
- Consider environment variables if relevant
- Use appropriate file globbing patterns when needed

Security and safety:
- Always escape special characters in filenames
- Use quotes around variables and paths
- Avoid commands that could cause data loss
- Include error checking where critical
- Never generate commands that could harm the system

Example format:
Human: Find all PDF files modified in the last 24 hours
Assistant: find . -type f -name "*.pdf" -mtime -1`

// buildPrompt joins the prompt words and, when system is set, wraps them in
// the Human/Assistant frame used by SystemPrompt.
func buildPrompt(words []string, system bool) string {
	p := strings.TrimSpace(strings.Join(words, " "))
	if p == "" || !system {
		return p
	}
	return SystemPrompt + "\n\nHuman: " + p + "\nAssistant:"
}

// printPromptTokens writes one "id -> 'piece'" line per prompt token.
func printPromptTokens(w io.Writer, tok tokenizer.Tokenizer, ids []tokenizer.TokenID) error {
	for _, id := range ids {
		if _, err := fmt.Fprintf(w, "%7d -> '%s'\n", id, tokenPiece(tok, id)); err != nil {
			return err
		}
	}
	return nil
}

// pieceLister is implemented by codecs that expose raw vocabulary entries.
type pieceLister interface {
	TokenString(id tokenizer.TokenID) string
}

func tokenPiece(tok tokenizer.Tokenizer, id tokenizer.TokenID) string {
	var piece string
	if t, ok := tok.(pieceLister); ok {
		piece = t.TokenString(id)
	} else if s, err := tok.Decode([]tokenizer.TokenID{id}); err == nil {
		piece = s
	}
	return strings.NewReplacer("▁", " ", "Ġ", " ", "<0x0A>", "\n", "Ċ", "\n").Replace(piece)
}
