package conversation

import (
	"log/slog"
	"strings"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
)

// DefaultEOS is the DialoGPT end-of-turn marker.
const DefaultEOS = "<|endoftext|>"

// Config holds the prompt budget.
type Config struct {
	EOSToken       string
	MaxInputTokens int
	ContextLimit   int
	NewTokenBudget int
}

// Prompt is an assembled generation prompt.
type Prompt struct {
	Text      string
	Tokens    int
	Truncated bool
}

// Assembler builds dialogue prompts from the session window.
type Assembler struct {
	tokenizer Tokenizer
	cfg       Config
}

// NewAssembler returns an Assembler. A nil tokenizer selects the GPT-2 BPE
// tokenizer aware of cfg.EOSToken, or the byte-bounded PreTokenizer when the
// BPE ranks cannot be loaded.
func NewAssembler(tokenizer Tokenizer, cfg Config) *Assembler {
	if cfg.EOSToken == "" {
		cfg.EOSToken = DefaultEOS
	}
	if cfg.MaxInputTokens <= 0 {
		cfg.MaxInputTokens = 1000
	}
	if cfg.ContextLimit < cfg.MaxInputTokens {
		cfg.ContextLimit = cfg.MaxInputTokens
	}
	if cfg.NewTokenBudget <= 0 {
		cfg.NewTokenBudget = 80
	}
	if tokenizer == nil {
		tokenizer = DefaultTokenizer(cfg.EOSToken)
	}
	return &Assembler{tokenizer: tokenizer, cfg: cfg}
}

// DefaultTokenizer returns the exact GPT-2 tokenizer, falling back to
// PreTokenizer if the encoding fails to load.
func DefaultTokenizer(eos string) Tokenizer {
	bpe, err := NewBPETokenizer(eos)
	if err != nil {
		slog.Warn("bpe tokenizer unavailable, using byte estimate", "component", "conversation", "error", err)
		return NewPreTokenizer(eos)
	}
	return bpe
}

// Build renders history and the new message as
// "User: a <eos> Bot: b <eos> User: message <eos>" and left-truncates it to
// MaxInputTokens, so the oldest context goes first and the message survives.
func (a *Assembler) Build(history []chat.HistoryEntry, message string) Prompt {
	var b strings.Builder
	for _, entry := range history {
		b.WriteString(entry.Speaker.Label())
		b.WriteString(": ")
		b.WriteString(entry.Text)
		b.WriteString(" ")
		b.WriteString(a.cfg.EOSToken)
		b.WriteString(" ")
	}
	b.WriteString(chat.SpeakerUser.Label())
	b.WriteString(": ")
	b.WriteString(message)
	b.WriteString(" ")
	b.WriteString(a.cfg.EOSToken)

	tokens := a.tokenizer.Tokenize(b.String())
	if len(tokens) <= a.cfg.MaxInputTokens {
		return Prompt{Text: b.String(), Tokens: len(tokens)}
	}

	kept := tokens[len(tokens)-a.cfg.MaxInputTokens:]
	return Prompt{
		Text:      strings.TrimLeft(strings.ToValidUTF8(a.tokenizer.Join(kept), ""), " "),
		Tokens:    len(kept),
		Truncated: true,
	}
}

// MaxNewTokens caps generation at the context limit: the total output may
// not exceed min(ContextLimit, promptTokens+NewTokenBudget).
func (a *Assembler) MaxNewTokens(promptTokens int) int {
	total := promptTokens + a.cfg.NewTokenBudget
	if total > a.cfg.ContextLimit {
		total = a.cfg.ContextLimit
	}
	if n := total - promptTokens; n > 0 {
		return n
	}
	return 1
}
