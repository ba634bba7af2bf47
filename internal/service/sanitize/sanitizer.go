package sanitize

import "strings"

// CannedReply replaces generations that carry too little content.
const CannedReply = "Thanks for sharing that. I'm here to listen—want to talk more about it?"

// Ellipsis marks a clipped response.
const Ellipsis = "..."

// Config bounds the cleaned response.
type Config struct {
	MinWords int
	MaxWords int
}

// Sanitizer turns raw generated text into the bot-visible reply.
type Sanitizer struct {
	minWords int
	maxWords int
}

// New returns a Sanitizer; zero values select 3 and 60 words.
func New(cfg Config) *Sanitizer {
	if cfg.MinWords <= 0 {
		cfg.MinWords = 3
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = 60
	}
	return &Sanitizer{minWords: cfg.MinWords, maxWords: cfg.MaxWords}
}

// Clean runs echo stripping, word deduplication, the minimum-content check
// and the length clip, in that order. The result is never empty.
func (s *Sanitizer) Clean(generated, userInput string) string {
	text := StripEcho(generated, userInput)
	words := Dedupe(strings.Fields(text))
	if len(words) < s.minWords {
		return CannedReply
	}
	return Clip(words, s.maxWords)
}

// StripEcho removes userInput when generated starts with it, ignoring case.
func StripEcho(generated, userInput string) string {
	generated = strings.TrimSpace(generated)
	prefix := strings.TrimSpace(userInput)
	if prefix == "" || len(generated) < len(prefix) {
		return generated
	}
	if strings.EqualFold(generated[:len(prefix)], prefix) {
		return strings.TrimSpace(generated[len(prefix):])
	}
	return generated
}

// Dedupe keeps the first occurrence of every word and drops later copies.
// It is lossy on purpose: legitimately repeated words are removed too.
func Dedupe(words []string) []string {
	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, ok := seen[w]; ok {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Clip joins at most maxWords words, appending Ellipsis when words were cut.
func Clip(words []string, maxWords int) string {
	if len(words) <= maxWords {
		return strings.Join(words, " ")
	}
	return strings.Join(words[:maxWords], " ") + Ellipsis
}
