package conversation

import (
	"fmt"
	"regexp"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// Tokenizer splits prompt text into model tokens. Joining the tokens of a
// string must give the string back.
type Tokenizer interface {
	Tokenize(text string) []string
	Join(tokens []string) string
}

// GPT2Encoding is the byte-level BPE vocabulary DialoGPT was trained with.
const GPT2Encoding = "r50k_base"

var loaderOnce sync.Once

// BPETokenizer counts exact GPT-2 tokens. The BPE ranks are embedded, so no
// network access is needed. Special markers are kept atomic.
type BPETokenizer struct {
	enc     *tiktoken.Tiktoken
	special []string
}

// NewBPETokenizer loads the r50k_base encoding.
func NewBPETokenizer(special ...string) (*BPETokenizer, error) {
	loaderOnce.Do(func() { tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader()) })
	enc, err := tiktoken.GetEncoding(GPT2Encoding)
	if err != nil {
		return nil, fmt.Errorf("load %s encoding: %w", GPT2Encoding, err)
	}
	return &BPETokenizer{enc: enc, special: nonEmpty(special)}, nil
}

// Tokenize implements Tokenizer. Each token is the raw bytes it decodes to,
// so a multi-token rune yields pieces that are not valid UTF-8 on their own.
func (b *BPETokenizer) Tokenize(text string) []string {
	return splitSpecial(text, b.special, func(tokens []string, segment string) []string {
		for _, id := range b.enc.Encode(segment, nil, nil) {
			tokens = append(tokens, b.enc.Decode([]int{id}))
		}
		return tokens
	})
}

// Join implements Tokenizer.
func (b *BPETokenizer) Join(tokens []string) string {
	return strings.Join(tokens, "")
}

// gpt2Pattern is the GPT-2 pre-tokenizer: each match is one pre-token with
// its leading space attached.
var gpt2Pattern = regexp.MustCompile(`'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+`)

// PreTokenizer estimates GPT-2 token counts without the BPE ranks. ASCII
// words count as one token; every other pre-token counts one per byte, since
// byte-level BPE never emits more tokens than bytes. Emoji, punctuation and
// non-Latin text are therefore never undercounted.
type PreTokenizer struct {
	special []string
}

// NewPreTokenizer returns a tokenizer treating each of special as one token.
func NewPreTokenizer(special ...string) *PreTokenizer {
	return &PreTokenizer{special: nonEmpty(special)}
}

// Tokenize implements Tokenizer.
func (p *PreTokenizer) Tokenize(text string) []string {
	return splitSpecial(text, p.special, func(tokens []string, segment string) []string {
		for _, piece := range gpt2Pattern.FindAllString(segment, -1) {
			if asciiWord(piece) {
				tokens = append(tokens, piece)
				continue
			}
			for i := 0; i < len(piece); i++ {
				tokens = append(tokens, piece[i:i+1])
			}
		}
		return tokens
	})
}

// Join implements Tokenizer.
func (p *PreTokenizer) Join(tokens []string) string {
	return strings.Join(tokens, "")
}

// asciiWord reports whether piece is an ASCII word or number, optionally with
// a leading space or apostrophe.
func asciiWord(piece string) bool {
	word := false
	for i := 0; i < len(piece); i++ {
		c := piece[i]
		switch {
		case c >= utf8.RuneSelf:
			return false
		case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
			word = true
		case c == ' ' || c == '\'':
		default:
			return false
		}
	}
	return word
}

// splitSpecial cuts text at special markers, emitting each marker as one
// token and handing the text between markers to encode.
func splitSpecial(text string, special []string, encode func([]string, string) []string) []string {
	tokens := make([]string, 0, len(text)/3+1)
	for text != "" {
		idx, marker := nextSpecial(text, special)
		if idx < 0 {
			return encode(tokens, text)
		}
		if idx > 0 {
			tokens = encode(tokens, text[:idx])
		}
		tokens = append(tokens, marker)
		text = text[idx+len(marker):]
	}
	return tokens
}

func nextSpecial(text string, special []string) (int, string) {
	best, marker := -1, ""
	for _, s := range special {
		if i := strings.Index(text, s); i >= 0 && (best < 0 || i < best) {
			best, marker = i, s
		}
	}
	return best, marker
}

func nonEmpty(special []string) []string {
	kept := make([]string, 0, len(special))
	for _, s := range special {
		if s != "" {
			kept = append(kept, s)
		}
	}
	return kept
}
