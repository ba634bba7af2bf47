package conversation

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
)

func TestBuildWithoutHistory(t *testing.T) {
	a := NewAssembler(nil, Config{})

	got := a.Build(nil, "hello there")
	want := "User: hello there <|endoftext|>"
	if got.Text != want {
		t.Fatalf("Build() = %q, want %q", got.Text, want)
	}
	if got.Truncated {
		t.Fatal("expected untruncated prompt")
	}
}

func TestBuildAlternatesSpeakers(t *testing.T) {
	a := NewAssembler(nil, Config{EOSToken: "<eos>"})
	history := []chat.HistoryEntry{
		{Speaker: chat.SpeakerUser, Text: "hi"},
		{Speaker: chat.SpeakerBot, Text: "hello, how are you?"},
	}

	got := a.Build(history, "not great")
	want := "User: hi <eos> Bot: hello, how are you? <eos> User: not great <eos>"
	if got.Text != want {
		t.Fatalf("Build() = %q, want %q", got.Text, want)
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	a := NewAssembler(nil, Config{})
	history := []chat.HistoryEntry{{Speaker: chat.SpeakerUser, Text: "one"}, {Speaker: chat.SpeakerBot, Text: "two"}}

	first := a.Build(history, "three")
	second := a.Build(history, "three")
	if first != second {
		t.Fatalf("expected identical prompts, got %+v and %+v", first, second)
	}
}

func TestBuildLeftTruncatesOldestTokens(t *testing.T) {
	a := NewAssembler(nil, Config{EOSToken: "<eos>", MaxInputTokens: 12, ContextLimit: 20})
	history := []chat.HistoryEntry{
		{Speaker: chat.SpeakerUser, Text: "oldest message that should disappear"},
		{Speaker: chat.SpeakerBot, Text: "middle reply"},
	}

	got := a.Build(history, "newest words")
	if !got.Truncated {
		t.Fatal("expected prompt to be truncated")
	}
	if got.Tokens > 12 {
		t.Fatalf("expected at most 12 tokens, got %d", got.Tokens)
	}
	if strings.Contains(got.Text, "oldest") {
		t.Fatalf("oldest history should be dropped first: %q", got.Text)
	}
	if !strings.HasSuffix(got.Text, "User: newest words <eos>") {
		t.Fatalf("newest message must survive truncation: %q", got.Text)
	}
}

func TestBuildTruncatesEmojiAndPunctuationHistory(t *testing.T) {
	bpe, err := NewBPETokenizer(DefaultEOS)
	if err != nil {
		t.Fatalf("NewBPETokenizer() error: %v", err)
	}
	history := make([]chat.HistoryEntry, 0, 10)
	for i := 0; i < 5; i++ {
		history = append(history,
			chat.HistoryEntry{Speaker: chat.SpeakerUser, Text: strings.Repeat("😢", 300)},
			chat.HistoryEntry{Speaker: chat.SpeakerBot, Text: strings.Repeat("?!", 150)},
		)
	}
	message := strings.Repeat("😭", 300)

	for name, tok := range map[string]Tokenizer{
		"bpe":       bpe,
		"estimator": NewPreTokenizer(DefaultEOS),
	} {
		t.Run(name, func(t *testing.T) {
			a := NewAssembler(tok, Config{MaxInputTokens: 1000, ContextLimit: 1024, NewTokenBudget: 80})
			got := a.Build(history, message)
			if !got.Truncated {
				t.Fatalf("expected truncation, got %d tokens", got.Tokens)
			}
			if got.Tokens > 1000 {
				t.Fatalf("Tokens = %d, want <= 1000", got.Tokens)
			}
			if !utf8.ValidString(got.Text) {
				t.Fatal("truncated prompt is not valid UTF-8")
			}
			if n := strings.Count(got.Text, DefaultEOS); n >= 11 {
				t.Fatalf("prompt kept %d turns, oldest history should be dropped", n)
			}
			if !strings.HasSuffix(got.Text, "😭😭 "+DefaultEOS) {
				t.Fatal("newest message must survive truncation")
			}
		})
	}
}

func TestBPETokenizerCountsGPT2Tokens(t *testing.T) {
	bpe, err := NewBPETokenizer("<eos>")
	if err != nil {
		t.Fatalf("NewBPETokenizer() error: %v", err)
	}

	tokens := bpe.Tokenize("hello world <eos>")
	want := []string{"hello", " world", " ", "<eos>"}
	if len(tokens) != len(want) {
		t.Fatalf("Tokenize() = %q, want %q", tokens, want)
	}
	for i := range want {
		if tokens[i] != want[i] {
			t.Fatalf("Tokenize() = %q, want %q", tokens, want)
		}
	}

	if n := len(bpe.Tokenize(strings.Repeat("?!", 150))); n < 2 {
		t.Errorf("punctuation run counted as %d tokens", n)
	}
	for _, input := range []string{"emoji 😢 and numbers 123!!", "User: ça va? <eos> Bot: 你好"} {
		if got := bpe.Join(bpe.Tokenize(input)); got != input {
			t.Errorf("Join(Tokenize(%q)) = %q", input, got)
		}
	}
}

func TestPreTokenizerNeverUndercountsSymbols(t *testing.T) {
	tok := NewPreTokenizer()
	tests := []struct {
		input string
		want  int
	}{
		{"hello world", 2},
		{"I don't", 3},
		{"😢", 4},
		{strings.Repeat("?!", 150), 300},
		{"你好", 6},
	}
	for _, tt := range tests {
		if got := len(tok.Tokenize(tt.input)); got != tt.want {
			t.Errorf("len(Tokenize(%q)) = %d, want %d", tt.input, got, tt.want)
		}
	}
}

func TestMaxNewTokens(t *testing.T) {
	a := NewAssembler(nil, Config{MaxInputTokens: 1000, ContextLimit: 1024, NewTokenBudget: 80})

	tests := []struct {
		prompt int
		want   int
	}{
		{prompt: 10, want: 80},
		{prompt: 944, want: 80},
		{prompt: 1000, want: 24},
		{prompt: 1024, want: 1},
	}
	for _, tt := range tests {
		if got := a.MaxNewTokens(tt.prompt); got != tt.want {
			t.Errorf("MaxNewTokens(%d) = %d, want %d", tt.prompt, got, tt.want)
		}
	}
}

func TestPreTokenizerRoundTrip(t *testing.T) {
	tok := NewPreTokenizer("<|endoftext|>")
	inputs := []string{
		"User: I don't know   what to do <|endoftext|> Bot: It's okay.",
		"emoji 😢 and numbers 123!!",
		"",
	}
	for _, input := range inputs {
		tokens := tok.Tokenize(input)
		if got := tok.Join(tokens); got != input {
			t.Errorf("Join(Tokenize(%q)) = %q", input, got)
		}
	}
}

func TestPreTokenizerKeepsSpecialTokenAtomic(t *testing.T) {
	tok := NewPreTokenizer("<eos>")
	tokens := tok.Tokenize("hi <eos>")
	if len(tokens) != 3 || tokens[2] != "<eos>" {
		t.Fatalf("unexpected tokens: %q", tokens)
	}
}
