package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/zhouzirui/mindcare/backend/internal/model/chat"
	"github.com/zhouzirui/mindcare/backend/internal/service/conversation"
	"github.com/zhouzirui/mindcare/backend/internal/service/gateway"
	"github.com/zhouzirui/mindcare/backend/internal/service/mood"
	"github.com/zhouzirui/mindcare/backend/internal/service/sanitize"
)

const (
	FallbackReply = "Sorry, I had trouble understanding. Could you rephrase?"
	NeutralMood   = "neutral"

	DefaultMaxMessageChars = 300
)

// ErrInternal is returned when a turn fails for reasons the user cannot fix.
var ErrInternal = errors.New("internal server error")

// ValidationError rejects a message before any model call.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// State is a step of a chat turn.
type State string

const (
	StateIdle        State = "idle"
	StateValidating  State = "validating"
	StateGenerating  State = "generating"
	StateClassifying State = "classifying"
	StateAugmenting  State = "augmenting"
	StatePersisting  State = "persisting"
	StateDone        State = "done"
	StateErrored     State = "errored"
)

// StageObserver is notified on every state transition of a turn.
type StageObserver func(State)

// Result is what the user sees for one turn.
type Result struct {
	Response string `json:"response"`
	Mood     string `json:"mood"`
	Emoji    string `json:"emoji"`
	Tip      string `json:"tip"`
}

// ModelGateway generates replies and classifies user messages.
type ModelGateway interface {
	Generate(ctx context.Context, prompt string, maxNewTokens int) (string, error)
	Classify(ctx context.Context, text string) (gateway.Prediction, error)
}

// TurnRecorder persists the records of a completed turn.
type TurnRecorder interface {
	AppendTurn(ctx context.Context, chatRec chat.ChatRecord, moodRec chat.MoodRecord) error
}

type Dependencies struct {
	Assembler *conversation.Assembler
	Gateway   ModelGateway
	Sanitizer *sanitize.Sanitizer
	Augmenter *mood.Augmenter
	History   *HistoryStore
	Records   TurnRecorder
	Logger    *slog.Logger
}

// Service runs chat turns end to end.
type Service struct {
	assembler *conversation.Assembler
	gateway   ModelGateway
	sanitizer *sanitize.Sanitizer
	augmenter *mood.Augmenter
	history   *HistoryStore
	records   TurnRecorder
	logger    *slog.Logger

	maxMessageChars int
}

func NewService(deps Dependencies, maxMessageChars int) *Service {
	if maxMessageChars <= 0 {
		maxMessageChars = DefaultMaxMessageChars
	}
	if deps.Assembler == nil {
		deps.Assembler = conversation.NewAssembler(nil, conversation.Config{})
	}
	if deps.Sanitizer == nil {
		deps.Sanitizer = sanitize.New(sanitize.Config{})
	}
	if deps.Augmenter == nil {
		deps.Augmenter = mood.NewAugmenter(nil)
	}
	if deps.History == nil {
		deps.History = NewHistoryStore(0, 0)
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{
		assembler:       deps.Assembler,
		gateway:         deps.Gateway,
		sanitizer:       deps.Sanitizer,
		augmenter:       deps.Augmenter,
		history:         deps.History,
		records:         deps.Records,
		logger:          deps.Logger.With("component", "chat"),
		maxMessageChars: maxMessageChars,
	}
}

// SubmitTurn runs one turn for userID. It returns a *ValidationError for bad
// input and ErrInternal when the turn could not be persisted. Model failures
// degrade to fallbacks and never fail the turn.
func (s *Service) SubmitTurn(ctx context.Context, userID, message string, observe StageObserver) (Result, error) {
	if observe == nil {
		observe = func(State) {}
	}
	fail := func(err error) (Result, error) {
		observe(StateErrored)
		return Result{}, err
	}

	observe(StateValidating)
	message = strings.TrimSpace(message)
	if err := s.validate(message); err != nil {
		return fail(err)
	}

	observe(StateGenerating)
	window := s.history.Window(userID)
	response := s.reply(ctx, window, message)

	observe(StateClassifying)
	label, score := s.classify(ctx, message)

	observe(StateAugmenting)
	augmented := s.augmenter.Augment(response, label)

	observe(StatePersisting)
	err := s.records.AppendTurn(ctx,
		chat.ChatRecord{
			UserID:      userID,
			UserInput:   message,
			BotResponse: augmented.Text,
			Mood:        label,
			MoodScore:   score,
		},
		chat.MoodRecord{UserID: userID, Mood: label},
	)
	if err != nil {
		s.logger.Error("persist turn failed", "user", userID, "error", err)
		return fail(fmt.Errorf("%w: %w", ErrInternal, err))
	}

	s.history.Append(userID,
		chat.HistoryEntry{Speaker: chat.SpeakerUser, Text: message},
		chat.HistoryEntry{Speaker: chat.SpeakerBot, Text: augmented.Text},
	)

	observe(StateDone)
	return Result{
		Response: augmented.Text,
		Mood:     label,
		Emoji:    augmented.Emoji,
		Tip:      augmented.Tip,
	}, nil
}

// Reset clears the conversation window. Persisted records are kept.
func (s *Service) Reset(userID string) {
	s.history.Reset(userID)
}

// History returns the current conversation window of userID.
func (s *Service) History(userID string) []chat.HistoryEntry {
	return s.history.Window(userID)
}

func (s *Service) validate(message string) error {
	if message == "" {
		return &ValidationError{Message: "Empty message"}
	}
	if utf8.RuneCountInString(message) > s.maxMessageChars {
		return &ValidationError{Message: fmt.Sprintf("Message too long. Please limit to %d characters.", s.maxMessageChars)}
	}
	return nil
}

func (s *Service) reply(ctx context.Context, window []chat.HistoryEntry, message string) string {
	prompt := s.assembler.Build(window, message)
	maxNew := s.assembler.MaxNewTokens(prompt.Tokens)

	generated, err := s.gateway.Generate(ctx, prompt.Text, maxNew)
	if err != nil {
		s.logger.Warn("generation degraded to fallback", "error", err, "promptTokens", prompt.Tokens)
		return FallbackReply
	}
	return s.sanitizer.Clean(generated, message)
}

func (s *Service) classify(ctx context.Context, message string) (string, *float64) {
	pred, err := s.gateway.Classify(ctx, message)
	if err != nil {
		s.logger.Warn("classification degraded to neutral", "error", err)
		return NeutralMood, nil
	}
	score := pred.Score
	return pred.Label, &score
}
