package chat

// Speaker identifies who said a history entry.
type Speaker string

const (
	SpeakerUser Speaker = "user"
	SpeakerBot  Speaker = "bot"
)

// Label is the role prefix used when rendering a prompt.
func (s Speaker) Label() string {
	if s == SpeakerBot {
		return "Bot"
	}
	return "User"
}

// HistoryEntry is one message of the session window, oldest first.
type HistoryEntry struct {
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}
