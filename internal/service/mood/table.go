package mood

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultEmoji is used for labels missing from the table.
const DefaultEmoji = "😐"

// DefaultSuggestion answers tip lookups for unknown moods outside a chat turn.
const DefaultSuggestion = "Take a deep breath and talk to someone if needed."

// Entry pairs an emoji with a short coping tip.
type Entry struct {
	Emoji string `yaml:"emoji" json:"emoji"`
	Tip   string `yaml:"tip" json:"tip"`
}

// Table maps lower-case mood labels to entries.
type Table map[string]Entry

// DefaultTable returns the built-in mood table.
func DefaultTable() Table {
	return Table{
		"joy":      {Emoji: "😊", Tip: "Keep smiling and enjoy the moment!"},
		"sadness":  {Emoji: "😢", Tip: "It's okay to feel sad. Take deep breaths."},
		"anger":    {Emoji: "😠", Tip: "Try calming down with a short walk or breathing exercise."},
		"fear":     {Emoji: "😨", Tip: "You're safe now. Focus on the present."},
		"love":     {Emoji: "❤️", Tip: "Spread the love to those around you!"},
		"surprise": {Emoji: "😲", Tip: "Take a moment to process things calmly."},
		"neutral":  {Emoji: "😐", Tip: "How are you feeling really?"},
	}
}

// Lookup resolves label case-insensitively. Unknown labels get DefaultEmoji
// and an empty tip.
func (t Table) Lookup(label string) Entry {
	if entry, ok := t[strings.ToLower(strings.TrimSpace(label))]; ok {
		return entry
	}
	return Entry{Emoji: DefaultEmoji}
}

// LoadTable reads a YAML table file and overlays it on DefaultTable. An empty
// path returns the defaults.
//
//	sadness:
//	  emoji: "😢"
//	  tip: "It's okay to feel sad. Take deep breaths."
func LoadTable(path string) (Table, error) {
	table := DefaultTable()
	if strings.TrimSpace(path) == "" {
		return table, nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read mood table: %w", err)
	}
	overrides, err := ParseTable(raw)
	if err != nil {
		return nil, err
	}
	for label, entry := range overrides {
		table[label] = entry
	}
	return table, nil
}

// ParseTable decodes a YAML mood table.
func ParseTable(raw []byte) (Table, error) {
	var decoded map[string]Entry
	if err := yaml.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("parse mood table: %w", err)
	}

	table := make(Table, len(decoded))
	for label, entry := range decoded {
		key := strings.ToLower(strings.TrimSpace(label))
		if key == "" {
			return nil, fmt.Errorf("parse mood table: empty label")
		}
		if entry.Emoji == "" {
			entry.Emoji = DefaultEmoji
		}
		table[key] = entry
	}
	return table, nil
}
