package mood

import "strings"

// Result is an augmented response with the resolved emoji and tip.
type Result struct {
	Text  string
	Emoji string
	Tip   string
}

// Augmenter appends mood tips to bot responses.
type Augmenter struct {
	table Table
}

// NewAugmenter returns an Augmenter over table; nil selects DefaultTable.
func NewAugmenter(table Table) *Augmenter {
	if table == nil {
		table = DefaultTable()
	}
	return &Augmenter{table: table}
}

// Augment appends " {emoji} {tip}" unless the tip is empty or already
// contained in response, so augmenting twice changes nothing.
func (a *Augmenter) Augment(response, label string) Result {
	entry := a.table.Lookup(label)
	text := response
	if entry.Tip != "" && !strings.Contains(response, entry.Tip) {
		text = response + " " + entry.Emoji + " " + entry.Tip
	}
	return Result{Text: text, Emoji: entry.Emoji, Tip: entry.Tip}
}

// SuggestTip returns the tip for label, or DefaultSuggestion when the label
// has none.
func (a *Augmenter) SuggestTip(label string) string {
	if tip := a.table.Lookup(label).Tip; tip != "" {
		return tip
	}
	return DefaultSuggestion
}

// Table exposes the resolved table for display.
func (a *Augmenter) Table() Table {
	out := make(Table, len(a.table))
	for k, v := range a.table {
		out[k] = v
	}
	return out
}
